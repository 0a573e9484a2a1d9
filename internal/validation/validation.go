// Package validation provides input validation for values sent to the service.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNameLength bounds application names.
	MaxNameLength = 100
	// MaxCommandLength bounds work command lines.
	MaxCommandLength = 4096
	// MaxTagLength bounds submission tags.
	MaxTagLength = 128
)

var (
	// ErrInputEmpty indicates a required input is empty.
	ErrInputEmpty = errors.New("input must not be empty")
	// ErrInputTooLong indicates input exceeds maximum length.
	ErrInputTooLong = errors.New("input exceeds maximum length")
	// ErrInputInvalid indicates input contains invalid characters.
	ErrInputInvalid = errors.New("input contains invalid characters")
)

var (
	validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]*$`)
	validTag  = regexp.MustCompile(`^[a-zA-Z0-9._:\-]+$`)
	validUID  = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)
)

// ValidateName validates an application name.
func ValidateName(name string) error {
	if name == "" {
		return ErrInputEmpty
	}
	if len(name) > MaxNameLength {
		return ErrInputTooLong
	}
	if !validName.MatchString(name) {
		return ErrInputInvalid
	}
	return nil
}

// ValidateCommand validates a work command line. Empty is allowed.
func ValidateCommand(command string) error {
	if len(command) > MaxCommandLength {
		return ErrInputTooLong
	}
	if !utf8.ValidString(command) || strings.ContainsAny(command, "\x00") {
		return ErrInputInvalid
	}
	return nil
}

// ValidateTag validates an optional submission tag.
func ValidateTag(tag string) error {
	if tag == "" {
		return nil
	}
	if len(tag) > MaxTagLength {
		return ErrInputTooLong
	}
	if !validTag.MatchString(tag) {
		return ErrInputInvalid
	}
	return nil
}

// ValidateUID validates an entity uid supplied by a caller.
func ValidateUID(uid string) error {
	if uid == "" {
		return ErrInputEmpty
	}
	if len(uid) > 64 || !validUID.MatchString(uid) {
		return ErrInputInvalid
	}
	return nil
}

// ValidatePath validates a local file path.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInputEmpty
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return ErrInputInvalid
	}
	return nil
}
