package services

import (
	"errors"
	"fmt"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

var (
	// ErrSubmissionNotFound indicates the journal has no entry for a work.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrDataTimeout indicates an uploaded data never became AVAILABLE.
	ErrDataTimeout = errors.New("timed out waiting for data to become available")
	// ErrEmptyBinary indicates a registration without binary content.
	ErrEmptyBinary = errors.New("application binary is empty")
	// ErrUnsafeResultPath indicates a result name resolving outside the result dir.
	ErrUnsafeResultPath = errors.New("result path escapes the result directory")
)

// InvalidFieldError reports a field name absent from the kind's schema.
type InvalidFieldError struct {
	Kind  models.Kind
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s field %q", e.Kind, e.Field)
}

// ReadOnlyFieldError reports an attempt to set a field the client may not write.
type ReadOnlyFieldError struct {
	Kind  models.Kind
	Field string
}

func (e *ReadOnlyFieldError) Error() string {
	return fmt.Sprintf("%s field %q is read only", e.Kind, e.Field)
}

// InvalidStateError reports an operation refused because of the entity status.
type InvalidStateError struct {
	Kind   models.Kind
	UID    string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s has invalid status %s", e.Kind, e.UID, e.Status)
}

// ApplicationNotFoundError reports an application name the server does not know.
type ApplicationNotFoundError struct {
	Name string
}

func (e *ApplicationNotFoundError) Error() string {
	return fmt.Sprintf("application %q not found", e.Name)
}

// InvalidPlatformError reports an unsupported OS/CPU pair.
type InvalidPlatformError struct {
	OS  string
	CPU string
}

func (e *InvalidPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %s/%s", e.OS, e.CPU)
}

// WorkExecutionError reports a work that ended in ERROR.
type WorkExecutionError struct {
	UID     string
	Status  models.WorkStatus
	Message string
}

func (e *WorkExecutionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("work %s ended with status %s: %s", e.UID, e.Status, e.Message)
	}
	return fmt.Sprintf("work %s ended with status %s", e.UID, e.Status)
}

// NotFoundError reports a missing entity, or a missing local result file.
type NotFoundError struct {
	Kind models.Kind
	UID  string
}

func (e *NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s not found", e.UID)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.UID)
}

// TransportError wraps a failed round trip with the operation that issued it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
