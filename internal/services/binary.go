package services

import "strings"

var knownOS = map[string]bool{
	"LINUX":   true,
	"WIN32":   true,
	"MACOSX":  true,
	"SOLARIS": true,
	"JAVA":    true,
}

var knownCPU = map[string]bool{
	"IX86":   true,
	"X86_64": true,
	"IA64":   true,
	"PPC":    true,
	"SPARC":  true,
	"ALPHA":  true,
	"AMD64":  true,
	"ARM":    true,
}

var binaryFields = map[string]map[string]string{
	"LINUX": {
		"IX86":   "linux_ix86uri",
		"PPC":    "linux_ppcuri",
		"AMD64":  "linux_amd64uri",
		"X86_64": "linux_x86_64uri",
		"IA64":   "linux_ia64uri",
	},
	"WIN32": {
		"IX86":   "win32_ix86uri",
		"AMD64":  "win32_amd64uri",
		"X86_64": "win32_x86_64uri",
	},
	"MACOSX": {
		"IX86":   "macos_ix86uri",
		"X86_64": "macos_x86_64uri",
		"PPC":    "macos_ppcuri",
	},
}

// ResolveBinaryField returns the application field holding the binary URI
// for the given platform. JAVA ignores the CPU.
func ResolveBinaryField(os, cpu string) (string, bool) {
	os = strings.ToUpper(strings.TrimSpace(os))
	cpu = strings.ToUpper(strings.TrimSpace(cpu))

	if os == "JAVA" {
		return "javauri", true
	}
	field, ok := binaryFields[os][cpu]
	return field, ok
}

// platformField validates os and cpu and resolves the binary field, failing
// with InvalidPlatformError on anything unsupported.
func platformField(os, cpu string) (string, error) {
	uos := strings.ToUpper(strings.TrimSpace(os))
	ucpu := strings.ToUpper(strings.TrimSpace(cpu))
	if !knownOS[uos] || (uos != "JAVA" && !knownCPU[ucpu]) {
		return "", &InvalidPlatformError{OS: os, CPU: cpu}
	}

	field, ok := ResolveBinaryField(uos, ucpu)
	if !ok {
		return "", &InvalidPlatformError{OS: os, CPU: cpu}
	}
	return field, nil
}
