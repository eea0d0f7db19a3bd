// Package validate holds the field validation rules shared by the web
// forms and the store layer.
package validate

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 64
	MinPasswordLen = 5
	MaxPasswordLen = 128
	MaxEmailLen    = 320

	MinHostNameLen = 2
	MaxHostNameLen = 63
	MinPort        = 1
	MaxPort        = 65535
)

// macPattern accepts the six canonical hex-pair groupings with a
// consistent separator: colon (00:11:22:33:44:55), hyphen
// (00-11-22-33-44-55) or Cisco dot notation (0011.2233.4455).
var macPattern = regexp.MustCompile(
	`^(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$` +
		`|^(?:[0-9A-Fa-f]{2}-){5}[0-9A-Fa-f]{2}$` +
		`|^(?:[0-9A-Fa-f]{4}\.){2}[0-9A-Fa-f]{4}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldError reports a validation failure for a named form field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldErrorf(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Username checks length bounds and rejects embedded whitespace.
func Username(v string) error {
	if len(v) < MinUsernameLen || len(v) > MaxUsernameLen {
		return fieldErrorf("username", "must be %d-%d characters", MinUsernameLen, MaxUsernameLen)
	}
	if strings.ContainsAny(v, " \t\r\n") {
		return fieldErrorf("username", "must not contain whitespace")
	}
	return nil
}

func Email(v string) error {
	if v == "" || len(v) > MaxEmailLen {
		return fieldErrorf("email", "must be 1-%d characters", MaxEmailLen)
	}
	if !emailPattern.MatchString(v) {
		return fieldErrorf("email", "is not a valid email address")
	}
	return nil
}

func Password(v string) error {
	if len(v) < MinPasswordLen || len(v) > MaxPasswordLen {
		return fieldErrorf("password", "must be %d-%d characters", MinPasswordLen, MaxPasswordLen)
	}
	return nil
}

func HostName(v string) error {
	if len(v) < MinHostNameLen || len(v) > MaxHostNameLen {
		return fieldErrorf("name", "must be %d-%d characters", MinHostNameLen, MaxHostNameLen)
	}
	return nil
}

// MACAddress rejects anything the shared pattern does not match,
// including mixed separators within one address.
func MACAddress(v string) error {
	if !macPattern.MatchString(v) {
		return fieldErrorf("macaddress", "is not a valid MAC address")
	}
	return nil
}

func Port(v int) error {
	if v < MinPort || v > MaxPort {
		return fieldErrorf("port", "must be %d-%d", MinPort, MaxPort)
	}
	return nil
}

// IPv4 accepts the empty string; the IP and interface fields of a host
// are optional.
func IPv4(field, v string) error {
	if v == "" {
		return nil
	}
	ip := net.ParseIP(v)
	if ip == nil || ip.To4() == nil {
		return fieldErrorf(field, "is not a valid IPv4 address")
	}
	return nil
}
