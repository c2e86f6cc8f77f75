package gukk

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is; every client failure is an *Error
// carrying one of these.
var (
	// ErrResponse is a generic server or protocol failure.
	ErrResponse = errors.New("portal response error")
	// ErrEmptyResponse is returned when the portal answered with an empty body.
	ErrEmptyResponse = errors.New("portal returned an empty response")
	// ErrResponseTimeout is returned when a request exceeded its timeout.
	ErrResponseTimeout = errors.New("portal response timed out")
	// ErrLoginError is returned when login didn't produce a usable token.
	ErrLoginError = errors.New("portal login failed")
	// ErrAccessDenied is returned for 400/401 responses: a rejected token or
	// bad credentials.
	ErrAccessDenied = errors.New("portal access denied")
	// ErrInvalidValue is returned when caller supplied data fails validation
	// before anything is sent.
	ErrInvalidValue = errors.New("invalid value")
)

// Error is a failure talking to the portal.
type Error struct {
	// Kind is one of the Err* values above.
	Kind error
	// Status is the HTTP status code, 0 when no response was received.
	Status int
	// Code and Message are the portal's own error fields, if any.
	Code    string
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " [%d]", e.Status)
	}
	if e.Code != "" || e.Message != "" {
		fmt.Fprintf(&sb, " %s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// kindOf returns the kind of the outermost client error in err's chain or nil
// if err isn't a client error.
func kindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// IsClientError reports whether err came from the portal client.
func IsClientError(err error) bool {
	return kindOf(err) != nil
}

func newError(kind error, status int, cause error) *Error {
	return &Error{
		Kind:   kind,
		Status: status,
		Err:    cause,
	}
}

func invalidValue(format string, args ...any) *Error {
	return &Error{
		Kind:    ErrInvalidValue,
		Message: fmt.Sprintf(format, args...),
	}
}
