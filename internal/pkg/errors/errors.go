package errors

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalid            = errors.New("invalid")
	ErrConflict           = errors.New("conflict")
	ErrTooMany            = errors.New("too many requests")
	ErrInternal           = errors.New("internal")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrInvalidCode        = errors.New("invalid otp")
	ErrCodeExpired        = errors.New("otp expired")
	ErrSamePassword       = errors.New("new password equals old password")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrDependencyTimeout  = errors.New("dependency timeout")
	ErrDependencyFailure  = errors.New("dependency failure")
)

// ValidationError lists every rule a payload violated.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

type messageErr struct {
	kind error
	msg  string
}

func (e *messageErr) Error() string {
	return e.msg
}

func (e *messageErr) Unwrap() error {
	return e.kind
}

// WithMessage returns an error matching kind whose text is msg.
func WithMessage(kind error, msg string) error {
	return &messageErr{kind: kind, msg: msg}
}

// Message returns the human-readable text attached by WithMessage, if any.
func Message(err error) (string, bool) {
	var m *messageErr
	if errors.As(err, &m) {
		return m.msg, true
	}
	return "", false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
