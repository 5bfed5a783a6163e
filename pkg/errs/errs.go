// Package errs holds the error taxonomy shared by the lifecycle, rate,
// compliance and fleet packages. All three kinds are recoverable by the
// caller and are never swallowed inside the core.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Code string

const (
	CodeInvalidInput      Code = "invalid_input"
	CodeIllegalTransition Code = "illegal_transition"
	CodeStaleState        Code = "stale_state"
	CodeMissingData       Code = "missing_data"
	CodeQuoteOutOfBounds  Code = "quote_out_of_bounds"
	CodeComplianceFailed  Code = "compliance_failed"
	CodeInviteExhausted   Code = "invite_exhausted"
	CodeInviteExpired     Code = "invite_expired"
	CodeAlreadyInFleet    Code = "already_in_fleet"
	CodeDriverUnavailable Code = "driver_unavailable"
	CodeInvariant         Code = "invariant_violation"
)

// ValidationError reports a rejected operation. Expected and Actual are set
// for state errors so the caller can resynchronize.
type ValidationError struct {
	Code     Code
	Reason   string
	Expected []string
	Actual   string
	Details  []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Expected) > 0 || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, actual %s)", strings.Join(e.Expected, "|"), e.Actual)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	return b.String()
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

type AuthorizationError struct {
	UserID string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q not authorized: %s", e.UserID, e.Reason)
}

func Validation(code Code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func Unauthorized(userID, format string, args ...any) *AuthorizationError {
	return &AuthorizationError{UserID: userID, Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

func IsAuthorization(err error) bool {
	var v *AuthorizationError
	return errors.As(err, &v)
}

// HasCode reports whether err wraps a ValidationError with the given code.
func HasCode(err error, code Code) bool {
	var v *ValidationError
	if !errors.As(err, &v) {
		return false
	}
	return v.Code == code
}
