package errs

import (
	"fmt"
	"strings"
	"testing"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		valid  bool
		notFnd bool
		auth   bool
	}{
		{"validation", Validation(CodeInvalidInput, "bad distance %v", -1), true, false, false},
		{"wrapped validation", fmt.Errorf("quote: %w", Validation(CodeQuoteOutOfBounds, "too low")), true, false, false},
		{"not found", NotFound("load", "abc"), false, true, false},
		{"authorization", Unauthorized("u1", "not your load"), false, false, true},
		{"plain", fmt.Errorf("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.valid {
				t.Errorf("IsValidation = %v, want %v", got, tt.valid)
			}
			if got := IsNotFound(tt.err); got != tt.notFnd {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFnd)
			}
			if got := IsAuthorization(tt.err); got != tt.auth {
				t.Errorf("IsAuthorization = %v, want %v", got, tt.auth)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		Code:     CodeIllegalTransition,
		Reason:   "pickup",
		Expected: []string{"SCHEDULED"},
		Actual:   "NEW",
	}
	msg := err.Error()
	for _, want := range []string{"illegal_transition", "pickup", "SCHEDULED", "NEW"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}

	if !HasCode(fmt.Errorf("wrap: %w", err), CodeIllegalTransition) {
		t.Error("HasCode should see through wrapping")
	}
	if HasCode(err, CodeStaleState) {
		t.Error("HasCode matched the wrong code")
	}
}
