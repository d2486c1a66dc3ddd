package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("window", "724-0-af31")

	want := "window '724-0-af31' not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if !IsNotFound(err) {
		t.Error("IsNotFound should be true for NotFoundError")
	}

	wrapped := fmt.Errorf("tick failed: %w", err)
	var nf *NotFoundError
	if !As(wrapped, &nf) {
		t.Error("As should find NotFoundError through wrapping")
	}
}

func TestNotFoundError_WithCause(t *testing.T) {
	err := NewNotFoundError("element", "stop-button").WithCause(ErrElementNotFound)

	if !Is(err, ErrElementNotFound) {
		t.Error("Is should match the cause sentinel")
	}
}

func TestQueryError(t *testing.T) {
	base := New("connection refused")
	err := NewQueryError("resolve", 724, base)

	if !IsQueryError(err) {
		t.Error("IsQueryError should be true for QueryError")
	}
	if !Is(err, ErrQueryFailed) {
		t.Error("QueryError should match ErrQueryFailed")
	}
	if !Is(err, base) {
		t.Error("QueryError should match its cause")
	}
	if IsNotFound(err) {
		t.Error("QueryError must never classify as not-found")
	}
}

func TestTimeoutError_IsQueryError(t *testing.T) {
	err := NewTimeoutError("resolve stop button", 2*time.Second)

	if !IsQueryError(err) {
		t.Error("timeouts are query errors, not not-found")
	}
	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("criteria cannot be empty").WithField("criteria")

	want := "validation error [field=criteria]: criteria cannot be empty"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"query error", NewQueryError("resolve", 1, New("boom")), true},
		{"timeout", NewTimeoutError("read text", time.Second), true},
		{"discovery exhausted", ErrDiscoveryExhausted, true},
		{"wrapped exhausted", Wrap(ErrDiscoveryExhausted, "stop button"), true},
		{"not found", ErrElementNotFound, false},
		{"plain error", New("boom"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"not found", ErrElementNotFound, SeverityDebug},
		{"query error", NewQueryError("resolve", 1, nil), SeverityWarning},
		{"exhausted", ErrDiscoveryExhausted, SeverityWarning},
		{"other", New("boom"), SeverityError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetSeverity(tc.err); got != tc.want {
				t.Errorf("GetSeverity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{Severity(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tc.s, got, tc.want)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	err := Wrap(ErrElementNotFound, "resolving input field")
	if !Is(err, ErrElementNotFound) {
		t.Error("wrapped error should match sentinel")
	}

	err = Wrapf(ErrQueryFailed, "pid %d", 42)
	if !Is(err, ErrQueryFailed) {
		t.Error("Wrapf error should match sentinel")
	}
}
