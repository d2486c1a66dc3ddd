package element

import (
	"context"
	"time"

	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
)

// timeoutBackend wraps a Backend so that every call is bounded by a fixed
// timeout. A deadline hit is reported as a query error, never as not-found:
// a slow backend must not be mistaken for an absent element.
type timeoutBackend struct {
	inner   Backend
	timeout time.Duration
}

// WithTimeout wraps a backend so every call is bounded by d.
// A non-positive d returns the backend unwrapped.
func WithTimeout(b Backend, d time.Duration) Backend {
	if d <= 0 {
		return b
	}
	return &timeoutBackend{inner: b, timeout: d}
}

func (t *timeoutBackend) Resolve(ctx context.Context, pid int32, loc locator.Locator, maxDepth int) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	h, err := t.inner.Resolve(ctx, pid, loc, maxDepth)
	return h, t.mapErr(err, "resolve", pid)
}

func (t *timeoutBackend) ReadText(ctx context.Context, h Handle) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	text, err := t.inner.ReadText(ctx, h)
	return text, t.mapErr(err, "read_text", h.PID)
}

func (t *timeoutBackend) ReadAttributes(ctx context.Context, h Handle, names []string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	attrs, err := t.inner.ReadAttributes(ctx, h, names)
	return attrs, t.mapErr(err, "read_attributes", h.PID)
}

func (t *timeoutBackend) InvokeAction(ctx context.Context, h Handle, action string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	return t.mapErr(t.inner.InvokeAction(ctx, h, action), "invoke_action", h.PID)
}

// mapErr converts deadline/cancellation errors into query errors.
// Not-found passes through untouched.
func (t *timeoutBackend) mapErr(err error, op string, pid int32) error {
	if err == nil || errors.Is(err, errors.ErrElementNotFound) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.NewQueryError(op, pid, errors.NewTimeoutError(op, t.timeout))
	}
	if errors.Is(err, context.Canceled) {
		return errors.NewQueryError(op, pid, err)
	}
	return err
}
