package element

import (
	"context"

	"github.com/steipete/codelooper/internal/locator"
)

// DefaultMaxDepth bounds accessibility-tree traversal. Queries must always
// terminate: a pathological tree is cut off at this depth rather than
// recursed into indefinitely.
const DefaultMaxDepth = 10

// Handle is an opaque reference to a resolved UI element. Handles are only
// meaningful to the backend that produced them and may go stale at any time.
type Handle struct {
	// ID identifies the element within the backend's session.
	ID string
	// PID is the process the element belongs to.
	PID int32
}

// Backend executes locators against a process's accessibility tree.
// Implementations live outside this engine (platform accessibility APIs,
// test fakes). All methods honor context cancellation.
//
// Error contract: an absent element is reported as errors.ErrElementNotFound
// (expected, non-fatal); any other error is a query failure and is treated
// as transient by callers unless it persists.
type Backend interface {
	// Resolve finds at most one element matching the locator, traversing at
	// most maxDepth levels from the process's root element (or the locator's
	// path hint). maxDepth <= 0 means DefaultMaxDepth.
	Resolve(ctx context.Context, pid int32, loc locator.Locator, maxDepth int) (Handle, error)

	// ReadText returns the element's textual content (value or title).
	ReadText(ctx context.Context, h Handle) (string, error)

	// ReadAttributes returns the named attributes of the element.
	// Missing attributes are omitted from the result, not errors.
	ReadAttributes(ctx context.Context, h Handle, names []string) (map[string]string, error)

	// InvokeAction performs the named action (e.g. AXPress) on the element.
	InvokeAction(ctx context.Context, h Handle, action string) error
}
