// Package testutil provides testing utilities for supervision engine tests.
//
// The primary component is FakeBackend, a scriptable in-memory accessibility
// backend: tests register elements (attribute maps plus supported actions)
// per process id, and the fake resolves locators against them exactly the
// way a real backend would, including not-found and injected query failures.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
)

// FakeElement is one scriptable element in a FakeBackend's tree.
type FakeElement struct {
	// ID identifies the element; generated if empty.
	ID string
	// Attrs are the element's accessibility attributes.
	Attrs map[string]string
	// Actions are the action names the element supports.
	Actions []string
	// Depth is the element's depth in the tree (0 = root). Elements deeper
	// than a query's maxDepth are invisible to Resolve.
	Depth int
}

// FakeBackend is an in-memory element.Backend for tests.
// It is safe for concurrent use.
type FakeBackend struct {
	mu       sync.Mutex
	elements map[int32][]*FakeElement
	nextID   int

	// FailWith, when set, makes every call fail with this error.
	FailWith error
	// FailResolves, when positive, fails that many Resolve calls with a
	// query error before recovering.
	FailResolves int

	// InvokedActions records (elementID, action) pairs in invocation order.
	InvokedActions []string
	// ResolveCalls counts Resolve invocations.
	ResolveCalls int
	// ActionErr, when set, makes InvokeAction fail without recording.
	ActionErr error
}

// NewFakeBackend creates an empty fake backend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{elements: make(map[int32][]*FakeElement)}
}

// AddElement registers an element for a process and returns its id.
func (f *FakeBackend) AddElement(pid int32, el FakeElement) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	e := el
	if e.ID == "" {
		f.nextID++
		e.ID = fmt.Sprintf("el-%d", f.nextID)
	}
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	f.elements[pid] = append(f.elements[pid], &e)
	return e.ID
}

// RemoveElement deletes an element by id.
func (f *FakeBackend) RemoveElement(pid int32, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	els := f.elements[pid]
	for i, e := range els {
		if e.ID == id {
			f.elements[pid] = append(els[:i], els[i+1:]...)
			return
		}
	}
}

// SetAttr updates one attribute of an element.
func (f *FakeBackend) SetAttr(pid int32, id, attr, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.elements[pid] {
		if e.ID == id {
			e.Attrs[attr] = value
			return
		}
	}
}

// Resolve implements element.Backend.
func (f *FakeBackend) Resolve(ctx context.Context, pid int32, loc locator.Locator, maxDepth int) (element.Handle, error) {
	if err := ctx.Err(); err != nil {
		return element.Handle{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ResolveCalls++

	if f.FailWith != nil {
		return element.Handle{}, f.FailWith
	}
	if f.FailResolves > 0 {
		f.FailResolves--
		return element.Handle{}, errors.NewQueryError("resolve", pid, errors.New("injected failure"))
	}

	if maxDepth <= 0 {
		maxDepth = element.DefaultMaxDepth
	}

	for _, e := range f.elements[pid] {
		if e.Depth > maxDepth {
			continue
		}
		if !loc.Matches(e.Attrs) {
			continue
		}
		if loc.RequiredAction != "" && !supportsAction(e, loc.RequiredAction) {
			continue
		}
		return element.Handle{ID: e.ID, PID: pid}, nil
	}

	return element.Handle{}, errors.ErrElementNotFound
}

// ReadText implements element.Backend. It returns the element's value
// attribute, falling back to its title.
func (f *FakeBackend) ReadText(ctx context.Context, h element.Handle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return "", f.FailWith
	}

	e := f.find(h)
	if e == nil {
		return "", errors.ErrElementNotFound
	}
	if v, ok := e.Attrs[element.AttrValue]; ok {
		return v, nil
	}
	return e.Attrs[element.AttrTitle], nil
}

// ReadAttributes implements element.Backend.
func (f *FakeBackend) ReadAttributes(ctx context.Context, h element.Handle, names []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return nil, f.FailWith
	}

	e := f.find(h)
	if e == nil {
		return nil, errors.ErrElementNotFound
	}

	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := e.Attrs[n]; ok {
			out[n] = v
		}
	}
	return out, nil
}

// InvokeAction implements element.Backend.
func (f *FakeBackend) InvokeAction(ctx context.Context, h element.Handle, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailWith != nil {
		return f.FailWith
	}
	if f.ActionErr != nil {
		return f.ActionErr
	}

	e := f.find(h)
	if e == nil {
		return errors.ErrElementNotFound
	}
	if !supportsAction(e, action) {
		return errors.Wrapf(errors.ErrActionFailed, "element %s does not support %s", e.ID, action)
	}

	f.InvokedActions = append(f.InvokedActions, h.ID+":"+action)
	return nil
}

// Invoked returns a copy of the recorded action invocations.
func (f *FakeBackend) Invoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.InvokedActions...)
}

// find locates an element by handle (caller must hold the lock).
func (f *FakeBackend) find(h element.Handle) *FakeElement {
	for _, e := range f.elements[h.PID] {
		if e.ID == h.ID {
			return e
		}
	}
	return nil
}

func supportsAction(e *FakeElement, action string) bool {
	for _, a := range e.Actions {
		if a == action {
			return true
		}
	}
	return false
}
