package element_test

import (
	"context"
	"testing"
	"time"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
	"github.com/steipete/codelooper/internal/testutil"
)

func TestType_String(t *testing.T) {
	tests := []struct {
		typ  element.Type
		want string
	}{
		{element.TypeInputField, "input_field"},
		{element.TypeStopButton, "stop_button"},
		{element.TypeResumeButton, "resume_button"},
		{element.TypeForceStopResumeLink, "force_stop_resume_link"},
		{element.TypeGeneratingIndicator, "generating_indicator"},
		{element.TypeErrorPopup, "error_popup"},
		{element.TypeConnectionErrorIndicator, "connection_error_indicator"},
		{element.TypeSidebarActivityArea, "sidebar_activity_area"},
		{element.TypeUnknown, "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			if got := tc.typ.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAllTypes_ExcludesUnknown(t *testing.T) {
	for _, typ := range element.AllTypes() {
		if typ == element.TypeUnknown {
			t.Fatal("AllTypes should not include TypeUnknown")
		}
	}
	if len(element.AllTypes()) != 8 {
		t.Errorf("AllTypes returned %d types, want 8", len(element.AllTypes()))
	}
}

func TestDefaultLocator(t *testing.T) {
	l, ok := element.DefaultLocator(element.TypeGeneratingIndicator)
	if !ok {
		t.Fatal("generating indicator should have a static default locator")
	}
	if !l.Matches(map[string]string{
		element.AttrRole:  "AXStaticText",
		element.AttrValue: "Generating response…",
	}) {
		t.Error("default locator should match a generating indicator element")
	}

	if _, ok := element.DefaultLocator(element.TypeSidebarActivityArea); ok {
		t.Error("sidebar activity area should rely on heuristics only")
	}
}

// slowBackend blocks until its context is cancelled.
type slowBackend struct{}

func (slowBackend) Resolve(ctx context.Context, pid int32, loc locator.Locator, maxDepth int) (element.Handle, error) {
	<-ctx.Done()
	return element.Handle{}, ctx.Err()
}

func (slowBackend) ReadText(ctx context.Context, h element.Handle) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowBackend) ReadAttributes(ctx context.Context, h element.Handle, names []string) (map[string]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowBackend) InvokeAction(ctx context.Context, h element.Handle, action string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWithTimeout_DeadlineIsQueryError(t *testing.T) {
	b := element.WithTimeout(slowBackend{}, 10*time.Millisecond)

	loc := locator.Must(locator.MustCriterion(element.AttrRole, "AXButton", locator.MatchExact))
	_, err := b.Resolve(context.Background(), 724, loc, 0)

	if err == nil {
		t.Fatal("Resolve against a hung backend should fail")
	}
	if !errors.IsQueryError(err) {
		t.Errorf("timeout should classify as query error, got %v", err)
	}
	if errors.IsNotFound(err) {
		t.Error("timeout must never classify as not-found")
	}
}

func TestWithTimeout_NotFoundPassesThrough(t *testing.T) {
	fake := testutil.NewFakeBackend()
	b := element.WithTimeout(fake, time.Second)

	loc := locator.Must(locator.MustCriterion(element.AttrRole, "AXButton", locator.MatchExact))
	_, err := b.Resolve(context.Background(), 724, loc, 0)

	if !errors.Is(err, errors.ErrElementNotFound) {
		t.Errorf("err = %v, want ErrElementNotFound", err)
	}
}

func TestWithTimeout_NonPositiveDurationUnwrapped(t *testing.T) {
	fake := testutil.NewFakeBackend()
	if element.WithTimeout(fake, 0) != element.Backend(fake) {
		t.Error("zero timeout should return the backend unwrapped")
	}
}

func TestFakeBackend_DepthBound(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.AddElement(1, testutil.FakeElement{
		Attrs: map[string]string{element.AttrRole: "AXButton"},
		Depth: 15,
	})

	loc := locator.Must(locator.MustCriterion(element.AttrRole, "AXButton", locator.MatchExact))

	// Default depth of 10 cannot see the element at depth 15.
	_, err := fake.Resolve(context.Background(), 1, loc, 0)
	if !errors.Is(err, errors.ErrElementNotFound) {
		t.Errorf("err = %v, want ErrElementNotFound at default depth", err)
	}

	// An explicit deeper bound can.
	if _, err := fake.Resolve(context.Background(), 1, loc, 20); err != nil {
		t.Errorf("Resolve at depth 20 failed: %v", err)
	}
}

func TestFakeBackend_RequiredAction(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.AddElement(1, testutil.FakeElement{
		Attrs: map[string]string{element.AttrTitle: "Stop Generating"},
	})
	pressable := fake.AddElement(1, testutil.FakeElement{
		Attrs:   map[string]string{element.AttrTitle: "Stop Generating"},
		Actions: []string{element.ActionPress},
	})

	loc := locator.Must(
		locator.MustCriterion(element.AttrTitle, "stop", locator.MatchContains),
	).WithRequiredAction(element.ActionPress)

	h, err := fake.Resolve(context.Background(), 1, loc, 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if h.ID != pressable {
		t.Errorf("resolved %s, want the pressable element %s", h.ID, pressable)
	}
}
