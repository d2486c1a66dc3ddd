package rule_test

import (
	"context"
	"testing"

	"github.com/steipete/codelooper/internal/discovery"
	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/event"
	"github.com/steipete/codelooper/internal/rule"
	"github.com/steipete/codelooper/internal/testutil"
)

const testPID int32 = 9001

func TestCounter_MonotonicAndSaturating(t *testing.T) {
	c := rule.NewCounter(3)

	prev := int64(0)
	for i := 0; i < 10; i++ {
		count, _ := c.Increment()
		if count < prev {
			t.Fatalf("count decreased from %d to %d", prev, count)
		}
		prev = count
	}
	if c.Count() != 3 {
		t.Errorf("Count = %d, want saturation at ceiling 3", c.Count())
	}
	if _, applied := c.Increment(); applied {
		t.Error("Increment at ceiling should not apply")
	}
}

func TestCounter_LimitLatchFiresOnce(t *testing.T) {
	c := rule.NewCounter(2)

	if c.FireLimit() {
		t.Fatal("latch must not fire below the ceiling")
	}
	c.Increment()
	c.Increment()

	if !c.FireLimit() {
		t.Fatal("latch should fire at the ceiling")
	}
	if c.FireLimit() {
		t.Fatal("latch must fire exactly once")
	}

	c.Reset()
	if c.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", c.Count())
	}
	c.Increment()
	c.Increment()
	if !c.FireLimit() {
		t.Error("Reset should re-arm the latch")
	}
}

func TestCounter_DefaultCeiling(t *testing.T) {
	if got := rule.NewCounter(0).Ceiling(); got != 25 {
		t.Errorf("default ceiling = %d, want 25", got)
	}
}

func TestCounterSet_GetCreatesAndReset(t *testing.T) {
	s := rule.NewCounterSet(5)

	c := s.Get("a")
	if c != s.Get("a") {
		t.Fatal("Get should return the same counter per name")
	}
	c.Increment()
	s.Get("b").Increment()

	if s.Total() != 2 {
		t.Errorf("Total = %d, want 2", s.Total())
	}
	if !s.Reset("a") {
		t.Error("Reset of an existing counter should report true")
	}
	if s.Reset("missing") {
		t.Error("Reset of an unknown counter should report false")
	}
	if s.Total() != 1 {
		t.Errorf("Total after reset = %d, want 1", s.Total())
	}
}

func TestCounterSet_SnapshotRestore(t *testing.T) {
	s := rule.NewCounterSet(25)
	s.Get("a").Increment()
	s.Get("a").Increment()

	restored := rule.NewCounterSet(25)
	restored.Restore(s.Snapshot())
	if restored.Get("a").Count() != 2 {
		t.Errorf("restored count = %d, want 2", restored.Get("a").Count())
	}
}

// evalContext builds an EvalContext over a fake backend tree.
func evalContext(fake *testutil.FakeBackend, bus *event.Bus) *rule.EvalContext {
	reg := discovery.DefaultRegistry(fake, nil, 0)
	return &rule.EvalContext{
		WindowID: "w-1",
		PID:      testPID,
		Backend:  fake,
		Locators: discovery.NewManager(fake, discovery.NewDiscoverer(reg, nil, bus), nil, 0),
		Counters: rule.NewCounterSet(0),
		Bus:      bus,
	}
}

func addForceStopLink(fake *testutil.FakeBackend) string {
	return fake.AddElement(testPID, testutil.FakeElement{
		Attrs: map[string]string{
			element.AttrRole:  "AXLink",
			element.AttrTitle: "Click here to stop the agent",
		},
		Actions: []string{element.ActionPress},
	})
}

func TestStopAfterLoops_NoConditionIsNoOp(t *testing.T) {
	fake := testutil.NewFakeBackend()
	ec := evalContext(fake, nil)

	acted, err := rule.NewStopAfterLoops().Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if acted {
		t.Error("rule should not act without the loop condition")
	}
	if got := ec.Counters.Get(rule.StopAfterLoopsName).Count(); got != 0 {
		t.Errorf("counter = %d, want 0 after a no-op", got)
	}
}

func TestStopAfterLoops_ActsAndCounts(t *testing.T) {
	fake := testutil.NewFakeBackend()
	id := addForceStopLink(fake)

	bus := event.NewBus()
	var executed []event.InterventionExecutedEvent
	bus.Subscribe("intervention.executed", func(e event.Event) {
		executed = append(executed, e.(event.InterventionExecutedEvent))
	})

	ec := evalContext(fake, bus)
	acted, err := rule.NewStopAfterLoops().Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !acted {
		t.Fatal("rule should act when the force-stop link is present")
	}

	invoked := fake.Invoked()
	if len(invoked) != 1 || invoked[0] != id+":"+element.ActionPress {
		t.Errorf("invoked = %v, want one press on %s", invoked, id)
	}
	if got := ec.Counters.Get(rule.StopAfterLoopsName).Count(); got != 1 {
		t.Errorf("counter = %d, want 1", got)
	}
	if len(executed) != 1 || !executed[0].Success || executed[0].ExecutionCount != 1 {
		t.Errorf("executed events = %+v, want one successful execution", executed)
	}
}

func TestStopAfterLoops_CeilingMakesRuleInert(t *testing.T) {
	fake := testutil.NewFakeBackend()
	addForceStopLink(fake)

	bus := event.NewBus()
	var warnings []event.RuleLimitWarningEvent
	var reached []event.RuleLimitReachedEvent
	bus.Subscribe("rule.limit_warning", func(e event.Event) {
		warnings = append(warnings, e.(event.RuleLimitWarningEvent))
	})
	bus.Subscribe("rule.limit_reached", func(e event.Event) {
		reached = append(reached, e.(event.RuleLimitReachedEvent))
	})

	ec := evalContext(fake, bus)
	r := rule.NewStopAfterLoops()

	// The loop condition holds on every tick; the rule fires until its
	// counter hits the default ceiling of 25.
	for i := 0; i < 25; i++ {
		acted, err := r.Evaluate(context.Background(), ec)
		if err != nil {
			t.Fatalf("Evaluate %d failed: %v", i, err)
		}
		if !acted {
			t.Fatalf("Evaluate %d should have acted", i)
		}
	}

	c := ec.Counters.Get(rule.StopAfterLoopsName)
	if c.Count() != 25 {
		t.Fatalf("counter = %d, want 25", c.Count())
	}
	if len(warnings) != 5 {
		t.Errorf("got %d limit warnings, want 5 (counts 20..24)", len(warnings))
	}

	// Later evaluations are permanent no-ops: no action, no increment, and
	// the limit-reached event fires exactly once.
	for i := 0; i < 3; i++ {
		acted, err := r.Evaluate(context.Background(), ec)
		if err != nil {
			t.Fatalf("post-ceiling Evaluate failed: %v", err)
		}
		if acted {
			t.Fatal("rule must not act at the ceiling")
		}
	}
	if c.Count() != 25 {
		t.Errorf("counter = %d after post-ceiling evaluations, want 25", c.Count())
	}
	if len(reached) != 1 {
		t.Errorf("got %d limit-reached events, want exactly 1", len(reached))
	}
	if len(fake.Invoked()) != 25 {
		t.Errorf("invoked %d actions, want 25", len(fake.Invoked()))
	}

	// An explicit reset re-arms the rule.
	ec.Counters.Reset(rule.StopAfterLoopsName)
	acted, err := r.Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate after reset failed: %v", err)
	}
	if !acted {
		t.Error("rule should act again after an explicit counter reset")
	}
}

func TestStopAfterLoops_ActionFailureDoesNotIncrement(t *testing.T) {
	fake := testutil.NewFakeBackend()
	addForceStopLink(fake)
	fake.ActionErr = errors.Wrap(errors.ErrActionFailed, "press rejected")

	ec := evalContext(fake, nil)
	acted, err := rule.NewStopAfterLoops().Evaluate(context.Background(), ec)
	if err == nil {
		t.Fatal("expected the action failure to surface")
	}
	if acted {
		t.Error("rule must not report an action on failure")
	}
	if got := ec.Counters.Get(rule.StopAfterLoopsName).Count(); got != 0 {
		t.Errorf("counter = %d, want 0 after a failed action", got)
	}
}

func TestResumeConnection_PressesResumeWhenDisconnected(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.AddElement(testPID, testutil.FakeElement{
		Attrs: map[string]string{
			element.AttrRole:  "AXStaticText",
			element.AttrValue: "We're having trouble connecting",
		},
	})
	btn := fake.AddElement(testPID, testutil.FakeElement{
		Attrs: map[string]string{
			element.AttrRole:  "AXButton",
			element.AttrTitle: "Resume",
		},
		Actions: []string{element.ActionPress},
	})

	ec := evalContext(fake, nil)
	acted, err := rule.NewResumeConnection().Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !acted {
		t.Fatal("rule should act when the connection error indicator is present")
	}
	invoked := fake.Invoked()
	if len(invoked) != 1 || invoked[0] != btn+":"+element.ActionPress {
		t.Errorf("invoked = %v, want one press on %s", invoked, btn)
	}
}

func TestResumeConnection_IndicatorWithoutButtonIsNoOp(t *testing.T) {
	fake := testutil.NewFakeBackend()
	fake.AddElement(testPID, testutil.FakeElement{
		Attrs: map[string]string{
			element.AttrRole:  "AXStaticText",
			element.AttrValue: "Connection failed",
		},
	})

	ec := evalContext(fake, nil)
	acted, err := rule.NewResumeConnection().Evaluate(context.Background(), ec)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if acted {
		t.Error("rule must not act without a resume control")
	}
	if len(fake.Invoked()) != 0 {
		t.Errorf("invoked = %v, want none", fake.Invoked())
	}
}
