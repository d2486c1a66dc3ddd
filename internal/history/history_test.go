package history

import (
	"fmt"
	"testing"

	"github.com/steipete/codelooper/internal/event"
)

func rec(i int) Record {
	return Record{Rule: "stop_after_loops", WindowID: fmt.Sprintf("w-%d", i), Success: true}
}

func TestRing_FillAndOverwrite(t *testing.T) {
	r := NewRing(3)

	if r.Len() != 0 {
		t.Fatalf("Len = %d for an empty ring, want 0", r.Len())
	}

	r.Add(rec(1))
	r.Add(rec(2))
	if got := r.Records(); len(got) != 2 || got[0].WindowID != "w-1" {
		t.Fatalf("Records = %v, want [w-1 w-2]", got)
	}

	r.Add(rec(3))
	r.Add(rec(4)) // overwrites w-1
	r.Add(rec(5)) // overwrites w-2

	got := r.Records()
	if len(got) != 3 {
		t.Fatalf("Len = %d after overflow, want 3", len(got))
	}
	want := []string{"w-3", "w-4", "w-5"}
	for i, w := range want {
		if got[i].WindowID != w {
			t.Errorf("Records[%d] = %s, want %s (oldest first)", i, got[i].WindowID, w)
		}
	}
}

func TestRing_Reset(t *testing.T) {
	r := NewRing(2)
	r.Add(rec(1))
	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len = %d after Reset, want 0", r.Len())
	}
}

func TestAttach_RecordsInterventions(t *testing.T) {
	bus := event.NewBus()
	r := NewRing(10)
	id := Attach(r, bus)

	bus.Publish(event.NewInterventionExecutedEvent("stop_after_loops", "w-1", true, 3))
	bus.Publish(event.NewRuleLimitWarningEvent("stop_after_loops", "w-1", 20, 25))
	bus.Publish(event.NewInterventionExecutedEvent("resume_connection", "w-2", false, 1))

	got := r.Records()
	if len(got) != 2 {
		t.Fatalf("recorded %d events, want only the 2 interventions", len(got))
	}
	if got[0].Rule != "stop_after_loops" || got[0].ExecutionCount != 3 {
		t.Errorf("first record = %+v", got[0])
	}
	if got[1].Rule != "resume_connection" || got[1].Success {
		t.Errorf("second record = %+v", got[1])
	}

	if !bus.Unsubscribe(id) {
		t.Error("Attach should return a live subscription id")
	}
}
