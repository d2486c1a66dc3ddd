// Package history keeps a bounded in-memory record of recent
// interventions. The ring subscribes to the event bus, so the engine
// itself never depends on it; the presentation layer reads it to answer
// "what did the supervisor do recently". Not a durable store.
package history

import (
	"sync"
	"time"

	"github.com/steipete/codelooper/internal/event"
)

// DefaultSize is the ring capacity used when none is given.
const DefaultSize = 100

// Record is one intervention the engine executed (or attempted).
type Record struct {
	Time           time.Time
	Rule           string
	WindowID       string
	Success        bool
	ExecutionCount int64
}

// Ring is a fixed-size circular buffer of intervention records. When full,
// new records overwrite the oldest. Safe for concurrent use.
type Ring struct {
	mu      sync.RWMutex
	records []Record
	start   int
	end     int
	full    bool
}

// NewRing creates a ring holding the most recent size records.
// size <= 0 means DefaultSize.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{records: make([]Record, size)}
}

// Add appends a record, overwriting the oldest when full.
func (r *Ring) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.end] = rec
	r.end = (r.end + 1) % len(r.records)
	if r.full {
		r.start = (r.start + 1) % len(r.records)
	}
	if r.end == r.start {
		r.full = true
	}
}

// Records returns a copy of the stored records, oldest first.
func (r *Ring) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full && r.start == 0 {
		return append([]Record(nil), r.records[:r.end]...)
	}

	out := make([]Record, 0, r.len())
	out = append(out, r.records[r.start:]...)
	out = append(out, r.records[:r.end]...)
	return out
}

// Len returns the number of stored records.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *Ring) len() int {
	if r.full {
		return len(r.records)
	}
	if r.end >= r.start {
		return r.end - r.start
	}
	return len(r.records) - r.start + r.end
}

// Reset discards all stored records.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.end = 0
	r.full = false
}

// Attach subscribes the ring to intervention events on the bus and returns
// the subscription id for later unsubscription.
func Attach(r *Ring, bus *event.Bus) string {
	return bus.Subscribe("intervention.executed", func(e event.Event) {
		ev, ok := e.(event.InterventionExecutedEvent)
		if !ok {
			return
		}
		r.Add(Record{
			Time:           ev.Timestamp(),
			Rule:           ev.Rule,
			WindowID:       ev.WindowID,
			Success:        ev.Success,
			ExecutionCount: ev.ExecutionCount,
		})
	})
}
