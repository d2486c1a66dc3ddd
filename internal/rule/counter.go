// Package rule implements the intervention rules the supervision engine
// evaluates against a window each tick, and the monotonic per-rule counters
// that keep any rule from intervening forever. A counter never decrements;
// once it reaches its ceiling the rule is inert until an explicit reset.
package rule

import "sync"

// DefaultCeiling is the hard per-rule execution ceiling used when a counter
// is created without an explicit one.
const DefaultCeiling int64 = 25

// DefaultWarnMargin is how close to the ceiling a counter must be before
// executions start emitting limit warnings.
const DefaultWarnMargin int64 = 5

// Counter is a monotonic execution counter with a hard ceiling.
// It is safe for concurrent use.
type Counter struct {
	mu         sync.Mutex
	count      int64
	ceiling    int64
	limitFired bool
}

// NewCounter creates a counter. ceiling <= 0 means DefaultCeiling.
func NewCounter(ceiling int64) *Counter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Counter{ceiling: ceiling}
}

// Count returns the current execution count.
func (c *Counter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Ceiling returns the hard ceiling.
func (c *Counter) Ceiling() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ceiling
}

// Remaining returns how many executions are left before the ceiling.
func (c *Counter) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ceiling - c.count
}

// AtCeiling reports whether the counter has reached its ceiling.
func (c *Counter) AtCeiling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count >= c.ceiling
}

// Increment adds one execution, saturating at the ceiling.
// It returns the new count and whether the increment was applied.
func (c *Counter) Increment() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count >= c.ceiling {
		return c.count, false
	}
	c.count++
	return c.count, true
}

// FireLimit latches the limit-reached signal: it returns true exactly once
// after the counter reaches its ceiling, and false on every later call
// until Reset.
func (c *Counter) FireLimit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count < c.ceiling || c.limitFired {
		return false
	}
	c.limitFired = true
	return true
}

// Reset zeroes the count and re-arms the limit-reached latch.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.limitFired = false
}

// restore sets the count directly, used when loading a persisted snapshot.
// Counts at or above the ceiling keep the latch armed so the limit event
// still fires once.
func (c *Counter) restore(count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if count < 0 {
		count = 0
	}
	c.count = count
	c.limitFired = false
}

// CounterSet holds one Counter per rule name for a single window.
// It is safe for concurrent use.
type CounterSet struct {
	mu             sync.Mutex
	counters       map[string]*Counter
	defaultCeiling int64
}

// NewCounterSet creates an empty set. defaultCeiling <= 0 means DefaultCeiling.
func NewCounterSet(defaultCeiling int64) *CounterSet {
	if defaultCeiling <= 0 {
		defaultCeiling = DefaultCeiling
	}
	return &CounterSet{
		counters:       make(map[string]*Counter),
		defaultCeiling: defaultCeiling,
	}
}

// Get returns the counter for a rule name, creating it on first use.
func (s *CounterSet) Get(name string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = NewCounter(s.defaultCeiling)
		s.counters[name] = c
	}
	return c
}

// Reset resets the named counter. It reports whether the counter existed.
func (s *CounterSet) Reset(name string) bool {
	s.mu.Lock()
	c, ok := s.counters[name]
	s.mu.Unlock()
	if ok {
		c.Reset()
	}
	return ok
}

// Total returns the sum of all counts in the set.
func (s *CounterSet) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, c := range s.counters {
		total += c.Count()
	}
	return total
}

// Snapshot returns the current count per rule name.
func (s *CounterSet) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters))
	for name, c := range s.counters {
		out[name] = c.Count()
	}
	return out
}

// Restore loads persisted counts into the set.
func (s *CounterSet) Restore(counts map[string]int64) {
	for name, count := range counts {
		s.Get(name).restore(count)
	}
}
