// Package supervisor owns the supervision loop: the fixed-interval ticker
// that checks process liveness, reconciles windows, drives each window's
// state machine and evaluates intervention rules, fanning work out across
// windows under a bounded worker limit. The loop never crashes the host
// process; the worst outcome for a failing window is an unrecoverable
// pause while every other window keeps being supervised.
package supervisor

import (
	"context"
	"time"
)

// AppInfo describes one running instance of an observed application.
type AppInfo struct {
	PID         int32
	BundleID    string
	DisplayName string
}

// WindowInfo describes one enumerated window of a running instance.
type WindowInfo struct {
	Index int
	Title string
}

// ProcessObserver reports which observed applications are running.
// Implementations live outside the engine (platform process APIs, fakes).
type ProcessObserver interface {
	// Running returns the live instances of the given bundle identifiers.
	Running(ctx context.Context, bundleIDs []string) ([]AppInfo, error)

	// Alive reports whether the process still exists.
	Alive(pid int32) bool
}

// WindowEnumerator lists the current windows of a process.
type WindowEnumerator interface {
	Windows(ctx context.Context, pid int32) ([]WindowInfo, error)
}

// Options tunes the supervision loop. The zero value is usable; every
// field falls back to its default.
type Options struct {
	// Interval between supervision ticks.
	Interval time.Duration
	// MaxParallel bounds concurrent per-window supervision within a tick.
	MaxParallel int
	// GraceTicks is the positive-work anti-flap grace period.
	GraceTicks int
	// ObservationTicks is the post-intervention cooldown length.
	ObservationTicks int
	// RuleCeiling is the default per-rule execution ceiling.
	RuleCeiling int64
	// WarnMargin is how close to the ceiling limit warnings begin.
	WarnMargin int64
	// UnrecoverableThreshold is how many consecutive failures park a
	// window in the unrecoverable pause.
	UnrecoverableThreshold int
	// RemovalGraceTicks is how many ticks a dead app stays tracked before
	// removal.
	RemovalGraceTicks int
	// IdleTicks is how many quiet ticks mark a window idle; 0 disables
	// idle detection.
	IdleTicks int
}

const (
	// DefaultInterval is the supervision tick interval.
	DefaultInterval = 2 * time.Second
	// DefaultMaxParallel bounds the per-tick window fan-out.
	DefaultMaxParallel = 4
	// DefaultUnrecoverableThreshold is the consecutive-failure count that
	// parks a window.
	DefaultUnrecoverableThreshold = 5
	// DefaultRemovalGraceTicks is how long dead apps linger before removal.
	DefaultRemovalGraceTicks = 3
)

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = DefaultMaxParallel
	}
	if o.UnrecoverableThreshold <= 0 {
		o.UnrecoverableThreshold = DefaultUnrecoverableThreshold
	}
	if o.RemovalGraceTicks <= 0 {
		o.RemovalGraceTicks = DefaultRemovalGraceTicks
	}
	// GraceTicks, ObservationTicks and RuleCeiling default inside the
	// window and rule packages; IdleTicks 0 means disabled.
	return o
}
