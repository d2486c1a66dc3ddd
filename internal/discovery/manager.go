package discovery

import (
	"context"
	"sync"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
	"github.com/steipete/codelooper/internal/logging"
)

// Manager resolves element types to working locators with a per-process
// cache. Resolution order: cached locator (verified against the live tree),
// static default, dynamic discovery, then nil. Locking is sharded per pid
// so one misbehaving process never stalls lookups for the others.
type Manager struct {
	backend    element.Backend
	discoverer *Discoverer
	maxDepth   int
	logger     *logging.Logger

	mu     sync.Mutex // guards shards map only
	shards map[int32]*pidShard
}

// pidShard holds one process's cached locators.
type pidShard struct {
	mu    sync.Mutex
	cache map[element.Type]locator.Locator
}

// NewManager creates a Manager. maxDepth <= 0 means element.DefaultMaxDepth.
func NewManager(backend element.Backend, discoverer *Discoverer, logger *logging.Logger, maxDepth int) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		backend:    backend,
		discoverer: discoverer,
		maxDepth:   maxDepth,
		logger:     logger,
		shards:     make(map[int32]*pidShard),
	}
}

// shard returns the shard for a pid, creating it if needed.
func (m *Manager) shard(pid int32) *pidShard {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shards[pid]
	if !ok {
		s = &pidShard{cache: make(map[element.Type]locator.Locator)}
		m.shards[pid] = s
	}
	return s
}

// Resolve returns a handle to the element of the given type in the given
// process, or (zero, nil) when the element genuinely is not present.
// A cached locator that no longer resolves is evicted and the full
// default-then-discovery chain runs again within the same call.
// Errors are returned only for infrastructure failures.
func (m *Manager) Resolve(ctx context.Context, typ element.Type, pid int32) (element.Handle, error) {
	return m.resolve(ctx, typ, pid, false)
}

// ResolveRequired resolves an element type that a healthy window always
// has. Unlike Resolve, exhausting the full chain is an error wrapping
// errors.ErrDiscoveryExhausted, so callers can count it against the
// window's failure streak. Types with no discovery strategies still get
// the absent-is-fine treatment.
func (m *Manager) ResolveRequired(ctx context.Context, typ element.Type, pid int32) (element.Handle, error) {
	return m.resolve(ctx, typ, pid, true)
}

func (m *Manager) resolve(ctx context.Context, typ element.Type, pid int32, required bool) (element.Handle, error) {
	s := m.shard(pid)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Fast path: verify the cached locator still works.
	if loc, ok := s.cache[typ]; ok {
		h, err := m.backend.Resolve(ctx, pid, loc, m.maxDepth)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, errors.ErrElementNotFound) {
			return element.Handle{}, err
		}
		delete(s.cache, typ)
		m.logger.Debug("cached locator went stale",
			"element", typ.String(), "pid", pid)
	}

	// Static default configured for this type.
	if loc, ok := element.DefaultLocator(typ); ok {
		h, err := m.backend.Resolve(ctx, pid, loc, m.maxDepth)
		if err == nil {
			s.cache[typ] = loc
			return h, nil
		}
		if !errors.Is(err, errors.ErrElementNotFound) {
			return element.Handle{}, err
		}
	}

	// Dynamic discovery, exactly once per call.
	if m.discoverer != nil {
		loc, err := m.discoverer.Discover(ctx, typ, pid)
		if err != nil {
			return element.Handle{}, err
		}
		if loc != nil {
			h, err := m.backend.Resolve(ctx, pid, *loc, m.maxDepth)
			if err == nil {
				s.cache[typ] = *loc
				return h, nil
			}
			if !errors.Is(err, errors.ErrElementNotFound) {
				return element.Handle{}, err
			}
		}
	}

	if required && m.discoverer != nil && m.discoverer.Known(typ) {
		return element.Handle{}, errors.Wrapf(errors.ErrDiscoveryExhausted,
			"%s in pid %d", typ.String(), pid)
	}
	return element.Handle{}, nil
}

// Invalidate evicts the cached locator for one element type of a process.
// The next Resolve for that pair runs the full chain again.
func (m *Manager) Invalidate(typ element.Type, pid int32) {
	s := m.shard(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, typ)
}

// Forget drops every cached locator for a process. Called when the
// process exits so dead pids do not accumulate shards.
func (m *Manager) Forget(pid int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shards, pid)
}

// Cached returns the cached locator for a type/pid pair, if present.
func (m *Manager) Cached(typ element.Type, pid int32) (locator.Locator, bool) {
	s := m.shard(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.cache[typ]
	return loc, ok
}

// Seed installs a locator into the cache without verifying it, used when
// restoring a persisted cache snapshot at startup. A stale seeded locator
// costs one extra round through the chain on its first resolve.
func (m *Manager) Seed(typ element.Type, pid int32, loc locator.Locator) {
	s := m.shard(pid)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[typ] = loc
}

// Snapshot returns a copy of every cached locator, keyed by pid then type.
func (m *Manager) Snapshot() map[int32]map[element.Type]locator.Locator {
	m.mu.Lock()
	shards := make(map[int32]*pidShard, len(m.shards))
	for pid, s := range m.shards {
		shards[pid] = s
	}
	m.mu.Unlock()

	out := make(map[int32]map[element.Type]locator.Locator, len(shards))
	for pid, s := range shards {
		s.mu.Lock()
		if len(s.cache) > 0 {
			entry := make(map[element.Type]locator.Locator, len(s.cache))
			for t, l := range s.cache {
				entry[t] = l
			}
			out[pid] = entry
		}
		s.mu.Unlock()
	}
	return out
}
