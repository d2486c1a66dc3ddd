// Package discovery locates interactive controls in the target
// application's accessibility tree even after its internal UI structure
// changes. Each semantic element type owns an ordered list of heuristic
// strategies, most specific first; a dynamic discoverer dispatches to them
// in order, and a caching manager remembers the last locator that worked
// so repeated checks skip the heuristic search entirely.
package discovery

import (
	"context"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
	"github.com/steipete/codelooper/internal/logging"
)

// Strategy is one fallback algorithm for discovering a locator for a
// semantic element type. Discover is side-effect-free except logging.
//
// Contract: a nil locator with a nil error means "nothing found", which is
// an expected outcome, not a failure. An error is returned only for
// infrastructure failures (backend unreachable, query errors).
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Discover attempts to produce a locator that currently resolves for
	// the given process.
	Discover(ctx context.Context, pid int32) (*locator.Locator, error)
}

// probeStrategy tries an ordered list of candidate locators against the
// backend and returns the first that resolves.
type probeStrategy struct {
	name       string
	backend    element.Backend
	candidates []locator.Locator
	maxDepth   int
	logger     *logging.Logger
}

// NewProbeStrategy creates a strategy that probes the given candidate
// locators in order. maxDepth <= 0 means element.DefaultMaxDepth.
func NewProbeStrategy(name string, backend element.Backend, logger *logging.Logger, maxDepth int, candidates ...locator.Locator) Strategy {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &probeStrategy{
		name:       name,
		backend:    backend,
		candidates: candidates,
		maxDepth:   maxDepth,
		logger:     logger,
	}
}

// Name implements Strategy.
func (s *probeStrategy) Name() string { return s.name }

// Discover implements Strategy.
func (s *probeStrategy) Discover(ctx context.Context, pid int32) (*locator.Locator, error) {
	for i := range s.candidates {
		cand := s.candidates[i]

		_, err := s.backend.Resolve(ctx, pid, cand, s.maxDepth)
		if err == nil {
			s.logger.Debug("strategy candidate resolved",
				"strategy", s.name,
				"candidate", i,
				"locator", cand.String())
			return &cand, nil
		}
		if errors.Is(err, errors.ErrElementNotFound) {
			continue
		}
		// Infrastructure failure: stop probing, surface to the caller.
		return nil, err
	}
	return nil, nil
}
