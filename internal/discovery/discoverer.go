package discovery

import (
	"context"

	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/event"
	"github.com/steipete/codelooper/internal/locator"
	"github.com/steipete/codelooper/internal/logging"
)

// Discoverer runs the registered strategies for an element type in order
// and returns the first locator that works.
type Discoverer struct {
	registry Registry
	logger   *logging.Logger
	bus      *event.Bus
}

// NewDiscoverer creates a Discoverer over the given registry.
// The bus is optional; when set, exhausted discovery publishes an event.
func NewDiscoverer(registry Registry, logger *logging.Logger, bus *event.Bus) *Discoverer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Discoverer{registry: registry, logger: logger, bus: bus}
}

// Known reports whether any discovery strategy is registered for the
// type. Exhaustion is only meaningful for known types.
func (d *Discoverer) Known(typ element.Type) bool {
	return len(d.registry.Strategies(typ)) > 0
}

// Discover tries each strategy for the type in registration order and
// returns the first locator produced. It returns (nil, nil) when the type
// has no registered strategies or when every strategy comes up empty;
// an error is returned only for infrastructure failures.
func (d *Discoverer) Discover(ctx context.Context, typ element.Type, pid int32) (*locator.Locator, error) {
	strategies := d.registry.Strategies(typ)
	if len(strategies) == 0 {
		d.logger.Debug("no discovery strategies registered",
			"element", typ.String(), "pid", pid)
		return nil, nil
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		loc, err := s.Discover(ctx, pid)
		if err != nil {
			return nil, err
		}
		if loc != nil {
			d.logger.Info("locator discovered",
				"element", typ.String(),
				"pid", pid,
				"strategy", s.Name(),
				"locator", loc.String())
			return loc, nil
		}
	}

	d.logger.Warn("all discovery strategies exhausted",
		"element", typ.String(),
		"pid", pid,
		"strategies", len(strategies))
	if d.bus != nil {
		d.bus.Publish(event.NewDiscoveryExhaustedEvent(typ.String(), pid, len(strategies)))
	}
	return nil, nil
}
