// Package persist saves and restores the engine's warm state between
// runs: the discovered-locator cache and per-window rule counts. The
// state file is an optimization, not a source of truth. A missing,
// stale, or corrupt file is never fatal; the engine rediscovers
// everything it needs from the live accessibility tree.
package persist

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steipete/codelooper/internal/discovery"
	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/errors"
	"github.com/steipete/codelooper/internal/locator"
)

// State is the on-disk snapshot.
type State struct {
	SavedAt  time.Time        `yaml:"saved_at"`
	Locators []AppLocators    `yaml:"locators,omitempty"`
	Counters []WindowCounters `yaml:"counters,omitempty"`
}

// AppLocators holds one process's cached locators, keyed by element
// type name.
type AppLocators struct {
	PID      int32                    `yaml:"pid"`
	Elements map[string]LocatorRecord `yaml:"elements"`
}

// WindowCounters holds one window's rule execution counts.
type WindowCounters struct {
	WindowID string           `yaml:"window_id"`
	Counts   map[string]int64 `yaml:"counts"`
}

// LocatorRecord is the serializable form of a locator.
type LocatorRecord struct {
	Criteria       []CriterionRecord `yaml:"criteria"`
	MatchAll       bool              `yaml:"match_all"`
	PathHint       []string          `yaml:"path_hint,omitempty"`
	RequiredAction string            `yaml:"required_action,omitempty"`
}

// CriterionRecord is the serializable form of a criterion. Match is the
// match type's snake_case name; regex and glob patterns recompile on
// load.
type CriterionRecord struct {
	Attribute string   `yaml:"attribute"`
	Value     string   `yaml:"value,omitempty"`
	Values    []string `yaml:"values,omitempty"`
	Match     string   `yaml:"match"`
}

// FromLocator converts a locator to its serializable record.
func FromLocator(l locator.Locator) LocatorRecord {
	rec := LocatorRecord{
		MatchAll:       l.MatchAll,
		PathHint:       l.PathHint,
		RequiredAction: l.RequiredAction,
		Criteria:       make([]CriterionRecord, 0, len(l.Criteria)),
	}
	for _, c := range l.Criteria {
		rec.Criteria = append(rec.Criteria, CriterionRecord{
			Attribute: c.Attribute,
			Value:     c.Value,
			Values:    c.Values,
			Match:     c.Match.String(),
		})
	}
	return rec
}

// ToLocator rebuilds a locator from its record, recompiling any regex
// or glob patterns. Records written by a newer version with unknown
// match types fail here and are skipped by the caller.
func (r LocatorRecord) ToLocator() (locator.Locator, error) {
	criteria := make([]locator.Criterion, 0, len(r.Criteria))
	for _, cr := range r.Criteria {
		mt, err := locator.ParseMatchType(cr.Match)
		if err != nil {
			return locator.Locator{}, err
		}

		var c locator.Criterion
		if mt == locator.MatchContainsAny {
			c, err = locator.NewContainsAny(cr.Attribute, cr.Values...)
		} else {
			c, err = locator.NewCriterion(cr.Attribute, cr.Value, mt)
		}
		if err != nil {
			return locator.Locator{}, err
		}
		criteria = append(criteria, c)
	}

	var l locator.Locator
	var err error
	if r.MatchAll {
		l, err = locator.New(criteria...)
	} else {
		l, err = locator.NewAny(criteria...)
	}
	if err != nil {
		return locator.Locator{}, err
	}
	if len(r.PathHint) > 0 {
		l = l.WithPathHint(r.PathHint...)
	}
	if r.RequiredAction != "" {
		l = l.WithRequiredAction(r.RequiredAction)
	}
	return l, nil
}

// Capture builds a State from the live locator cache and counter
// snapshots. Either argument may be empty.
func Capture(locators map[int32]map[element.Type]locator.Locator, counters map[string]map[string]int64) *State {
	st := &State{SavedAt: time.Now()}

	for pid, cache := range locators {
		if len(cache) == 0 {
			continue
		}
		entry := AppLocators{PID: pid, Elements: make(map[string]LocatorRecord, len(cache))}
		for typ, loc := range cache {
			entry.Elements[typ.String()] = FromLocator(loc)
		}
		st.Locators = append(st.Locators, entry)
	}
	sort.Slice(st.Locators, func(i, j int) bool { return st.Locators[i].PID < st.Locators[j].PID })

	for id, counts := range counters {
		if len(counts) == 0 {
			continue
		}
		st.Counters = append(st.Counters, WindowCounters{WindowID: id, Counts: counts})
	}
	sort.Slice(st.Counters, func(i, j int) bool { return st.Counters[i].WindowID < st.Counters[j].WindowID })

	return st
}

// SeedLocators installs the snapshot's locator records into the
// manager's cache. Records that fail to rebuild are skipped; the count
// of seeded locators is returned.
func (s *State) SeedLocators(mgr *discovery.Manager) int {
	seeded := 0
	for _, app := range s.Locators {
		for name, rec := range app.Elements {
			typ, ok := element.ParseType(name)
			if !ok {
				continue
			}
			loc, err := rec.ToLocator()
			if err != nil {
				continue
			}
			mgr.Seed(typ, app.PID, loc)
			seeded++
		}
	}
	return seeded
}

// CounterSeeds returns the snapshot's rule counts keyed by window id,
// in the shape Monitor.SeedCounters expects.
func (s *State) CounterSeeds() map[string]map[string]int64 {
	if len(s.Counters) == 0 {
		return nil
	}
	out := make(map[string]map[string]int64, len(s.Counters))
	for _, wc := range s.Counters {
		out[wc.WindowID] = wc.Counts
	}
	return out
}

// Save writes the state to path, creating parent directories as needed.
func Save(path string, st *State) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "failed to marshal state")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}
	return nil
}

// Load reads the state from path. A missing file returns (nil, nil);
// callers treat that the same as an empty state.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read state file")
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, "failed to parse state file")
	}
	return &st, nil
}
