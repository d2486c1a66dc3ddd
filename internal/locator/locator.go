// Package locator defines the declarative description of "what UI element
// to find" in the target application's accessibility tree. A Locator is an
// immutable value: an ordered list of attribute criteria, an optional root
// path hint, and an optional required action name. Locators carry no
// behavior beyond matching; executing them against a live tree is the
// element backend's job.
package locator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/steipete/codelooper/internal/errors"
)

// MatchType describes how a criterion's value is compared against an
// element attribute.
type MatchType int

const (
	// MatchExact requires the attribute to equal the value (case-sensitive).
	MatchExact MatchType = iota
	// MatchContains requires the attribute to contain the value (case-insensitive).
	MatchContains
	// MatchContainsAny requires the attribute to contain at least one of the
	// criterion's alternative values (case-insensitive).
	MatchContainsAny
	// MatchPrefix requires the attribute to start with the value (case-insensitive).
	MatchPrefix
	// MatchSuffix requires the attribute to end with the value (case-insensitive).
	MatchSuffix
	// MatchRegex requires the attribute to match the value as a regular
	// expression. The pattern is compiled at construction time.
	MatchRegex
	// MatchGlob requires the attribute to match the value as a glob pattern
	// (e.g. "Stop*"). The pattern is compiled at construction time.
	MatchGlob
)

// String returns a human-readable name for the match type.
func (m MatchType) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchContains:
		return "contains"
	case MatchContainsAny:
		return "contains_any"
	case MatchPrefix:
		return "prefix"
	case MatchSuffix:
		return "suffix"
	case MatchRegex:
		return "regex"
	case MatchGlob:
		return "glob"
	default:
		return "unknown"
	}
}

// ParseMatchType converts a match type name produced by String back to
// its MatchType. Unknown names return ErrInvalidLocator.
func ParseMatchType(name string) (MatchType, error) {
	switch name {
	case "exact":
		return MatchExact, nil
	case "contains":
		return MatchContains, nil
	case "contains_any":
		return MatchContainsAny, nil
	case "prefix":
		return MatchPrefix, nil
	case "suffix":
		return MatchSuffix, nil
	case "regex":
		return MatchRegex, nil
	case "glob":
		return MatchGlob, nil
	default:
		return MatchExact, errors.Wrapf(errors.ErrInvalidLocator, "unknown match type %q", name)
	}
}

// Criterion is a single attribute comparison within a Locator.
// Construct criteria via NewCriterion or NewContainsAny so that regex and
// glob patterns are compiled (and validated) exactly once.
type Criterion struct {
	Attribute string
	Value     string
	Values    []string // Alternatives for MatchContainsAny
	Match     MatchType

	re *regexp.Regexp
	gl glob.Glob
}

// NewCriterion creates a criterion comparing a single attribute value.
// MatchRegex and MatchGlob patterns are compiled here; an invalid pattern
// is a construction error, so a bad heuristic never reaches the backend.
func NewCriterion(attribute, value string, match MatchType) (Criterion, error) {
	if attribute == "" {
		return Criterion{}, errors.NewValidationError("criterion attribute cannot be empty").WithField("attribute")
	}
	if match == MatchContainsAny {
		return Criterion{}, errors.NewValidationError("use NewContainsAny for contains_any criteria").WithField("match")
	}

	c := Criterion{Attribute: attribute, Value: value, Match: match}

	switch match {
	case MatchRegex:
		re, err := regexp.Compile(value)
		if err != nil {
			return Criterion{}, errors.Wrapf(errors.ErrInvalidLocator, "regex %q: %v", value, err)
		}
		c.re = re
	case MatchGlob:
		g, err := glob.Compile(value)
		if err != nil {
			return Criterion{}, errors.Wrapf(errors.ErrInvalidLocator, "glob %q: %v", value, err)
		}
		c.gl = g
	}

	return c, nil
}

// NewContainsAny creates a criterion that matches when the attribute
// contains any of the given alternatives (case-insensitive).
func NewContainsAny(attribute string, values ...string) (Criterion, error) {
	if attribute == "" {
		return Criterion{}, errors.NewValidationError("criterion attribute cannot be empty").WithField("attribute")
	}
	if len(values) == 0 {
		return Criterion{}, errors.NewValidationError("contains_any requires at least one value").WithField("values")
	}
	return Criterion{Attribute: attribute, Values: values, Match: MatchContainsAny}, nil
}

// MustCriterion is like NewCriterion but panics on error.
// Intended for statically-known criteria in heuristic tables.
func MustCriterion(attribute, value string, match MatchType) Criterion {
	c, err := NewCriterion(attribute, value, match)
	if err != nil {
		panic(err)
	}
	return c
}

// MustContainsAny is like NewContainsAny but panics on error.
// Intended for statically-known criteria in heuristic tables.
func MustContainsAny(attribute string, values ...string) Criterion {
	c, err := NewContainsAny(attribute, values...)
	if err != nil {
		panic(err)
	}
	return c
}

// Matches reports whether the given attribute value satisfies this criterion.
func (c Criterion) Matches(actual string) bool {
	switch c.Match {
	case MatchExact:
		return actual == c.Value
	case MatchContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(c.Value))
	case MatchContainsAny:
		lower := strings.ToLower(actual)
		for _, v := range c.Values {
			if strings.Contains(lower, strings.ToLower(v)) {
				return true
			}
		}
		return false
	case MatchPrefix:
		return strings.HasPrefix(strings.ToLower(actual), strings.ToLower(c.Value))
	case MatchSuffix:
		return strings.HasSuffix(strings.ToLower(actual), strings.ToLower(c.Value))
	case MatchRegex:
		return c.re != nil && c.re.MatchString(actual)
	case MatchGlob:
		return c.gl != nil && c.gl.Match(actual)
	default:
		return false
	}
}

// String returns a compact description of the criterion for logging.
func (c Criterion) String() string {
	if c.Match == MatchContainsAny {
		return fmt.Sprintf("%s %s [%s]", c.Attribute, c.Match, strings.Join(c.Values, "|"))
	}
	return fmt.Sprintf("%s %s %q", c.Attribute, c.Match, c.Value)
}

// Locator is an immutable declarative description of one UI element.
// A zero-criteria Locator is invalid and is rejected at construction,
// before it can ever reach the backend.
type Locator struct {
	// Criteria is the ordered list of attribute comparisons.
	Criteria []Criterion
	// MatchAll selects match-all (true) vs match-any (false) semantics
	// across the criteria.
	MatchAll bool
	// PathHint optionally names the roles of ancestor elements, root first,
	// narrowing where the backend starts its bounded traversal.
	PathHint []string
	// RequiredAction optionally names an action the element must support
	// (e.g. "AXPress").
	RequiredAction string
}

// New creates a match-all Locator from the given criteria.
// Returns ErrInvalidLocator if no criteria are provided.
func New(criteria ...Criterion) (Locator, error) {
	if len(criteria) == 0 {
		return Locator{}, errors.Wrap(errors.ErrInvalidLocator, "locator requires at least one criterion")
	}
	return Locator{Criteria: append([]Criterion(nil), criteria...), MatchAll: true}, nil
}

// NewAny creates a match-any Locator from the given criteria.
// Returns ErrInvalidLocator if no criteria are provided.
func NewAny(criteria ...Criterion) (Locator, error) {
	l, err := New(criteria...)
	if err != nil {
		return Locator{}, err
	}
	l.MatchAll = false
	return l, nil
}

// Must is like New but panics on error.
// Intended for statically-known locators in heuristic tables.
func Must(criteria ...Criterion) Locator {
	l, err := New(criteria...)
	if err != nil {
		panic(err)
	}
	return l
}

// WithPathHint returns a copy of the locator with the given root path hint.
func (l Locator) WithPathHint(roles ...string) Locator {
	l.PathHint = append([]string(nil), roles...)
	return l
}

// WithRequiredAction returns a copy of the locator requiring the named action.
func (l Locator) WithRequiredAction(action string) Locator {
	l.RequiredAction = action
	return l
}

// Matches reports whether an element with the given attributes satisfies
// the locator's criteria under its match-all/match-any semantics.
// The required action and path hint are enforced by the backend, not here.
func (l Locator) Matches(attrs map[string]string) bool {
	if len(l.Criteria) == 0 {
		return false
	}
	for _, c := range l.Criteria {
		matched := c.Matches(attrs[c.Attribute])
		if l.MatchAll && !matched {
			return false
		}
		if !l.MatchAll && matched {
			return true
		}
	}
	return l.MatchAll
}

// String returns a compact description of the locator for logging.
func (l Locator) String() string {
	parts := make([]string, 0, len(l.Criteria))
	for _, c := range l.Criteria {
		parts = append(parts, c.String())
	}
	op := " AND "
	if !l.MatchAll {
		op = " OR "
	}
	s := strings.Join(parts, op)
	if l.RequiredAction != "" {
		s += fmt.Sprintf(" (action: %s)", l.RequiredAction)
	}
	return s
}
