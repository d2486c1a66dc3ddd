package locator

import (
	"strings"
	"testing"

	"github.com/steipete/codelooper/internal/errors"
)

func TestNew_RejectsZeroCriteria(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("New() with zero criteria should fail")
	}
	if !errors.Is(err, errors.ErrInvalidLocator) {
		t.Errorf("error = %v, want ErrInvalidLocator", err)
	}

	_, err = NewAny()
	if !errors.Is(err, errors.ErrInvalidLocator) {
		t.Errorf("NewAny error = %v, want ErrInvalidLocator", err)
	}
}

func TestNewCriterion_Validation(t *testing.T) {
	if _, err := NewCriterion("", "x", MatchExact); err == nil {
		t.Error("empty attribute should fail")
	}
	if _, err := NewCriterion("title", "[invalid", MatchRegex); err == nil {
		t.Error("invalid regex should fail at construction")
	}
	if _, err := NewCriterion("title", "x", MatchContainsAny); err == nil {
		t.Error("contains_any through NewCriterion should fail")
	}
	if _, err := NewContainsAny("title"); err == nil {
		t.Error("contains_any with no values should fail")
	}
}

func TestCriterion_Matches(t *testing.T) {
	tests := []struct {
		name   string
		c      Criterion
		actual string
		want   bool
	}{
		{"exact hit", MustCriterion("role", "AXButton", MatchExact), "AXButton", true},
		{"exact is case sensitive", MustCriterion("role", "AXButton", MatchExact), "axbutton", false},
		{"contains hit", MustCriterion("title", "stop", MatchContains), "Stop Generating", true},
		{"contains miss", MustCriterion("title", "resume", MatchContains), "Stop Generating", false},
		{"contains_any hit", MustContainsAny("title", "Generating", "Thinking"), "Claude is thinking…", true},
		{"contains_any miss", MustContainsAny("title", "Generating", "Thinking"), "idle", false},
		{"prefix hit", MustCriterion("title", "stop", MatchPrefix), "Stop Generating", true},
		{"suffix hit", MustCriterion("title", "generating", MatchSuffix), "Stop Generating", true},
		{"regex hit", MustCriterion("title", `(?i)generating\.{3}|…`, MatchRegex), "Generating…", true},
		{"glob hit", MustCriterion("title", "Stop*", MatchGlob), "Stop Generating", true},
		{"glob miss", MustCriterion("title", "Stop*", MatchGlob), "Please Stop", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.Matches(tc.actual); got != tc.want {
				t.Errorf("Matches(%q) = %v, want %v", tc.actual, got, tc.want)
			}
		})
	}
}

func TestLocator_MatchAllSemantics(t *testing.T) {
	l := Must(
		MustCriterion("role", "AXButton", MatchExact),
		MustCriterion("title", "stop", MatchContains),
	)

	if !l.Matches(map[string]string{"role": "AXButton", "title": "Stop Generating"}) {
		t.Error("all criteria satisfied, should match")
	}
	if l.Matches(map[string]string{"role": "AXButton", "title": "Send"}) {
		t.Error("one criterion unsatisfied, should not match under match-all")
	}
	if l.Matches(map[string]string{}) {
		t.Error("missing attributes should not match")
	}
}

func TestLocator_MatchAnySemantics(t *testing.T) {
	l, err := NewAny(
		MustCriterion("title", "Resume", MatchContains),
		MustCriterion("title", "Try Again", MatchContains),
	)
	if err != nil {
		t.Fatalf("NewAny failed: %v", err)
	}

	if !l.Matches(map[string]string{"title": "Try Again"}) {
		t.Error("one criterion satisfied, should match under match-any")
	}
	if l.Matches(map[string]string{"title": "Send"}) {
		t.Error("no criterion satisfied, should not match")
	}
}

func TestLocator_WithModifiersAreCopies(t *testing.T) {
	base := Must(MustCriterion("role", "AXTextArea", MatchExact))

	hinted := base.WithPathHint("AXWindow", "AXGroup")
	acted := base.WithRequiredAction("AXPress")

	if len(base.PathHint) != 0 || base.RequiredAction != "" {
		t.Error("modifiers must not mutate the original locator")
	}
	if len(hinted.PathHint) != 2 {
		t.Errorf("PathHint = %v, want 2 roles", hinted.PathHint)
	}
	if acted.RequiredAction != "AXPress" {
		t.Errorf("RequiredAction = %q, want AXPress", acted.RequiredAction)
	}
}

func TestLocator_String(t *testing.T) {
	l := Must(MustCriterion("role", "AXButton", MatchExact)).WithRequiredAction("AXPress")

	s := l.String()
	if s == "" {
		t.Fatal("String should not be empty")
	}
	// Spot-check that the action is included for log readability.
	if want := "(action: AXPress)"; !strings.Contains(s, want) {
		t.Errorf("String() = %q, should contain %q", s, want)
	}
}
