package discovery

import (
	"github.com/steipete/codelooper/internal/element"
	"github.com/steipete/codelooper/internal/locator"
	"github.com/steipete/codelooper/internal/logging"
)

// Registry maps each semantic element type to its ordered strategies,
// most specific first. Types absent from the registry have no dynamic
// discovery and rely entirely on static defaults.
type Registry map[element.Type][]Strategy

// Register appends a strategy for a type, preserving registration order.
func (r Registry) Register(t element.Type, s Strategy) {
	r[t] = append(r[t], s)
}

// Strategies returns the ordered strategies for a type (nil when none).
func (r Registry) Strategies(t element.Type) []Strategy {
	return r[t]
}

// DefaultRegistry builds the built-in heuristic registry against the given
// backend. The candidate tables encode how the target application has
// historically labelled each control; order is most specific first so that
// a structural UI change degrades gracefully to looser text matching.
func DefaultRegistry(backend element.Backend, logger *logging.Logger, maxDepth int) Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	probe := func(name string, candidates ...locator.Locator) Strategy {
		return NewProbeStrategy(name, backend, logger, maxDepth, candidates...)
	}

	r := make(Registry)

	r.Register(element.TypeInputField, probe("input_textarea",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXTextArea", locator.MatchExact),
		).WithRequiredAction(element.ActionFocus),
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXTextField", locator.MatchExact),
		).WithRequiredAction(element.ActionFocus),
	))
	r.Register(element.TypeInputField, probe("input_labelled",
		locator.Must(
			locator.MustContainsAny(element.AttrDescription, "message", "prompt", "ask"),
		),
	))

	r.Register(element.TypeStopButton, probe("stop_button_exact",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXButton", locator.MatchExact),
			locator.MustCriterion(element.AttrTitle, "Stop generating", locator.MatchExact),
		).WithRequiredAction(element.ActionPress),
	))
	r.Register(element.TypeStopButton, probe("stop_button_loose",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXButton", locator.MatchExact),
			locator.MustContainsAny(element.AttrTitle, "stop", "cancel"),
		).WithRequiredAction(element.ActionPress),
		locator.Must(
			locator.MustCriterion(element.AttrTitle, "Stop*", locator.MatchGlob),
		).WithRequiredAction(element.ActionPress),
	))

	r.Register(element.TypeResumeButton, probe("resume_button",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXButton", locator.MatchExact),
			locator.MustCriterion(element.AttrTitle, "Resume", locator.MatchExact),
		).WithRequiredAction(element.ActionPress),
		locator.Must(
			locator.MustContainsAny(element.AttrTitle, "resume", "try again", "retry"),
		).WithRequiredAction(element.ActionPress),
	))

	r.Register(element.TypeForceStopResumeLink, probe("force_stop_link",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXLink", locator.MatchExact),
			locator.MustContainsAny(element.AttrTitle, "stop the agent", "resume the conversation"),
		).WithRequiredAction(element.ActionPress),
		locator.Must(
			locator.MustContainsAny(element.AttrTitle, "stop the agent", "resume the conversation"),
		).WithRequiredAction(element.ActionPress),
	))

	r.Register(element.TypeGeneratingIndicator, probe("generating_text",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXStaticText", locator.MatchExact),
			locator.MustCriterion(element.AttrValue, `(Generating|Thinking|Working on it)`, locator.MatchRegex),
		),
		locator.Must(
			locator.MustContainsAny(element.AttrValue, "Generating", "Thinking", "Working on it"),
		),
	))

	r.Register(element.TypeErrorPopup, probe("error_popup",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXSheet", locator.MatchExact),
		),
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXPopover", locator.MatchExact),
			locator.MustContainsAny(element.AttrTitle, "error", "failed"),
		),
	))

	r.Register(element.TypeConnectionErrorIndicator, probe("connection_error_text",
		locator.Must(
			locator.MustContainsAny(element.AttrValue,
				"We're having trouble connecting",
				"Connection failed",
				"offline",
			),
		),
		locator.Must(
			locator.MustContainsAny(element.AttrTitle, "connection", "offline"),
		),
	))

	r.Register(element.TypeSidebarActivityArea, probe("sidebar_outline",
		locator.Must(
			locator.MustCriterion(element.AttrRole, "AXOutline", locator.MatchExact),
		).WithPathHint("AXWindow", "AXSplitGroup"),
		locator.Must(
			locator.MustContainsAny(element.AttrDescription, "history", "sidebar", "conversations"),
		),
	))

	return r
}
