// Package element defines the semantic element types the supervision
// engine cares about and the narrow backend interface through which the
// target application's accessibility tree is queried. The backend itself
// (platform accessibility APIs) lives outside this engine; everything here
// degrades to "no action" when an element cannot be found.
package element

import (
	"github.com/steipete/codelooper/internal/locator"
)

// Accessibility attribute names shared by locators and backends.
const (
	AttrRole        = "role"
	AttrSubrole     = "subrole"
	AttrTitle       = "title"
	AttrValue       = "value"
	AttrDescription = "description"
	AttrIdentifier  = "identifier"
	AttrHelp        = "help"
)

// Common action names shared by locators and backends.
const (
	ActionPress   = "AXPress"
	ActionConfirm = "AXConfirm"
	ActionFocus   = "AXRaise"
)

// Type is the closed enumeration of semantic UI roles the engine locates
// in the target application.
type Type int

const (
	// TypeUnknown is the zero value; no heuristics are registered for it.
	TypeUnknown Type = iota
	// TypeInputField is the main text input field.
	TypeInputField
	// TypeStopButton is the stop-generating button.
	TypeStopButton
	// TypeResumeButton is the resume-connection button.
	TypeResumeButton
	// TypeForceStopResumeLink is the force-stop/resume link shown when the
	// target application loops or stalls.
	TypeForceStopResumeLink
	// TypeGeneratingIndicator is the "Generating…" activity indicator text.
	TypeGeneratingIndicator
	// TypeErrorPopup is the error popup/alert element.
	TypeErrorPopup
	// TypeConnectionErrorIndicator is the connection-trouble indicator text.
	TypeConnectionErrorIndicator
	// TypeSidebarActivityArea is the sidebar area reflecting recent activity.
	TypeSidebarActivityArea
)

// String returns the element type's snake_case name.
func (t Type) String() string {
	switch t {
	case TypeInputField:
		return "input_field"
	case TypeStopButton:
		return "stop_button"
	case TypeResumeButton:
		return "resume_button"
	case TypeForceStopResumeLink:
		return "force_stop_resume_link"
	case TypeGeneratingIndicator:
		return "generating_indicator"
	case TypeErrorPopup:
		return "error_popup"
	case TypeConnectionErrorIndicator:
		return "connection_error_indicator"
	case TypeSidebarActivityArea:
		return "sidebar_activity_area"
	default:
		return "unknown"
	}
}

// ParseType converts a snake_case name produced by String back to its
// Type. Unknown names return TypeUnknown and false.
func ParseType(name string) (Type, bool) {
	for _, t := range AllTypes() {
		if t.String() == name {
			return t, true
		}
	}
	return TypeUnknown, false
}

// AllTypes returns every semantic element type, excluding TypeUnknown.
func AllTypes() []Type {
	return []Type{
		TypeInputField,
		TypeStopButton,
		TypeResumeButton,
		TypeForceStopResumeLink,
		TypeGeneratingIndicator,
		TypeErrorPopup,
		TypeConnectionErrorIndicator,
		TypeSidebarActivityArea,
	}
}

// defaultLocators holds the statically-configured locator per element type.
// These are tried before any heuristic runs; types absent from the map rely
// entirely on dynamic discovery.
var defaultLocators = map[Type]locator.Locator{
	TypeInputField: locator.Must(
		locator.MustCriterion(AttrRole, "AXTextArea", locator.MatchExact),
	).WithRequiredAction(ActionFocus),

	TypeGeneratingIndicator: locator.Must(
		locator.MustCriterion(AttrRole, "AXStaticText", locator.MatchExact),
		locator.MustContainsAny(AttrValue, "Generating", "Thinking", "Working on it"),
	),

	TypeForceStopResumeLink: locator.Must(
		locator.MustContainsAny(AttrTitle,
			"stop the agent",
			"resume the conversation",
		),
	).WithRequiredAction(ActionPress),

	TypeConnectionErrorIndicator: locator.Must(
		locator.MustContainsAny(AttrValue,
			"We're having trouble connecting",
			"Connection failed",
			"offline",
		),
	),
}

// DefaultLocator returns the statically-configured locator for an element
// type, if one exists.
func DefaultLocator(t Type) (locator.Locator, bool) {
	l, ok := defaultLocators[t]
	return l, ok
}
