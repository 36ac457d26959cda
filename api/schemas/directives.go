// File: api/schemas/directives.go
package schemas

// DirectiveType enumerates the closed set of action directives the decision
// model may emit. Anything outside this set is a parse failure at the
// boundary, never a runtime branch.
type DirectiveType string

const (
	DirectiveClick    DirectiveType = "click"
	DirectiveTypeText DirectiveType = "type"
	DirectiveScroll   DirectiveType = "scroll"
	DirectiveGlobal   DirectiveType = "global_action"
	DirectiveComplete DirectiveType = "complete"
)

// GlobalActionKind names the system-level navigation actions.
type GlobalActionKind string

const (
	GlobalHome   GlobalActionKind = "home"
	GlobalBack   GlobalActionKind = "back"
	GlobalRecent GlobalActionKind = "recent"
)

// ScrollDirection constrains scroll directives.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Directive is one structured action decision for a single control-loop step.
// Exactly one directive per decision; the populated fields depend on Type.
type Directive struct {
	Type DirectiveType `json:"action_type"`

	// Click: snapshot-local element id.
	ElementID int `json:"element_id,omitempty"`

	// Type: text to enter into the focused element.
	Text string `json:"text,omitempty"`

	// Scroll: direction and optional duration in milliseconds.
	Direction  ScrollDirection `json:"direction,omitempty"`
	DurationMS int             `json:"duration,omitempty"`

	// Global: the system navigation action to perform.
	Global GlobalActionKind `json:"global,omitempty"`

	// Complete: the model's stated reason the goal is achieved.
	Reason string `json:"reason,omitempty"`
}

// IsSystemNavigation reports whether the directive thrashes between screens
// rather than interacting with content. Used by stuck-loop detection.
func (d Directive) IsSystemNavigation() bool {
	return d.Type == DirectiveGlobal
}
