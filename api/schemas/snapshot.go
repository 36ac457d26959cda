// File: api/schemas/snapshot.go
package schemas

import "time"

// SemanticUIElement is one interactable element inside a screen snapshot.
// IDs are stable within a single snapshot only; a fresh capture renumbers.
type SemanticUIElement struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Clickable bool   `json:"clickable"`
	Focusable bool   `json:"focusable"`
	Bounds    Rect   `json:"bounds"`
}

// SemanticScreenSnapshot is an immutable capture of the visible UI at one
// instant. A user action always produces a new snapshot; snapshots are never
// mutated in place.
type SemanticScreenSnapshot struct {
	AppName    string              `json:"app_name"`
	ScreenName string              `json:"screen_name"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Elements   []SemanticUIElement `json:"elements"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Degenerate reports whether the capture is unusable for a decision step:
// no elements at all, or a zero-sized viewport.
func (s *SemanticScreenSnapshot) Degenerate() bool {
	if s == nil {
		return true
	}
	return len(s.Elements) == 0 || s.Width <= 0 || s.Height <= 0
}

// ElementByID returns the element with the given snapshot-local id.
func (s *SemanticScreenSnapshot) ElementByID(id int) (SemanticUIElement, bool) {
	for _, el := range s.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return SemanticUIElement{}, false
}
