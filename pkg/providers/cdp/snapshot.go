// File: pkg/providers/cdp/snapshot.go
// Description: DOM-to-snapshot translation. A snapshot enumerates the
// interactable elements of the current document with stable per-capture ids.

package cdp

import (
	"strings"
	"time"

	"github.com/mirelock/uipilot/api/schemas"
)

// snapshotScript enumerates clickable/focusable elements with their bounds.
// Ids are assigned in document order and are only stable within one capture.
const snapshotScript = `(() => {
	const selector = 'a, button, input, textarea, select, [role="button"], [role="link"], [role="textbox"], [onclick], [tabindex]';
	const out = [];
	let id = 1;
	for (const el of document.querySelectorAll(selector)) {
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) continue;
		const style = window.getComputedStyle(el);
		if (style.visibility === 'hidden' || style.display === 'none') continue;
		const text = (el.innerText || el.value || el.getAttribute('aria-label') || '').trim().slice(0, 120);
		out.push({
			id: id++,
			type: el.tagName.toLowerCase(),
			text: text,
			clickable: true,
			focusable: el.tabIndex >= 0,
			bounds: {
				x: Math.round(rect.x),
				y: Math.round(rect.y),
				width: Math.round(rect.width),
				height: Math.round(rect.height)
			}
		});
	}
	return {
		title: document.title,
		path: window.location.pathname,
		width: window.innerWidth,
		height: window.innerHeight,
		elements: out
	};
})()`

// domSnapshot mirrors the snapshotScript return shape.
type domSnapshot struct {
	Title    string       `json:"title"`
	Path     string       `json:"path"`
	Width    int          `json:"width"`
	Height   int          `json:"height"`
	Elements []domElement `json:"elements"`
}

type domElement struct {
	ID        int          `json:"id"`
	Type      string       `json:"type"`
	Text      string       `json:"text"`
	Clickable bool         `json:"clickable"`
	Focusable bool         `json:"focusable"`
	Bounds    schemas.Rect `json:"bounds"`
}

// toSemanticSnapshot converts the evaluated DOM data into the schema form.
// The page title stands in for the app name and the path for the screen.
func (d domSnapshot) toSemanticSnapshot() *schemas.SemanticScreenSnapshot {
	elements := make([]schemas.SemanticUIElement, 0, len(d.Elements))
	for _, el := range d.Elements {
		elements = append(elements, schemas.SemanticUIElement{
			ID:        el.ID,
			Type:      el.Type,
			Text:      el.Text,
			Clickable: el.Clickable,
			Focusable: el.Focusable,
			Bounds:    el.Bounds,
		})
	}
	screen := strings.Trim(d.Path, "/")
	if screen == "" {
		screen = "root"
	}
	return &schemas.SemanticScreenSnapshot{
		AppName:    d.Title,
		ScreenName: screen,
		Width:      d.Width,
		Height:     d.Height,
		Elements:   elements,
		Timestamp:  time.Now().UTC(),
	}
}
