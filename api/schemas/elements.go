// File: api/schemas/elements.go
package schemas

// Point is a screen coordinate in pixels, origin top-left.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is an axis-aligned bounding box in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// ElementDescription is a set of optional selectors identifying one on-screen
// element. At least one selector must be populated; the resolver iterates the
// selectors it can service and skips the rest.
type ElementDescription struct {
	// Accessibility selectors, tried in order: control id, window title,
	// role, class name.
	ControlID   string `json:"control_id,omitempty"`
	WindowTitle string `json:"window_title,omitempty"`
	Role        string `json:"role,omitempty"`
	ClassName   string `json:"class_name,omitempty"`

	// Text is matched against OCR output and learned-region captions.
	Text string `json:"text,omitempty"`

	// TemplateRef identifies a template image for pixel matching.
	TemplateRef string `json:"template_ref,omitempty"`
}

// HasSelector reports whether any selector is populated.
func (d ElementDescription) HasSelector() bool {
	return d.ControlID != "" || d.WindowTitle != "" || d.Role != "" ||
		d.ClassName != "" || d.Text != "" || d.TemplateRef != ""
}

// HasAccessibilitySelector reports whether a structural selector is populated.
func (d ElementDescription) HasAccessibilitySelector() bool {
	return d.ControlID != "" || d.WindowTitle != "" || d.Role != "" || d.ClassName != ""
}

// DetectionMethod records which cascade tier produced a result. Confidence
// values are comparable only within the same method.
type DetectionMethod string

const (
	MethodAccessibility DetectionMethod = "accessibility"
	MethodOCR           DetectionMethod = "ocr"
	MethodTemplate      DetectionMethod = "template"
	MethodLearned       DetectionMethod = "learned"
	MethodNone          DetectionMethod = "none"
)

// DetectionResult is the outcome of one resolver invocation.
type DetectionResult struct {
	Found       bool            `json:"found"`
	Point       *Point          `json:"coordinates,omitempty"`
	Confidence  float64         `json:"confidence"`
	MatchedText string          `json:"matched_text,omitempty"`
	Method      DetectionMethod `json:"method"`
}

// NoDetection is the canonical miss: every tier exhausted, nothing found.
func NoDetection() DetectionResult {
	return DetectionResult{Found: false, Method: MethodNone}
}
