// File: api/schemas/interfaces.go
// Description: Contracts every capability provider must satisfy. The core
// never talks to a concrete backend directly; providers are injected into
// the resolver and loop constructors.

package schemas

import "context"

// ImageRef is an opaque handle to a captured frame. Backends decide whether
// it is a file path, an in-memory buffer key, or a remote object id.
type ImageRef string

// ElementHandle is an opaque handle to a live accessibility-tree node.
type ElementHandle interface {
	// Bounds returns the element's on-screen bounding box.
	Bounds() Rect
}

// TextRegion is one OCR hit: recognized text with position and engine
// confidence in [0,1].
type TextRegion struct {
	Text       string  `json:"text"`
	BBox       Rect    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// TemplateMatch is a template-matcher hit above threshold.
type TemplateMatch struct {
	BBox       Rect    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Region is a candidate UI region proposed by the learned detector.
type Region struct {
	BBox       Rect    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// ScreenCapturer grabs the current frame.
type ScreenCapturer interface {
	CaptureScreen(ctx context.Context) (ImageRef, error)
}

// AccessibilityTree answers structural selector queries against a live UI.
type AccessibilityTree interface {
	QueryAccessibility(ctx context.Context, selectors ElementDescription) (ElementHandle, error)
}

// OCREngine recognizes text regions in a captured frame.
type OCREngine interface {
	RecognizeText(ctx context.Context, img ImageRef) ([]TextRegion, error)
}

// TemplateMatcher locates a template image inside a captured frame. A nil
// match with nil error means nothing above threshold.
type TemplateMatcher interface {
	MatchTemplate(ctx context.Context, img ImageRef, template string, threshold float64) (*TemplateMatch, error)
}

// RegionDetector enumerates candidate UI regions, sorted by confidence
// descending.
type RegionDetector interface {
	DetectRegions(ctx context.Context, img ImageRef) ([]Region, error)
}

// Captioner produces a short natural-language caption for one region.
type Captioner interface {
	Caption(ctx context.Context, img ImageRef, region Rect) (string, error)
}

// InputInjector performs a raw input action (click, type, key, scroll, drag).
type InputInjector interface {
	Inject(ctx context.Context, actionType string, params map[string]any) (ExecutionResult, error)
}

// DeviceGateway serves the semantic-UI flow: snapshots of a device screen
// plus structured action execution.
type DeviceGateway interface {
	FetchSnapshot(ctx context.Context, deviceID string) (*SemanticScreenSnapshot, error)
	Execute(ctx context.Context, deviceID string, directive Directive) (ExecutionResult, error)
}

// GenerationOptions holds parameters for controlling LLM generation.
type GenerationOptions struct {
	Temperature     float32
	MaxTokens       int
	ForceJSONFormat bool
}

// GenerationRequest encapsulates all inputs for a single LLM API call.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Options      GenerationOptions
}

// LLMClient abstracts the remote inference endpoint used by the decide step.
type LLMClient interface {
	GenerateResponse(ctx context.Context, req GenerationRequest) (string, error)
}
