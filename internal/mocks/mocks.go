// File: internal/mocks/mocks.go
// Description: Shared testify mocks for the capability-provider and LLM
// interfaces. Tests across packages assert call counts on these to verify
// cascade ordering and loop behavior.

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mirelock/uipilot/api/schemas"
)

// -- Element handle --

// StaticHandle is a trivial ElementHandle backed by a fixed rectangle.
type StaticHandle struct {
	Rect schemas.Rect
}

func (h StaticHandle) Bounds() schemas.Rect { return h.Rect }

// -- Screen capture --

type MockScreenCapturer struct {
	mock.Mock
}

func (m *MockScreenCapturer) CaptureScreen(ctx context.Context) (schemas.ImageRef, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.ImageRef), args.Error(1)
}

// -- Accessibility tree --

type MockAccessibilityTree struct {
	mock.Mock
}

func (m *MockAccessibilityTree) QueryAccessibility(ctx context.Context, selectors schemas.ElementDescription) (schemas.ElementHandle, error) {
	args := m.Called(ctx, selectors)
	if h := args.Get(0); h != nil {
		return h.(schemas.ElementHandle), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- OCR --

type MockOCREngine struct {
	mock.Mock
}

func (m *MockOCREngine) RecognizeText(ctx context.Context, img schemas.ImageRef) ([]schemas.TextRegion, error) {
	args := m.Called(ctx, img)
	if regions := args.Get(0); regions != nil {
		return regions.([]schemas.TextRegion), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Template matching --

type MockTemplateMatcher struct {
	mock.Mock
}

func (m *MockTemplateMatcher) MatchTemplate(ctx context.Context, img schemas.ImageRef, template string, threshold float64) (*schemas.TemplateMatch, error) {
	args := m.Called(ctx, img, template, threshold)
	if match := args.Get(0); match != nil {
		return match.(*schemas.TemplateMatch), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Learned detection --

type MockRegionDetector struct {
	mock.Mock
}

func (m *MockRegionDetector) DetectRegions(ctx context.Context, img schemas.ImageRef) ([]schemas.Region, error) {
	args := m.Called(ctx, img)
	if regions := args.Get(0); regions != nil {
		return regions.([]schemas.Region), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockCaptioner struct {
	mock.Mock
}

func (m *MockCaptioner) Caption(ctx context.Context, img schemas.ImageRef, region schemas.Rect) (string, error) {
	args := m.Called(ctx, img, region)
	return args.String(0), args.Error(1)
}

// -- Input injection --

type MockInputInjector struct {
	mock.Mock
}

func (m *MockInputInjector) Inject(ctx context.Context, actionType string, params map[string]any) (schemas.ExecutionResult, error) {
	args := m.Called(ctx, actionType, params)
	return args.Get(0).(schemas.ExecutionResult), args.Error(1)
}

// -- Device gateway --

type MockDeviceGateway struct {
	mock.Mock
}

func (m *MockDeviceGateway) FetchSnapshot(ctx context.Context, deviceID string) (*schemas.SemanticScreenSnapshot, error) {
	args := m.Called(ctx, deviceID)
	if snap := args.Get(0); snap != nil {
		return snap.(*schemas.SemanticScreenSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDeviceGateway) Execute(ctx context.Context, deviceID string, directive schemas.Directive) (schemas.ExecutionResult, error) {
	args := m.Called(ctx, deviceID, directive)
	return args.Get(0).(schemas.ExecutionResult), args.Error(1)
}

// -- LLM client --

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) GenerateResponse(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
