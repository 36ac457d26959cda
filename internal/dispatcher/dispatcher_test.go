// File: internal/dispatcher/dispatcher_test.go
package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
	"github.com/mirelock/uipilot/internal/mocks"
	"github.com/mirelock/uipilot/pkg/resolver"
	"github.com/mirelock/uipilot/pkg/safety"
)

const testDevice = "device-1"

func testGate(rules []config.RiskRule) *safety.Gate {
	table := safety.NewRiskTable(rules)
	audit := safety.NewAuditLog(&bytes.Buffer{}, 128, zap.NewNop())
	return safety.NewGate(zap.NewNop(), table, audit, safety.NewUndoQueue(16))
}

func testLoopConfig() config.LoopConfig {
	return config.LoopConfig{
		DefaultMaxSteps:   10,
		DefaultTimeout:    5 * time.Second,
		SnapshotRingSize:  5,
		HistoryLimit:      100,
		InitRetryDelay:    time.Millisecond,
		ReasoningWindow:   5,
	}
}

func testDispatcherConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxElapsedTime: time.Second,
	}
}

func newTestDispatcher(gateway *mocks.MockDeviceGateway, llm *mocks.MockLLMClient, rules []config.RiskRule, providers resolver.Providers) *Dispatcher {
	res := resolver.New(zap.NewNop(), config.ResolverConfig{
		OCRThreshold:      0.6,
		TemplateThreshold: 0.8,
		Matching: config.MatchingConfig{
			ExactBonus: 0.5, WordOverlapBonus: 0.3, FuzzyBonus: 0.1,
			FuzzyCutoff: 0.75, MinWordLength: 3,
		},
	}, providers)
	return New(zap.NewNop(), testDispatcherConfig(), testLoopConfig(), res, testGate(rules), gateway, llm)
}

func launcherSnapshot() *schemas.SemanticScreenSnapshot {
	return &schemas.SemanticScreenSnapshot{
		AppName: "Launcher", Width: 1080, Height: 1920,
		Elements: []schemas.SemanticUIElement{
			{ID: 1, Type: "icon", Text: "Mail", Clickable: true},
			{ID: 2, Type: "icon", Text: "Files", Clickable: true},
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestDispatchRoutesResolveTask(t *testing.T) {
	capturer := new(mocks.MockScreenCapturer)
	ocr := new(mocks.MockOCREngine)
	capturer.On("CaptureScreen", mock.Anything).Return(schemas.ImageRef("frame"), nil)
	ocr.On("RecognizeText", mock.Anything, schemas.ImageRef("frame")).Return([]schemas.TextRegion{
		{Text: "Compose", BBox: schemas.Rect{X: 10, Y: 10, Width: 40, Height: 20}, Confidence: 0.9},
	}, nil)

	d := newTestDispatcher(new(mocks.MockDeviceGateway), new(mocks.MockLLMClient),
		config.DefaultRiskRules(), resolver.Providers{Capturer: capturer, OCR: ocr})

	result, err := d.Dispatch(context.Background(), schemas.Task{
		Type:    schemas.TaskResolve,
		Element: schemas.ElementDescription{Text: "compose"},
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCompleted, result.Status)
	require.NotNil(t, result.Detection)
	assert.True(t, result.Detection.Found)
	assert.Equal(t, schemas.MethodOCR, result.Detection.Method)
	assert.NotEmpty(t, result.TaskID)
}

func TestDispatchResolveNotFoundIsStillCompleted(t *testing.T) {
	d := newTestDispatcher(new(mocks.MockDeviceGateway), new(mocks.MockLLMClient),
		config.DefaultRiskRules(), resolver.Providers{})

	result, err := d.Dispatch(context.Background(), schemas.Task{
		Type:    schemas.TaskResolve,
		Element: schemas.ElementDescription{Text: "anything"},
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCompleted, result.Status)
	require.NotNil(t, result.Detection)
	assert.False(t, result.Detection.Found)
}

func TestDispatchGoalSuccess(t *testing.T) {
	gateway := new(mocks.MockDeviceGateway)
	llm := new(mocks.MockLLMClient)

	gateway.On("FetchSnapshot", mock.Anything, testDevice).Return(launcherSnapshot(), nil)
	gateway.On("Execute", mock.Anything, testDevice, mock.Anything).
		Return(schemas.ExecutionResult{Success: true}, nil)
	llm.On("GenerateResponse", mock.Anything, mock.Anything).
		Return(`{"action_type": "click", "element_id": 1}`, nil).Once()
	llm.On("GenerateResponse", mock.Anything, mock.Anything).
		Return(`{"action_type": "complete", "reason": "done"}`, nil).Once()

	d := newTestDispatcher(gateway, llm, config.DefaultRiskRules(), resolver.Providers{})
	result, err := d.Dispatch(context.Background(), schemas.Task{
		Type: schemas.TaskGoal, DeviceID: testDevice, Goal: "open the mail app",
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCompleted, result.Status)
	require.NotNil(t, result.Loop)
	assert.Equal(t, schemas.LoopSuccess, result.Loop.Status)
}

func TestDispatchRetriesTransientInitFailure(t *testing.T) {
	gateway := new(mocks.MockDeviceGateway)
	llm := new(mocks.MockLLMClient)

	// First attempt: both the capture and its retry fail, which surfaces as
	// a transient init failure and triggers a whole-task retry.
	gateway.On("FetchSnapshot", mock.Anything, testDevice).
		Return(nil, errors.New("device bridge offline")).Twice()
	gateway.On("FetchSnapshot", mock.Anything, testDevice).Return(launcherSnapshot(), nil)
	llm.On("GenerateResponse", mock.Anything, mock.Anything).
		Return(`{"action_type": "complete", "reason": "already open"}`, nil)

	d := newTestDispatcher(gateway, llm, config.DefaultRiskRules(), resolver.Providers{})
	result, err := d.Dispatch(context.Background(), schemas.Task{
		Type: schemas.TaskGoal, DeviceID: testDevice, Goal: "open the mail app",
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCompleted, result.Status)
	gateway.AssertNumberOfCalls(t, "FetchSnapshot", 3)
}

func TestDispatchParseFailureIsNotRetried(t *testing.T) {
	gateway := new(mocks.MockDeviceGateway)
	llm := new(mocks.MockLLMClient)

	gateway.On("FetchSnapshot", mock.Anything, testDevice).Return(launcherSnapshot(), nil)
	llm.On("GenerateResponse", mock.Anything, mock.Anything).Return("not json at all", nil)

	d := newTestDispatcher(gateway, llm, config.DefaultRiskRules(), resolver.Providers{})
	result, err := d.Dispatch(context.Background(), schemas.Task{
		Type: schemas.TaskGoal, DeviceID: testDevice, Goal: "open the mail app",
	})

	require.NoError(t, err)
	assert.Equal(t, schemas.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "directive parse error")
	llm.AssertNumberOfCalls(t, "GenerateResponse", 1)
}

func TestDispatchSurfacesPendingConfirmationAndConfirmResumes(t *testing.T) {
	gateway := new(mocks.MockDeviceGateway)
	llm := new(mocks.MockLLMClient)

	// Everything typed is high risk under this rule set.
	rules := []config.RiskRule{
		{Keyword: "type", Level: string(schemas.RiskHigh)},
		{Keyword: "click", Level: string(schemas.RiskLow)},
	}

	typeDirective := schemas.Directive{Type: schemas.DirectiveTypeText, Text: "rm -rf /"}
	gateway.On("FetchSnapshot", mock.Anything, testDevice).Return(launcherSnapshot(), nil)
	gateway.On("Execute", mock.Anything, testDevice, typeDirective).
		Return(schemas.ExecutionResult{Success: true}, nil).Once()

	llm.On("GenerateResponse", mock.Anything, mock.Anything).
		Return(`{"action_type": "type", "text": "rm -rf /"}`, nil).Twice()
	llm.On("GenerateResponse", mock.Anything, mock.Anything).
		Return(`{"action_type": "complete", "reason": "command entered"}`, nil).Once()

	d := newTestDispatcher(gateway, llm, rules, resolver.Providers{})
	task := schemas.Task{ID: "task-9", Type: schemas.TaskGoal, DeviceID: testDevice, Goal: "enter the command"}

	result, err := d.Dispatch(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusPendingConfirmation, result.Status)
	require.NotNil(t, result.Assessment)
	assert.Equal(t, schemas.RiskHigh, result.Assessment.Level)
	require.NotNil(t, result.Held)
	assert.Equal(t, typeDirective, *result.Held)
	// The deferred action never reached the device.
	gateway.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)

	// Confirmation approves exactly the held directive and the loop resumes.
	resumed, err := d.Confirm(context.Background(), "task-9")
	require.NoError(t, err)
	assert.Equal(t, schemas.StatusCompleted, resumed.Status)
	gateway.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestConfirmUnknownTask(t *testing.T) {
	d := newTestDispatcher(new(mocks.MockDeviceGateway), new(mocks.MockLLMClient),
		config.DefaultRiskRules(), resolver.Providers{})

	_, err := d.Confirm(context.Background(), "never-dispatched")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestDispatchUnknownTaskType(t *testing.T) {
	d := newTestDispatcher(new(mocks.MockDeviceGateway), new(mocks.MockLLMClient),
		config.DefaultRiskRules(), resolver.Providers{})

	_, err := d.Dispatch(context.Background(), schemas.Task{Type: "DANCE"})
	assert.Error(t, err)
}

func TestDispatchAllRunsConcurrentGoals(t *testing.T) {
	gateway := new(mocks.MockDeviceGateway)
	llm := new(mocks.MockLLMClient)

	gateway.On("FetchSnapshot", mock.Anything, mock.Anything).Return(launcherSnapshot(), nil)
	llm.On("GenerateResponse", mock.Anything, mock.Anything).
		Return(`{"action_type": "complete", "reason": "done"}`, nil)

	d := newTestDispatcher(gateway, llm, config.DefaultRiskRules(), resolver.Providers{})
	tasks := []schemas.Task{
		{Type: schemas.TaskGoal, DeviceID: "device-a", Goal: "goal a"},
		{Type: schemas.TaskGoal, DeviceID: "device-b", Goal: "goal b"},
		{Type: schemas.TaskResolve, Element: schemas.ElementDescription{Text: "x"}},
	}

	results, err := d.DispatchAll(context.Background(), tasks)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, schemas.StatusCompleted, results[0].Status)
	assert.Equal(t, schemas.StatusCompleted, results[1].Status)
	require.NotNil(t, results[2].Detection)
}
