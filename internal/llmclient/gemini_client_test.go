// File: internal/llmclient/gemini_client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mirelock/uipilot/api/schemas"
	"github.com/mirelock/uipilot/internal/config"
)

// -- Test setup helpers --

func validLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:    config.ProviderGemini,
		Model:       "gemini-2.5-flash",
		APIKey:      "test-api-key",
		APITimeout:  5 * time.Second,
		Temperature: 0.2,
		MaxTokens:   2048,
	}
}

// setupGeminiClient points a GeminiClient at a mock HTTP server with fast
// retries so failure paths finish quickly.
func setupGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			t.Log("Warning: unexpected HTTP request in test.")
			w.WriteHeader(http.StatusNotFound)
		}
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := validLLMConfig()
	cfg.Endpoint = server.URL

	client, err := NewGeminiClient(cfg, zap.NewNop())
	require.NoError(t, err)
	client.backoffFactory = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Millisecond
		b.MaxElapsedTime = 100 * time.Millisecond
		return b
	}
	return client
}

func generationResponse(text string) string {
	payload := geminiResponsePayload{}
	payload.Candidates = []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	}{
		{Content: geminiContent{Parts: []geminiPart{{Text: text}}}, FinishReason: "STOP"},
	}
	out, _ := json.Marshal(payload)
	return string(out)
}

func testRequest() schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "You decide GUI actions.",
		UserPrompt:   "Goal: open the mail app.",
		Options:      schemas.GenerationOptions{Temperature: 0.7, ForceJSONFormat: true},
	}
}

// -- Initialization --

func TestNewGeminiClientDefaultEndpoint(t *testing.T) {
	cfg := validLLMConfig()
	client, err := NewGeminiClient(cfg, zap.NewNop())

	require.NoError(t, err)
	expected := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	assert.Equal(t, expected, client.endpoint)
	assert.Equal(t, cfg.APITimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.backoffFactory)
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	cfg := validLLMConfig()
	cfg.APIKey = ""

	client, err := NewGeminiClient(cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, client)
}

// -- Payload construction --

func TestBuildRequestPayload(t *testing.T) {
	client, err := NewGeminiClient(validLLMConfig(), zap.NewNop())
	require.NoError(t, err)

	payload := client.buildRequestPayload(testRequest())

	require.NotNil(t, payload.SystemInstruction)
	assert.Equal(t, "You decide GUI actions.", payload.SystemInstruction.Parts[0].Text)
	require.Len(t, payload.Contents, 1)
	assert.Equal(t, "user", payload.Contents[0].Role)
	assert.InDelta(t, 0.7, payload.GenerationConfig.Temperature, 1e-6)
	assert.Equal(t, 2048, payload.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, "application/json", payload.GenerationConfig.ResponseMimeType)
}

func TestBuildRequestPayloadFallsBackToConfig(t *testing.T) {
	client, err := NewGeminiClient(validLLMConfig(), zap.NewNop())
	require.NoError(t, err)

	payload := client.buildRequestPayload(schemas.GenerationRequest{UserPrompt: "hi"})

	assert.Nil(t, payload.SystemInstruction)
	assert.InDelta(t, 0.2, payload.GenerationConfig.Temperature, 1e-6)
	assert.Empty(t, payload.GenerationConfig.ResponseMimeType)
}

// -- Generation --

func TestGenerateResponseSuccess(t *testing.T) {
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, generationResponse(`{"action_type": "click", "element_id": 1}`))
	})

	out, err := client.GenerateResponse(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"action_type": "click", "element_id": 1}`, out)
}

func TestGenerateResponseRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, generationResponse("ok"))
	})

	out, err := client.GenerateResponse(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateResponsePermanentErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.GenerateResponse(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateResponseNoCandidates(t *testing.T) {
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	})

	_, err := client.GenerateResponse(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGenerateResponseSafetyBlockIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := setupGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`)
	})

	_, err := client.GenerateResponse(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Equal(t, int32(1), calls.Load())
}
