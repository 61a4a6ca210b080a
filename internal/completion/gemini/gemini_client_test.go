package gemini_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/completion"
	"clausewise/internal/completion/gemini"
	"clausewise/internal/config"
	"clausewise/internal/port"
)

func newTestClient(t *testing.T, serverURL string) *gemini.Client {
	t.Helper()
	cfg := &config.CompletionProviderConfig{
		Provider:     "gemini",
		APIKey:       "test-gemini-key",
		DefaultModel: "gemini-2.0-flash",
		TimeoutSecs:  30,
	}
	c, err := gemini.NewClientWithEndpoint(cfg, serverURL)
	require.NoError(t, err)
	return c
}

func candidateResponse(text, finishReason string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": finishReason,
			},
		},
		"modelVersion": "gemini-2.0-flash-001",
	}
}

func TestGeminiClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		gen := reqBody["generationConfig"].(map[string]interface{})
		assert.Equal(t, "application/json", gen["responseMimeType"])
		assert.NotNil(t, reqBody["systemInstruction"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(candidateResponse(`{"keyInsights":["a"]}`, "STOP"))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server.URL).Complete(context.Background(), port.CompletionRequest{
		SystemPrompt:    "You are a contract analyst.",
		UserPrompt:      "Analyze.",
		MaxOutputTokens: 1000,
		Temperature:     0.2,
		JSONMode:        true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"keyInsights":["a"]}`, resp.Text)
	assert.Equal(t, "gemini-2.0-flash-001", resp.Model)
}

func TestGeminiClient_Complete_TruncatedJSONIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(candidateResponse(`{"keyInsights":["a`, "MAX_TOKENS"))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Complete(context.Background(), port.CompletionRequest{UserPrompt: "x", JSONMode: true})

	require.Error(t, err)
	assert.Equal(t, completion.KindFatal, completion.KindOf(err))
}

func TestGeminiClient_Complete_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   completion.Kind
	}{
		{"quota", http.StatusTooManyRequests, completion.KindRateLimited},
		{"unavailable", http.StatusServiceUnavailable, completion.KindTransient},
		{"forbidden", http.StatusForbidden, completion.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope","status":"ERR"}}`, tt.status)
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Complete(context.Background(), port.CompletionRequest{UserPrompt: "x"})

			require.Error(t, err)
			assert.Equal(t, tt.want, completion.KindOf(err))
		})
	}
}
