package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/set-night/apexinspect/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInference(url string) *InferenceService {
	return NewInferenceService(InferenceConfig{
		URL:         url,
		APIKey:      "test-key",
		Model:       "test-model",
		MaxTokens:   2048,
		Temperature: 0.6,
		Timeout:     5 * time.Second,
	})
}

func serveJSON(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChat_ChoicesShape(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{
		"choices": [{"message": {"content": "Surface wear detected."}}],
		"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
	}`)

	res, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{
		SystemPrompt: "sys",
		Text:         "inspect",
		Image:        []byte{0xff, 0xd8},
	})
	require.NoError(t, err)
	assert.Equal(t, "Surface wear detected.", res.Content)
	assert.Equal(t, 120, res.Usage.PromptTokens)
	assert.Equal(t, 30, res.Usage.CompletionTokens)
	assert.Equal(t, 150, res.Usage.TotalTokens)
	assert.GreaterOrEqual(t, res.Usage.Latency, 0.0)
}

func TestChat_TopLevelContentShape(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"content": "No anomalies."}`)

	res, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{Text: "inspect"})
	require.NoError(t, err)
	assert.Equal(t, "No anomalies.", res.Content)
	assert.Zero(t, res.Usage.PromptTokens)
	assert.Zero(t, res.Usage.CompletionTokens)
	assert.Zero(t, res.Usage.TotalTokens)
}

func TestChat_NoContentSentinel(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{"id": "abc", "choices": []}`)

	res, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{Text: "inspect"})
	require.NoError(t, err)
	assert.Equal(t, NoContent, res.Content)
}

func TestChat_ChoicesWinOverTopLevel(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `{
		"choices": [{"message": {"content": "from choices"}}],
		"content": "from top level"
	}`)

	res, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{Text: "inspect"})
	require.NoError(t, err)
	assert.Equal(t, "from choices", res.Content)
}

func TestChat_NonSuccessStatus(t *testing.T) {
	srv := serveJSON(t, http.StatusServiceUnavailable, `{"error": "overloaded"}`)

	_, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{Text: "inspect"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInferenceFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestChat_MalformedBody(t *testing.T) {
	srv := serveJSON(t, http.StatusOK, `not json`)

	_, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{Text: "inspect"})
	assert.ErrorIs(t, err, domain.ErrInferenceFailed)
}

func TestChat_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestInference(url).Chat(context.Background(), ChatInput{Text: "inspect"})
	assert.ErrorIs(t, err, domain.ErrInferenceFailed)
}

func TestChat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestInference(srv.URL).Chat(ctx, ChatInput{Text: "inspect"})
	assert.ErrorIs(t, err, domain.ErrInferenceFailed)
}

func TestChat_NotConfigured(t *testing.T) {
	svc := NewInferenceService(InferenceConfig{URL: "http://127.0.0.1:1"})

	_, err := svc.Chat(context.Background(), ChatInput{Text: "inspect"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestChat_EmptyText(t *testing.T) {
	_, err := newTestInference("http://127.0.0.1:1").Chat(context.Background(), ChatInput{Text: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestChat_RequestBody(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"content": "ok"}`)
	}))
	t.Cleanup(srv.Close)

	usage := &domain.UsageMetrics{TotalTokens: 10}
	_, err := newTestInference(srv.URL).Chat(context.Background(), ChatInput{
		SystemPrompt: "SYSTEM",
		History: []domain.Message{
			{Role: domain.RoleUser, Content: "first"},
			{Role: domain.RoleAssistant, Content: "reply", Usage: usage},
		},
		Text:  "second",
		Image: []byte("img"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 2048, got["max_tokens"])
	assert.InDelta(t, 0.6, got["temperature"], 1e-9)
	assert.Equal(t, false, got["stream"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)

	sys := msgs[0].(map[string]any)
	assert.Equal(t, "system", sys["role"])
	assert.Equal(t, "SYSTEM", sys["content"])

	reply := msgs[2].(map[string]any)
	assert.Equal(t, "assistant", reply["role"])
	assert.Equal(t, "reply", reply["content"])
	assert.NotContains(t, reply, "usage")

	last := msgs[3].(map[string]any)
	assert.Equal(t, "user", last["role"])
	parts := last["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	assert.Equal(t, "second", parts[0].(map[string]any)["text"])
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/jpeg;base64,aW1n", img["image_url"].(map[string]any)["url"])
}

func TestBuildRequest_NoImage(t *testing.T) {
	req := newTestInference("").BuildRequest(ChatInput{SystemPrompt: "s", Text: "t"})

	require.Len(t, req.Messages, 2)
	parts, ok := req.Messages[1].Content.([]ContentPart)
	require.True(t, ok)
	assert.Len(t, parts, 1)
}

func TestNewUsageMetrics(t *testing.T) {
	u := NewUsageMetrics(200, 100, 300, 2500*time.Millisecond)
	assert.Equal(t, 300, u.TotalTokens)
	assert.InDelta(t, 2.5, u.Latency, 1e-9)
	assert.InDelta(t, 120.0, u.Throughput, 1e-9)
}

func TestNewUsageMetrics_Rounding(t *testing.T) {
	u := NewUsageMetrics(0, 0, 100, 3*time.Second)
	assert.InDelta(t, 3.0, u.Latency, 1e-9)
	assert.InDelta(t, 33.33, u.Throughput, 1e-9)
}

func TestNewUsageMetrics_ZeroLatency(t *testing.T) {
	u := NewUsageMetrics(1, 1, 2, time.Millisecond)
	assert.Zero(t, u.Latency)
	assert.Zero(t, u.Throughput)
}

func TestNewUsageMetrics_NegativeClamped(t *testing.T) {
	u := NewUsageMetrics(-1, -2, -3, -time.Second)
	assert.Zero(t, u.PromptTokens)
	assert.Zero(t, u.CompletionTokens)
	assert.Zero(t, u.TotalTokens)
	assert.Zero(t, u.Latency)
}
