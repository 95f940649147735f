package prompt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/storage"
)

type memRecorder struct {
	mu      sync.Mutex
	metrics []storage.Metric
	errs    []storage.ErrorLog
}

func (r *memRecorder) RecordMetric(_ context.Context, m storage.Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
	return nil
}

func (r *memRecorder) RecordError(_ context.Context, e storage.ErrorLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, e)
	return nil
}

func newTestService(t *testing.T, h http.HandlerFunc) (*Service, *memRecorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	rec := &memRecorder{}
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL}, rec, zap.NewNop()), rec
}

func completion(content string, tokens int) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": tokens - 5, "completion_tokens": 5, "total_tokens": tokens},
	}
}

func TestImproveSendsInstructionAndTrims(t *testing.T) {
	var got openai.ChatCompletionRequest
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion("  A calm baritone narrator.\n", 42))
	})

	out, err := svc.Improve(context.Background(), "  calm man voice ")
	require.NoError(t, err)
	assert.Equal(t, "A calm baritone narrator.", out)

	assert.Equal(t, openai.GPT4oMini, got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, improveInstruction, got.Messages[0].Content)
	assert.Equal(t, "calm man voice", got.Messages[1].Content)

	require.Len(t, rec.metrics, 1)
	assert.Equal(t, 42, rec.metrics[0].TokenCount)
	assert.Equal(t, len("calm man voice"), rec.metrics[0].TextLength)
	assert.Equal(t, storage.APIPromptImprovement, rec.metrics[0].APIType)
	assert.Empty(t, rec.errs)
}

func TestInstructionsPerOperation(t *testing.T) {
	var system string
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		system = req.Messages[0].Content
		_ = json.NewEncoder(w).Encode(completion("ok", 10))
	})

	_, err := svc.GenerateSampleText(context.Background(), "stary pirat")
	require.NoError(t, err)
	assert.Equal(t, sampleTextInstruction, system)

	_, err = svc.Translate(context.Background(), "stary pirat")
	require.NoError(t, err)
	assert.Equal(t, translateInstruction, system)

	assert.NotEqual(t, improveInstruction, sampleTextInstruction)
	assert.NotEmpty(t, translateInstruction)
}

func TestEmptyInputSkipsProvider(t *testing.T) {
	called := false
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := svc.Improve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.False(t, called)
	assert.Empty(t, rec.metrics)
	assert.Empty(t, rec.errs)
}

func TestProviderFailureIsLogged(t *testing.T) {
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	})

	_, err := svc.Improve(context.Background(), "calm man voice")
	assert.ErrorIs(t, err, ErrExternalAPI)

	require.Len(t, rec.errs, 1)
	assert.Contains(t, rec.errs[0].ErrorMessage, "OpenAI API call failed")
	assert.Contains(t, rec.errs[0].ErrorMessage, "model overloaded")
	assert.Equal(t, storage.APIPromptImprovement, rec.errs[0].APIType)
	assert.Empty(t, rec.metrics)
}

func TestNoChoicesIsFailure(t *testing.T) {
	svc, rec := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","choices":[],"usage":{"total_tokens":3}}`))
	})

	_, err := svc.Translate(context.Background(), "głos")
	assert.ErrorIs(t, err, ErrExternalAPI)
	assert.Len(t, rec.errs, 1)
}
