package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailsorter/config"
	"github.com/customeros/mailsorter/dto"
)

func newConfig(url string) *config.OpenAIConfig {
	return &config.OpenAIConfig{
		ApiKey:      "sk-test",
		Url:         url,
		Model:       "gpt-4",
		Temperature: 0.5,
		MaxTokens:   1000,
		Timeout:     5 * time.Second,
	}
}

func TestAIService_Complete(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Jobs, Travel"}}]}`))
	}))
	defer srv.Close()

	svc := NewAIService(newConfig(srv.URL + "/v1/"))
	history := []dto.ChatMessage{{Text: "earlier question"}, {Text: "earlier answer", FromAssistant: true}}

	out, err := svc.Complete(context.Background(), "classify this", history)
	require.NoError(t, err)
	assert.Equal(t, "Jobs, Travel", out)

	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, chatMessage{Role: "system", Content: "classify this"}, got.Messages[0])
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
}

func TestAIService_CompleteErrors(t *testing.T) {
	status := http.StatusInternalServerError
	body := `{"error":"boom"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	svc := NewAIService(newConfig(srv.URL))
	_, err := svc.Complete(context.Background(), "prompt", nil)
	assert.ErrorContains(t, err, "status code 500")

	status, body = http.StatusOK, `{"choices":[]}`
	_, err = svc.Complete(context.Background(), "prompt", nil)
	assert.ErrorContains(t, err, "no choices")

	cfg := newConfig(srv.URL)
	cfg.ApiKey = ""
	_, err = NewAIService(cfg).Complete(context.Background(), "prompt", nil)
	assert.Error(t, err)
}

func TestAIService_CompletePropagatesSpan(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(opentracing.NoopTracer{}) })

	var traceHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceHeader = r.Header.Get("Mockpfx-Ids-Traceid")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"None"}}]}`))
	}))
	defer srv.Close()

	_, err := NewAIService(newConfig(srv.URL)).Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "aiService.Complete", spans[0].OperationName)
	assert.NotEmpty(t, traceHeader)
	assert.Equal(t, fmt.Sprint(spans[0].SpanContext.TraceID), traceHeader)
}
