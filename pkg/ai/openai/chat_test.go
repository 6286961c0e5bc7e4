package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aletheia-codex/backend/pkg/ai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GraphOpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGraphOpenAIClient(NewGraphOpenAIClientParams{
		ExtractionModel: "gpt-test",
		ChatURL:         srv.URL + "/v1/",
		ChatKey:         "test-key",
	})
}

func TestGenerateCompletion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"[]"}}],` +
			`"usage":{"prompt_tokens":9,"completion_tokens":1,"total_tokens":10}}`))
	})

	out, err := c.GenerateCompletion(context.Background(), "extract")
	if err != nil {
		t.Fatalf("GenerateCompletion: %v", err)
	}
	if out.Text != "[]" || out.InputTokens != 9 || out.OutputTokens != 1 {
		t.Fatalf("unexpected completion %+v", out)
	}
}

func TestGenerateCompletionMapsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ai.ErrAuth},
		{http.StatusTooManyRequests, ai.ErrRateLimit},
		{http.StatusBadGateway, ai.ErrTransient},
		{http.StatusUnprocessableEntity, ai.ErrRequest},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
		})
		_, err := c.GenerateCompletion(context.Background(), "extract")
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestGenerateCompletionWithoutKey(t *testing.T) {
	c := NewGraphOpenAIClient(NewGraphOpenAIClientParams{ExtractionModel: "gpt-test"})
	_, err := c.GenerateCompletion(context.Background(), "extract")
	if !errors.Is(err, ai.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
