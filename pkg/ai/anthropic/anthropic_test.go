package anthropic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aletheia-codex/backend/pkg/ai"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GraphAnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGraphAnthropicClient(NewGraphAnthropicClientParams{
		ExtractionModel: "claude-test",
		BaseURL:         srv.URL,
		ApiKey:          "test-key",
	})
}

func TestGenerateCompletion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"[{\"name\":\"Apple\"}]"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":20,"output_tokens":7}}`))
	})

	out, err := c.GenerateCompletion(context.Background(), "extract")
	if err != nil {
		t.Fatalf("GenerateCompletion: %v", err)
	}
	if out.Text != `[{"name":"Apple"}]` || out.InputTokens != 20 || out.OutputTokens != 7 {
		t.Fatalf("unexpected completion %+v", out)
	}
	if c.GetMetrics().TotalTokens != 27 {
		t.Fatalf("unexpected metrics %+v", c.GetMetrics())
	}
}

func TestGenerateCompletionMapsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ai.ErrAuth},
		{http.StatusTooManyRequests, ai.ErrRateLimit},
		{529, ai.ErrTransient},
		{http.StatusBadRequest, ai.ErrRequest},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"error","message":"nope"}}`))
		})
		_, err := c.GenerateCompletion(context.Background(), "extract")
		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		if ai.IsRetryable(err) != (tt.want == ai.ErrRateLimit || tt.want == ai.ErrTransient) {
			t.Fatalf("status %d: unexpected retry classification", tt.status)
		}
	}
}
