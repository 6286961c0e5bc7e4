package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, ErrAuth},
		{403, ErrAuth},
		{429, ErrRateLimit},
		{408, ErrTransient},
		{500, ErrTransient},
		{503, ErrTransient},
		{529, ErrTransient},
		{400, ErrRequest},
		{422, ErrRequest},
		{0, ErrTransient},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestProviderErrorMatching(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("extract: %w", NewProviderError("openai", ErrRateLimit, 429, cause))

	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit match")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause match")
	}
	if errors.Is(err, ErrAuth) {
		t.Fatalf("unexpected ErrAuth match")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 429 || pe.Provider != "openai" {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewProviderError("x", ErrRateLimit, 429, nil), true},
		{NewProviderError("x", ErrTransient, 503, nil), true},
		{NewProviderError("x", ErrAuth, 401, nil), false},
		{NewProviderError("x", ErrRequest, 400, nil), false},
		{NewProviderError("x", ErrResponse, 0, nil), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if Kind(NewProviderError("x", ErrAuth, 401, nil)) != "auth" {
		t.Fatalf("unexpected kind label")
	}
}

func TestMetricsRecorder(t *testing.T) {
	var r MetricsRecorder
	r.Record(100, 50, 1000)
	r.Record(10, 5, 0)
	m := r.GetMetrics()
	if m.Requests != 2 || m.InputTokens != 110 || m.OutputTokens != 55 || m.TotalTokens != 165 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if m.TokenPerSecond != 165 {
		t.Fatalf("expected 165 tokens/s, got %v", m.TokenPerSecond)
	}
	r.ResetMetrics()
	if r.GetMetrics().TotalTokens != 0 {
		t.Fatalf("expected reset metrics")
	}
}
