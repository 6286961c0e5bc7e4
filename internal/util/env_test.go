package util

import (
	"slices"
	"testing"
	"time"
)

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.85")
	if got := GetEnvFloat("TEST_FLOAT", 0.5); got != 0.85 {
		t.Fatalf("expected 0.85, got %v", got)
	}
	t.Setenv("TEST_FLOAT", "abc")
	if got := GetEnvFloat("TEST_FLOAT", 0.5); got != 0.5 {
		t.Fatalf("expected default for invalid value, got %v", got)
	}
	if got := GetEnvFloat("TEST_FLOAT_MISSING", 0.7); got != 0.7 {
		t.Fatalf("expected default for missing value, got %v", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"1500ms", 1500 * time.Millisecond},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := GetEnvDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Fatalf("GetEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " http://a , ,http://b")
	got := GetEnvList("TEST_LIST", nil)
	if !slices.Equal(got, []string{"http://a", "http://b"}) {
		t.Fatalf("unexpected list %v", got)
	}
	def := []string{"*"}
	if got := GetEnvList("TEST_LIST_MISSING", def); !slices.Equal(got, def) {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestBackoffFromEnv(t *testing.T) {
	t.Setenv("RETRY_ATTEMPTS", "5")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")
	b := BackoffFromEnv()
	if b.Attempts != 5 || b.Initial != 250*time.Millisecond || b.Max != DefaultBackoff.Max {
		t.Fatalf("unexpected backoff %+v", b)
	}
}
