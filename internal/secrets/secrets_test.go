package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aletheia-codex/backend/internal/cache"
)

func TestResolverEnv(t *testing.T) {
	t.Setenv("CODEX_TEST_KEY", "from-env")
	r := NewResolver(nil, 0)

	v, err := r.Get(context.Background(), "CODEX_TEST_KEY")
	if err != nil || v != "from-env" {
		t.Fatalf("expected env value, got %q %v", v, err)
	}
}

func TestResolverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODEX_TEST_KEY_FILE", path)
	r := NewResolver(nil, 0)

	v, err := r.Get(context.Background(), "CODEX_TEST_KEY")
	if err != nil || v != "from-file" {
		t.Fatalf("expected file value, got %q %v", v, err)
	}
}

func TestResolverMissingFile(t *testing.T) {
	t.Setenv("CODEX_TEST_KEY_FILE", filepath.Join(t.TempDir(), "missing"))
	if _, err := NewResolver(nil, 0).Get(context.Background(), "CODEX_TEST_KEY"); err == nil {
		t.Fatalf("expected error for missing secret file")
	}
}

func TestResolverCaches(t *testing.T) {
	c := cache.NewMemory()
	r := NewResolver(c, time.Minute)
	ctx := context.Background()

	t.Setenv("CODEX_TEST_KEY", "first")
	if v, _ := r.Get(ctx, "CODEX_TEST_KEY"); v != "first" {
		t.Fatalf("unexpected value %q", v)
	}
	t.Setenv("CODEX_TEST_KEY", "second")
	if v, _ := r.Get(ctx, "CODEX_TEST_KEY"); v != "first" {
		t.Fatalf("expected cached value, got %q", v)
	}
}
