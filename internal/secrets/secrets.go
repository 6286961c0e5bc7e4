// Package secrets resolves credentials from the environment. A secret NAME
// is read from $NAME, or from the file named by $NAME_FILE for mounted
// secrets. Resolved values are kept in the injected cache.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/internal/util"
)

const DefaultTTL = 5 * time.Minute

type Resolver struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewResolver returns a resolver caching values in c for ttl. A nil cache
// disables caching.
func NewResolver(c cache.Cache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{cache: c, ttl: ttl}
}

// Get returns the secret name. A missing secret is an empty string.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	return cache.GetOrLoad(ctx, r.cache, "secrets", "secret:"+name, r.ttl, func(ctx context.Context) (string, error) {
		return lookup(name)
	})
}

func lookup(name string) (string, error) {
	if v := util.GetEnv(name); v != "" {
		return v, nil
	}
	path := util.GetEnv(name + "_FILE")
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(raw)), nil
}
