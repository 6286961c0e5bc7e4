// Package web fetches pages and reduces HTML to its article text.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/loader"
	"github.com/aletheia-codex/backend/pkg/logger"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"
)

const (
	maxBodyBytes    = loader.MaxTextBytes
	defaultCacheTTL = time.Hour
)

// Loader downloads web sources. Concurrent loads of one URL share a single
// request and results are kept in the optional cache.
type Loader struct {
	client *http.Client
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
}

type NewLoaderParams struct {
	Client   *http.Client
	Cache    cache.Cache
	CacheTTL time.Duration
}

func NewLoader(params NewLoaderParams) *Loader {
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Loader{client: client, cache: params.Cache, ttl: ttl}
}

func (l *Loader) LoadText(ctx context.Context, src loader.Source) ([]byte, error) {
	u, err := url.Parse(src.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, common.NewValidationError("source_url", "must be an absolute http(s) url")
	}

	key := u.String()
	result, err, shared := l.group.Do(key, func() (any, error) {
		return cache.GetOrLoad(ctx, l.cache, "web", "web:"+key, l.ttl, func(ctx context.Context) (string, error) {
			return l.fetch(ctx, u)
		})
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("[Loader] Shared in-flight fetch", "url", key)
	}
	return []byte(result.(string)), nil
}

func (l *Loader) fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		article, err := readability.FromReader(body, u)
		if err != nil {
			return "", fmt.Errorf("failed to parse html: %w", err)
		}
		var sb strings.Builder
		if err := article.RenderText(&sb); err != nil {
			return "", fmt.Errorf("failed to render article text: %w", err)
		}
		return sb.String(), nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
