package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aletheia-codex/backend/internal/cache"
	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/loader"
)

const page = `<!DOCTYPE html><html><head><title>Apple history</title></head><body>
<nav>Home | About | Contact</nav>
<article><h1>Apple history</h1>
<p>Steve Jobs co-founded Apple in Cupertino together with Steve Wozniak in 1976. The company started in a garage and grew into one of the largest technology firms in the world.</p>
<p>Jobs later returned to Apple in 1997 and led the launch of the iMac, the iPod and the iPhone, products that reshaped several industries over the following decade.</p>
</article>
<footer>Copyright</footer></body></html>`

func TestLoadTextHTML(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	l := NewLoader(NewLoaderParams{Client: srv.Client(), Cache: cache.NewMemory()})
	src := loader.Source{Type: loader.SourceTypeWeb, URL: srv.URL + "/apple"}

	got, err := l.LoadText(context.Background(), src)
	if err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	if !strings.Contains(string(got), "Steve Jobs co-founded Apple") {
		t.Fatalf("article text missing: %q", got)
	}

	if _, err := l.LoadText(context.Background(), src); err != nil {
		t.Fatalf("second LoadText failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached second load, got %d requests", hits.Load())
	}
}

func TestLoadTextPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	l := NewLoader(NewLoaderParams{Client: srv.Client()})
	got, err := l.LoadText(context.Background(), loader.Source{Type: loader.SourceTypeWeb, URL: srv.URL})
	if err != nil || string(got) != "plain body" {
		t.Fatalf("unexpected result: %q %v", got, err)
	}
}

func TestLoadTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(NewLoaderParams{Client: srv.Client()})
	if _, err := l.LoadText(context.Background(), loader.Source{URL: srv.URL}); err == nil {
		t.Fatalf("expected error for 404")
	}
	for _, u := range []string{"", "ftp://example.com/x", "/relative"} {
		if _, err := l.LoadText(context.Background(), loader.Source{URL: u}); !errors.Is(err, common.ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", u, err)
		}
	}
}
