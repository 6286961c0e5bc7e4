package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreExposed(t *testing.T) {
	ReviewTransitions.WithLabelValues("entity", "approved", "manual").Inc()
	if got := testutil.ToFloat64(ReviewTransitions.WithLabelValues("entity", "approved", "manual")); got < 1 {
		t.Fatalf("expected counter to be incremented, got %v", got)
	}

	e := echo.New()
	e.GET("/metrics", Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "codex_review_transitions_total") {
		t.Fatalf("metric missing from exposition")
	}
}
