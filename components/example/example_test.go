package example

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/requestinfo"
	"github.com/yanizio/gate/internal/scope"
)

func seeded(r *http.Request) *scope.ActionContext {
	return scope.NewActionContext(map[string]any{
		dispatcher.KeyRequestInfo: requestinfo.Collect(r),
		dispatcher.KeyRequestID:   "req-7",
	})
}

func TestHTML(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/example", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0")
	rec := httptest.NewRecorder()
	if err := HTML(seeded(r), rec, r); err != nil {
		t.Fatalf("HTML: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "req-7") || !strings.Contains(body, "Firefox") {
		t.Fatalf("unexpected body: %s", body)
	}
	if !strings.Contains(body, `lang="en"`) {
		t.Fatalf("default lang missing: %s", body)
	}
}

func TestJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/example", nil)
	rec := httptest.NewRecorder()
	if err := JSON(seeded(r), rec, r); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestMissingInfo(t *testing.T) {
	err := JSON(scope.NewActionContext(nil), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !errors.Is(err, action.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, ok := action.Default.Lookup(Name, "json"); !ok {
		t.Fatalf("json method not registered")
	}
}
