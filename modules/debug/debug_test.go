package debug

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
)

func TestHandler_EchoesContext(t *testing.T) {
	ac := scope.NewActionContext(map[string]any{
		dispatcher.KeyRequestID: "req-1",
		action.MappingKey:       &mapper.ActionMapping{Namespace: "/", Name: "debug", Method: "execute"},
	})
	rec := httptest.NewRecorder()
	if err := Handler(ac, rec, httptest.NewRequest(http.MethodGet, "/debug?x=1", nil)); err != nil {
		t.Fatalf("Handler: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["request_id"] != "req-1" || out["query"] != "x=1" {
		t.Fatalf("unexpected body: %v", out)
	}
	m, _ := out["mapping"].(map[string]any)
	if m["name"] != "debug" {
		t.Fatalf("mapping missing: %v", out)
	}
}

func TestRegistered(t *testing.T) {
	if _, ok := action.Default.Lookup(Name, ""); !ok {
		t.Fatalf("debug action not registered")
	}
}
