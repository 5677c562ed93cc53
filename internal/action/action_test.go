package action

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	g := NewRegistry()
	called := ""
	g.Register("hello", func(*scope.ActionContext, http.ResponseWriter, *http.Request) error {
		called = "execute"
		return nil
	})
	g.RegisterMethod("hello", "save", func(*scope.ActionContext, http.ResponseWriter, *http.Request) error {
		called = "save"
		return nil
	})

	h, ok := g.Lookup("hello", "")
	require.True(t, ok)
	require.NoError(t, h(nil, nil, nil))
	assert.Equal(t, "execute", called)

	h, ok = g.Lookup("hello", "save")
	require.True(t, ok)
	require.NoError(t, h(nil, nil, nil))
	assert.Equal(t, "save", called)

	_, ok = g.Lookup("hello", "delete")
	assert.False(t, ok)
	assert.Equal(t, []string{"hello"}, g.Names())
}

func TestExecutor_UsesHandlerName(t *testing.T) {
	g := NewRegistry()
	g.Register("shop.Cart", func(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusAccepted)
		return nil
	})

	m := &mapper.ActionMapping{
		Namespace: "/shop",
		Name:      "cart",
		Method:    DefaultMethod,
		Action:    &configuration.Action{Name: "cart", Handler: "shop.Cart"},
	}
	ac := scope.NewActionContext(nil)
	rec := httptest.NewRecorder()

	require.NoError(t, NewExecutor(g).Execute(ac, rec, httptest.NewRequest(http.MethodGet, "/shop/cart", nil), m))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	got, ok := ac.Get(MappingKey)
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestExecutor_UnknownHandler(t *testing.T) {
	m := &mapper.ActionMapping{Namespace: "/", Name: "missing", Method: DefaultMethod}
	err := NewExecutor(NewRegistry()).Execute(scope.NewActionContext(nil), httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/missing", nil), m)
	assert.True(t, errors.Is(err, ErrNotFound))
}
