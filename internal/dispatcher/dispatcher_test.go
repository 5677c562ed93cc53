package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/hostconfig"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
)

const routes = `
packages:
  - name: shop
    namespace: /shop
    extends: gate-default
    actions:
      - name: cart
      - name: broken
      - name: ghost
        handler: nowhere
`

func newDispatcher(t *testing.T, params map[string]string, reg *action.Registry) *Dispatcher {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.yaml"), []byte(routes), 0o644))

	all := map[string]string{"routes_file": "routes.yaml"}
	for k, v := range params {
		all[k] = v
	}
	host := hostconfig.NewMapConfig(all, hostconfig.NewApplication("test", dir))
	d := New(host, zap.NewNop().Sugar(), Options{Actions: reg})
	require.NoError(t, d.Init())
	t.Cleanup(d.Cleanup)
	return d
}

func scoped(r *http.Request) (*http.Request, *scope.Scope) {
	return scope.Attach(r)
}

func TestInit_FailsFastOnBrokenRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.yaml"), []byte("packages: [\n"), 0o644))
	host := hostconfig.NewMapConfig(map[string]string{"routes_file": "routes.yaml"}, hostconfig.NewApplication("bad", dir))

	err := New(host, zap.NewNop().Sugar(), Options{}).Init()
	var ce *configuration.ConfigurationError
	assert.True(t, errors.As(err, &ce), "got %v", err)
}

func TestRoutesFile_ResolvedAgainstRoot(t *testing.T) {
	host := hostconfig.NewMapConfig(nil, hostconfig.NewApplication("x", "/srv/app"))
	d := New(host, nil, Options{})
	assert.Equal(t, filepath.Join("/srv/app", DefaultRoutesFile), d.RoutesFile())
}

func TestPrepare_NegotiatesLocaleAndEncoding(t *testing.T) {
	d := newDispatcher(t, map[string]string{"locales": "en,fr"}, action.NewRegistry())

	r, sc := scoped(httptest.NewRequest(http.MethodPost, "/shop/cart", nil))
	r.Header.Set("Accept-Language", "fr-CA,fr;q=0.9,en;q=0.5")
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=ISO-8859-1")
	w := httptest.NewRecorder()
	d.Prepare(w, r)

	assert.Equal(t, "fr", Locale(r).String())
	assert.Equal(t, "fr", w.Header().Get("Content-Language"))
	assert.Equal(t, "ISO-8859-1", Encoding(r))

	enc, ok := sc.Attribute(EncodingKey)
	require.True(t, ok)
	assert.Equal(t, "ISO-8859-1", enc)
}

func TestPrepare_DefaultEncoding(t *testing.T) {
	d := newDispatcher(t, map[string]string{"encoding": "UTF-16"}, action.NewRegistry())
	r, _ := scoped(httptest.NewRequest(http.MethodGet, "/", nil))
	w := httptest.NewRecorder()
	d.Prepare(w, r)
	assert.Equal(t, "UTF-16", Encoding(r))
	assert.Empty(t, w.Header().Get("Content-Language"))
}

func TestWrapRequest_MultipartIsIdempotent(t *testing.T) {
	d := newDispatcher(t, nil, action.NewRegistry())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("name", "gate"))
	require.NoError(t, mw.Close())

	r, sc := scoped(httptest.NewRequest(http.MethodPost, "/upload", &body))
	r.Header.Set("Content-Type", mw.FormDataContentType())

	_, err := d.WrapRequest(r)
	require.NoError(t, err)
	first := Multipart(r)
	require.NotNil(t, first)

	_, err = d.WrapRequest(r)
	require.NoError(t, err)
	assert.Same(t, first, Multipart(r))

	form, err := first.Form()
	require.NoError(t, err)
	assert.Equal(t, []string{"gate"}, form.Value["name"])

	require.NoError(t, ReleaseRequest(sc))
	assert.Nil(t, Multipart(r))
}

func TestWrapRequest_MissingBoundary(t *testing.T) {
	d := newDispatcher(t, nil, action.NewRegistry())
	r, _ := scoped(httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x")))
	r.Header.Set("Content-Type", "multipart/form-data")

	_, err := d.WrapRequest(r)
	var we *WrapError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "multipart/form-data", we.ContentType)
	assert.Nil(t, Multipart(r))
}

func TestWrapRequest_PlainPassesThrough(t *testing.T) {
	d := newDispatcher(t, nil, action.NewRegistry())
	r, _ := scoped(httptest.NewRequest(http.MethodGet, "/", nil))
	out, err := d.WrapRequest(r)
	require.NoError(t, err)
	assert.Same(t, r, out)
	assert.Nil(t, Multipart(r))
}

func TestSendError_DevModeIncludesText(t *testing.T) {
	cause := errors.New("db exploded")

	prod := newDispatcher(t, nil, action.NewRegistry())
	w := httptest.NewRecorder()
	prod.SendError(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusInternalServerError, cause)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db exploded")

	dev := newDispatcher(t, map[string]string{"dev_mode": "true"}, action.NewRegistry())
	w = httptest.NewRecorder()
	dev.SendError(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusInternalServerError, cause)
	assert.Contains(t, w.Body.String(), "db exploded")
	assert.Equal(t, "text/plain; charset=UTF-8", w.Header().Get("Content-Type"))
}

func TestServiceAction_StatusMapping(t *testing.T) {
	reg := action.NewRegistry()
	reg.Register("cart", func(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error {
		_, _ = w.Write([]byte(ac.String(KeyRequestID)))
		return nil
	})
	reg.Register("broken", func(*scope.ActionContext, http.ResponseWriter, *http.Request) error {
		return errors.New("boom")
	})
	d := newDispatcher(t, nil, reg)
	cfg, err := d.Configuration()
	require.NoError(t, err)

	mapping := func(name string) *mapper.ActionMapping {
		a, ok := cfg.Action("/shop", name)
		require.True(t, ok, name)
		return &mapper.ActionMapping{Namespace: "/shop", Name: name, Method: a.Method, Action: a}
	}

	cases := []struct {
		name string
		code int
	}{
		{"cart", http.StatusOK},
		{"broken", http.StatusInternalServerError},
		{"ghost", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, sc := scoped(httptest.NewRequest(http.MethodGet, "/shop/"+tc.name, nil))
			w := httptest.NewRecorder()
			sc.Push(scope.NewActionContext(d.CreateContextMap(w, r, cfg)))
			err := d.ServiceAction(w, r, mapping(tc.name))
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.code != http.StatusOK, err != nil)
		})
	}
}

func TestCreateContextMap_Seeds(t *testing.T) {
	d := newDispatcher(t, nil, action.NewRegistry())
	cfg, err := d.Configuration()
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/shop/cart?q=1&q=2", nil)
	r = r.WithContext(contextWithReqID(r, "req-42"))
	w := httptest.NewRecorder()
	m := d.CreateContextMap(w, r, cfg)

	assert.Equal(t, "req-42", m[KeyRequestID])
	assert.Same(t, cfg, m[KeyConfiguration])
	assert.Same(t, d.Application(), m[KeyApplication])
	assert.Equal(t, map[string][]string{"q": {"1", "2"}}, m[KeyParams])
	assert.NotNil(t, m[KeyRequestInfo])

	m2 := d.CreateContextMap(w, httptest.NewRequest(http.MethodGet, "/", nil), cfg)
	assert.NotEmpty(t, m2[KeyRequestID])
	assert.NotEqual(t, "req-42", m2[KeyRequestID])
}

func TestForwardAndInclude_ReenterRoot(t *testing.T) {
	d := newDispatcher(t, nil, action.NewRegistry())

	var seen []string
	var scopes []*scope.Scope
	d.SetRoot(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, scope.RequestPath(r, ""))
		scopes = append(scopes, scope.FromContext(r.Context()))
	}))

	r, sc := scoped(httptest.NewRequest(http.MethodGet, "/outer", nil))
	w := httptest.NewRecorder()

	require.NoError(t, d.Forward(w, r, "/shop/cart?x=1"))
	require.NoError(t, d.Include(w, r, "/fragments/header"))

	assert.Equal(t, []string{"/shop/cart", "/fragments/header"}, seen)
	for _, s := range scopes {
		assert.Same(t, sc, s)
	}
	_, ok := sc.Attribute(scope.IncludeServletPathKey)
	assert.False(t, ok, "include path must be cleared afterwards")
	assert.Equal(t, "/outer", r.URL.Path)
}

func TestForward_WithoutRoot(t *testing.T) {
	d := New(nil, zap.NewNop().Sugar(), Options{})
	err := d.Forward(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), "/x")
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestFromRequest(t *testing.T) {
	d := New(nil, zap.NewNop().Sugar(), Options{})
	r, sc := scoped(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, FromRequest(r))
	sc.SetDispatcher(d)
	assert.Same(t, d, FromRequest(r))
}

func contextWithReqID(r *http.Request, id string) context.Context {
	return context.WithValue(r.Context(), middleware.RequestIDKey, id)
}
