package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/requestinfo"
	"github.com/yanizio/gate/internal/scope"
)

// ActionContext keys seeded by CreateContextMap.
const (
	KeyRequest       = "gate.request"
	KeyResponse      = "gate.response"
	KeyApplication   = "gate.application"
	KeyConfiguration = "gate.configuration"
	KeyLocale        = "gate.locale"
	KeyParams        = "gate.params"
	KeyRequestInfo   = "gate.requestInfo"
	KeyRequestID     = "request_id"
	KeyActionParams  = "gate.action.params"
)

// ErrNoRoot is returned by Forward and Include before a root handler is set.
var ErrNoRoot = errors.New("dispatcher: no root handler for forward/include")

// CreateContextMap builds the seed of a fresh ActionContext for r.
func (d *Dispatcher) CreateContextMap(w http.ResponseWriter, r *http.Request, cfg *configuration.Configuration) map[string]any {
	reqID := middleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}
	params := map[string][]string(r.URL.Query())

	return map[string]any{
		KeyRequest:       r,
		KeyResponse:      w,
		KeyApplication:   d.app,
		KeyConfiguration: cfg,
		KeyLocale:        Locale(r),
		KeyParams:        params,
		KeyRequestInfo:   requestinfo.Collect(r),
		KeyRequestID:     reqID,
	}
}

// ServiceAction executes m against the request's current ActionContext.
// Failures are logged and answered through SendError; the error is
// returned for the caller's bookkeeping.
func (d *Dispatcher) ServiceAction(w http.ResponseWriter, r *http.Request, m *mapper.ActionMapping) error {
	sc := scope.FromContext(r.Context())
	var ac *scope.ActionContext
	if sc != nil {
		ac = sc.Current()
	}
	if ac == nil {
		cfg, _ := d.Configuration()
		ac = scope.NewActionContext(d.CreateContextMap(w, r, cfg))
	}
	if len(m.Params) > 0 {
		ac.Put(KeyActionParams, m.Params)
	}

	err := d.exec.Execute(ac, w, r, m)
	if err == nil {
		return nil
	}
	code := http.StatusInternalServerError
	if errors.Is(err, action.ErrNotFound) {
		code = http.StatusNotFound
	}
	d.log.Errorw("action failed",
		"namespace", m.Namespace,
		"action", m.Name,
		"method", m.Method,
		"path", r.URL.Path,
		"err", err,
	)
	d.SendError(w, r, code, err)
	return err
}

// SendError writes a plain-text error response.  In dev mode the body
// carries the error text.
func (d *Dispatcher) SendError(w http.ResponseWriter, r *http.Request, code int, err error) {
	body := http.StatusText(code)
	if err != nil && d.DevMode() {
		body = fmt.Sprintf("%s: %v", body, err)
	}
	enc := Encoding(r)
	if enc == "" {
		enc = d.current().encoding
	}
	w.Header().Set("Content-Type", "text/plain; charset="+enc)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = fmt.Fprintln(w, body)
}

/*──────────────────────────── forward / include ───────────────────────────*/

// Forward re-dispatches r to target through the root handler.  The request
// keeps its scope, so the nested pass shares attributes and cleanup with
// the outer one.
func (d *Dispatcher) Forward(w http.ResponseWriter, r *http.Request, target string) error {
	root := d.rootHandler()
	if root == nil {
		return ErrNoRoot
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("dispatcher: forward %q: %w", target, err)
	}
	r2 := reenter(r)
	r2.URL = r.URL.ResolveReference(u)
	r2.RequestURI = r2.URL.RequestURI()
	root.ServeHTTP(w, r2)
	return nil
}

// Include dispatches target through the root handler while leaving the
// request path alone.  The target path is visible to the mapper through the
// include path attribute for the duration of the call.  A query on target
// is published as the include query attribute and its parameters are added
// to the nested request's query, ahead of the original values.
func (d *Dispatcher) Include(w http.ResponseWriter, r *http.Request, target string) error {
	root := d.rootHandler()
	if root == nil {
		return ErrNoRoot
	}
	sc := scope.FromContext(r.Context())
	if sc == nil {
		return errors.New("dispatcher: include outside a dispatched request")
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("dispatcher: include %q: %w", target, err)
	}
	u = r.URL.ResolveReference(u)

	restore := setAttrs(sc, map[string]string{
		scope.IncludeServletPathKey: u.Path,
		scope.IncludeQueryStringKey: u.RawQuery,
	})
	defer restore()

	r2 := reenter(r)
	if u.RawQuery != "" {
		q := r2.URL.Query()
		for k, vs := range u.Query() {
			q[k] = append(vs, q[k]...)
		}
		r2.URL.RawQuery = q.Encode()
		r2.Form = nil // re-parse with the merged query
	}
	root.ServeHTTP(w, r2)
	return nil
}

// setAttrs sets each non-empty value on sc and returns a func that puts
// the previous values back.
func setAttrs(sc *scope.Scope, vals map[string]string) func() {
	type saved struct {
		v   any
		had bool
	}
	prev := make(map[string]saved, len(vals))
	for k, v := range vals {
		old, had := sc.Attribute(k)
		prev[k] = saved{old, had}
		if v == "" {
			sc.RemoveAttribute(k)
			continue
		}
		sc.SetAttribute(k, v)
	}
	return func() {
		for k, s := range prev {
			if s.had {
				sc.SetAttribute(k, s.v)
			} else {
				sc.RemoveAttribute(k)
			}
		}
	}
}

// reenter clones r with chi's routing context cleared, so a root chi.Mux
// routes the nested pass from scratch.
func reenter(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, (*chi.Context)(nil))
	return r.Clone(ctx)
}
