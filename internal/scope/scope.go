// internal/scope/scope.go
//
// Per-request scope.
//
// Context
// -------
// A Scope is created once per physical request and travels in r.Context().
// Forwards and includes re-enter the dispatch filter with the same request
// context, so they find the same Scope and nest inside it.  It carries:
//
//   • request attributes  – the recursion counter, cached action mapping,
//                           include path, and anything collaborators set,
//   • an ActionContext stack – the top is the current context,
//   • the dispatcher bound for this request.
//
// Nothing here is shared between requests.  A Scope is normally touched by
// one goroutine, but the mutex keeps helper goroutines a handler spawns
// honest.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package scope

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Fixed request attribute keys.
const (
	RecursionCounterKey   = "__cleanup_recursion_counter"
	ActionMappingKey      = "gate.actionMapping"
	IncludeServletPathKey = "gate.include.servlet_path"
	IncludeQueryStringKey = "gate.include.query_string"
)

type ctxKey struct{} // unexported, collision-proof

// Scope holds request attributes, bound action contexts, and the bound
// dispatcher for one request.
type Scope struct {
	mu         sync.Mutex
	attrs      map[string]any
	contexts   []*ActionContext
	dispatcher any
}

// New returns an empty Scope.
func New() *Scope { return &Scope{attrs: map[string]any{}} }

// FromContext returns the Scope stored by Attach, or nil.
func FromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(ctxKey{}).(*Scope)
	return s
}

// WithScope returns ctx carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// Attach returns r unchanged when it already carries a Scope, otherwise a
// shallow copy of r carrying a fresh one.
func Attach(r *http.Request) (*http.Request, *Scope) {
	if s := FromContext(r.Context()); s != nil {
		return r, s
	}
	s := New()
	return r.WithContext(WithScope(r.Context(), s)), s
}

/*──────────────────────────── attributes ──────────────────────────────────*/

func (s *Scope) Attribute(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

// SetAttribute stores v under key.  A nil v is stored, not deleted, so a
// cached "no mapping" stays distinguishable from "never looked".
func (s *Scope) SetAttribute(key string, v any) {
	s.mu.Lock()
	s.attrs[key] = v
	s.mu.Unlock()
}

func (s *Scope) RemoveAttribute(key string) {
	s.mu.Lock()
	delete(s.attrs, key)
	s.mu.Unlock()
}

// Counter reads an int attribute; absent or non-int reads as zero.
func (s *Scope) Counter(key string) int {
	v, _ := s.Attribute(key)
	n, _ := v.(int)
	return n
}

// AddCounter adds delta to the int attribute key and returns the result.
func (s *Scope) AddCounter(key string, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, _ := s.attrs[key].(int)
	n += delta
	s.attrs[key] = n
	return n
}

/*──────────────────────────── action contexts ─────────────────────────────*/

// Current returns the bound ActionContext, or nil.
func (s *Scope) Current() *ActionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.contexts) == 0 {
		return nil
	}
	return s.contexts[len(s.contexts)-1]
}

// Push binds ac as the current context.
func (s *Scope) Push(ac *ActionContext) {
	s.mu.Lock()
	s.contexts = append(s.contexts, ac)
	s.mu.Unlock()
}

// Pop unbinds the current context and returns it.  The previous one, if
// any, becomes current again.
func (s *Scope) Pop() *ActionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.contexts)
	if n == 0 {
		return nil
	}
	ac := s.contexts[n-1]
	s.contexts[n-1] = nil
	s.contexts = s.contexts[:n-1]
	return ac
}

// Depth reports how many contexts are bound.
func (s *Scope) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

// ClearContexts unbinds every context.
func (s *Scope) ClearContexts() {
	s.mu.Lock()
	clear(s.contexts)
	s.contexts = nil
	s.mu.Unlock()
}

/*──────────────────────────── dispatcher slot ─────────────────────────────*/

func (s *Scope) Dispatcher() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatcher
}

func (s *Scope) SetDispatcher(d any) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

/*──────────────────────────── path resolution ─────────────────────────────*/

// RequestPath resolves the path the dispatcher should match: the include
// path attribute when an include is in progress, then the chi route path
// when mounted under a sub-router, then the URL path minus contextPath.
func RequestPath(r *http.Request, contextPath string) string {
	if s := FromContext(r.Context()); s != nil {
		if v, ok := s.Attribute(IncludeServletPathKey); ok {
			if p, _ := v.(string); p != "" {
				return p
			}
		}
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		return rctx.RoutePath
	}
	p := r.URL.Path
	if cp := strings.TrimSuffix(contextPath, "/"); cp != "" {
		// only on a segment boundary: /app owns /app/x, not /apple
		if p == cp || strings.HasPrefix(p, cp+"/") {
			p = p[len(cp):]
		}
	}
	if p == "" {
		p = "/"
	}
	return p
}
