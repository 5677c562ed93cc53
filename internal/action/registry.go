// internal/action/registry.go
//
// A super-light registry: action packages call Register(name, handler) in
// an init() function.  The executor looks the mapped action's handler name
// up here and runs it.
//
// Handler signature:
//
//	func(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error
//
// This gives handlers access to the per-request ActionContext (request
// info, params, configuration snapshot) without reaching for globals.
package action

import (
	"errors"
	"net/http"
	"slices"
	"sync"

	"github.com/yanizio/gate/internal/scope"
)

// DefaultMethod is the method name used when a registration omits one.
const DefaultMethod = "execute"

// ErrNotFound is returned by handlers, and by the executor for unknown
// actions, when the target does not exist.  The dispatcher maps it to 404.
var ErrNotFound = errors.New("action: not found")

// Handler is what action packages register.
type Handler func(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error

type key struct{ name, method string }

// Registry maps handler names and methods to Handlers.  Safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[key]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[key]Handler{}}
}

// Register binds h to name's default method.
func (g *Registry) Register(name string, h Handler) {
	g.RegisterMethod(name, DefaultMethod, h)
}

// RegisterMethod binds h to name!method.  A later call replaces an earlier
// one.
func (g *Registry) RegisterMethod(name, method string, h Handler) {
	if method == "" {
		method = DefaultMethod
	}
	g.mu.Lock()
	g.handlers[key{name, method}] = h
	g.mu.Unlock()
}

// Lookup returns the handler for name!method.
func (g *Registry) Lookup(name, method string) (Handler, bool) {
	if method == "" {
		method = DefaultMethod
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.handlers[key{name, method}]
	return h, ok
}

// Names returns every registered handler name, sorted, without duplicates.
func (g *Registry) Names() []string {
	g.mu.RLock()
	out := make([]string, 0, len(g.handlers))
	for k := range g.handlers {
		out = append(out, k.name)
	}
	g.mu.RUnlock()
	slices.Sort(out)
	return slices.Compact(out)
}

// Default is the process-wide registry action packages register into.
var Default = NewRegistry()

// Register is called from action package init() functions.
func Register(name string, h Handler) { Default.Register(name, h) }

// RegisterMethod is Register for a named method.
func RegisterMethod(name, method string, h Handler) { Default.RegisterMethod(name, method, h) }
