// internal/configuration/configuration.go
//
// Immutable configuration snapshot.
//
// Context
// -------
// A Configuration is produced by Build and published by the Manager through
// an atomic pointer.  Nothing mutates it after publication, so readers may
// hold the pointer for the whole request even while a reload swaps in a
// successor.  Destroy only flags the snapshot; in-flight readers keep
// working against the data they already have.
//
// Explicit action paths are compiled into a chi.Mux so path parameters use
// the same tree matcher as the outer router.
//
// Notes
// -----
//   • Namespace "" is the default namespace and acts as the fallback.
//   • Oxford commas, two spaces after periods.

package configuration

import (
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// Well-known constant keys.
const (
	ConstReloadConfigs = "reload_configs"
	ConstDevMode       = "dev_mode"
	ConstExtensions    = "extensions"
	ConstEncoding      = "encoding"
)

// Configuration is one folded, read-only view of every provider.
type Configuration struct {
	generation uint64
	loadedAt   time.Time

	constants   map[string]string
	packages    []Package
	byNamespace map[string]map[string]*Action
	namespaces  []string // longest first
	defaults    map[string]string

	router *chi.Mux
	routes map[string]map[string]*Action // pattern → verb ("*" any) → action

	destroyed atomic.Bool
}

// Generation increases by one for every snapshot a Manager publishes.
func (c *Configuration) Generation() uint64 { return c.generation }

func (c *Configuration) LoadedAt() time.Time { return c.loadedAt }

// Constant returns a folded constant.
func (c *Configuration) Constant(key string) (string, bool) {
	v, ok := c.constants[key]
	return v, ok
}

// Bool reads a constant as a boolean; anything but "true" is false.
func (c *Configuration) Bool(key string) bool {
	v := c.constants[key]
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// List reads a comma-separated constant.  Empty elements are kept so an
// extension list like "action," can express "no extension".
func (c *Configuration) List(key string) []string {
	v, ok := c.constants[key]
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Constants returns a copy of every constant.
func (c *Configuration) Constants() map[string]string { return maps.Clone(c.constants) }

// Packages returns the resolved packages in load order.
func (c *Configuration) Packages() []Package { return slices.Clone(c.packages) }

// Namespaces returns every namespace with at least one action, longest
// first, which is the order a prefix matcher should try them in.
func (c *Configuration) Namespaces() []string { return slices.Clone(c.namespaces) }

// Action looks up name in namespace only.
func (c *Configuration) Action(namespace, name string) (*Action, bool) {
	a, ok := c.byNamespace[namespace][name]
	return a, ok
}

// DefaultAction returns the default action name for namespace, taken from
// the first package in that namespace that declares or inherits one.
func (c *Configuration) DefaultAction(namespace string) (string, bool) {
	name, ok := c.defaults[namespace]
	return name, ok
}

// MatchPath runs method and path through the compiled explicit routes.
func (c *Configuration) MatchPath(method, path string) (*Action, map[string]string, bool) {
	if c.router == nil {
		return nil, nil, false
	}
	rctx := chi.NewRouteContext()
	if !c.router.Match(rctx, method, path) || len(rctx.RoutePatterns) == 0 {
		return nil, nil, false
	}
	verbs := c.routes[rctx.RoutePatterns[len(rctx.RoutePatterns)-1]]
	a, ok := verbs[method]
	if !ok {
		if a, ok = verbs["*"]; !ok {
			return nil, nil, false
		}
	}
	var params map[string]string
	if n := len(rctx.URLParams.Keys); n > 0 {
		params = make(map[string]string, n)
		for i, k := range rctx.URLParams.Keys {
			params[k] = rctx.URLParams.Values[i]
		}
	}
	return a, params, true
}

// Destroy flags the snapshot as retired.
func (c *Configuration) Destroy() { c.destroyed.Store(true) }

// Destroyed reports whether a reload or teardown retired this snapshot.
func (c *Configuration) Destroyed() bool { return c.destroyed.Load() }
