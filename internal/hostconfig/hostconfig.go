// internal/hostconfig/hostconfig.go
//
// Host configuration adapter.
//
// Context
// -------
// The dispatch filter can be hosted two ways: as chi-style middleware in
// front of another handler, or as the terminal handler of a server.  Both
// need the same three things from whoever hosts them:
//
//   - named init parameters (exclusion patterns, reload flag, and so on),
//   - the list of parameter names, walked lazily, and
//   - the shared application-scope handle.
//
// HostConfig hides which of the two entry points is in play.  Adapters are
// read-only and hold no per-request state, so they are safe to share.
//
// Notes
// -----
// • Names are yielded in sorted order so init is deterministic.
// • Oxford commas, two spaces after periods.
package hostconfig

import (
	"iter"
	"maps"
	"slices"
)

// HostConfig is the read-only view of the hosting entry point.
type HostConfig interface {
	InitParameter(key string) (string, bool)
	InitParameterNames() iter.Seq[string]
	ApplicationContext() *Application
}

//
// MapConfig
//

// MapConfig serves init parameters from a plain map.  Used when the filter
// is embedded as middleware and the caller passes parameters directly.
type MapConfig struct {
	params map[string]string
	app    *Application
}

var _ HostConfig = (*MapConfig)(nil)

// NewMapConfig copies params so later caller mutation is not observed.
// A nil app is replaced with a fresh Application named "default".
func NewMapConfig(params map[string]string, app *Application) *MapConfig {
	if app == nil {
		app = NewApplication("default", "")
	}
	return &MapConfig{params: maps.Clone(params), app: app}
}

// InitParameter returns the value stored under key.
func (c *MapConfig) InitParameter(key string) (string, bool) {
	v, ok := c.params[key]
	return v, ok
}

// InitParameterNames yields every parameter name once, in sorted order.
func (c *MapConfig) InitParameterNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, k := range slices.Sorted(maps.Keys(c.params)) {
			if !yield(k) {
				return
			}
		}
	}
}

// ApplicationContext returns the shared application handle.
func (c *MapConfig) ApplicationContext() *Application { return c.app }
