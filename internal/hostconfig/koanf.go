// internal/hostconfig/koanf.go
//
// KoanfConfig reads init parameters from a subtree of the process settings
// tree built by internal/config.  This is the entry point cmd/web uses when
// the filter is the terminal handler of the server.
//
// Nested keys are flattened with "_" (static.prefix → static_prefix) and
// list values are joined with "," so consumers see plain strings.

package hostconfig

import (
	"fmt"
	"iter"
	"strings"

	koanf "github.com/knadh/koanf/v2"
)

// KoanfConfig adapts a *koanf.Koanf subtree to HostConfig.
type KoanfConfig struct {
	k   *koanf.Koanf
	app *Application
}

var _ HostConfig = (*KoanfConfig)(nil)

// NewKoanfConfig cuts prefix out of k.  An empty prefix uses the whole tree.
func NewKoanfConfig(k *koanf.Koanf, prefix string, app *Application) *KoanfConfig {
	if prefix != "" {
		k = k.Cut(prefix)
	}
	if app == nil {
		app = NewApplication("default", "")
	}
	return &KoanfConfig{k: k, app: app}
}

// InitParameter resolves key, accepting both "a_b" and "a.b" spellings.
func (c *KoanfConfig) InitParameter(key string) (string, bool) {
	path := key
	if !c.k.Exists(path) {
		path = strings.ReplaceAll(key, "_", ".")
		if !c.k.Exists(path) {
			return "", false
		}
	}
	return stringify(c.k.Get(path)), true
}

// InitParameterNames yields flattened leaf keys in koanf's sorted order.
func (c *KoanfConfig) InitParameterNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, k := range c.k.Keys() {
			if !yield(strings.ReplaceAll(k, ".", "_")) {
				return
			}
		}
	}
}

// ApplicationContext returns the shared application handle.
func (c *KoanfConfig) ApplicationContext() *Application { return c.app }

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
