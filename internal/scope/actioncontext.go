package scope

import (
	"maps"
	"sync"
)

// ActionContext is the per-request value map handed to actions.
type ActionContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewActionContext returns a context seeded with a copy of seed.
func NewActionContext(seed map[string]any) *ActionContext {
	values := maps.Clone(seed)
	if values == nil {
		values = map[string]any{}
	}
	return &ActionContext{values: values}
}

func (c *ActionContext) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (c *ActionContext) String(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

func (c *ActionContext) Put(key string, v any) {
	c.mu.Lock()
	c.values[key] = v
	c.mu.Unlock()
}

func (c *ActionContext) Remove(key string) {
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
}

// Values returns a snapshot of every entry.
func (c *ActionContext) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

// Clone returns a new context holding the same entries.  Values are shared;
// the map is not.
func (c *ActionContext) Clone() *ActionContext {
	return &ActionContext{values: c.Values()}
}
