package hostconfig

import "sync"

// Application is the shared application-scope handle.  One exists per
// hosted filter; every request sees the same instance.  Attributes are safe
// for concurrent use.
type Application struct {
	Name string // logical application name, used in logs
	Root string // filesystem root for relative resource paths

	attrs sync.Map
}

// NewApplication returns an Application with no attributes.
func NewApplication(name, root string) *Application {
	return &Application{Name: name, Root: root}
}

// Attribute returns the value stored under key.
func (a *Application) Attribute(key string) (any, bool) {
	return a.attrs.Load(key)
}

// SetAttribute stores v under key.  A nil v removes the key.
func (a *Application) SetAttribute(key string, v any) {
	if v == nil {
		a.attrs.Delete(key)
		return
	}
	a.attrs.Store(key, v)
}

// Attributes returns a point-in-time copy of every attribute.
func (a *Application) Attributes() map[string]any {
	out := make(map[string]any)
	a.attrs.Range(func(k, v any) bool {
		out[k.(string)] = v
		return true
	})
	return out
}
