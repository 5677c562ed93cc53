package action

import (
	"fmt"
	"net/http"

	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
)

// MappingKey is the ActionContext key the executor stores the running
// mapping under.
const MappingKey = "gate.action.mapping"

// Executor runs mapped actions out of a Registry.
type Executor struct {
	reg *Registry
}

// NewExecutor returns an executor over reg; nil uses Default.
func NewExecutor(reg *Registry) *Executor {
	if reg == nil {
		reg = Default
	}
	return &Executor{reg: reg}
}

// Execute resolves m to a handler and runs it.  Unknown handlers wrap
// ErrNotFound.
func (e *Executor) Execute(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request, m *mapper.ActionMapping) error {
	name := m.Name
	if m.Action != nil && m.Action.Handler != "" {
		name = m.Action.Handler
	}
	h, ok := e.reg.Lookup(name, m.Method)
	if !ok {
		return fmt.Errorf("%w: %s!%s (namespace %q)", ErrNotFound, name, m.Method, m.Namespace)
	}
	ac.Put(MappingKey, m)
	return h(ac, w, r)
}
