package filter

import (
	"net/http"

	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
	"github.com/yanizio/gate/internal/static"
)

// ExecuteOperations runs whatever PrepareOperations resolved.
type ExecuteOperations struct {
	d      *dispatcher.Dispatcher
	static *static.Loader
}

func NewExecuteOperations(d *dispatcher.Dispatcher, loader *static.Loader) *ExecuteOperations {
	return &ExecuteOperations{d: d, static: loader}
}

// ExecuteStaticResourceRequest serves r from the static loader when its
// path falls under the static prefix.  It reports whether it answered.
func (e *ExecuteOperations) ExecuteStaticResourceRequest(w http.ResponseWriter, r *http.Request) bool {
	if e.static == nil {
		return false
	}
	p := scope.RequestPath(r, mapper.ContextPath(e.d.Manager().Current()))
	if !e.static.CanHandle(p) {
		return false
	}
	e.static.Serve(w, r, p)
	return true
}

// ExecuteAction hands m to the dispatcher.
func (e *ExecuteOperations) ExecuteAction(w http.ResponseWriter, r *http.Request, m *mapper.ActionMapping) error {
	return e.d.ServiceAction(w, r, m)
}
