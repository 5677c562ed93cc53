// modules/debug/debug.go
//
// Demo action that echoes what the dispatcher resolved for the request:
// mapping, configuration generation, request id, and user-agent data.
//
// Route file entry:
//
//	- name: debug
//	  namespace: /
//	  actions:
//	    - name: debug
package debug

import (
	"encoding/json"
	"net/http"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
)

// Name is the handler key the action registers under.
const Name = "debug"

func init() {
	action.Register(Name, Handler)
}

// Handler writes a JSON blob with selected context fields.
func Handler(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error {
	out := map[string]any{
		"path":       r.URL.Path,
		"query":      r.URL.RawQuery,
		"request_id": ac.String(dispatcher.KeyRequestID),
		"locale":     dispatcher.Locale(r).String(),
		"encoding":   dispatcher.Encoding(r),
	}
	if v, ok := ac.Get(dispatcher.KeyRequestInfo); ok {
		out["request_info"] = v
	}
	if v, ok := ac.Get(action.MappingKey); ok {
		if m, _ := v.(*mapper.ActionMapping); m != nil {
			out["mapping"] = map[string]any{
				"namespace": m.Namespace,
				"name":      m.Name,
				"method":    m.Method,
				"extension": m.Extension,
				"params":    m.Params,
			}
		}
	}
	if v, ok := ac.Get(dispatcher.KeyConfiguration); ok {
		if cfg, _ := v.(*configuration.Configuration); cfg != nil {
			out["configuration"] = map[string]any{
				"generation": cfg.Generation(),
				"loaded_at":  cfg.LoadedAt(),
				"namespaces": cfg.Namespaces(),
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
