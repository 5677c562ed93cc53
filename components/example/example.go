// components/example/example.go
//
// Example actions that show the request's UA, IP, and Geo details.
//
//	example          – HTML page
//	example!json     – the same data as JSON
//
// Route file entry:
//
//	- name: example
//	  namespace: /
//	  actions:
//	    - name: example
//	    - name: example-api
//	      handler: example
//	      method: json
//	      path: /api/example
//	      methods: [GET]
package example

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/requestinfo"
	"github.com/yanizio/gate/internal/scope"
)

// Name is the handler key both methods register under.
const Name = "example"

var page = template.Must(template.New("example").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head><title>Example – Request Info</title></head>
<body>
  <h1>Request Details</h1>
  <ul>
    <li><strong>Request:</strong> {{.RequestID}}</li>
    <li><strong>IP:</strong> {{.IP}}</li>
    <li><strong>Country:</strong> {{.Country}}</li>
    <li><strong>City:</strong> {{.City}}</li>
    <li><strong>Browser:</strong> {{.Browser}} ({{.Device}})</li>
    <li><strong>OS:</strong> {{.OS}} {{.OSVer}}</li>
    <li><strong>Bot:</strong> {{.IsBot}}</li>
  </ul>
</body>
</html>`))

func init() {
	action.Register(Name, HTML)
	action.RegisterMethod(Name, "json", JSON)
}

func info(ac *scope.ActionContext) (*requestinfo.RequestInfo, error) {
	v, _ := ac.Get(dispatcher.KeyRequestInfo)
	ri, _ := v.(*requestinfo.RequestInfo)
	if ri == nil {
		return nil, action.ErrNotFound
	}
	return ri, nil
}

// HTML renders the request details page.
func HTML(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error {
	ri, err := info(ac)
	if err != nil {
		return err
	}
	lang := dispatcher.Locale(r).String()
	if lang == "und" {
		lang = "en"
	}
	data := map[string]any{
		"Lang":      lang,
		"RequestID": ac.String(dispatcher.KeyRequestID),
		"IP":        ri.Geo.IP,
		"Country":   ri.Geo.CountryISO,
		"City":      ri.Geo.City,
		"Browser":   ri.UA.Browser,
		"Device":    ri.UA.Device,
		"OS":        ri.UA.OS,
		"OSVer":     ri.UA.OSVersion,
		"IsBot":     ri.UA.IsBot,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return page.Execute(w, data)
}

// JSON writes the raw RequestInfo.
func JSON(ac *scope.ActionContext, w http.ResponseWriter, r *http.Request) error {
	ri, err := info(ac)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(ri)
}
