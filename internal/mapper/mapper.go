// internal/mapper/mapper.go
//
// Action mapping contract and the default mapper.
//
// Context
// -------
// An ActionMapper turns a request plus the current Configuration into an
// ActionMapping, or nil when the request is not an action.  The dispatch
// filter caches the result on the request scope, so a mapper runs at most
// once per request unless a caller forces a fresh lookup.
//
// DefaultMapper resolves in two steps:
//
//   1. Explicit paths compiled from action `path` entries (chi tree).
//   2. Convention: `<namespace>/<name>[!method][.ext]`, with the allowed
//      extensions taken from the `extensions` constant.  A namespace with
//      no such action falls back to the default namespace "".
//
// Decisions are memoised per configuration snapshot in an LRU.
//
// Notes
// -----
//   • ActionMapping values are shared; treat Params as read-only.
//   • Oxford commas, two spaces after periods.

package mapper

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/yanizio/gate/internal/cache"
	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/scope"
)

// Constants read by DefaultMapper.
const (
	ConstContextPath   = "context_path"
	ConstDynamicMethod = "dynamic_method"
)

// DefaultCacheSize bounds the memo.
const DefaultCacheSize = 4096

// ErrNoConfiguration is returned when a mapper is called without a snapshot.
var ErrNoConfiguration = errors.New("mapper: no configuration")

// ActionMapping is a resolved routing decision.
type ActionMapping struct {
	Namespace string
	Name      string
	Method    string
	Params    map[string]string
	Extension string
	Action    *configuration.Action
}

// ActionMapper resolves a request to an ActionMapping.  (nil, nil) means
// "not an action".
type ActionMapper interface {
	Mapping(r *http.Request, cfg *configuration.Configuration) (*ActionMapping, error)
}

// MapperFunc adapts a function to ActionMapper.
type MapperFunc func(r *http.Request, cfg *configuration.Configuration) (*ActionMapping, error)

func (f MapperFunc) Mapping(r *http.Request, cfg *configuration.Configuration) (*ActionMapping, error) {
	return f(r, cfg)
}

// ContextPath reads the context_path constant, "" when unset.
func ContextPath(cfg *configuration.Configuration) string {
	if cfg == nil {
		return ""
	}
	v, _ := cfg.Constant(ConstContextPath)
	return v
}

type memoKey struct {
	cfg    *configuration.Configuration
	method string
	path   string
}

// DefaultMapper is safe for concurrent use.
type DefaultMapper struct {
	memo *cache.LRU[memoKey, *ActionMapping]
	last atomic.Pointer[configuration.Configuration]
}

// NewDefaultMapper returns a mapper with a memo of size entries.  size < 1
// uses DefaultCacheSize.
func NewDefaultMapper(size int) *DefaultMapper {
	if size < 1 {
		size = DefaultCacheSize
	}
	return &DefaultMapper{memo: cache.New[memoKey, *ActionMapping](size)}
}

var methodName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (m *DefaultMapper) Mapping(r *http.Request, cfg *configuration.Configuration) (*ActionMapping, error) {
	if cfg == nil {
		return nil, ErrNoConfiguration
	}
	if m.last.Swap(cfg) != cfg {
		// entries for the old snapshot can never hit again
		m.memo.Purge()
	}

	uri := scope.RequestPath(r, ContextPath(cfg))
	key := memoKey{cfg: cfg, method: r.Method, path: uri}
	if am, ok := m.memo.Get(key); ok {
		return am, nil
	}

	am, err := resolve(r.Method, uri, cfg)
	if err != nil {
		return nil, err
	}
	m.memo.Add(key, am)
	return am, nil
}

func resolve(method, uri string, cfg *configuration.Configuration) (*ActionMapping, error) {
	if strings.Contains(uri, "..") {
		return nil, fmt.Errorf("mapper: refusing path %q", uri)
	}

	if a, params, ok := cfg.MatchPath(method, uri); ok {
		merged := maps.Clone(a.Params)
		if merged == nil && params != nil {
			merged = map[string]string{}
		}
		maps.Copy(merged, params)
		return &ActionMapping{
			Namespace: a.Namespace,
			Name:      a.Name,
			Method:    a.Method,
			Params:    merged,
			Action:    a,
		}, nil
	}

	stem, ext, ok := splitExtension(uri, cfg.List(configuration.ConstExtensions))
	if !ok {
		return nil, nil
	}

	slash := strings.LastIndex(stem, "/")
	if slash < 0 {
		return nil, nil
	}
	ns, name := stem[:slash], stem[slash+1:]
	if ns == "" {
		ns = "/"
	}

	var dynMethod string
	if cfg.Bool(ConstDynamicMethod) {
		if i := strings.IndexByte(name, '!'); i >= 0 {
			name, dynMethod = name[:i], name[i+1:]
			if !methodName.MatchString(dynMethod) {
				return nil, fmt.Errorf("mapper: invalid method %q in %q", dynMethod, uri)
			}
		}
	}

	for _, candidate := range []string{ns, ""} {
		n := name
		if n == "" {
			def, ok := cfg.DefaultAction(candidate)
			if !ok {
				continue
			}
			n = def
		}
		a, ok := cfg.Action(candidate, n)
		if !ok {
			continue
		}
		method := a.Method
		if dynMethod != "" {
			method = dynMethod
		}
		return &ActionMapping{
			Namespace: a.Namespace,
			Name:      a.Name,
			Method:    method,
			Params:    maps.Clone(a.Params),
			Extension: ext,
			Action:    a,
		}, nil
	}
	return nil, nil
}

// splitExtension strips an allowed extension from the last path segment.
// An empty entry in allowed permits extension-less names.  ok is false when
// the segment's extension is not allowed, which usually means a static file.
func splitExtension(uri string, allowed []string) (stem, ext string, ok bool) {
	if allowed == nil {
		allowed = []string{""}
	}
	last := uri[strings.LastIndex(uri, "/")+1:]
	dot := strings.LastIndexByte(last, '.')
	if dot < 0 {
		return uri, "", slices.Contains(allowed, "")
	}
	ext = last[dot+1:]
	if !slices.Contains(allowed, ext) || ext == "" {
		return "", "", false
	}
	return strings.TrimSuffix(uri, "."+ext), ext, true
}
