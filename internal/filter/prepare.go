// internal/filter/prepare.go
//
// Per-request lifecycle operations.
//
// Context
// -------
// PrepareOperations owns everything that happens to a request before an
// action or static resource runs, plus the cleanup afterwards:
//
//   1. CreateActionContext bumps the recursion counter and binds a context.
//      A nested pass (forward or include) gets a copy of the outer context.
//   2. AssignDispatcherToScope binds the dispatcher.
//   3. SetEncodingAndLocale and WrapRequest delegate to the dispatcher.
//   4. FindActionMapping resolves and caches the mapping on the scope.
//   5. CleanupRequest undoes one level; only the outermost level tears the
//      scope down.
//
// Every operation expects r to carry a scope.Scope (see scope.Attach).
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package filter

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/metrics"
	"github.com/yanizio/gate/internal/scope"
)

// ErrDispatcherNotInitialized is returned when cleanup runs before Init.
var ErrDispatcherNotInitialized = errors.New("filter: dispatcher is not initialized")

// ResolutionError reports a mapper failure.  The 500 has already been sent
// when a caller sees it.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("filter: resolve %s: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PrepareOperations is safe for concurrent use; all request state lives on
// the request scope.
type PrepareOperations struct {
	d   *dispatcher.Dispatcher
	log *zap.SugaredLogger
}

func NewPrepareOperations(d *dispatcher.Dispatcher) *PrepareOperations {
	p := &PrepareOperations{d: d, log: zap.S()}
	if d != nil {
		p.log = d.Log()
	}
	return p
}

func mustScope(r *http.Request) *scope.Scope {
	sc := scope.FromContext(r.Context())
	if sc == nil {
		panic("filter: request has no scope; wrap it with scope.Attach")
	}
	return sc
}

// CreateActionContext increments the recursion counter and binds an
// ActionContext: a copy of the current one when nested, otherwise a fresh
// one seeded by the dispatcher.
func (p *PrepareOperations) CreateActionContext(w http.ResponseWriter, r *http.Request) *scope.ActionContext {
	sc := mustScope(r)
	if sc.AddCounter(scope.RecursionCounterKey, 1) == 1 {
		metrics.ActiveContexts.Inc()
	}

	var ac *scope.ActionContext
	if outer := sc.Current(); outer != nil {
		ac = outer.Clone()
	} else {
		cfg, err := p.d.Configuration()
		if err != nil {
			p.log.Errorw("configuration unavailable", "path", r.URL.Path, "err", err)
		}
		ac = scope.NewActionContext(p.d.CreateContextMap(w, r, cfg))
	}
	sc.Push(ac)
	return ac
}

// AssignDispatcherToScope binds the dispatcher for dispatcher.FromRequest.
func (p *PrepareOperations) AssignDispatcherToScope(r *http.Request) {
	mustScope(r).SetDispatcher(p.d)
}

func (p *PrepareOperations) SetEncodingAndLocale(w http.ResponseWriter, r *http.Request) {
	p.d.Prepare(w, r)
}

func (p *PrepareOperations) WrapRequest(r *http.Request) (*http.Request, error) {
	return p.d.WrapRequest(r)
}

// FindActionMapping returns the mapping cached on the scope, resolving it
// when absent or when force is set.  A nil mapping is cached too.  On a
// mapper failure a 500 is sent and a *ResolutionError returned.
func (p *PrepareOperations) FindActionMapping(w http.ResponseWriter, r *http.Request, force bool) (*mapper.ActionMapping, error) {
	sc := mustScope(r)
	if !force {
		if v, ok := sc.Attribute(scope.ActionMappingKey); ok {
			m, _ := v.(*mapper.ActionMapping)
			return m, nil
		}
	}

	m, err := p.resolve(r)
	if err != nil {
		metrics.MappingErrorsTotal.Inc()
		p.log.Errorw("action mapping failed", "path", r.URL.Path, "err", err)
		p.d.SendError(w, r, http.StatusInternalServerError, err)
		return nil, &ResolutionError{Path: r.URL.Path, Err: err}
	}
	sc.SetAttribute(scope.ActionMappingKey, m)
	return m, nil
}

// resolve maps r against the snapshot the current ActionContext was seeded
// with, so one pass polls for reload once and maps against the same
// configuration its context carries.
func (p *PrepareOperations) resolve(r *http.Request) (*mapper.ActionMapping, error) {
	cfg := seeded(r)
	if cfg == nil {
		var err error
		if cfg, err = p.d.Configuration(); err != nil {
			return nil, err
		}
	}
	return p.d.Mapper().Mapping(r, cfg)
}

func seeded(r *http.Request) *configuration.Configuration {
	sc := scope.FromContext(r.Context())
	if sc == nil || sc.Current() == nil {
		return nil
	}
	v, _ := sc.Current().Get(dispatcher.KeyConfiguration)
	cfg, _ := v.(*configuration.Configuration)
	return cfg
}

// CleanupRequest undoes one CreateActionContext.  While the counter stays
// positive only this level's context is unbound; at zero every context,
// the dispatcher, and any multipart state are released.
func (p *PrepareOperations) CleanupRequest(r *http.Request) {
	sc := mustScope(r)
	n := sc.AddCounter(scope.RecursionCounterKey, -1)
	if n > 0 {
		sc.Pop()
		p.log.Debugw("skipping cleanup", "counter", n)
		return
	}
	if n == 0 {
		metrics.ActiveContexts.Dec()
	} else {
		sc.SetAttribute(scope.RecursionCounterKey, 0)
	}
	sc.ClearContexts()
	sc.SetDispatcher(nil)
	if err := dispatcher.ReleaseRequest(sc); err != nil {
		p.log.Warnw("releasing multipart state", "err", err)
	}
}

// CleanupDispatcher tears the dispatcher down.
func (p *PrepareOperations) CleanupDispatcher() error {
	if p == nil || p.d == nil {
		return ErrDispatcherNotInitialized
	}
	p.d.Cleanup()
	return nil
}

// IsURLExcluded reports whether the request path fully matches any of
// patterns.  Patterns come from BuildExcludedPatterns, which anchors them.
func (p *PrepareOperations) IsURLExcluded(r *http.Request, patterns []*regexp.Regexp) bool {
	if len(patterns) == 0 {
		return false
	}
	uri := scope.RequestPath(r, mapper.ContextPath(p.d.Manager().Current()))
	for _, re := range patterns {
		if re.MatchString(uri) {
			return true
		}
	}
	return false
}
