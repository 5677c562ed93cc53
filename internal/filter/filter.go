// internal/filter/filter.go
//
// Dispatch filter: the front end every request passes through.
//
// Context
// -------
// PrepareAndExecute wires InitOperations, PrepareOperations, and
// ExecuteOperations into one http middleware.  Per request:
//
//	encoding/locale → action context → dispatcher bound
//	  → excluded?            pass through
//	  → wrap request         (400 on a malformed multipart header)
//	  → forced mapping       (500 on a mapper failure)
//	  → no mapping?          static resource, else pass through
//	  → mapping              execute action
//	(deferred) cleanup
//
// Two entry points exist.  Middleware(next) passes unhandled requests to
// next; Handler() answers them with 404, for hosts that mount the filter
// as the terminal handler.
//
// Notes
// -----
//   • Cleanup runs on every exit path, panics included.

package filter

import (
	"net/http"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/hostconfig"
	"github.com/yanizio/gate/internal/metrics"
	"github.com/yanizio/gate/internal/scope"
)

// Options tune the filter.
type Options struct {
	// Log overrides the logger_factory init parameter.
	Log *zap.SugaredLogger

	Dispatcher dispatcher.Options

	// PostInit runs after every other init step.  An error aborts Init.
	PostInit func(d *dispatcher.Dispatcher, host hostconfig.HostConfig) error
}

// PrepareAndExecute is the dispatch filter.
type PrepareAndExecute struct {
	opts Options

	mu       sync.Mutex
	d        *dispatcher.Dispatcher
	prepare  *PrepareOperations
	execute  *ExecuteOperations
	excluded []*regexp.Regexp
	log      *zap.SugaredLogger
	root     http.Handler // first handler built by Middleware/Handler
}

func New(opts Options) *PrepareAndExecute {
	return &PrepareAndExecute{opts: opts, log: zap.S()}
}

// Init runs the start-up steps in order: logging, dispatcher, static
// loader, prepare/execute operations, excluded patterns, PostInit.
func (f *PrepareAndExecute) Init(host hostconfig.HostConfig) error {
	var steps InitOperations

	log, err := steps.InitLogging(host, f.opts.Log)
	if err != nil {
		return err
	}
	d, err := steps.InitDispatcher(host, log, f.opts.Dispatcher)
	if err != nil {
		return err
	}
	loader := steps.InitStaticContentLoader(host, d)
	prepare := NewPrepareOperations(d)
	execute := NewExecuteOperations(d, loader)
	excluded, err := steps.BuildExcludedPatterns(host)
	if err != nil {
		d.Cleanup()
		return err
	}
	if f.opts.PostInit != nil {
		if err := f.opts.PostInit(d, host); err != nil {
			d.Cleanup()
			return err
		}
	}

	f.mu.Lock()
	f.d, f.prepare, f.execute, f.excluded, f.log = d, prepare, execute, excluded, log
	if f.root != nil {
		d.SetRoot(f.root)
	}
	f.mu.Unlock()

	log.Infow("dispatch filter ready",
		"excluded", len(excluded),
		"static_prefix", loader.Prefix(),
	)
	return nil
}

// Dispatcher returns the dispatcher built by Init, or nil.
func (f *PrepareAndExecute) Dispatcher() *dispatcher.Dispatcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.d
}

// Destroy releases the dispatcher.
func (f *PrepareAndExecute) Destroy() error {
	f.mu.Lock()
	prepare := f.prepare
	f.mu.Unlock()
	if prepare == nil {
		return ErrDispatcherNotInitialized
	}
	return prepare.CleanupDispatcher()
}

// Middleware returns the filter as chi-compatible middleware.
func (f *PrepareAndExecute) Middleware(next http.Handler) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, next)
	})
	f.setRoot(h)
	return h
}

// Handler returns the filter as a terminal handler.
func (f *PrepareAndExecute) Handler() http.Handler {
	return f.Middleware(http.NotFoundHandler())
}

func (f *PrepareAndExecute) setRoot(h http.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.root != nil {
		return
	}
	f.root = h
	if f.d != nil {
		f.d.SetRoot(h)
	}
}

func (f *PrepareAndExecute) ops() (*PrepareOperations, *ExecuteOperations, []*regexp.Regexp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepare, f.execute, f.excluded
}

func (f *PrepareAndExecute) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	prepare, execute, excluded := f.ops()
	if prepare == nil {
		f.log.Errorw("dispatch filter used before Init", "path", r.URL.Path)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		metrics.DispatchTotal.WithLabelValues(outcome).Inc()
		metrics.DispatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	r, _ = scope.Attach(r)
	prepare.SetEncodingAndLocale(w, r)
	prepare.CreateActionContext(w, r)
	defer prepare.CleanupRequest(r)
	prepare.AssignDispatcherToScope(r)

	if prepare.IsURLExcluded(r, excluded) {
		outcome = metrics.OutcomeExcluded
		next.ServeHTTP(w, r)
		return
	}

	r, err := prepare.WrapRequest(r)
	if err != nil {
		prepare.log.Warnw("request wrap failed", "path", r.URL.Path, "err", err)
		prepare.d.SendError(w, r, http.StatusBadRequest, err)
		return
	}

	mapping, err := prepare.FindActionMapping(w, r, true)
	if err != nil {
		return
	}
	if mapping == nil {
		if execute.ExecuteStaticResourceRequest(w, r) {
			outcome = metrics.OutcomeStatic
			return
		}
		outcome = metrics.OutcomePassThrough
		next.ServeHTTP(w, r)
		return
	}

	if err := execute.ExecuteAction(w, r, mapping); err == nil {
		outcome = metrics.OutcomeAction
	}
}
