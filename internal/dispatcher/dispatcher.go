// internal/dispatcher/dispatcher.go
//
// The Dispatcher is the process-wide hub the dispatch filter binds to every
// request scope.
//
// Context
// -------
// One Dispatcher exists per hosted filter.  It owns the configuration
// manager (and therefore every configuration snapshot), the action mapper,
// and the action executor.  Per request it
//
//   • negotiates encoding and locale (Prepare),
//   • wraps multipart requests (WrapRequest),
//   • seeds fresh action contexts (CreateContextMap),
//   • executes mapped actions and sends errors (ServiceAction, SendError),
//   • re-enters the root handler for forwards and includes.
//
// Settings derived from constants (dev mode, encoding, locales, multipart
// memory) are recomputed once per configuration snapshot, so a hot reload
// of the route file or an init parameter takes effect on the next request.
//
// Notes
// -----
//   • Init fails fast: a configuration that cannot be built aborts startup.
//   • Oxford commas, two spaces after periods.

package dispatcher

import (
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/yanizio/gate/internal/action"
	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/hostconfig"
	"github.com/yanizio/gate/internal/logger"
	"github.com/yanizio/gate/internal/mapper"
	"github.com/yanizio/gate/internal/scope"
)

// Init parameter and constant keys read by the dispatcher.
const (
	ParamRoutesFile         = "routes_file"
	ParamLocales            = "locales"
	ParamMultipartMaxMemory = "multipart_max_memory"
)

// DefaultRoutesFile is used when routes_file is unset.
const DefaultRoutesFile = "conf/routes.yaml"

// DefaultMultipartMaxMemory bounds in-memory multipart parts.
const DefaultMultipartMaxMemory int64 = 32 << 20

// Options tune a Dispatcher.  Zero values pick defaults.
type Options struct {
	// Manager overrides the configuration manager.  Nil builds one whose
	// defaults are the framework provider, the routes file, and Extra.
	Manager *configuration.Manager

	// Extra providers appended to the defaults (e.g. an SQLProvider).
	Extra []configuration.ContainerProvider

	Mapper  mapper.ActionMapper
	Actions *action.Registry
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	host    hostconfig.HostConfig
	app     *hostconfig.Application
	log     *zap.SugaredLogger
	manager *configuration.Manager
	mapper  mapper.ActionMapper
	exec    *action.Executor
	extra   []configuration.ContainerProvider

	settings atomic.Pointer[settings]
	root     atomic.Pointer[http.Handler]
}

// settings are derived from one configuration snapshot.
type settings struct {
	cfg       *configuration.Configuration
	devMode   bool
	encoding  string
	supported []language.Tag
	matcher   language.Matcher
	maxMemory int64
}

// New returns an uninitialised Dispatcher bound to host.  A nil log uses
// the global logger.
func New(host hostconfig.HostConfig, log *zap.SugaredLogger, opts Options) *Dispatcher {
	d := &Dispatcher{
		host:   host,
		log:    logger.OrGlobal(log),
		mapper: opts.Mapper,
		exec:   action.NewExecutor(opts.Actions),
		extra:  opts.Extra,
	}
	if host != nil {
		d.app = host.ApplicationContext()
	}
	if d.app == nil {
		d.app = hostconfig.NewApplication("default", "")
	}
	if d.mapper == nil {
		d.mapper = mapper.NewDefaultMapper(0)
	}
	d.manager = opts.Manager
	if d.manager == nil {
		d.manager = configuration.NewManager(d.log, d.defaultProviders)
	}
	return d
}

func (d *Dispatcher) defaultProviders() []configuration.ContainerProvider {
	list := []configuration.ContainerProvider{
		configuration.NewFrameworkProvider(d.host),
		configuration.NewFileProvider(d.RoutesFile(), true),
	}
	return append(list, d.extra...)
}

// RoutesFile resolves the routes_file init parameter against the
// application root.
func (d *Dispatcher) RoutesFile() string {
	p := DefaultRoutesFile
	if d.host != nil {
		if v, ok := d.host.InitParameter(ParamRoutesFile); ok && v != "" {
			p = v
		}
	}
	if !filepath.IsAbs(p) && d.app.Root != "" {
		p = filepath.Join(d.app.Root, p)
	}
	return p
}

// Init builds the first configuration snapshot.  Any error aborts startup.
func (d *Dispatcher) Init() error {
	cfg, err := d.manager.Configuration()
	if err != nil {
		return err
	}
	s := d.settingsFor(cfg)
	d.log.Infow("dispatcher initialised",
		"app", d.app.Name,
		"generation", cfg.Generation(),
		"namespaces", cfg.Namespaces(),
		"dev_mode", s.devMode,
		"encoding", s.encoding,
	)
	return nil
}

// Cleanup tears the configuration down.  The dispatcher must not serve
// requests afterwards.
func (d *Dispatcher) Cleanup() {
	d.manager.DestroyConfiguration()
	d.settings.Store(nil)
	d.log.Infow("dispatcher cleaned up", "app", d.app.Name)
}

func (d *Dispatcher) Host() hostconfig.HostConfig          { return d.host }
func (d *Dispatcher) Application() *hostconfig.Application { return d.app }
func (d *Dispatcher) Log() *zap.SugaredLogger              { return d.log }
func (d *Dispatcher) Manager() *configuration.Manager      { return d.manager }
func (d *Dispatcher) Mapper() mapper.ActionMapper          { return d.mapper }

// Configuration returns the current snapshot, reloading first when reload
// mode is on.
func (d *Dispatcher) Configuration() (*configuration.Configuration, error) {
	return d.manager.Configuration()
}

// DevMode reports whether the current snapshot has dev_mode set.
func (d *Dispatcher) DevMode() bool {
	cfg := d.manager.Current()
	if cfg == nil {
		return false
	}
	return d.settingsFor(cfg).devMode
}

// SetRoot records the handler forwards and includes re-enter.
func (d *Dispatcher) SetRoot(h http.Handler) { d.root.Store(&h) }

func (d *Dispatcher) rootHandler() http.Handler {
	if p := d.root.Load(); p != nil {
		return *p
	}
	return nil
}

// FromRequest returns the dispatcher bound to r's scope, or nil.
func FromRequest(r *http.Request) *Dispatcher {
	s := scope.FromContext(r.Context())
	if s == nil {
		return nil
	}
	d, _ := s.Dispatcher().(*Dispatcher)
	return d
}

/*──────────────────────────── settings ────────────────────────────────────*/

func (d *Dispatcher) settingsFor(cfg *configuration.Configuration) *settings {
	if s := d.settings.Load(); s != nil && s.cfg == cfg {
		return s
	}
	s := &settings{
		cfg:       cfg,
		devMode:   cfg.Bool(configuration.ConstDevMode),
		maxMemory: DefaultMultipartMaxMemory,
	}
	s.encoding, _ = cfg.Constant(configuration.ConstEncoding)
	if s.encoding == "" {
		s.encoding = "UTF-8"
	}
	for _, raw := range cfg.List(ParamLocales) {
		if raw == "" {
			continue
		}
		tag, err := language.Parse(raw)
		if err != nil {
			d.log.Warnw("ignoring invalid locale", "locale", raw, "err", err)
			continue
		}
		s.supported = append(s.supported, tag)
	}
	if len(s.supported) > 0 {
		s.matcher = language.NewMatcher(s.supported)
	}
	if v, ok := cfg.Constant(ParamMultipartMaxMemory); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			s.maxMemory = n
		} else {
			d.log.Warnw("ignoring invalid multipart_max_memory", "value", v)
		}
	}
	d.settings.Store(s)
	return s
}

// current returns the settings for the snapshot the request sees.
func (d *Dispatcher) current() *settings {
	cfg := d.manager.Current()
	if cfg == nil {
		return &settings{encoding: "UTF-8", maxMemory: DefaultMultipartMaxMemory}
	}
	return d.settingsFor(cfg)
}
