// internal/config/model.go
//
// Typed configuration model for Gate.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                        – dotenv values,
//   • `conf/global.yaml`                     – primary static file,
//   • `GATE_`-prefixed environment overrides – highest precedence.
//
// The `dispatch` subtree doubles as the dispatch filter's init parameters.
// cmd/web hands it to hostconfig.NewKoanfConfig, so every key below under
// Dispatch is also readable by name through HostConfig.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Dispatch section
//

// Static configures the static content loader.
type Static struct {
	Prefix string `koanf:"prefix" validate:"omitempty,startswith=/"`
	Dir    string `koanf:"dir"`
}

// Dispatch holds the filter's init parameters in typed form.  Field names
// mirror the init-parameter keys the filter reads.
type Dispatch struct {
	ContextPath        string   `koanf:"context_path"         validate:"omitempty,startswith=/"`
	ExcludePatterns    []string `koanf:"exclude_patterns"`
	ReloadConfigs      bool     `koanf:"reload_configs"`
	DevMode            bool     `koanf:"dev_mode"`
	LoggerFactory      string   `koanf:"logger_factory"`
	Encoding           string   `koanf:"encoding"             validate:"required"`
	Locales            []string `koanf:"locales"`
	Extensions         []string `koanf:"extensions"`
	MultipartMaxMemory int64    `koanf:"multipart_max_memory" validate:"gte=0"`
	RoutesFile         string   `koanf:"routes_file"`
	Static             Static   `koanf:"static"`
}

//
// Routes database section
//

// RoutesDB points the SQL configuration provider at a route table.  An
// empty DSN disables the provider.  A password of the form
// `vault:<mount>/<path>#<key>` is resolved through Vault at startup.
type RoutesDB struct {
	DSN      string `koanf:"dsn"`
	Password string `koanf:"password"`
}

//
// Geo section
//

// Geo points at an optional GeoLite2-City database used to seed the
// action context with client location hints.
type Geo struct {
	DBPath string `koanf:"db_path"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // GATE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Dispatch Dispatch `koanf:"dispatch"`
	RoutesDB RoutesDB `koanf:"routes_db"`
	Geo      Geo      `koanf:"geo"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
