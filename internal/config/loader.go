// internal/config/loader.go
//
// Configuration loader and hot-reloader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

  1. Optional `.env` file at `<root>/conf/.env`.
  2. `conf/global.yaml`.
  3. Environment variables prefixed `GATE_`, where `__` maps to “.”
     (e.g., `GATE_DISPATCH__RELOAD_CONFIGS → dispatch.reload_configs`).

Built-in defaults are loaded first so a minimal YAML file is enough.  After
merging, the tree is unmarshalled into strongly-typed structs, validated,
enriched with the runtime root path, and cached in an `atomic.Pointer` for
lock-free reads.  The merged koanf tree is cached too; `Tree()` hands it to
hostconfig.NewKoanfConfig.  `Reload()` calls `Load()` again and swaps both
pointers.

Instrumentation
---------------
  • DEBUG spans – root discovery, YAML read.
  • ERROR spans – YAML parse, env overlay, unmarshal, validation failures.
  • INFO  span  – final “config loaded” with key highlights.
  • Logs use the global *sugared* logger (`zap.S()`) so early boot issues
    surface even before the file logger is installed.

Notes
-----
  • `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "GATE_"

var (
	current atomic.Pointer[Config]
	tree    atomic.Pointer[koanf.Koanf]
)

// defaults are applied beneath every other layer.
var defaults = map[string]any{
	"http.listen_addr":              ":8080",
	"dispatch.encoding":             "UTF-8",
	"dispatch.extensions":           []any{"action", ""},
	"dispatch.multipart_max_memory": int64(32 << 20),
	"dispatch.routes_file":          "conf/routes.yaml",
	"dispatch.static.prefix":        "/static/",
	"dispatch.static.dir":           "public",
}

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves GATE_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("GATE_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, validates, and caches Config.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}
	zap.S().Debugw("config yaml loaded", "file", yamlPath)

	// Env overrides: GATE_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	tree.Store(k)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"reload_configs", cfg.Dispatch.ReloadConfigs,
		"dev_mode", cfg.Dispatch.DevMode,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the last successfully loaded Config, or nil before Load.
func Get() *Config { return current.Load() }

// Tree returns the merged koanf tree behind Get().
func Tree() *koanf.Koanf { return tree.Load() }

func Reload() error { _, err := Load(); return err }

// Abs resolves p against the runtime root unless it is already absolute.
func (c *Config) Abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.Root, p)
}
