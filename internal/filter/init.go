package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/hostconfig"
	"github.com/yanizio/gate/internal/logger"
	"github.com/yanizio/gate/internal/static"
)

// Init parameter keys read by InitOperations.
const (
	ParamLoggerFactory   = "logger_factory"
	ParamExcludePatterns = "exclude_patterns"
	ParamStaticPrefix    = "static_prefix"
	ParamStaticDir       = "static_dir"
)

// InitOperations groups the start-up steps of the filter.
type InitOperations struct{}

func param(host hostconfig.HostConfig, key string) string {
	if host == nil {
		return ""
	}
	v, _ := host.InitParameter(key)
	return strings.TrimSpace(v)
}

// InitLogging picks the logger: an explicit one wins, then the named
// logger_factory, then the global logger.
func (InitOperations) InitLogging(host hostconfig.HostConfig, explicit *zap.SugaredLogger) (*zap.SugaredLogger, error) {
	if explicit != nil {
		return explicit, nil
	}
	name := param(host, ParamLoggerFactory)
	if name == "" {
		return zap.S(), nil
	}
	root := ""
	if host != nil && host.ApplicationContext() != nil {
		root = host.ApplicationContext().Root
	}
	return logger.FromFactory(name, root, false)
}

// InitDispatcher creates the dispatcher and builds its first snapshot.
func (InitOperations) InitDispatcher(host hostconfig.HostConfig, log *zap.SugaredLogger, opts dispatcher.Options) (*dispatcher.Dispatcher, error) {
	d := dispatcher.New(host, log, opts)
	if err := d.Init(); err != nil {
		return nil, fmt.Errorf("filter: init dispatcher: %w", err)
	}
	return d, nil
}

// InitStaticContentLoader builds the loader from static_prefix and
// static_dir.  An unset dir means static.DefaultDir; "-" disables the
// loader.  A relative dir is resolved against the application root.
func (InitOperations) InitStaticContentLoader(host hostconfig.HostConfig, d *dispatcher.Dispatcher) *static.Loader {
	prefix := param(host, ParamStaticPrefix)
	dir := param(host, ParamStaticDir)
	switch dir {
	case "":
		dir = static.DefaultDir
	case "-":
		dir = ""
	}
	if dir != "" && !filepath.IsAbs(dir) && d.Application().Root != "" {
		dir = filepath.Join(d.Application().Root, dir)
	}
	return static.NewLoader(prefix, dir, d.Log())
}

// BuildExcludedPatterns compiles the comma-separated exclude_patterns
// parameter.  Each pattern must match the whole request path.
func (InitOperations) BuildExcludedPatterns(host hostconfig.HostConfig) ([]*regexp.Regexp, error) {
	raw := param(host, ParamExcludePatterns)
	if raw == "" {
		return nil, nil
	}
	var out []*regexp.Regexp
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, fmt.Errorf("filter: exclude pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
