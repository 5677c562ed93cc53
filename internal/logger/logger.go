// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack) and the logging-factory registry.
//
// Context
// -------
// Gate writes lifecycle and error events to one JSON log per day under
// `<root>/logs/YYYY-MM-DD.log`.  When running in an interactive TTY we tee
// the same events to stdout.  Rotation, compression, and retention are
// handled by Lumberjack; no external log-rotate job is required.
//
// The dispatch filter accepts a `logger_factory` init parameter.  The value
// names one of the factories registered here (`json`, `console`, `nop`,
// or anything an embedding application registers).  Unknown names fall back
// to the default factory with a warning, never an error.
//
// Usage
// -----
//
//	log, err := logger.New(cfg.Paths.Root, runningInTTY())
//	if err != nil { … }
//	log.Infow("dispatcher online", "providers", n)
//
// Notes
// -----
// • Zap core uses ISO-8601 timestamps and lowercase levels.
// • Errors are written to the same sink via `ErrorOutput`.
// • Oxford commas, two spaces after periods.
package logger

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFactory is used when no logger_factory parameter is given.
const DefaultFactory = "json"

// Factory builds a sugared logger rooted at rootDir.
type Factory func(rootDir string, tee bool) (*zap.SugaredLogger, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		"json":    New,
		"console": newConsole,
		"nop":     func(string, bool) (*zap.SugaredLogger, error) { return zap.NewNop().Sugar(), nil },
	}
)

// Register adds or replaces a named factory.  Call from init().
func Register(name string, f Factory) {
	mu.Lock()
	factories[name] = f
	mu.Unlock()
}

// Names lists registered factories, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FromFactory builds a logger with the named factory, installs it as the
// process-wide default, and returns it.  An unknown name uses DefaultFactory
// and logs a warning through the resulting logger.
func FromFactory(name, rootDir string, tee bool) (*zap.SugaredLogger, error) {
	if name == "" {
		name = DefaultFactory
	}
	mu.RLock()
	f, ok := factories[name]
	if !ok {
		f = factories[DefaultFactory]
	}
	mu.RUnlock()

	z, err := f(rootDir, tee)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(z.Desugar())
	if !ok {
		z.Warnw("unknown logger factory, using default",
			"factory", name, "default", DefaultFactory, "known", Names())
	}
	return z, nil
}

// New returns a *zap.SugaredLogger that writes JSON to /logs/YYYY-MM-DD.log.
// When tee == true, a console core is also attached.  The logger is
// installed as the process-wide default via zap.ReplaceGlobals.
func New(rootDir string, tee bool) (*zap.SugaredLogger, error) {
	logDir := filepath.Join(rootDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	fileName := time.Now().Format("2006-01-02") + ".log"
	fileSink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, fileName),
		MaxSize:    50, // MB
		MaxBackups: 7,  // keep last seven files
		MaxAge:     14, // days
		Compress:   true,
	}

	encCfg := encoderConfig()
	jsonCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(fileSink),
		zap.InfoLevel,
	)

	cores := []zapcore.Core{jsonCore}
	if tee {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(os.Stdout),
			zap.InfoLevel,
		))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.ErrorOutput(zapcore.AddSync(fileSink)),
	).Sugar()

	// Make this the global logger so zap.S() works everywhere after startup.
	zap.ReplaceGlobals(z.Desugar())

	z.Infow("logger online", "tee", tee)
	return z, nil
}

// newConsole logs to stdout only, at debug level.  Handy under `go run`.
func newConsole(_ string, _ bool) (*zap.SugaredLogger, error) {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.DebugLevel,
	)
	return zap.New(core, zap.AddCaller()).Sugar(), nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

// OrGlobal returns l, or the process-wide sugared logger when l is nil.
func OrGlobal(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l != nil {
		return l
	}
	return zap.S()
}
