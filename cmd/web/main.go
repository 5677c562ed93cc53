// cmd/web/main.go
//
// Gate – HTTP entry point.
//
// Start-up
// --------
//
//  1. Load conf/global.yaml (+ .env, + GATE_ env overrides).
//
//  2. Start the rotating logger (tees to console when running in a TTY).
//
//  3. Open the optional GeoLite2 database for request info.
//
//  4. Resolve the routes DB password through Vault when it is a
//     `vault:` reference, then open the DB and add the SQL route provider.
//
//  5. Init the dispatch filter against the `dispatch` subtree.
//
//  6. Build the chi router:
//
//     • RequestID / RealIP / Recoverer
//     • security headers, ForceHTTPS
//     • request info enrichment
//     • dispatch filter        – actions, static files, pass-through
//
//  7. Watch the routes file when reload_configs is set.
//
//  8. Serve until SIGINT/SIGTERM, then shut down gracefully.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/gate/internal/config"
	"github.com/yanizio/gate/internal/configuration"
	"github.com/yanizio/gate/internal/database"
	"github.com/yanizio/gate/internal/dispatcher"
	"github.com/yanizio/gate/internal/filter"
	"github.com/yanizio/gate/internal/hostconfig"
	"github.com/yanizio/gate/internal/logger"
	"github.com/yanizio/gate/internal/middleware"
	"github.com/yanizio/gate/internal/requestinfo"
	"github.com/yanizio/gate/internal/server"
	"github.com/yanizio/gate/internal/vault"

	_ "github.com/yanizio/gate/components/example" // demo actions
	_ "github.com/yanizio/gate/modules/debug"      // demo action
)

const (
	shutdownGrace  = 15 * time.Second
	routesPoll     = 30 * time.Second
	reloadDebounce = 250 * time.Millisecond
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gate: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// FromFactory also installs the logger as zap's global.
	logOut, err := logger.FromFactory(cfg.Dispatch.LoggerFactory, cfg.Paths.Root, runningInTTY())
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 1.  Request info ────────────────────────────────────────────────
	//
	if err := requestinfo.OpenGeo(cfg.Abs(cfg.Geo.DBPath)); err != nil {
		logOut.Warnw("geo database unavailable", "path", cfg.Geo.DBPath, "err", err)
	}
	defer func() { _ = requestinfo.CloseGeo() }()

	//
	// ── 2.  Optional SQL route provider ─────────────────────────────────
	//
	var extra []configuration.ContainerProvider
	if cfg.RoutesDB.DSN != "" {
		var vc *vault.Client
		if vault.IsRef(cfg.RoutesDB.Password) {
			if vc, err = vault.New(ctx, logOut); err != nil {
				return err
			}
		}
		pw, err := vc.Resolve(ctx, cfg.RoutesDB.Password)
		if err != nil {
			return err
		}
		db, err := database.Open(ctx, cfg.RoutesDB.DSN, pw)
		if err != nil {
			return err
		}
		defer db.Close()
		logOut.Infow("routes DB online")
		extra = append(extra, configuration.NewSQLProvider(db, routesPoll, logOut))
	}

	//
	// ── 3.  Dispatch filter ─────────────────────────────────────────────
	//
	host := hostconfig.NewKoanfConfig(config.Tree(), "dispatch",
		hostconfig.NewApplication("gate", cfg.Paths.Root))

	f := filter.New(filter.Options{
		Log:        logOut,
		Dispatcher: dispatcher.Options{Extra: extra},
	})
	if err := f.Init(host); err != nil {
		return err
	}
	defer func() {
		if err := f.Destroy(); err != nil {
			logOut.Warnw("filter destroy", "err", err)
		}
	}()

	//
	// ── 4.  Router ──────────────────────────────────────────────────────
	//
	router := chi.NewRouter()
	router.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	router.Use(middleware.Security, middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS))
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(requestinfo.Enrich, f.Middleware)
		r.Handle("/*", http.NotFoundHandler())
	})

	// Forward and Include re-enter through the full router.
	f.Dispatcher().SetRoot(router)

	//
	// ── 5.  Route-file watcher ──────────────────────────────────────────
	//
	if cfg.Dispatch.ReloadConfigs {
		w, err := configuration.NewWatcher(f.Dispatcher().Manager(),
			[]string{f.Dispatcher().RoutesFile()}, reloadDebounce, logOut)
		if err != nil {
			return err
		}
		w.Start()
		defer func() { _ = w.Stop() }()
	}

	//
	// ── 6.  Serve ───────────────────────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, router, logOut)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		logOut.Infow("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
