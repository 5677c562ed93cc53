// internal/configuration/sql.go
//
// Database-backed route provider.
//
// Context
// -------
// Routes may live in MySQL next to the application data:
//
//	route_version  (version INT)                       – one row
//	action_package (name PK, namespace, extends, default_action)
//	action_route   (package, name, handler, method, path, http_methods, sort_order)
//
// Admin tooling bumps route_version after editing either table.  Init reads
// all three; NeedsReload compares the stored version with the live one, at
// most once per check interval, so reload mode does not cost one query per
// request.
//
// Notes
// -----
//   • http_methods is a comma list, e.g. "GET,POST".  NULL means any verb.
//   • Oxford commas, two spaces after periods.

package configuration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/gate/internal/logger"
)

// Default SQL provider tunables.
const (
	SQLCheckInterval = 5 * time.Second
	SQLQueryTimeout  = 10 * time.Second
)

type packageRow struct {
	Name          string         `db:"name"`
	Namespace     string         `db:"namespace"`
	Extends       sql.NullString `db:"extends"`
	DefaultAction sql.NullString `db:"default_action"`
}

type routeRow struct {
	Package     string         `db:"package"`
	Name        string         `db:"name"`
	Handler     sql.NullString `db:"handler"`
	Method      sql.NullString `db:"method"`
	Path        sql.NullString `db:"path"`
	HTTPMethods sql.NullString `db:"http_methods"`
}

// SQLProvider loads packages and actions from the route tables.
type SQLProvider struct {
	db       *sqlx.DB
	log      *zap.SugaredLogger
	interval time.Duration

	mu        sync.Mutex
	version   int64
	checkedAt time.Time
	packages  []Package
}

// NewSQLProvider wraps db.  interval ≤ 0 checks the version on every poll.
func NewSQLProvider(db *sqlx.DB, interval time.Duration, log *zap.SugaredLogger) *SQLProvider {
	return &SQLProvider{db: db, interval: interval, log: logger.OrGlobal(log)}
}

func (p *SQLProvider) String() string { return "sql:action_route" }

func (p *SQLProvider) Init(*Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), SQLQueryTimeout)
	defer cancel()

	ver, err := p.liveVersion(ctx)
	if err != nil {
		return err
	}

	var pkgs []packageRow
	if err := p.db.SelectContext(ctx, &pkgs,
		`SELECT name, namespace, extends, default_action FROM action_package ORDER BY name`); err != nil {
		return fmt.Errorf("select action_package: %w", err)
	}
	var routes []routeRow
	if err := p.db.SelectContext(ctx, &routes,
		`SELECT package, name, handler, method, path, http_methods
		   FROM action_route
		  ORDER BY package, sort_order, name`); err != nil {
		return fmt.Errorf("select action_route: %w", err)
	}

	byName := make(map[string]int, len(pkgs))
	out := make([]Package, 0, len(pkgs))
	for _, r := range pkgs {
		byName[r.Name] = len(out)
		out = append(out, Package{
			Name:          r.Name,
			Namespace:     r.Namespace,
			Extends:       r.Extends.String,
			DefaultAction: r.DefaultAction.String,
		})
	}
	for _, r := range routes {
		i, ok := byName[r.Package]
		if !ok {
			return fmt.Errorf("action_route %q references unknown package %q", r.Name, r.Package)
		}
		out[i].Actions = append(out[i].Actions, Action{
			Name:    r.Name,
			Handler: r.Handler.String,
			Method:  r.Method.String,
			Path:    r.Path.String,
			Methods: splitList(r.HTTPMethods.String),
		})
	}

	p.mu.Lock()
	p.version = ver
	p.checkedAt = time.Now()
	p.packages = out
	p.mu.Unlock()

	p.log.Debugw("sql route provider loaded",
		"version", ver, "packages", len(out), "routes", len(routes))
	return nil
}

func (p *SQLProvider) Register(*Builder) error { return nil }

func (p *SQLProvider) LoadPackages(b *Builder) error {
	p.mu.Lock()
	pkgs := p.packages
	p.mu.Unlock()
	for _, pkg := range pkgs {
		if err := b.AddPackage(pkg); err != nil {
			return err
		}
	}
	return nil
}

// NeedsReload reports whether route_version moved since Init.  Query
// failures are logged and treated as not stale so a database blip does not
// tear down a working configuration.
func (p *SQLProvider) NeedsReload() bool {
	p.mu.Lock()
	if p.interval > 0 && time.Since(p.checkedAt) < p.interval {
		p.mu.Unlock()
		return false
	}
	p.checkedAt = time.Now()
	have := p.version
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), SQLQueryTimeout)
	defer cancel()
	ver, err := p.liveVersion(ctx)
	if err != nil {
		p.log.Warnw("route version check failed", "err", err)
		return false
	}
	return ver != have
}

func (p *SQLProvider) Destroy() error {
	p.mu.Lock()
	p.packages = nil
	p.mu.Unlock()
	return nil
}

func (p *SQLProvider) liveVersion(ctx context.Context) (int64, error) {
	var ver int64
	if err := p.db.GetContext(ctx, &ver, `SELECT version FROM route_version LIMIT 1`); err != nil {
		return 0, fmt.Errorf("select route_version: %w", err)
	}
	return ver, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, v := range parts {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
