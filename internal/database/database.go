// Package database centralises sqlx connection helpers.  The default driver
// is go-sql-driver/mysql, which also works with MariaDB and Cockroach when
// configured for the MySQL wire protocol.
//
// Public entry points:
//
//	Open(ctx, dsn, password)                      – conservative pool sizes.
//	OpenWithOptions(ctx, dsn, password, maxOpen, maxIdle) – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  A non-empty password replaces whatever the DSN carries,
// which lets the secret come from Vault while the DSN stays in YAML.
// Callers should Close() the returned *sqlx.DB when no longer needed.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// PingTimeout bounds the start-up connectivity check.
const PingTimeout = 10 * time.Second

// Open returns a *sqlx.DB with sane defaults: 15 max open, 5 idle, and a
// 30-minute connection lifetime.  The route provider only reads a few small
// tables, so the defaults are generous.
func Open(ctx context.Context, dsn, password string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, password, 15, 5)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle per pool.
func OpenWithOptions(ctx context.Context, dsn, password string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	dsn, err := withPassword(dsn, password)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// withPassword parses dsn, sets the password when one is given, and forces
// parseTime so DATETIME columns scan into time.Time.
func withPassword(dsn, password string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("database: parse dsn: %w", err)
	}
	if password != "" {
		cfg.Passwd = password
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
