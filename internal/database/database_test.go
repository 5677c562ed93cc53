package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestWithPassword(t *testing.T) {
	out, err := withPassword("gate:old@tcp(db:3306)/routes", "fresh")
	if err != nil {
		t.Fatalf("withPassword: %v", err)
	}
	cfg, err := mysql.ParseDSN(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if cfg.User != "gate" || cfg.Passwd != "fresh" || cfg.DBName != "routes" || cfg.Addr != "db:3306" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if !cfg.ParseTime {
		t.Fatalf("parseTime not forced")
	}
}

func TestWithPassword_KeepsDSNPassword(t *testing.T) {
	out, err := withPassword("gate:old@tcp(db:3306)/routes", "")
	if err != nil {
		t.Fatalf("withPassword: %v", err)
	}
	cfg, _ := mysql.ParseDSN(out)
	if cfg.Passwd != "old" {
		t.Fatalf("password = %q", cfg.Passwd)
	}
}

func TestWithPassword_BadDSN(t *testing.T) {
	if _, err := withPassword("not a dsn", "x"); err == nil {
		t.Fatalf("expected parse error")
	}
}
