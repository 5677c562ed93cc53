package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGlobal(t *testing.T, body string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "conf"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "conf", "global.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GATE_ROOT", root)
	return root
}

func TestLoad_DefaultsYAMLAndEnv(t *testing.T) {
	root := writeGlobal(t, `
http:
  listen_addr: "127.0.0.1:9000"
dispatch:
  exclude_patterns: ["/static/.*", "/health"]
  dev_mode: true
`)
	t.Setenv("GATE_DISPATCH__RELOAD_CONFIGS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("listen_addr = %q", cfg.HTTP.ListenAddr)
	}
	if !cfg.Dispatch.ReloadConfigs {
		t.Fatalf("env overlay for reload_configs not applied")
	}
	if cfg.Dispatch.Encoding != "UTF-8" {
		t.Fatalf("default encoding = %q", cfg.Dispatch.Encoding)
	}
	if len(cfg.Dispatch.ExcludePatterns) != 2 {
		t.Fatalf("exclude_patterns = %v", cfg.Dispatch.ExcludePatterns)
	}
	if cfg.Paths.Root != root {
		t.Fatalf("root = %q, want %q", cfg.Paths.Root, root)
	}
	if Get() != cfg {
		t.Fatalf("Get() did not return the cached pointer")
	}
	if Tree() == nil || !Tree().Bool("dispatch.dev_mode") {
		t.Fatalf("koanf tree not cached")
	}
	if got := cfg.Abs("conf/routes.yaml"); got != filepath.Join(root, "conf/routes.yaml") {
		t.Fatalf("Abs = %q", got)
	}
}

func TestLoad_RejectsBadExcludePattern(t *testing.T) {
	writeGlobal(t, `
dispatch:
  exclude_patterns: ["/static/(.*"]
`)
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for malformed pattern")
	}
}

func TestLoad_MissingYAMLFails(t *testing.T) {
	t.Setenv("GATE_ROOT", t.TempDir())
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing global.yaml")
	}
}
