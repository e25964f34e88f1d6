package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "cache_root: " + dir + "\nupstreams:\n  - url: https://msdl.microsoft.com/download/symbols\n    microsoft: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYMCACHE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheRoot != dir {
		t.Errorf("CacheRoot = %q, want %q", cfg.CacheRoot, dir)
	}
	if len(cfg.Upstreams) != 1 || cfg.Upstreams[0].URL != "https://msdl.microsoft.com/download/symbols" {
		t.Errorf("Upstreams = %+v", cfg.Upstreams)
	}
	if !cfg.Upstreams[0].Microsoft {
		t.Error("expected microsoft: true to parse")
	}
}

func TestLoadRequiresAtLeastOneUpstream(t *testing.T) {
	t.Setenv("SYMCACHE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SYMCACHE_UPSTREAMS", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when no upstreams are configured")
	}
}

func TestEnvOverridesUpstreams(t *testing.T) {
	t.Setenv("SYMCACHE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SYMCACHE_UPSTREAMS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Upstreams) != 2 {
		t.Fatalf("Upstreams = %+v, want 2 entries", cfg.Upstreams)
	}
	if cfg.Upstreams[0].URL != "https://a.example.com" || cfg.Upstreams[1].URL != "https://b.example.com" {
		t.Errorf("Upstreams = %+v", cfg.Upstreams)
	}
}
