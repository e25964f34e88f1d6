// Package config loads symcache's configuration: a YAML file overlaid
// with environment variable overrides, with defaults -> file -> env
// precedence.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// UpstreamConfig describes one HTTP symbol-server upstream.
type UpstreamConfig struct {
	URL       string `yaml:"url"`
	Microsoft bool   `yaml:"microsoft"` // enable the compound-query (pointer/compressed-blob) extension
}

// Config is symcache's resolved configuration.
type Config struct {
	CacheRoot           string           `yaml:"cache_root"`
	IdentityPartitioned bool             `yaml:"identity_partitioned"`
	Upstreams           []UpstreamConfig `yaml:"upstreams"`

	UnreachableValiditySeconds int `yaml:"unreachable_validity_seconds"`
	FileResultValiditySeconds  int `yaml:"file_result_validity_seconds"`

	ListenAddr string `yaml:"listen_addr"`

	// MinioEndpoint, when set, adds an S3-compatible object store as one
	// more upstream behind the local file cache.
	MinioEndpoint string `yaml:"minio_endpoint"`
	MinioAccess   string `yaml:"minio_access_key"`
	MinioSecret   string `yaml:"minio_secret_key"`
	MinioBucket   string `yaml:"minio_bucket"`
}

// UnreachableValidity returns the configured circuit-breaker window.
func (c Config) UnreachableValidity() time.Duration {
	if c.UnreachableValiditySeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.UnreachableValiditySeconds) * time.Second
}

// FileResultValidity returns the configured content TTL (0 means
// unbounded, matching store.CacheValidityPolicy's zero value).
func (c Config) FileResultValidity() time.Duration {
	return time.Duration(c.FileResultValiditySeconds) * time.Second
}

// Load reads config.yaml (or the path named by SYMCACHE_CONFIG),
// applies environment overrides, and fills in defaults for anything
// still unset.
func Load() (Config, error) {
	cfg := Config{
		CacheRoot:                  defaultCacheRoot(),
		IdentityPartitioned:        true,
		UnreachableValiditySeconds: 300,
		ListenAddr:                 ":8080",
		MinioBucket:                "symcache",
	}

	path := os.Getenv("SYMCACHE_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrap(err, "config: parse "+path)
		}
	}

	if v := os.Getenv("SYMCACHE_CACHE_ROOT"); v != "" {
		cfg.CacheRoot = v
	}
	if v := os.Getenv("SYMCACHE_UPSTREAMS"); v != "" {
		cfg.Upstreams = nil
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			cfg.Upstreams = append(cfg.Upstreams, UpstreamConfig{URL: u})
		}
	}
	if v := os.Getenv("SYMCACHE_IDENTITY_PARTITIONED"); v != "" {
		cfg.IdentityPartitioned = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SYMCACHE_UNREACHABLE_VALIDITY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.UnreachableValiditySeconds = n
		}
	}
	if v := os.Getenv("SYMCACHE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccess = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecret = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}

	if len(cfg.Upstreams) == 0 {
		return cfg, errors.New("config: at least one upstream is required")
	}
	return cfg, nil
}

func defaultCacheRoot() string {
	return os.TempDir() + string(os.PathSeparator) + "Symbols"
}
