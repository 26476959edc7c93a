// Package config loads service configuration from command-line flags and
// environment variables.
package config

import (
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config holds the full service configuration.
type Config struct {
	Port string `long:"port" env:"PORT" default:"3000" description:"HTTP server port"`

	DataDir   string `long:"data-dir" env:"DATA_DIR" default:"/data" description:"Persistent data directory"`
	UsersFile string `long:"users-file" env:"USERS_FILE" description:"Path to the authorized users file (default: <data-dir>/authorized-users.json)"`
	CacheDir  string `long:"cache-dir" env:"CACHE_DIR" description:"Cache directory for the fs backend (default: <data-dir>/cache)"`

	CacheBackend string        `long:"cache-backend" env:"CACHE_BACKEND" default:"fs" choice:"fs" choice:"memory" choice:"redis" description:"Cache store backend"`
	CacheTTL     time.Duration `long:"cache-ttl" env:"SUMMARY_CACHE_TTL" default:"5m" description:"Cache entry time-to-live"`
	RedisURL     string        `long:"redis-url" env:"REDIS_URL" default:"localhost:6379" description:"Redis address for the redis cache backend"`

	AdminUser string `long:"admin-user" env:"ADMIN_USER" default:"admin" description:"Basic auth user for privileged endpoints"`
	AdminPass string `long:"admin-pass" env:"ADMIN_PASS" default:"secret" description:"Basic auth password for privileged endpoints"`

	OpenAccess bool `long:"open-access" env:"OPEN_ACCESS" description:"Skip the authorized-domain check (any tenant may aggregate)"`

	UpstreamTimeout time.Duration `long:"upstream-timeout" env:"UPSTREAM_TIMEOUT" default:"6s" description:"Per-attempt upstream fetch timeout"`
	MaxRetries      int           `long:"max-retries" env:"MAX_RETRIES" default:"2" description:"Upstream retries after the first attempt"`
	BackoffBase     time.Duration `long:"backoff-base" env:"BACKOFF_BASE" default:"300ms" description:"Linear backoff base between upstream retries"`
	MaxPages        int           `long:"max-pages" env:"MAX_PAGES" default:"50" description:"Pagination safety cap on pages per aggregation"`
	MaxItems        int           `long:"max-items" env:"MAX_ITEMS" default:"10000" description:"Pagination safety cap on items per aggregation"`

	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"summary-access/1.0" description:"User agent for upstream requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	Pretty    bool   `long:"pretty-logs" env:"PRETTY_LOGS" description:"Human-readable console logs"`
}

// Load parses args into a Config. On --help it returns (nil, nil) after
// go-flags has printed usage.
func Load(args []string) (*Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, err
	}

	if cfg.UsersFile == "" {
		cfg.UsersFile = filepath.Join(cfg.DataDir, "authorized-users.json")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.DataDir, "cache")
	}

	return &cfg, nil
}
