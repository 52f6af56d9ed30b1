// Package config resolves the core's own ambient tunables: default pool
// sizing, the default cache sweep interval, and the on-disk cache root.
// These are not per-alias settings (those live on dbconfig.DatabaseConfig
// and cache.Config, set explicitly by the caller) but fallbacks the core
// reaches for when a caller leaves a knob zero-valued. Resolution follows
// the same env-var-overrides-file idiom as local_config.go's
// LoadLocalConfigWithEnv: defaults first, then a config file if present,
// then ODM_-prefixed environment variables take precedence over both.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/crossdeck/odm/internal/pool"
)

const envPrefix = "ODM"

// Defaults holds the core's ambient tunables, resolved once at startup and
// threaded into AliasDirectory as fallbacks.
type Defaults struct {
	DefaultMinConns       int
	DefaultMaxConns       int
	DefaultAcquireTimeout time.Duration
	DefaultIdleTimeout    time.Duration
	DefaultMaxLifetime    time.Duration
	CacheSweepInterval    time.Duration
	CacheDir              string
}

// Load resolves Defaults from, in increasing priority: built-in defaults,
// an optional config file named odm.yaml on the search paths below, and
// ODM_-prefixed environment variables (e.g. ODM_CACHE_DIR, ODM_DEFAULT_MAX_CONNS).
// A missing or unreadable config file is not an error; it just means the
// built-in defaults and environment stand alone.
func Load() *Defaults {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("default_min_conns", 1)
	v.SetDefault("default_max_conns", 8)
	v.SetDefault("default_acquire_timeout", 5*time.Second)
	v.SetDefault("default_idle_timeout", 5*time.Minute)
	v.SetDefault("default_max_lifetime", 30*time.Minute)
	v.SetDefault("cache_sweep_interval", time.Minute)
	v.SetDefault("cache_dir", defaultCacheDir())

	v.SetConfigName("odm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/odm")
	_ = v.ReadInConfig() // absent config file is not fatal, defaults and env still apply

	return &Defaults{
		DefaultMinConns:       v.GetInt("default_min_conns"),
		DefaultMaxConns:       v.GetInt("default_max_conns"),
		DefaultAcquireTimeout: v.GetDuration("default_acquire_timeout"),
		DefaultIdleTimeout:    v.GetDuration("default_idle_timeout"),
		DefaultMaxLifetime:    v.GetDuration("default_max_lifetime"),
		CacheSweepInterval:    v.GetDuration("cache_sweep_interval"),
		CacheDir:              v.GetString("cache_dir"),
	}
}

// PoolConfig builds a pool.Config from the resolved defaults, for a caller
// (internal/alias.Directory) that leaves DatabaseConfig.Pool zero-valued.
// Retry/keepalive/health-check knobs have no viper-resolved counterpart yet
// (spec's ambient tunables only name pool sizing and timeouts), so those
// four stay fixed at the conservative constants AddDatabase used to hardcode
// directly.
func (d *Defaults) PoolConfig() pool.Config {
	return pool.Config{
		MinConns:           d.DefaultMinConns,
		MaxConns:           d.DefaultMaxConns,
		AcquireTimeout:     d.DefaultAcquireTimeout,
		IdleTimeout:        d.DefaultIdleTimeout,
		MaxLifetime:        d.DefaultMaxLifetime,
		MaxRetries:         3,
		RetryInterval:      200 * time.Millisecond,
		KeepaliveInterval:  30 * time.Second,
		HealthCheckTimeout: 2 * time.Second,
	}
}

func defaultCacheDir() string {
	if dir, err := homeCacheDir(); err == nil {
		return dir
	}
	return ".odm-cache"
}
