package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	d := Load()

	assert.Equal(t, 1, d.DefaultMinConns)
	assert.Equal(t, 8, d.DefaultMaxConns)
	assert.Equal(t, 5*time.Second, d.DefaultAcquireTimeout)
	assert.Equal(t, time.Minute, d.CacheSweepInterval)
	assert.NotEmpty(t, d.CacheDir)
}

func TestLoadDefaultsEnvOverride(t *testing.T) {
	t.Setenv("ODM_DEFAULT_MAX_CONNS", "32")
	t.Setenv("ODM_CACHE_DIR", "/tmp/odm-test-cache")

	d := Load()

	assert.Equal(t, 32, d.DefaultMaxConns)
	assert.Equal(t, "/tmp/odm-test-cache", d.CacheDir)
}
