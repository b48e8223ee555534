package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/zerr"

	"github.com/manenim/storefront/pkg/limiter"
)

type testConfig struct {
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Enabled bool   `yaml:"enabled"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	defaults := func() *testConfig {
		return &testConfig{Port: 8080, Host: "localhost", Enabled: true}
	}

	t.Run("empty path", func(t *testing.T) {
		cfg, err := Load("", defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), defaults)
		require.NoError(t, err)
		assert.Equal(t, defaults(), cfg)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "port: 9090\n")
		cfg, err := Load(path, defaults)
		require.NoError(t, err)
		assert.Equal(t, &testConfig{Port: 9090, Host: "localhost", Enabled: true}, cfg)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "port: [unterminated\n")
		_, err := Load(path, defaults)
		require.Error(t, err)
		assert.ErrorContains(t, err, ErrParse.Error())
	})

	t.Run("unreadable path", func(t *testing.T) {
		_, err := Load(t.TempDir(), defaults)
		require.Error(t, err)
		assert.ErrorContains(t, err, ErrRead.Error())
	})
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, limiter.DefaultPolicies(), policies)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "storefront.yaml", `
server:
  addr: ":9000"
log:
  format: json
  level: debug
cache:
  backend: redis
  default_ttl: 2m
search:
  max_results: 20
  debounce: 150ms
limits:
  general: {window: 15m, max_requests: 100}
  auth: {window: 15m, max_requests: 3}
  search: {window: 1m, max_requests: 30}
  upload: {window: 1m, max_requests: 10}
  messaging: {window: 1m, max_requests: 20}
`)
	t.Setenv("STOREFRONT_JWT_SECRET", "s3cret")
	t.Setenv("STOREFRONT_REDIS_ADDR", "redis:6379")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout, "unset fields keep defaults")
	assert.Equal(t, 2*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.NeedsRedis())

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, int64(3), policies[limiter.CategoryAuth].MaxRequests)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"cache ttl", func(c *Config) { c.Cache.DefaultTTL = 0 }, "cache.default_ttl"},
		{"max results", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"limiter backend", func(c *Config) { c.Limiter.Backend = "etcd" }, "limiter.backend"},
		{"identity", func(c *Config) { c.Limiter.Identity = "cookie" }, "limiter.identity"},
		{"unknown category", func(c *Config) { c.Limits["admin"] = Limit{Window: time.Minute, MaxRequests: 1} }, "limits"},
		{"missing category", func(c *Config) { delete(c.Limits, "upload") }, "limits"},
		{"source kind", func(c *Config) { c.Source.Kind = "s3" }, "source.kind"},
		{"postgres dsn", func(c *Config) { c.Source.Kind = "postgres" }, "source.dsn"},
		{"token ttl", func(c *Config) { c.Auth.TokenTTL = -time.Second }, "auth.token_ttl"},
		{"media size", func(c *Config) { c.Media.MaxBytes = 0 }, "media.max_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, ErrInvalid.Error())

			var zErr *zerr.Error
			require.ErrorAs(t, err, &zErr)
			assert.Contains(t, zErr.Metadata(), tt.field)
		})
	}
}

func TestValidate_BadLimit(t *testing.T) {
	cfg := Default()
	cfg.Limits["search"] = Limit{Window: time.Minute}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, limiter.ErrInvalidLimit.Error())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	Log{Format: "json", Level: "warn"}.NewLogger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	Log{Format: "json", Level: "warn"}.NewLogger(&buf).Warn("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	Log{Format: "text", Level: "debug"}.NewLogger(&buf).Debug("details")
	assert.Contains(t, buf.String(), "msg=details")
}

func TestShippedConfig(t *testing.T) {
	cfg, err := Load("../../configs/storefront.yaml", Default)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	policies, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, limiter.DefaultPolicies(), policies)
	assert.Equal(t, "json", cfg.Log.Format)
}
