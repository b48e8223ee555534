package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manenim/storefront/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const listings = `
listings:
  - id: "1"
    make: Honda
    model: Civic
    year: 2020
    price: 18500
  - id: "2"
    make: Toyota
    model: Hilux
    year: 2022
    price: 32000
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "listings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(listings), 0o600))

	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Source.Path = path
	cfg.Media.Dir = filepath.Join(dir, "media")
	cfg.Auth.AdminPassword = "secret"
	return cfg
}

func TestNew_ServesCatalog(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), io.Discard)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 2, a.Catalog().Len())

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/listings/search?q=honda", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Civic")
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "storefront_ratelimit_call_total")
}

func TestNew_ConfiguredLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Limits["search"] = config.Limit{Window: time.Minute, MaxRequests: 1}
	// Every request below starts a new session, so key by address.
	cfg.Limiter.Identity = "address"

	a, err := New(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/listings/search?q=honda", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNew_MissingListings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.ErrorContains(t, err, ErrCatalog.Error())
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"
	cfg.Redis.DialTimeout = 200 * time.Millisecond

	_, err := New(context.Background(), cfg, io.Discard)
	require.Error(t, err)
	assert.ErrorContains(t, err, ErrRedis.Error())
}

func TestNew_WarnsWithoutSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""
	var logs bytes.Buffer

	a, err := New(context.Background(), cfg, &logs)
	require.NoError(t, err)
	defer a.Close()
	assert.Contains(t, logs.String(), "no jwt secret configured")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), io.Discard)
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLauncher_Check(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	doc := "source:\n  kind: file\n  path: " + cfg.Source.Path + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	var out bytes.Buffer
	require.NoError(t, Launcher{LogOutput: io.Discard}.Check(context.Background(), path, &out))
	assert.Equal(t, "configuration ok: 2 listings from file source\n", out.String())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("cache:\n  backend: memcached\n"), 0o600))
	err := Launcher{}.Check(context.Background(), bad, &out)
	assert.ErrorContains(t, err, config.ErrInvalid.Error())
}
