// Package app wires the storefront components from a configuration and runs
// them.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"github.com/manenim/storefront/internal/catalog"
	"github.com/manenim/storefront/internal/config"
	"github.com/manenim/storefront/internal/httpapi"
	"github.com/manenim/storefront/internal/listing"
	"github.com/manenim/storefront/pkg/cache"
	"github.com/manenim/storefront/pkg/limiter"
	"github.com/manenim/storefront/pkg/metrics"
	"github.com/manenim/storefront/pkg/search"
)

var (
	ErrRedis   = zerr.New("cannot connect to redis")
	ErrCatalog = zerr.New("cannot load initial catalog")
)

// App holds the running components of one storefront server.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	queries  *cache.Cache[[]string]
	catalog  *catalog.Catalog
	memory   *limiter.MemoryLimiter
	server   *httpapi.Server
	registry *prometheus.Registry

	closers []func()
}

// New builds every component described by cfg and loads the catalog once.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *App, err error) {
	a := &App{
		cfg:    cfg,
		logger: cfg.Log.NewLogger(logOut),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewPrometheus("storefront", a.registry)

	var rdb redis.UniversalClient
	if cfg.NeedsRedis() {
		if rdb, err = a.connectRedis(ctx); err != nil {
			return nil, err
		}
	}

	var store cache.Store = cache.NewMemoryStore(cfg.Cache.MaxEntries)
	if cfg.Cache.Backend == "redis" {
		store = cache.NewRedisStore(rdb)
	}
	a.queries, err = cache.New[[]string](store,
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithDefaultCompression(cfg.Cache.Compress),
		cache.WithLogger(a.logger),
		cache.WithRecorder(rec, "search"),
	)
	if err != nil {
		return nil, err
	}

	ix, err := search.NewIndexer[listing.Listing](listing.Schema(), a.queries,
		search.WithLogger(a.logger),
		search.WithRecorder(rec),
	)
	if err != nil {
		return nil, err
	}

	src, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog.New(src, ix, catalog.WithLogger(a.logger))
	if err := a.catalog.Reload(ctx); err != nil {
		return nil, zerr.Wrap(err, ErrCatalog.Error())
	}

	guard, err := a.guard(rdb, rec)
	if err != nil {
		return nil, err
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if secret, err = randomSecret(); err != nil {
			return nil, err
		}
		a.logger.Warn("no jwt secret configured, tokens will not survive a restart")
	}
	tokens, err := httpapi.NewTokens(secret, cfg.Auth.TokenTTL, nil)
	if err != nil {
		return nil, err
	}

	a.server, err = httpapi.New(httpapi.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Admin:           httpapi.Credentials{User: cfg.Auth.AdminUser, Password: cfg.Auth.AdminPassword},
		MediaDir:        cfg.Media.Dir,
		MaxUploadBytes:  cfg.Media.MaxBytes,
		WhatsApp:        cfg.Contact.WhatsApp,
		MaxResults:      cfg.Search.MaxResults,
		MinQueryLength:  cfg.Search.MinQueryLength,
		ResultTTL:       cfg.Search.ResultTTL,
		MaxSuggestions:  cfg.Search.MaxSuggestions,
	}, a.catalog, guard, tokens,
		httpapi.WithLogger(a.logger),
		httpapi.WithRecorder(rec),
		httpapi.WithGatherer(a.registry),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) connectRedis(ctx context.Context) (redis.UniversalClient, error) {
	rc := a.cfg.Redis
	client := redis.NewClient(&redis.Options{
		Addr:        rc.Addr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, rc.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrRedis.Error()), "addr", rc.Addr)
	}
	a.logger.Info("connected to redis", "addr", rc.Addr)
	return client, nil
}

func (a *App) source(ctx context.Context) (listing.Source, error) {
	switch a.cfg.Source.Kind {
	case "postgres":
		src, err := listing.ConnectPostgres(ctx, a.cfg.Source.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, src.Close)
		return src, nil
	default:
		return listing.FileSource{Path: a.cfg.Source.Path}, nil
	}
}

func (a *App) guard(rdb redis.UniversalClient, rec metrics.Recorder) (*limiter.Guard, error) {
	var rl limiter.RateLimiter
	switch a.cfg.Limiter.Backend {
	case "redis":
		r, err := limiter.NewRedisLimiter(rdb,
			limiter.WithPrefix(a.cfg.Limiter.Prefix),
			limiter.WithRecorder(rec),
			limiter.WithLogger(a.logger),
		)
		if err != nil {
			return nil, zerr.Wrap(err, ErrRedis.Error())
		}
		rl = r
	default:
		a.memory = limiter.NewMemoryLimiter(
			limiter.WithRecorder(rec),
			limiter.WithLogger(a.logger),
		)
		rl = a.memory
	}

	policies, err := a.cfg.Policies()
	if err != nil {
		return nil, err
	}
	identify, ok := limiter.IdentityByName(a.cfg.Limiter.Identity)
	if !ok {
		return nil, zerr.With(config.ErrInvalid, "limiter.identity", a.cfg.Limiter.Identity)
	}
	return limiter.NewGuard(rl, policies, identify)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", zerr.Wrap(err, "generate jwt secret")
	}
	return hex.EncodeToString(b), nil
}

// Catalog returns the live listing collection.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Handler returns the HTTP handler without starting a listener.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP and runs the background jobs until ctx is done or one of
// them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.server.Run(ctx)
	})

	if d := a.cfg.Cache.CleanupInterval; d > 0 {
		g.Go(func() error {
			a.queries.Run(ctx, d)
			return nil
		})
	}

	if a.memory != nil && a.cfg.Limiter.SweepInterval > 0 {
		g.Go(func() error {
			a.memory.Run(ctx, a.cfg.Limiter.SweepInterval)
			return nil
		})
	}

	switch a.cfg.Source.Kind {
	case "postgres":
		if d := a.cfg.Source.Refresh; d > 0 {
			g.Go(func() error {
				a.catalog.Poll(ctx, d)
				return nil
			})
		}
	default:
		g.Go(func() error {
			return a.catalog.Watch(ctx, a.cfg.Source.Path, a.cfg.Search.Debounce)
		})
	}

	err := g.Wait()
	a.queries.Close(context.Background())
	return err
}

// Close releases external connections. It is safe to call more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
