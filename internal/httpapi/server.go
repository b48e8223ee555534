// Package httpapi exposes the storefront catalog over HTTP. Every route is
// guarded by the rate limit policy of its category.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manenim/storefront/internal/catalog"
	"github.com/manenim/storefront/pkg/limiter"
	"github.com/manenim/storefront/pkg/metrics"
)

// Credentials of the single admin account.
type Credentials struct {
	User     string
	Password string
}

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Admin Credentials

	MediaDir       string
	MaxUploadBytes int64

	// WhatsApp is the dealership number, digits only.
	WhatsApp string

	MaxResults     int
	MinQueryLength int
	ResultTTL      time.Duration
	MaxSuggestions int
}

const defaultShutdownTimeout = 10 * time.Second

type options struct {
	logger   *slog.Logger
	clock    clockwork.Clock
	recorder metrics.Recorder
	gatherer prometheus.Gatherer
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = metrics.OrNoOp(r)
	}
}

// WithGatherer serves g on /metrics. Without it the route is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = g
	}
}

type Server struct {
	cfg     Config
	catalog *catalog.Catalog
	guard   *limiter.Guard
	tokens  *Tokens
	admin   Credentials

	logger   *slog.Logger
	clock    clockwork.Clock
	recorder metrics.Recorder
	gatherer prometheus.Gatherer

	router *gin.Engine
}

func New(cfg Config, cat *catalog.Catalog, guard *limiter.Guard, tokens *Tokens, opts ...Option) (*Server, error) {
	o := options{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    clockwork.NewRealClock(),
		recorder: metrics.NoOp{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		catalog:  cat,
		guard:    guard,
		tokens:   tokens,
		admin:    cfg.Admin,
		logger:   o.logger,
		clock:    o.clock,
		recorder: o.recorder,
		gatherer: o.gatherer,
		router:   router,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", s.health)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", s.session(), s.identify())

	listings := api.Group("/listings")
	listings.GET("/search", s.rateLimit(limiter.CategorySearch), s.search)
	listings.GET("/suggest", s.rateLimit(limiter.CategorySearch), s.suggest)
	listings.GET("/filter", s.rateLimit(limiter.CategorySearch), s.filter)
	listings.GET("", s.rateLimit(limiter.CategoryGeneral), s.list)
	listings.GET("/:id", s.rateLimit(limiter.CategoryGeneral), s.get)
	listings.GET("/:id/whatsapp", s.rateLimit(limiter.CategoryMessaging), s.whatsapp)

	api.POST("/auth/login", s.rateLimit(limiter.CategoryAuth), s.login)
	api.POST("/media", s.rateLimit(limiter.CategoryUpload), s.requireAdmin(), s.upload)
	api.GET("/limits", s.rateLimit(limiter.CategoryGeneral), s.limits)

	if s.cfg.MediaDir != "" {
		r.Static("/media", s.cfg.MediaDir)
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
