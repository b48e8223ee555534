// Package config loads the storefront server configuration.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/manenim/storefront/pkg/limiter"
)

var (
	ErrRead    = zerr.New("cannot read config file")
	ErrParse   = zerr.New("cannot parse config file")
	ErrInvalid = zerr.New("invalid configuration")
)

// Load reads the YAML file at path over the defaults returned by fn. An
// empty path or a missing file yields the defaults; an unreadable or
// malformed file is an error.
func Load[T any](path string, fn func() *T) (*T, error) {
	cfg := fn()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrRead.Error()), "path", path)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrParse.Error()), "path", path)
	}
	return cfg, nil
}

type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Log struct {
	// Format is "text" or "json".
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type Cache struct {
	// Backend is "memory" or "redis".
	Backend         string        `yaml:"backend"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	MaxEntries      int           `yaml:"max_entries"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Prefix          string        `yaml:"prefix"`
	Compress        bool          `yaml:"compress"`
}

type Search struct {
	MaxResults     int           `yaml:"max_results"`
	MinQueryLength int           `yaml:"min_query_length"`
	ResultTTL      time.Duration `yaml:"result_ttl"`
	Debounce       time.Duration `yaml:"debounce"`
	MaxSuggestions int           `yaml:"max_suggestions"`
}

type Limit struct {
	Window      time.Duration `yaml:"window"`
	MaxRequests int64         `yaml:"max_requests"`
}

type Limiter struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
	Prefix  string `yaml:"prefix"`
	// Identity is "composite", "address", "user" or "session".
	Identity      string        `yaml:"identity"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type Redis struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type Source struct {
	// Kind is "file" or "postgres".
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
	// Refresh is the reload interval of the postgres source.
	Refresh time.Duration `yaml:"refresh"`
}

type Auth struct {
	AdminUser     string        `yaml:"admin_user"`
	AdminPassword string        `yaml:"admin_password"`
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

type Media struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type Contact struct {
	// WhatsApp is the dealership number in international format, digits only.
	WhatsApp string `yaml:"whatsapp"`
}

type Config struct {
	Server  Server           `yaml:"server"`
	Log     Log              `yaml:"log"`
	Cache   Cache            `yaml:"cache"`
	Search  Search           `yaml:"search"`
	Limits  map[string]Limit `yaml:"limits"`
	Limiter Limiter          `yaml:"limiter"`
	Redis   Redis            `yaml:"redis"`
	Source  Source           `yaml:"source"`
	Auth    Auth             `yaml:"auth"`
	Media   Media            `yaml:"media"`
	Contact Contact          `yaml:"contact"`
}

// Default returns a configuration that runs without any external service.
func Default() *Config {
	limits := make(map[string]Limit, len(limiter.Categories))
	for cat, l := range limiter.DefaultPolicies() {
		limits[string(cat)] = Limit{Window: l.Window, MaxRequests: l.MaxRequests}
	}

	return &Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: Log{Format: "text", Level: "info"},
		Cache: Cache{
			Backend:         "memory",
			DefaultTTL:      5 * time.Minute,
			MaxEntries:      10000,
			CleanupInterval: time.Minute,
			Prefix:          "storefront:cache:",
		},
		Search: Search{
			MaxResults:     50,
			MinQueryLength: 2,
			ResultTTL:      5 * time.Minute,
			Debounce:       300 * time.Millisecond,
			MaxSuggestions: 10,
		},
		Limits: limits,
		Limiter: Limiter{
			Backend:       "memory",
			Prefix:        "storefront:limit:",
			Identity:      "composite",
			SweepInterval: time.Minute,
		},
		Redis: Redis{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		Source: Source{
			Kind:    "file",
			Path:    "listings.yaml",
			Refresh: time.Minute,
		},
		Auth: Auth{
			AdminUser: "admin",
			TokenTTL:  12 * time.Hour,
		},
		Media: Media{
			Dir:      "media",
			MaxBytes: 10 << 20,
		},
	}
}

// LoadFile loads path over Default, applies environment overrides and
// validates the result.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load(path, Default)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("STOREFRONT_REDIS_ADDR"); ok && v != "" {
		c.Redis.Addr = v
	}
	if v, ok := lookup("STOREFRONT_JWT_SECRET"); ok && v != "" {
		c.Auth.JWTSecret = v
	}
	if v, ok := lookup("STOREFRONT_POSTGRES_DSN"); ok && v != "" {
		c.Source.DSN = v
	}
	if v, ok := lookup("STOREFRONT_ADMIN_PASSWORD"); ok && v != "" {
		c.Auth.AdminPassword = v
	}
}

// invalid tags ErrInvalid with the offending field as metadata key.
func invalid(field, value string) error {
	return zerr.With(ErrInvalid, field, value)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", c.Log.Format)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return invalid("cache.backend", c.Cache.Backend)
	}
	if c.Cache.DefaultTTL <= 0 {
		return invalid("cache.default_ttl", c.Cache.DefaultTTL.String())
	}
	if c.Cache.MaxEntries < 0 {
		return invalid("cache.max_entries", strconv.Itoa(c.Cache.MaxEntries))
	}

	if c.Search.MaxResults <= 0 {
		return invalid("search.max_results", strconv.Itoa(c.Search.MaxResults))
	}
	if c.Search.MinQueryLength < 0 {
		return invalid("search.min_query_length", strconv.Itoa(c.Search.MinQueryLength))
	}

	if _, err := c.Policies(); err != nil {
		return err
	}
	switch c.Limiter.Backend {
	case "memory", "redis":
	default:
		return invalid("limiter.backend", c.Limiter.Backend)
	}
	if _, ok := limiter.IdentityByName(c.Limiter.Identity); !ok {
		return invalid("limiter.identity", c.Limiter.Identity)
	}

	switch c.Source.Kind {
	case "file":
		if c.Source.Path == "" {
			return invalid("source.path", "")
		}
	case "postgres":
		if c.Source.DSN == "" {
			return invalid("source.dsn", "")
		}
	default:
		return invalid("source.kind", c.Source.Kind)
	}

	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", c.Auth.TokenTTL.String())
	}
	if c.Media.MaxBytes <= 0 {
		return invalid("media.max_bytes", strconv.FormatInt(c.Media.MaxBytes, 10))
	}
	return nil
}

// NeedsRedis reports whether any component is configured on Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend == "redis" || c.Limiter.Backend == "redis"
}

// Policies converts the limits section. Every built-in category must be
// configured; unknown categories are rejected.
func (c *Config) Policies() (limiter.Policies, error) {
	known := make(map[string]bool, len(limiter.Categories))
	for _, cat := range limiter.Categories {
		known[string(cat)] = true
	}

	policies := make(limiter.Policies, len(c.Limits))
	for name, l := range c.Limits {
		if !known[name] {
			return nil, invalid("limits", name)
		}
		limit := limiter.Limit{Window: l.Window, MaxRequests: l.MaxRequests}
		if err := limit.Validate(); err != nil {
			return nil, zerr.With(err, "category", name)
		}
		policies[limiter.Category(name)] = limit
	}
	for _, cat := range limiter.Categories {
		if _, ok := policies[cat]; !ok {
			return nil, invalid("limits", string(cat)+" missing")
		}
	}
	return policies, nil
}
