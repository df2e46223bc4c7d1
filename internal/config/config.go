package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Auth modes.
const (
	AuthHeader = "header"
	AuthRemote = "remote"
)

type AppConfig struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// RedisURL selects the Redis store; empty runs the in-memory store.
	RedisURL string        `env:"REDIS_URL"`
	RoomTTL  time.Duration `env:"ROOM_TTL" envDefault:"24h"`
	// DatabaseURL enables the Postgres archive of finished games.
	DatabaseURL string `env:"DATABASE_URL"`

	AuthMode    string        `env:"AUTH_MODE" envDefault:"header"`
	AuthHeader  string        `env:"AUTH_HEADER" envDefault:"X-User-Id"`
	AuthQuery   bool          `env:"AUTH_QUERY_FALLBACK" envDefault:"false"`
	AuthBaseURL string        `env:"AUTH_BASE_URL"`
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT" envDefault:"3s"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	SendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"32"`
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`

	Verbose     bool   `env:"VERBOSE" envDefault:"false"`
	MessagesDir string `env:"MESSAGES_DIR"`

	Log LogConfig `envPrefix:"LOG_"`
}

// LogConfig drives obslog.New.
type LogConfig struct {
	Level   string `env:"LEVEL" envDefault:"info"`
	Format  string `env:"FORMAT" envDefault:"legacy"`
	Console bool   `env:"TO_CONSOLE" envDefault:"true"`
	ToFile  bool   `env:"TO_FILE" envDefault:"false"`
	File    string `env:"FILE" envDefault:"logs/arena.log"`
	Caller  bool   `env:"CALLER" envDefault:"false"`
}

// Load reads the process environment.
func Load() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finish(&cfg)
}

// LoadFrom reads configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *AppConfig) (*AppConfig, error) {
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	cfg.AuthHeader = strings.TrimSpace(cfg.AuthHeader)
	cfg.AuthBaseURL = strings.TrimRight(strings.TrimSpace(cfg.AuthBaseURL), "/")
	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("LISTEN_ADDR must not be empty"))
	}
	switch c.AuthMode {
	case AuthHeader:
		if c.AuthHeader == "" {
			errs = append(errs, errors.New("AUTH_HEADER required in header mode"))
		}
	case AuthRemote:
		if c.AuthBaseURL == "" {
			errs = append(errs, errors.New("AUTH_BASE_URL required in remote mode"))
		} else if u, err := url.Parse(c.AuthBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("AUTH_BASE_URL invalid: %q", c.AuthBaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthHeader, AuthRemote, c.AuthMode))
	}
	if c.RoomTTL <= 0 {
		errs = append(errs, errors.New("ROOM_TTL must be positive"))
	}
	if c.AuthTimeout <= 0 {
		errs = append(errs, errors.New("AUTH_TIMEOUT must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("WS_SEND_BUFFER must be positive"))
	}
	if c.PingInterval <= 0 {
		errs = append(errs, errors.New("WS_PING_INTERVAL must be positive"))
	}
	switch c.Log.Format {
	case "legacy", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be legacy, console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
