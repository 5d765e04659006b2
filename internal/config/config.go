package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"furniture-dashboard/internal/apiclient"
)

type Config struct {
	ServerPort              string        `env:"SERVER_PORT" envDefault:"8080"`
	ServerReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"15s"`
	ServerWriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ServerIdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	APIBaseURL             string        `env:"API_BASE_URL" envDefault:"http://localhost:3000"`
	UpstreamTimeout        time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	UpstreamMaxConns       int           `env:"UPSTREAM_MAX_CONNS" envDefault:"100"`
	BreakerMinRequests     uint32        `env:"BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerFailureRatio    float64       `env:"BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerOpenTimeout     time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
	CacheGracePeriod       time.Duration `env:"CACHE_GRACE_PERIOD" envDefault:"60s"`
	SessionResolveWait     time.Duration `env:"SESSION_RESOLVE_WAIT" envDefault:"2s"`
	WorkspaceIdleTTL       time.Duration `env:"WORKSPACE_IDLE_TTL" envDefault:"30m"`
	WorkspaceSweepInterval time.Duration `env:"WORKSPACE_SWEEP_INTERVAL" envDefault:"5m"`
	WorkspaceMax           int           `env:"WORKSPACE_MAX" envDefault:"10000"`
	CookieSecure           bool          `env:"COOKIE_SECURE" envDefault:"false"`

	CORSOrigins      []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RateLimitRPM     int      `env:"RATE_LIMIT_RPM" envDefault:"300"`
	AuthRateLimitRPM int      `env:"AUTH_RATE_LIMIT_RPM" envDefault:"10"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	StaticDir string `env:"STATIC_DIR"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom reads configuration from environ only.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, describeParseError(err)
	}

	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// describeParseError names the environment variables behind fields the env
// package could not parse.
func describeParseError(err error) error {
	var aggregate env.AggregateError
	if !errors.As(err, &aggregate) {
		return fmt.Errorf("parse environment: %w", err)
	}

	problems := make([]string, 0, len(aggregate.Errors))
	for _, fieldErr := range aggregate.Errors {
		var parseErr env.ParseError
		if errors.As(fieldErr, &parseErr) {
			problems = append(problems, fmt.Sprintf("%s: %v", envName(parseErr.Name), parseErr.Err))
			continue
		}
		problems = append(problems, fieldErr.Error())
	}
	return fmt.Errorf("parse environment: %s", strings.Join(problems, "; "))
}

func envName(field string) string {
	f, ok := reflect.TypeFor[Config]().FieldByName(field)
	if !ok {
		return field
	}
	if name, _, _ := strings.Cut(f.Tag.Get("env"), ","); name != "" {
		return name
	}
	return field
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	base, err := url.Parse(c.APIBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}

	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0, 1]")
	}

	if c.CacheGracePeriod < 0 {
		return fmt.Errorf("CACHE_GRACE_PERIOD cannot be negative")
	}

	if c.SessionResolveWait < 0 {
		return fmt.Errorf("SESSION_RESOLVE_WAIT cannot be negative")
	}

	if c.WorkspaceIdleTTL <= 0 || c.WorkspaceSweepInterval <= 0 {
		return fmt.Errorf("WORKSPACE_IDLE_TTL and WORKSPACE_SWEEP_INTERVAL must be positive")
	}

	if c.WorkspaceMax <= 0 {
		return fmt.Errorf("WORKSPACE_MAX must be positive")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json")
	}

	return nil
}

// Upstream is the client configuration of the inventory API.
func (c *Config) Upstream() apiclient.Config {
	return apiclient.Config{
		BaseURL:            c.APIBaseURL,
		Timeout:            c.UpstreamTimeout,
		MaxConnsPerHost:    c.UpstreamMaxConns,
		BreakerMinRequests: c.BreakerMinRequests,
		BreakerFailure:     c.BreakerFailureRatio,
		BreakerTimeout:     c.BreakerOpenTimeout,
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
