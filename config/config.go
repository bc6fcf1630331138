package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/n2kfchd42b-glitch/researchflow-sub002/observe"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Provider names.
const (
	ProviderMessages = "messages"
	ProviderGemini   = "gemini"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreNone   = "none"
)

// Config is the daemon configuration.
type Config struct {
	Provider  string        `env:"RESEARCHFLOW_PROVIDER" envDefault:"messages"`
	Model     string        `env:"RESEARCHFLOW_MODEL"`
	BaseURL   string        `env:"RESEARCHFLOW_BASE_URL"`
	APIKeyRef string        `env:"RESEARCHFLOW_API_KEY_REF" envDefault:"${ANTHROPIC_API_KEY}"`
	Timeout   time.Duration `env:"RESEARCHFLOW_TIMEOUT" envDefault:"120s"`

	Store           string `env:"RESEARCHFLOW_STORE" envDefault:"memory"`
	StorePath       string `env:"RESEARCHFLOW_STORE_PATH" envDefault:"researchflow-cache.db"`
	StoreQuotaBytes int64  `env:"RESEARCHFLOW_STORE_QUOTA_BYTES" envDefault:"5242880"`
	KeyPrefix       string `env:"RESEARCHFLOW_KEY_PREFIX" envDefault:"rf-ai-cache:"`

	Listen    string   `env:"RESEARCHFLOW_LISTEN" envDefault:":8080"`
	APIKeys   []string `env:"RESEARCHFLOW_API_KEYS" envSeparator:","`
	JWTSecret string   `env:"RESEARCHFLOW_JWT_SECRET"`
	JWTIssuer string   `env:"RESEARCHFLOW_JWT_ISSUER"`

	Observe ObserveConfig
}

// ObserveConfig selects telemetry exporters.
type ObserveConfig struct {
	ServiceName     string  `env:"OBSERVE_SERVICE_NAME" envDefault:"researchflowd"`
	LogLevel        string  `env:"OBSERVE_LOG_LEVEL" envDefault:"info"`
	TracingExporter string  `env:"OBSERVE_TRACING_EXPORTER" envDefault:"none"`
	MetricsExporter string  `env:"OBSERVE_METRICS_EXPORTER" envDefault:"none"`
	SamplePct       float64 `env:"OBSERVE_SAMPLE_PCT" envDefault:"1"`
}

// Load reads the given .env files (".env" when none are named), then parses
// the environment and validates the result. Missing .env files are ignored.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load dotenv: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting, joined. It does not require the
// service credential; a missing credential surfaces on the first call.
func (c Config) Validate() error {
	var errs []error
	invalid := func(name string, v any) {
		errs = append(errs, fmt.Errorf("%w: %s=%v", ErrInvalid, name, v))
	}

	switch c.Provider {
	case ProviderMessages, ProviderGemini:
	default:
		invalid("RESEARCHFLOW_PROVIDER", c.Provider)
	}
	switch c.Store {
	case StoreMemory, StoreNone:
	case StoreSQLite:
		if strings.TrimSpace(c.StorePath) == "" {
			invalid("RESEARCHFLOW_STORE_PATH", `""`)
		}
	default:
		invalid("RESEARCHFLOW_STORE", c.Store)
	}
	if c.Timeout <= 0 {
		invalid("RESEARCHFLOW_TIMEOUT", c.Timeout)
	}
	if c.StoreQuotaBytes < 0 {
		invalid("RESEARCHFLOW_STORE_QUOTA_BYTES", c.StoreQuotaBytes)
	}
	if c.KeyPrefix == "" {
		invalid("RESEARCHFLOW_KEY_PREFIX", `""`)
	}

	obs := c.ObserveConfig("")
	if err := obs.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Keys returns the configured API keys with blanks removed.
func (c Config) Keys() []string {
	out := make([]string, 0, len(c.APIKeys))
	for _, k := range c.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// AuthEnabled reports whether any API key or JWT secret is configured.
func (c Config) AuthEnabled() bool {
	return len(c.Keys()) > 0 || c.JWTSecret != ""
}

// ObserveConfig maps the telemetry settings onto observe.Config. The
// "none" exporter disables its subsystem.
func (c Config) ObserveConfig(version string) observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingExporter != "none" && o.TracingExporter != "",
			Exporter:  o.TracingExporter,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsExporter != "none" && o.MetricsExporter != "",
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{Enabled: true, Level: o.LogLevel},
	}
}
