package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/authsvc/internal/auth/security"
	"github.com/aussiebroadwan/authsvc/internal/auth/service"
	"github.com/aussiebroadwan/authsvc/pkg/httpx"
	"github.com/aussiebroadwan/authsvc/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is loaded from an optional YAML file (AUTH_CONFIG_FILE) and then
// overridden by environment variables.
type Config struct {
	Issuer          string        `yaml:"issuer"`            // AUTH_ISSUER
	Audience        []string      `yaml:"audience"`          // AUTH_AUDIENCE, comma separated
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`  // AUTH_ACCESS_TOKEN_TTL (default: 15m)
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"` // AUTH_REFRESH_TOKEN_TTL (default: 168h)
	ClockLeeway     time.Duration `yaml:"clock_leeway"`      // AUTH_CLOCK_LEEWAY (default: 0)

	// KeyFile is a PKCS#12 bundle, a PEM private key or a sealed PEM key.
	KeyFile       string `yaml:"key_file"` // AUTH_KEY_FILE
	KeyPassphrase string `yaml:"-"`        // AUTH_KEY_PASSPHRASE, env only

	DatabaseDriver string `yaml:"database_driver"` // AUTH_DATABASE_DRIVER (sqlite, postgres) (default: sqlite)
	DatabaseFile   string `yaml:"database_file"`   // AUTH_DATABASE_FILE (default: auth.db)
	DatabaseURL    string `yaml:"-"`               // AUTH_DATABASE_URL, env only (may hold a password)

	RedisAddr      string        `yaml:"redis_addr"`      // REDIS_ADDR; empty disables cross-instance reuse tracking
	ReuseWindow    time.Duration `yaml:"reuse_window"`    // REUSE_WINDOW (default: 15m)
	ReuseThreshold int64         `yaml:"reuse_threshold"` // REUSE_THRESHOLD (default: 3)

	PepperFile string `yaml:"pepper_file"` // AUTH_PEPPER_FILE (default: pepper)

	Env       string `yaml:"env"`        // ENV (dev, staging, prod) (default: dev)
	LogLevel  string `yaml:"log_level"`  // LOG_LEVEL (default: info)
	LogFormat string `yaml:"log_format"` // LOG_FORMAT (json, text) (default: json)

	Port                 int           `yaml:"port"`                  // PORT (default: 8080)
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"` // SHUTDOWN_GRACE_PERIOD (default: 10s)
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"` // HOUSEKEEPING_INTERVAL (default: 1h)
	RefreshRetention     time.Duration `yaml:"refresh_retention"`     // REFRESH_RETENTION (default: 720h)

	RateLimits httpx.RateLimitProfiles `yaml:"rate_limits"` // RATELIMIT_{PROFILE}_*

	// TrustedProxies may set X-Forwarded-For; CIDRs or addresses. Empty
	// keys rate limits on the peer address.
	TrustedProxies []string `yaml:"trusted_proxies"` // AUTH_TRUSTED_PROXIES, comma separated
}

// ConfigError reports an invalid setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Issuer:               "authsvc",
		AccessTokenTTL:       jwtx.DefaultAccessTokenTTL,
		RefreshTokenTTL:      jwtx.DefaultRefreshTokenTTL,
		DatabaseDriver:       DriverSQLite,
		DatabaseFile:         "auth.db",
		ReuseWindow:          security.DefaultWindow,
		ReuseThreshold:       security.DefaultThreshold,
		PepperFile:           "pepper",
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: time.Hour,
		RefreshRetention:     service.DefaultRefreshRetention,
		RateLimits:           httpx.DefaultRateLimitProfiles(),
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// and the environment, in that order.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("AUTH_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.Audience = getEnvListOrDefault("AUTH_AUDIENCE", cfg.Audience)
	cfg.AccessTokenTTL = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)
	cfg.RefreshTokenTTL = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL)
	cfg.ClockLeeway = getEnvDurationOrDefault("AUTH_CLOCK_LEEWAY", cfg.ClockLeeway)

	cfg.KeyFile = getEnvOrDefault("AUTH_KEY_FILE", cfg.KeyFile)
	cfg.KeyPassphrase = os.Getenv("AUTH_KEY_PASSPHRASE")

	cfg.DatabaseDriver = getEnvOrDefault("AUTH_DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.DatabaseURL = os.Getenv("AUTH_DATABASE_URL")

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.ReuseWindow = getEnvDurationOrDefault("REUSE_WINDOW", cfg.ReuseWindow)
	cfg.ReuseThreshold = int64(getEnvIntOrDefault("REUSE_THRESHOLD", int(cfg.ReuseThreshold)))

	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)

	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)

	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)
	cfg.RefreshRetention = getEnvDurationOrDefault("REFRESH_RETENTION", cfg.RefreshRetention)

	cfg.RateLimits = cfg.RateLimits.WithEnv(os.LookupEnv)
	cfg.TrustedProxies = getEnvListOrDefault("AUTH_TRUSTED_PROXIES", cfg.TrustedProxies)

	return cfg, nil
}

// Validate checks the settings the service cannot run without. The key store
// itself is checked when the key is loaded.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Issuer) == "":
		return &ConfigError{Field: "issuer", Reason: "is required"}
	case len(c.Audience) == 0:
		return &ConfigError{Field: "audience", Reason: "is required"}
	case c.AccessTokenTTL <= 0:
		return &ConfigError{Field: "access_token_ttl", Reason: "must be positive"}
	case c.RefreshTokenTTL <= 0:
		return &ConfigError{Field: "refresh_token_ttl", Reason: "must be positive"}
	case c.ClockLeeway < 0:
		return &ConfigError{Field: "clock_leeway", Reason: "must not be negative"}
	case c.Port <= 0 || c.Port > 65535:
		return &ConfigError{Field: "port", Reason: "is out of range"}
	case c.HousekeepingInterval <= 0:
		return &ConfigError{Field: "housekeeping_interval", Reason: "must be positive"}
	case c.RefreshRetention < 0:
		return &ConfigError{Field: "refresh_retention", Reason: "must not be negative"}
	}

	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		return &ConfigError{Field: "trusted_proxies", Reason: err.Error()}
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			return &ConfigError{Field: "database_file", Reason: "is required for sqlite"}
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return &ConfigError{Field: "AUTH_DATABASE_URL", Reason: "is required for postgres"}
		}
	default:
		return &ConfigError{Field: "database_driver", Reason: fmt.Sprintf("%q is not supported", c.DatabaseDriver)}
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
