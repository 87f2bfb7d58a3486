package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// InstanceDefaults holds the pricing defaults applied to a cart instance.
type InstanceDefaults struct {
	Currency string
	TaxBps   int64
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string

	CartDefaults  InstanceDefaults
	CartInstances map[string]InstanceDefaults
	CartTTL       time.Duration

	WebhookURL    string
	WebhookSecret string

	LockTTL     time.Duration
	LockBackoff time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	defaults := InstanceDefaults{
		Currency: strings.ToUpper(valueOrDefault(k.String("CART_CURRENCY"), "GBP")),
		TaxBps:   parseBps(k.String("CART_TAX_PERCENT"), 2000),
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		CartDefaults:       defaults,
		CartInstances:      loadInstances(k, defaults),
		CartTTL:            parseDuration(k.String("CART_TTL"), "168h"),
		WebhookURL:         strings.TrimSpace(k.String("WEBHOOK_URL")),
		WebhookSecret:      k.String("WEBHOOK_SECRET"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "5s"),
		LockBackoff:        parseDuration(k.String("LOCK_BACKOFF"), "50ms"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// loadInstances reads comma separated CART_INSTANCES and, for each name, the
// optional CART_<NAME>_CURRENCY and CART_<NAME>_TAX_PERCENT overrides. Missing
// overrides fall back to the global defaults.
func loadInstances(k *koanf.Koanf, defaults InstanceDefaults) map[string]InstanceDefaults {
	instances := make(map[string]InstanceDefaults)
	for _, name := range splitAndTrim(k.String("CART_INSTANCES")) {
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		inst := InstanceDefaults{
			Currency: strings.ToUpper(valueOrDefault(k.String("CART_"+key+"_CURRENCY"), defaults.Currency)),
			TaxBps:   parseBps(k.String("CART_"+key+"_TAX_PERCENT"), defaults.TaxBps),
		}
		instances[strings.ToLower(name)] = inst
	}
	return instances
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// parseBps reads a percentage with up to two decimals and returns basis
// points, e.g. "17.5" becomes 1750.
func parseBps(value string, fallback int64) int64 {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	whole, frac, _ := strings.Cut(base, ".")
	bps, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fallback
	}
	bps *= 100
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		hundredths, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return fallback
		}
		if bps < 0 {
			bps -= hundredths
		} else {
			bps += hundredths
		}
	}
	return bps
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
