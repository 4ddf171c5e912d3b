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

	"github.com/noah-isme/toko-checkout/internal/money"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv   string
	Port     string
	RedisURL string

	BackendBaseURL     string
	BackendTimeout     time.Duration
	RetryMaxAttempts   int
	RetryBase          time.Duration
	RetryJitterPercent int
	CircuitMinRequests int
	CircuitFailRatio   float64
	CircuitOpenFor     time.Duration

	CurrencyCode     string
	DisplayLocale    string
	StoreName        string
	GatewayKeyID     string
	GatewayKeySecret string

	SessionTTL      time.Duration
	CartCacheTTL    time.Duration
	IdempotencyTTL  time.Duration
	InFlightLockTTL time.Duration

	RateLimitDriver    string
	RateLimitCouponMax int
	RateLimitWindow    time.Duration

	CORSAllowedOrigins []string
	BodyLimitBytes     int64

	QueueConcurrency    int
	SupportTaskMaxRetry int

	ShutdownTimeout time.Duration
	Obs             ObsConfig
}

// ObsConfig groups logging, metrics, tracing, profiling and probe settings.
type ObsConfig struct {
	LogFormat string
	LogLevel  string
	Version   string

	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string

	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	TracingSampling float64

	PprofEnabled bool
	PprofUser    string
	PprofPass    string

	ReadyBackendTimeout time.Duration
	ReadyRedisTimeout   time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:   valueOrDefault(k.String("APP_ENV"), "development"),
		Port:     valueOrDefault(k.String("PORT"), "8080"),
		RedisURL: strings.TrimSpace(k.String("REDIS_URL")),

		BackendBaseURL:     strings.TrimRight(strings.TrimSpace(k.String("BACKEND_BASE_URL")), "/"),
		BackendTimeout:     parseDuration(k.String("BACKEND_TIMEOUT"), "5s"),
		RetryMaxAttempts:   parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryBase:          parseDuration(k.String("RETRY_BASE"), "100ms"),
		RetryJitterPercent: parseInt(k.String("RETRY_JITTER_PERCENT"), 20),
		CircuitMinRequests: parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 10),
		CircuitFailRatio:   parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:     parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),

		CurrencyCode:     money.NormaliseCurrency(k.String("CURRENCY_CODE")),
		DisplayLocale:    valueOrDefault(k.String("DISPLAY_LOCALE"), "en-IN"),
		StoreName:        valueOrDefault(k.String("STORE_NAME"), "Toko"),
		GatewayKeyID:     strings.TrimSpace(k.String("GATEWAY_KEY_ID")),
		GatewayKeySecret: strings.TrimSpace(k.String("GATEWAY_KEY_SECRET")),

		SessionTTL:      parseDuration(k.String("SESSION_TTL"), "2h"),
		CartCacheTTL:    parseDuration(k.String("CART_CACHE_TTL"), "30s"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		InFlightLockTTL: parseDuration(k.String("INFLIGHT_LOCK_TTL"), "30s"),

		RateLimitDriver:    strings.ToLower(valueOrDefault(k.String("RATE_LIMIT_DRIVER"), "sliding")),
		RateLimitCouponMax: parseInt(k.String("RATE_LIMIT_COUPON_MAX"), 10),
		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		QueueConcurrency:    parseInt(k.String("QUEUE_CONCURRENCY"), 5),
		SupportTaskMaxRetry: parseInt(k.String("SUPPORT_TASK_MAX_RETRY"), 5),

		ShutdownTimeout: parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		Obs:             loadObs(k),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	switch cfg.RateLimitDriver {
	case "sliding", "ulule":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_DRIVER must be sliding or ulule, got %q", cfg.RateLimitDriver)
	}

	return cfg, nil
}

func loadObs(k *koanf.Koanf) ObsConfig {
	return ObsConfig{
		LogFormat: valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:  valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		Version:   valueOrDefault(k.String("APP_VERSION"), "dev"),

		MetricsEnabled:   boolOrDefault(k, "OBS_ENABLE_PROMETHEUS", true),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "checkout"),
		MetricsBuckets:   strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),

		TracingEnabled:  boolOrDefault(k, "OBS_ENABLE_TRACING", true),
		TracingExporter: strings.ToLower(valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp")),
		OTLPEndpoint:    strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),

		PprofEnabled: boolOrDefault(k, "OBS_ENABLE_PPROF", false),
		PprofUser:    strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:    strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),

		ReadyBackendTimeout: parseDuration(k.String("HEALTH_READY_BACKEND_TIMEOUT"), "1s"),
		ReadyRedisTimeout:   parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
	}
}

// boolOrDefault accepts the usual spellings of on and off; anything else keeps fallback.
func boolOrDefault(k *koanf.Koanf, key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(k.String(key))) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	return bindAddr(c.Port, "8080")
}

func bindAddr(port, fallback string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		port = fallback
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
		return strings.TrimSpace(value)
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 || f > 1 {
		return fallback
	}
	return f
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
