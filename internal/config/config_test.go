package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":        "redis://localhost:6379/0",
		"BACKEND_BASE_URL": "http://backend.local/api/",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "http://backend.local/api", cfg.BackendBaseURL)
	require.Equal(t, "INR", cfg.CurrencyCode)
	require.Equal(t, "en-IN", cfg.DisplayLocale)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, "sliding", cfg.RateLimitDriver)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	require.True(t, cfg.Obs.MetricsEnabled)
	require.False(t, cfg.Obs.PprofEnabled)
	require.Equal(t, "otlp", cfg.Obs.TracingExporter)
	require.Equal(t, 300*time.Millisecond, cfg.Obs.ReadyRedisTimeout)
}

func TestLoadObsSwitches(t *testing.T) {
	env := baseEnv()
	env["OBS_ENABLE_TRACING"] = "off"
	env["OBS_ENABLE_PPROF"] = "yes"
	env["OBS_ENABLE_PROMETHEUS"] = "maybe"
	env["OBS_TRACING_SAMPLING_RATIO"] = "0.1"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.False(t, cfg.Obs.TracingEnabled)
	require.True(t, cfg.Obs.PprofEnabled)
	require.True(t, cfg.Obs.MetricsEnabled, "unrecognised value keeps the default")
	require.Equal(t, 0.1, cfg.Obs.TracingSampling)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["CURRENCY_CODE"] = "usd"
	env["RATE_LIMIT_DRIVER"] = "ULULE"
	env["CIRCUIT_FAILURE_RATIO"] = "0.25"
	env["RETRY_MAX_ATTEMPTS"] = "bogus"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.test, ,https://b.test"
	env["PORT"] = ":9000"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.Equal(t, "ulule", cfg.RateLimitDriver)
	require.Equal(t, 0.25, cfg.CircuitFailRatio)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	require.Equal(t, ":9000", cfg.HTTPAddr())
}

func TestLoadRequiresBackend(t *testing.T) {
	env := baseEnv()
	env["BACKEND_BASE_URL"] = ""
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "BACKEND_BASE_URL")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	env := baseEnv()
	env["RATE_LIMIT_DRIVER"] = "token-bucket"
	_, err := LoadForTests(env)
	require.Error(t, err)
}

func TestLoadSandboxDefaults(t *testing.T) {
	t.Setenv("SANDBOX_PORT", "")
	t.Setenv("GATEWAY_KEY_SECRET", "")
	t.Setenv("CURRENCY_CODE", "")

	cfg, err := LoadSandbox()
	require.NoError(t, err)
	require.Equal(t, ":8090", cfg.Addr)
	require.Equal(t, "INR", cfg.CurrencyCode)
	require.True(t, cfg.DefaultSecret)

	t.Setenv("GATEWAY_KEY_SECRET", "s3cret")
	t.Setenv("SANDBOX_PORT", "9100")
	cfg, err = LoadSandbox()
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Addr)
	require.False(t, cfg.DefaultSecret)
}
