package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/toko-checkout/internal/money"
)

const sandboxSecret = "sandbox-secret"

// SandboxConfig configures the in-memory backend stand-in.
type SandboxConfig struct {
	Addr          string
	CurrencyCode  string
	Secret        string
	DefaultSecret bool
	LogFormat     string
	LogLevel      string
}

// LoadSandbox reads the sandbox settings. Unlike Load it needs neither Redis
// nor a backend URL.
func LoadSandbox() (*SandboxConfig, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	cfg := &SandboxConfig{
		Addr:         bindAddr(k.String("SANDBOX_PORT"), "8090"),
		CurrencyCode: money.NormaliseCurrency(k.String("CURRENCY_CODE")),
		Secret:       valueOrDefault(k.String("GATEWAY_KEY_SECRET"), sandboxSecret),
		LogFormat:    valueOrDefault(k.String("OBS_LOG_FORMAT"), "console"),
		LogLevel:     valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
	}
	cfg.DefaultSecret = cfg.Secret == sandboxSecret
	return cfg, nil
}
