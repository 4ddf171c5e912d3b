package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/sandbox"
)

// The sandbox serves the backend collaborator contract from memory so the
// checkout API can run locally without the storefront backend.
func main() {
	cfg, err := config.LoadSandbox()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "sandbox").Logger()
	if cfg.DefaultSecret {
		logger.Warn().Msg("GATEWAY_KEY_SECRET not set, using sandbox default")
	}

	backend := sandbox.New(sandbox.Options{
		Currency: cfg.CurrencyCode,
		Secret:   cfg.Secret,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           obs.RequestLogger{Logger: logger}.Middleware(backend.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("sandbox starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("sandbox exited unexpectedly")
	}
}
