package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/backend"
	"github.com/noah-isme/toko-checkout/internal/cache"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/payment"
	"github.com/noah-isme/toko-checkout/internal/queue"
	"github.com/noah-isme/toko-checkout/internal/ratelimit"
	"github.com/noah-isme/toko-checkout/internal/security"
	"github.com/noah-isme/toko-checkout/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	oc := cfg.Obs
	logger := obs.NewLogger(oc.LogFormat, oc.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := oc.MetricsEnabled
	obs.MustRegisterDomainMetrics(oc.MetricsNamespace, nil)

	tracingEnabled := oc.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-checkout",
			Endpoint:      oc.OTLPEndpoint,
			Exporter:      oc.TracingExporter,
			SamplingRatio: oc.TracingSampling,
			Environment:   cfg.AppEnv,
			Version:       oc.Version,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger, metricsEnabled)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for task queue")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	backendClient := backend.New(backend.Config{
		BaseURL:      cfg.BackendBaseURL,
		Timeout:      cfg.BackendTimeout,
		MaxAttempts:  cfg.RetryMaxAttempts,
		RetryBase:    cfg.RetryBase,
		JitterPct:    cfg.RetryJitterPercent,
		MinRequests:  cfg.CircuitMinRequests,
		FailureRatio: cfg.CircuitFailRatio,
		OpenFor:      cfg.CircuitOpenFor,
		Currency:     cfg.CurrencyCode,
		Logger:       logger.With().Str("component", "backend").Logger(),
	})

	carts := &cache.CartCache{
		Store:  cache.NewJSON(redisClient, cfg.CartCacheTTL),
		Source: backendClient,
		Logger: logger,
	}

	inFlight := lock.Redis{R: redisClient, TTL: cfg.InFlightLockTTL, Prefix: "checkout:inflight:"}

	bus := &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()},
		events.TopicFilter(queue.Enqueuer{
			Client:   taskClient,
			MaxRetry: cfg.SupportTaskMaxRetry,
			Logger:   logger,
		}, events.TopicPaymentAmbiguous),
	}}

	orchestrator := checkout.New(checkout.Deps{
		Coupons:     coupon.NewEngine(backendClient, inFlight, logger),
		Payments:    backendClient,
		Verifier:    backendClient,
		Invalidator: carts,
		Events:      bus,
		Guard:       inFlight,
		Logger:      logger,
	})

	checkoutHandler := &checkout.Handler{
		Orchestrator: orchestrator,
		Sessions:     session.NewStore(redisClient, cfg.SessionTTL),
		Carts:        carts,
		Addresses:    backendClient,
		Guard:        lock.Redis{R: redisClient, TTL: cfg.InFlightLockTTL, Prefix: "checkout:mutate:"},
		Validate:     validator.New(),
		Options: payment.OptionsConfig{
			KeyID:     cfg.GatewayKeyID,
			StoreName: cfg.StoreName,
			Locale:    cfg.DisplayLocale,
		},
		Locale: cfg.DisplayLocale,
		Logger: logger,
	}

	couponLimiter, err := newLimiter(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	couponLimit := ratelimit.Handler{
		Limiter: couponLimiter,
		Config: ratelimit.Config{
			Key:    ratelimit.OwnerKey("coupon:"),
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitCouponMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate_limiter_unavailable")
		},
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(oc.MetricsBuckets)
		httpMetrics = obs.NewHTTPMetrics(oc.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.CORS(allowedOrigins(cfg)))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if oc.PprofEnabled {
		r.Group(func(d chi.Router) {
			if oc.PprofUser != "" {
				d.Use(middleware.BasicAuth("restricted", map[string]string{oc.PprofUser: oc.PprofPass}))
			}
			d.Mount("/debug", middleware.Profiler())
		})
	}

	healthHandler := health.Handler{
		Checker:        health.Probes{Redis: redisClient, Backend: backendClient},
		BackendTimeout: oc.ReadyBackendTimeout,
		RedisTimeout:   oc.ReadyRedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/checkout", func(c chi.Router) {
		c.Use(common.BearerMiddleware)
		c.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		c.Use(idem.Middleware)
		checkoutHandler.Routes(c, couponLimit.Middleware)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("backend", cfg.BackendBaseURL).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func newLimiter(cfg *config.Config, client *redis.Client) (ratelimit.Allower, error) {
	if cfg.RateLimitDriver == "ulule" {
		return ratelimit.NewUluleRedis(client, "checkout:ratelimit")
	}
	return ratelimit.Sliding{Client: client, Prefix: "checkout:ratelimit:"}, nil
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics bool) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
