package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/resilience"
)

// Collaborator names used for breakers, metrics and logs.
const (
	CollabCart          = "cart"
	CollabAddresses     = "addresses"
	CollabCoupon        = "coupon"
	CollabPaymentIntent = "payment_intent"
	CollabPaymentVerify = "payment_verify"
)

const maxBody = 1 << 20

// Config configures the backend client.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBase    time.Duration
	JitterPct    int
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
	Currency     string
	Transport    http.RoundTripper
	Logger       zerolog.Logger
}

// Client talks to the storefront backend's cart, address, coupon and payment
// endpoints. Each collaborator has its own breaker; only GETs are retried.
type Client struct {
	baseURL  string
	currency string
	http     *http.Client
	cfg      Config
	breakers map[string]*resilience.Breaker
	logger   zerolog.Logger
}

// New constructs a Client.
func New(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		currency: cfg.Currency,
		http:     &http.Client{Transport: otelhttp.NewTransport(transport)},
		cfg:      cfg,
		breakers: make(map[string]*resilience.Breaker),
		logger:   cfg.Logger,
	}
	for _, name := range []string{CollabCart, CollabAddresses, CollabCoupon, CollabPaymentIntent, CollabPaymentVerify} {
		c.breakers[name] = resilience.NewBreaker(resilience.Settings{
			Target:       "backend_" + name,
			MinRequests:  cfg.MinRequests,
			FailureRatio: cfg.FailureRatio,
			OpenFor:      cfg.OpenFor,
			Logger:       cfg.Logger,
		})
	}
	return c
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("backend health: %s", resp.Status)
	}
	return nil
}

func (c *Client) transport(name string) resilience.HTTPClient {
	return resilience.HTTPClient{
		Client:      c.http,
		Breaker:     c.breakers[name],
		BaseBackoff: c.cfg.RetryBase,
		MaxAttempts: c.cfg.MaxAttempts,
		Jitter:      float64(c.cfg.JitterPct) / 100,
		Timeout:     c.cfg.Timeout,
	}
}

// call sends in as JSON and decodes the envelope. Transport failures become
// network errors; Status false becomes a collaborator error with the
// backend's message verbatim.
func (c *Client) call(ctx context.Context, name, method, path string, in any) (envelope, error) {
	start := time.Now()
	env, err := c.roundTrip(ctx, name, method, path, in)
	result := "ok"
	if err != nil {
		result = "network"
		if common.KindOf(err) == common.KindCollaborator {
			result = "rejected"
		}
	}
	obs.ObserveCollaborator(name, result, float64(time.Since(start).Milliseconds()))
	if err != nil {
		evt := c.logger.Warn()
		if result == "rejected" {
			evt = c.logger.Info()
		}
		evt.Err(err).Str("collaborator", name).Str("path", path).Dur("elapsed", time.Since(start)).Msg("backend_call_failed")
	}
	return env, err
}

func (c *Client) roundTrip(ctx context.Context, name, method, path string, in any) (envelope, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return envelope{}, common.NewAppError(common.KindInternal, "BACKEND_ENCODE", "could not encode request", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return envelope{}, common.NewAppError(common.KindInternal, "BACKEND_REQUEST", "could not build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := common.Bearer(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := c.transport(name).Do(ctx, req)
	if err != nil {
		return envelope{}, common.Network("BACKEND_UNAVAILABLE", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return envelope{}, common.Network("BACKEND_UNAVAILABLE", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			e := common.Collaborator("BACKEND_REJECTED", http.StatusText(resp.StatusCode), nil)
			e.HTTPStatus = resp.StatusCode
			return envelope{}, e
		}
		return envelope{}, common.Network("BACKEND_BAD_RESPONSE", fmt.Errorf("decode %s response: %w", name, err))
	}
	if !env.Status {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = "request was rejected"
		}
		code := env.Code
		if code == "" {
			code = strings.ToUpper(name) + "_REJECTED"
		}
		e := common.Collaborator(code, msg, nil)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			e.HTTPStatus = resp.StatusCode
		}
		return env, e
	}
	return env, nil
}

func decodeData(name string, env envelope, dst any) error {
	if len(env.Data) == 0 {
		return common.Network("BACKEND_BAD_RESPONSE", errors.New(name+" response carried no data"))
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return common.Network("BACKEND_BAD_RESPONSE", fmt.Errorf("decode %s data: %w", name, err))
	}
	return nil
}
