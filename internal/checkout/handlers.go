package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/payment"
)

// SessionStore persists sessions between requests.
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// CartSource fetches the caller's cart. Fresh bypasses any cache.
type CartSource interface {
	FetchCart(ctx context.Context) (cart.Snapshot, error)
	Fresh(ctx context.Context) (cart.Snapshot, error)
}

// AddressSource lists the caller's saved addresses.
type AddressSource interface {
	ListAddresses(ctx context.Context) ([]Address, error)
}

// Handler exposes the session lifecycle over HTTP.
type Handler struct {
	Orchestrator *Orchestrator
	Sessions     SessionStore
	Carts        CartSource
	Addresses    AddressSource
	Guard        lock.Guard
	Validate     *validator.Validate
	Options      payment.OptionsConfig
	Locale       string
	Logger       zerolog.Logger
}

// Routes mounts the session endpoints. withCouponLimit wraps the coupon apply route.
func (h *Handler) Routes(r chi.Router, withCouponLimit func(http.Handler) http.Handler) {
	if withCouponLimit == nil {
		withCouponLimit = func(next http.Handler) http.Handler { return next }
	}
	r.Post("/sessions", h.Create)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(obs.SessionMiddleware)
		r.Get("/", h.Get)
		r.Post("/refresh", h.Refresh)
		r.With(withCouponLimit).Post("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Post("/begin", h.Begin)
		r.Put("/address", h.SelectAddress)
		r.Post("/payment", h.StartPayment)
		r.Post("/gateway/success", h.GatewaySuccess)
		r.Post("/gateway/failure", h.GatewayFailure)
		r.Post("/gateway/dismiss", h.GatewayDismiss)
		r.Post("/reset", h.Reset)
	})
}

type couponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type addressRequest struct {
	AddressID string `json:"addressId" validate:"required"`
}

type failureRequest struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required"`
	payment.Failure
}

type dismissRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
}

// Create fetches the caller's cart and opens a new session.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	snap, err := h.Carts.Fresh(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	s := h.Orchestrator.Start(uuid.NewString(), common.Owner(r.Context()), snap)
	if err := h.Sessions.Save(r.Context(), s); err != nil {
		h.storeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.Orchestrator.Present(s, h.Locale)})
}

// Get returns the session read model.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Orchestrator.Present(s, h.Locale)})
}

// Refresh re-fetches the cart snapshot.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		snap, err := h.Carts.Fresh(ctx)
		if err != nil {
			return nil, err
		}
		dropped, err := h.Orchestrator.Refresh(s, snap)
		if err != nil {
			return nil, err
		}
		return map[string]any{"session": h.Orchestrator.Present(s, h.Locale), "couponDropped": dropped}, nil
	})
}

// ApplyCoupon validates and applies a coupon code.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponRequest
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		if _, err := h.Orchestrator.ApplyCoupon(ctx, s, payload.Code); err != nil {
			return nil, err
		}
		return h.Orchestrator.Present(s, h.Locale), nil
	})
}

// RemoveCoupon clears the applied coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		if err := h.Orchestrator.RemoveCoupon(s); err != nil {
			return nil, err
		}
		return h.Orchestrator.Present(s, h.Locale), nil
	})
}

// Begin moves to address selection. The address list is only fetched for a
// cart that can check out.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		if err := h.Orchestrator.CanBegin(s); err != nil {
			return nil, err
		}
		addresses, err := h.Addresses.ListAddresses(ctx)
		if err != nil {
			return nil, err
		}
		if err := h.Orchestrator.Begin(s, addresses); err != nil {
			return nil, err
		}
		if len(addresses) == 1 {
			_ = h.Orchestrator.SelectAddress(s, addresses[0].ID)
		} else {
			for _, a := range addresses {
				if a.IsDefault && s.SelectedAddressID == "" {
					_ = h.Orchestrator.SelectAddress(s, a.ID)
				}
			}
		}
		return h.Orchestrator.Present(s, h.Locale), nil
	})
}

// SelectAddress records the chosen address.
func (h *Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var payload addressRequest
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		if err := h.Orchestrator.SelectAddress(s, payload.AddressID); err != nil {
			return nil, err
		}
		return h.Orchestrator.Present(s, h.Locale), nil
	})
}

// StartPayment creates the payment intent and returns gateway checkout options.
func (h *Handler) StartPayment(w http.ResponseWriter, r *http.Request) {
	var payload Customer
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		req, intent, err := h.Orchestrator.StartPayment(ctx, s, payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"session": h.Orchestrator.Present(s, h.Locale),
			"options": payment.BuildOptions(h.Options, intent, req),
		}, nil
	})
}

// GatewaySuccess relays the gateway's success callback for verification.
func (h *Handler) GatewaySuccess(w http.ResponseWriter, r *http.Request) {
	var payload payment.Callback
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		applied, err := h.Orchestrator.OnGatewaySuccess(ctx, s, payload)
		if err != nil && !applied {
			return nil, err
		}
		return map[string]any{"session": h.Orchestrator.Present(s, h.Locale), "applied": applied}, err
	})
}

// GatewayFailure records a gateway-declined payment.
func (h *Handler) GatewayFailure(w http.ResponseWriter, r *http.Request) {
	var payload failureRequest
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		applied := h.Orchestrator.OnGatewayFailure(ctx, s, strings.TrimSpace(payload.GatewayOrderID), payload.Failure)
		return map[string]any{"session": h.Orchestrator.Present(s, h.Locale), "applied": applied}, nil
	})
}

// GatewayDismiss cancels a pending payment. It answers 200 whether or not the
// dismiss applied; like every mutation it answers 409 SESSION_BUSY while
// another request holds the session.
func (h *Handler) GatewayDismiss(w http.ResponseWriter, r *http.Request) {
	var payload dismissRequest
	_ = json.NewDecoder(r.Body).Decode(&payload)
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		applied := h.Orchestrator.OnGatewayDismiss(ctx, s, strings.TrimSpace(payload.GatewayOrderID))
		return map[string]any{"session": h.Orchestrator.Present(s, h.Locale), "applied": applied}, nil
	})
}

// Reset returns the session to the cart.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, s *Session) (any, error) {
		if err := h.Orchestrator.Reset(s); err != nil {
			return nil, err
		}
		return h.Orchestrator.Present(s, h.Locale), nil
	})
}

// mutate serialises writers on one session: it holds the session guard across
// load, fn and save. The session is saved whenever fn returns a body, even with
// an error, so recorded failures survive.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, *Session) (any, error)) {
	if !h.ready(w) {
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if h.Guard != nil {
		release, err := h.Guard.TryAcquire(ctx, "session:"+id)
		if err != nil {
			if errors.Is(err, lock.ErrBusy) {
				common.WriteError(w, common.NewAppError(common.KindBusy, "SESSION_BUSY", "another request for this checkout is in progress", err))
				return
			}
			common.WriteError(w, common.Network("SESSION_GUARD_UNAVAILABLE", err))
			return
		}
		defer release()
	}
	s, ok := h.load(w, r)
	if !ok {
		return
	}
	before := s.UpdatedAt
	state := s.State
	body, err := fn(ctx, s)
	if body != nil || s.State != state || !s.UpdatedAt.Equal(before) {
		if saveErr := h.Sessions.Save(ctx, s); saveErr != nil {
			h.storeError(w, saveErr)
			return
		}
	}
	if err != nil {
		h.writeError(w, err, body)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": body})
}

// load reads the session named in the URL. Sessions of other callers are
// reported as not found.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.Sessions.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "checkout session not found", nil)
			return nil, false
		}
		h.storeError(w, err)
		return nil, false
	}
	if s.Owner != common.Owner(r.Context()) {
		common.JSONError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "checkout session not found", nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(dst); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid payload", fieldErrors(err))
			return false
		}
	}
	return true
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Orchestrator == nil || h.Sessions == nil || h.Carts == nil || h.Addresses == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout handler not configured", nil)
		return false
	}
	return true
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	h.Logger.Error().Err(err).Msg("checkout_session_store_failed")
	common.JSONError(w, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE", "session storage unavailable", nil)
}

// writeError renders err; an ambiguous payment also carries the session body.
func (h *Handler) writeError(w http.ResponseWriter, err error, body any) {
	var appErr *common.AppError
	if body != nil && errors.As(err, &appErr) && appErr.Kind == common.KindAmbiguousPayment {
		common.JSON(w, appErr.HTTPStatus, map[string]any{
			"data": body,
			"error": common.ErrorBody{
				Code:    appErr.Code,
				Kind:    appErr.Kind,
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
		return
	}
	common.WriteError(w, err)
}

func fieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
