package coupon

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/money"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

// Engine applies and removes coupons for a Holder.
type Engine struct {
	validator Validator
	guard     lock.Guard
	logger    zerolog.Logger
}

// NewEngine constructs an Engine. A nil guard falls back to an in-process guard.
func NewEngine(v Validator, guard lock.Guard, logger zerolog.Logger) *Engine {
	if guard == nil {
		guard = lock.NewLocal()
	}
	return &Engine{validator: v, guard: guard, logger: logger}
}

// Apply validates code against snap through the collaborator and stores the
// coupon in h on success. On any failure h is left unchanged. A concurrent
// Apply for the same holder scope is rejected before reaching the network.
func (e *Engine) Apply(ctx context.Context, h *Holder, code string, snap cart.Snapshot) (Coupon, error) {
	code = NormaliseCode(code)
	if code == "" {
		obs.ObserveCouponApply("validation")
		return Coupon{}, common.Validation("COUPON_CODE_REQUIRED", ErrEmptyCode.Error(), ErrEmptyCode)
	}
	if snap.IsEmpty() {
		obs.ObserveCouponApply("validation")
		return Coupon{}, common.Validation("CART_EMPTY", ErrEmptyCart.Error(), ErrEmptyCart)
	}
	if e.validator == nil {
		return Coupon{}, common.NewAppError(common.KindInternal, "COUPON_VALIDATOR_MISSING", "coupon validation unavailable", nil)
	}

	release, err := e.guard.TryAcquire(ctx, "coupon:"+h.Scope)
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			obs.ObserveCouponApply("busy")
			return Coupon{}, common.NewAppError(common.KindBusy, "COUPON_IN_FLIGHT", "a coupon is already being applied", err)
		}
		return Coupon{}, common.Network("COUPON_GUARD_UNAVAILABLE", err)
	}
	defer release()

	ctx, span := otel.Tracer("coupon.Engine").Start(ctx, "CouponEngine.Apply")
	defer span.End()

	totals := cart.Aggregate(snap)
	req := Request{
		Code:               code,
		OrderValue:         totals.Subtotal,
		ProductOccurrences: cart.Occurrences(snap),
	}
	span.SetAttributes(
		attribute.String("coupon.code", code),
		attribute.Int64("coupon.order_value", req.OrderValue.Amount),
		attribute.Int("coupon.occurrences", len(req.ProductOccurrences)),
	)

	res, err := e.validator.ValidateCoupon(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "coupon validation failed")
		if common.KindOf(err) == common.KindCollaborator {
			obs.ObserveCouponApply("invalid")
			reason := collaboratorMessage(err)
			return Coupon{}, common.Collaborator("COUPON_INVALID", reason, &InvalidError{Reason: reason})
		}
		obs.ObserveCouponApply("error")
		return Coupon{}, err
	}
	if res.FinalAmount.Amount < 0 {
		obs.ObserveCouponApply("invalid")
		reason := "coupon response carried a negative amount"
		return Coupon{}, common.Collaborator("COUPON_INVALID", reason, &InvalidError{Reason: reason})
	}

	applied := Coupon{
		Code:               NormaliseCode(res.Code),
		Offer:              res.Offer,
		EligibleProductIDs: append([]string(nil), res.EligibleProductIDs...),
		FinalAmount:        money.New(res.FinalAmount.Amount, totals.Subtotal.Currency),
	}
	if applied.Code == "" {
		applied.Code = code
	}
	h.Coupon = &applied
	h.CartFingerprint = cart.Fingerprint(snap)

	obs.ObserveCouponApply("applied")
	e.logger.Info().
		Str("scope", h.Scope).
		Str("code", applied.Code).
		Int64("order_value", totals.Subtotal.Amount).
		Int64("final_amount", applied.FinalAmount.Amount).
		Msg("coupon_applied")
	return applied, nil
}

// Remove clears the held coupon without contacting the collaborator.
func (e *Engine) Remove(h *Holder) {
	if !h.Applied() {
		return
	}
	code := h.Coupon.Code
	h.Clear()
	e.logger.Info().Str("scope", h.Scope).Str("code", code).Msg("coupon_removed")
}

// Reconcile drops the coupon when snap no longer matches the cart it was
// validated against. It reports whether the coupon was dropped.
func (e *Engine) Reconcile(h *Holder, snap cart.Snapshot) bool {
	if !h.Applied() {
		return false
	}
	if h.CartFingerprint == cart.Fingerprint(snap) {
		return false
	}
	code := h.Coupon.Code
	h.Clear()
	e.logger.Info().Str("scope", h.Scope).Str("code", code).Msg("coupon_invalidated_cart_changed")
	return true
}

// DiscountAmount is the display-only saving from c on subtotal. A FinalAmount
// above subtotal yields zero and is logged.
func (e *Engine) DiscountAmount(c Coupon, subtotal money.Money) money.Money {
	discount, clamped := Discount(c, subtotal)
	if clamped {
		obs.ObserveClamp("coupon_discount")
		e.logger.Warn().
			Str("code", c.Code).
			Int64("subtotal", subtotal.Amount).
			Int64("final_amount", c.FinalAmount.Amount).
			Msg("coupon_final_amount_above_subtotal")
	}
	return discount
}

func collaboratorMessage(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
