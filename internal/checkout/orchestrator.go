package checkout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/coupon"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/money"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/payment"
)

// Invalidator drops cached cart and order data for an owner after a completed payment.
type Invalidator interface {
	InvalidateOwner(ctx context.Context, owner string) error
}

// Emitter publishes checkout outcome events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Deps wires the Orchestrator's collaborators.
type Deps struct {
	Coupons     *coupon.Engine
	Payments    payment.Creator
	Verifier    payment.Verifier
	Invalidator Invalidator
	Events      Emitter
	Guard       lock.Guard
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Orchestrator drives a Session through the checkout state machine. It keeps
// no session state of its own.
type Orchestrator struct {
	coupons     *coupon.Engine
	payments    payment.Creator
	verifier    payment.Verifier
	invalidator Invalidator
	events      Emitter
	guard       lock.Guard
	logger      zerolog.Logger
	now         func() time.Time
}

// New constructs an Orchestrator.
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		coupons:     d.Coupons,
		payments:    d.Payments,
		verifier:    d.Verifier,
		invalidator: d.Invalidator,
		events:      d.Events,
		guard:       d.Guard,
		logger:      d.Logger,
		now:         d.Now,
	}
	if o.guard == nil {
		o.guard = lock.NewLocal()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.coupons == nil {
		o.coupons = coupon.NewEngine(nil, o.guard, d.Logger)
	}
	return o
}

// Start opens a session over snap.
func (o *Orchestrator) Start(id, owner string, snap cart.Snapshot) *Session {
	s := NewSession(id, owner, snap, o.now())
	o.logAnomalies(s)
	return s
}

// ComputedTotal is the coupon's FinalAmount when one is held, otherwise the subtotal.
func (o *Orchestrator) ComputedTotal(s *Session) money.Money {
	return coupon.Total(&s.Coupon, s.Totals.Subtotal)
}

// Begin moves Cart to AddressSelection. It requires quantity in the cart and at
// least one saved address; ErrNoAddresses tells the caller to redirect to
// address management. No collaborator is called.
func (o *Orchestrator) Begin(s *Session, addresses []Address) error {
	if err := o.CanBegin(s); err != nil {
		return err
	}
	if len(addresses) == 0 {
		e := validation("NO_ADDRESSES", ErrNoAddresses)
		e.Details = map[string]string{"redirect": "address_management"}
		return e
	}
	s.Addresses = append([]Address(nil), addresses...)
	if s.SelectedAddressID != "" && !s.hasAddress(s.SelectedAddressID) {
		s.SelectedAddressID = ""
	}
	return o.transition(s, StateAddressSelection)
}

// CanBegin checks the cart side of the Begin guard so callers can skip
// fetching addresses for a cart that cannot check out.
func (o *Orchestrator) CanBegin(s *Session) error {
	if s.State != StateCart && s.State != StateAddressSelection {
		return illegal(s.State, "begin")
	}
	if s.Totals.TotalQuantity <= 0 {
		return validation("CART_EMPTY", ErrEmptyCart)
	}
	return nil
}

// SelectAddress records one of the offered addresses.
func (o *Orchestrator) SelectAddress(s *Session, addressID string) error {
	if s.State != StateAddressSelection && !s.retryable() {
		return illegal(s.State, "select_address")
	}
	if addressID == "" {
		return validation("ADDRESS_REQUIRED", ErrNoAddress)
	}
	if !s.hasAddress(addressID) {
		return validation("ADDRESS_UNKNOWN", ErrUnknownAddress)
	}
	s.SelectedAddressID = addressID
	s.UpdatedAt = o.now()
	return nil
}

// StartPayment creates a payment intent for the computed total and binds its
// gateway order id. It is reachable from AddressSelection, Cancelled and a
// gateway-declined Failed state; never from Cart. On failure the session is
// left exactly as it was.
func (o *Orchestrator) StartPayment(ctx context.Context, s *Session, customer Customer) (payment.IntentRequest, payment.Intent, error) {
	var req payment.IntentRequest
	if s.State == StateFailed && s.Failure != nil && s.Failure.Kind == FailureAmbiguous {
		e := common.NewAppError(common.KindAmbiguousPayment, "PAYMENT_AMBIGUOUS", SupportMessage, ErrAmbiguousPayment)
		e.HTTPStatus = http.StatusConflict
		return req, payment.Intent{}, e
	}
	if !s.retryable() {
		return req, payment.Intent{}, illegal(s.State, "start_payment")
	}
	if s.Snapshot.IsEmpty() {
		return req, payment.Intent{}, validation("CART_EMPTY", ErrEmptyCart)
	}
	if s.SelectedAddressID == "" {
		return req, payment.Intent{}, validation("ADDRESS_REQUIRED", ErrNoAddress)
	}
	total := o.ComputedTotal(s)
	if !total.IsPositive() {
		return req, payment.Intent{}, validation("TOTAL_NOT_POSITIVE", ErrZeroTotal)
	}
	if o.payments == nil {
		return req, payment.Intent{}, common.NewAppError(common.KindInternal, "PAYMENT_UNAVAILABLE", "payment service not configured", nil)
	}

	release, err := o.guard.TryAcquire(ctx, "payment:"+s.ID)
	if err != nil {
		return req, payment.Intent{}, busy(err)
	}
	defer release()

	ctx, span := otel.Tracer("checkout.Orchestrator").Start(ctx, "Checkout.StartPayment")
	defer span.End()

	req = payment.IntentRequest{
		Amount:       total,
		CustomerName: customer.Name,
		Email:        customer.Email,
		AddressID:    s.SelectedAddressID,
	}
	if s.Coupon.Applied() {
		req.CouponCode = s.Coupon.Coupon.Code
	}
	span.SetAttributes(
		attribute.String("checkout.session_id", s.ID),
		attribute.Int64("payment.amount", total.Amount),
		attribute.String("payment.currency", total.Currency),
	)

	intent, err := o.payments.CreatePayment(ctx, req)
	if err == nil && intent.GatewayOrderID == "" {
		err = common.Collaborator("PAYMENT_INTENT_INVALID", ErrMissingOrderID.Error(), ErrMissingOrderID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment intent failed")
		obs.ObservePaymentIntent(string(common.KindOf(err)))
		return req, payment.Intent{}, err
	}
	if intent.Amount.Amount > 0 && intent.Amount.Amount != total.Amount {
		o.logger.Warn().
			Str("session_id", s.ID).
			Int64("requested", total.Amount).
			Int64("intent_amount", intent.Amount.Amount).
			Msg("payment_intent_amount_mismatch")
	}
	if intent.Amount.Amount <= 0 {
		intent.Amount = total
	}

	s.Failure = nil
	s.GatewayOrderID = intent.GatewayOrderID
	s.PaymentID = ""
	s.ChargeAmount = intent.Amount
	obs.ObservePaymentIntent("created")
	span.SetAttributes(attribute.String("payment.gateway_order_id", intent.GatewayOrderID))
	return req, intent, o.transition(s, StatePaymentPending)
}

// OnGatewaySuccess handles the gateway's success callback. A callback whose
// order id does not match the bound one, or that arrives outside a pending,
// cancelled or gateway-declined payment, is ignored and reported as not
// applied. Verification failure or a transport error moves the session to
// Failed tagged ambiguous; verification is never retried.
func (o *Orchestrator) OnGatewaySuccess(ctx context.Context, s *Session, cb payment.Callback) (bool, error) {
	cb = cb.Normalise()
	if !o.correlated(s, cb.GatewayOrderID, StatePaymentPending, StateCancelled) && !o.declinedThenCaptured(s, cb.GatewayOrderID) {
		o.ignored(s, cb.GatewayOrderID, "success")
		return false, nil
	}
	if o.verifier == nil {
		return false, common.NewAppError(common.KindInternal, "VERIFIER_UNAVAILABLE", "payment verification not configured", nil)
	}

	release, err := o.guard.TryAcquire(ctx, "payment:"+s.ID)
	if err != nil {
		return false, busy(err)
	}
	defer release()

	ctx, span := otel.Tracer("checkout.Orchestrator").Start(ctx, "Checkout.VerifyPayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.session_id", s.ID),
		attribute.String("payment.gateway_order_id", cb.GatewayOrderID),
	)

	s.PaymentID = cb.PaymentID
	if err := o.transition(s, StateVerifying); err != nil {
		return false, err
	}
	s.Failure = nil

	if err := o.verifier.VerifyPayment(ctx, cb); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment verification failed")
		return true, o.ambiguous(ctx, s, err)
	}

	outcome := &Outcome{
		GatewayOrderID: s.GatewayOrderID,
		PaymentID:      s.PaymentID,
		Amount:         s.ChargeAmount,
		CompletedAt:    o.now(),
	}
	if err := o.transition(s, StateCompleted); err != nil {
		return true, err
	}
	s.LastOutcome = outcome
	o.emit(ctx, events.TopicCheckoutCompleted, s, outcome)
	if o.invalidator != nil {
		if err := o.invalidator.InvalidateOwner(ctx, s.Owner); err != nil {
			o.logger.Warn().Err(err).Str("session_id", s.ID).Msg("checkout_cache_invalidation_failed")
		}
	}

	s.Coupon.Clear()
	s.SelectedAddressID = ""
	s.Addresses = nil
	s.clearPayment()
	s.setSnapshot(cart.NewSnapshot(s.Snapshot.Currency, nil))
	return true, o.transition(s, StateCart)
}

// OnGatewayFailure records a gateway-declined payment. Cart, address and
// coupon are preserved so StartPayment can be retried.
func (o *Orchestrator) OnGatewayFailure(ctx context.Context, s *Session, gatewayOrderID string, f payment.Failure) bool {
	if !o.correlated(s, gatewayOrderID, StatePaymentPending, StateCancelled) {
		o.ignored(s, gatewayOrderID, "failure")
		return false
	}
	if f.PaymentID != "" {
		s.PaymentID = f.PaymentID
	}
	s.Failure = &Failure{Kind: FailureGateway, Code: f.Code, Message: f.Message()}
	if err := o.transition(s, StateFailed); err != nil {
		return false
	}
	o.emit(ctx, events.TopicPaymentFailed, s, s.Failure)
	return true
}

// OnGatewayDismiss cancels a pending payment when the user closes the gateway
// widget. It never calls a collaborator, never fails, and is a no-op when the
// session is already cancelled or the order id is stale. An empty order id
// refers to the bound one.
func (o *Orchestrator) OnGatewayDismiss(ctx context.Context, s *Session, gatewayOrderID string) bool {
	if s.State == StateCancelled {
		return false
	}
	if gatewayOrderID == "" {
		gatewayOrderID = s.GatewayOrderID
	}
	if !o.correlated(s, gatewayOrderID, StatePaymentPending) {
		o.ignored(s, gatewayOrderID, "dismiss")
		return false
	}
	if err := o.transition(s, StateCancelled); err != nil {
		return false
	}
	o.emit(ctx, events.TopicCheckoutCancelled, s, map[string]string{"gatewayOrderId": s.GatewayOrderID})
	return true
}

// Reset returns the session to Cart, dropping address selection, payment
// binding and failure. The coupon and snapshot are kept. It is refused while a
// payment is pending or verifying.
func (o *Orchestrator) Reset(s *Session) error {
	if s.State == StateCart {
		return nil
	}
	if s.State.HoldsPayment() {
		return illegal(s.State, "reset")
	}
	s.SelectedAddressID = ""
	s.Addresses = nil
	s.Failure = nil
	s.clearPayment()
	return o.transition(s, StateCart)
}

// ApplyCoupon applies code to the session's cart. Refused once a payment is bound.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, s *Session, code string) (coupon.Coupon, error) {
	if s.State.HoldsPayment() {
		return coupon.Coupon{}, illegal(s.State, "apply_coupon")
	}
	s.Coupon.Scope = s.ID
	c, err := o.coupons.Apply(ctx, &s.Coupon, code, s.Snapshot)
	if err != nil {
		return coupon.Coupon{}, err
	}
	s.UpdatedAt = o.now()
	return c, nil
}

// RemoveCoupon clears the coupon locally. Refused once a payment is bound.
func (o *Orchestrator) RemoveCoupon(s *Session) error {
	if s.State.HoldsPayment() {
		return illegal(s.State, "remove_coupon")
	}
	o.coupons.Remove(&s.Coupon)
	s.UpdatedAt = o.now()
	return nil
}

// Refresh replaces the snapshot with a freshly fetched one. The coupon is
// dropped when the cart content changed, and an emptied cart falls back to
// StateCart. It reports whether the coupon was dropped.
func (o *Orchestrator) Refresh(s *Session, snap cart.Snapshot) (bool, error) {
	if s.State.HoldsPayment() {
		return false, illegal(s.State, "refresh")
	}
	s.setSnapshot(snap)
	dropped := o.coupons.Reconcile(&s.Coupon, snap)
	o.logAnomalies(s)
	s.UpdatedAt = o.now()
	if snap.IsEmpty() && s.State == StateAddressSelection {
		s.SelectedAddressID = ""
		return dropped, o.transition(s, StateCart)
	}
	return dropped, nil
}

// DiscountAmount is the display-only coupon saving for the session.
func (o *Orchestrator) DiscountAmount(s *Session) money.Money {
	if !s.Coupon.Applied() {
		return money.Zero(s.Totals.Subtotal.Currency)
	}
	return o.coupons.DiscountAmount(*s.Coupon.Coupon, s.Totals.Subtotal)
}

func (o *Orchestrator) ambiguous(ctx context.Context, s *Session, cause error) error {
	s.Failure = &Failure{Kind: FailureAmbiguous, Code: "PAYMENT_AMBIGUOUS", Message: SupportMessage}
	obs.ObserveAmbiguousPayment()
	o.logger.Error().
		Err(cause).
		Str("session_id", s.ID).
		Str("gateway_order_id", s.GatewayOrderID).
		Str("payment_id", s.PaymentID).
		Str("cause_kind", string(common.KindOf(cause))).
		Msg("payment_verification_ambiguous")
	if err := o.transition(s, StateFailed); err != nil {
		return err
	}
	o.emit(ctx, events.TopicPaymentAmbiguous, s, AmbiguousPayment{
		SessionID:      s.ID,
		Owner:          s.Owner,
		GatewayOrderID: s.GatewayOrderID,
		PaymentID:      s.PaymentID,
		Amount:         s.ChargeAmount,
		Cause:          cause.Error(),
	})
	e := common.NewAppError(common.KindAmbiguousPayment, "PAYMENT_AMBIGUOUS", SupportMessage, errors.Join(ErrAmbiguousPayment, cause))
	e.Details = map[string]string{"gatewayOrderId": s.GatewayOrderID, "paymentId": s.PaymentID}
	return e
}

// AmbiguousPayment is the payload handed to support when verification fails.
type AmbiguousPayment struct {
	SessionID      string      `json:"sessionId"`
	Owner          string      `json:"owner"`
	GatewayOrderID string      `json:"gatewayOrderId"`
	PaymentID      string      `json:"paymentId"`
	Amount         money.Money `json:"amount"`
	Cause          string      `json:"cause"`
}

func (o *Orchestrator) correlated(s *Session, gatewayOrderID string, states ...State) bool {
	if s.GatewayOrderID == "" || gatewayOrderID != s.GatewayOrderID {
		return false
	}
	for _, st := range states {
		if s.State == st {
			return true
		}
	}
	return false
}

// declinedThenCaptured matches a success for the bound order after the gateway
// reported a decline. Widgets let the user retry on the same order id, so the
// capture must still be verified.
func (o *Orchestrator) declinedThenCaptured(s *Session, gatewayOrderID string) bool {
	return o.correlated(s, gatewayOrderID, StateFailed) && s.Failure != nil && s.Failure.Kind == FailureGateway
}

func (o *Orchestrator) ignored(s *Session, gatewayOrderID, kind string) {
	o.logger.Info().
		Str("session_id", s.ID).
		Str("state", string(s.State)).
		Str("bound_order_id", s.GatewayOrderID).
		Str("callback_order_id", gatewayOrderID).
		Str("callback", kind).
		Msg("gateway_callback_ignored")
}

func (o *Orchestrator) transition(s *Session, next State) error {
	from := s.State
	if !from.CanTransitionTo(next) {
		return illegal(from, "transition to "+string(next))
	}
	s.State = next
	s.UpdatedAt = o.now()
	if from != next {
		obs.ObserveTransition(string(from), string(next))
		o.logger.Info().
			Str("session_id", s.ID).
			Str("from", string(from)).
			Str("to", string(next)).
			Msg("checkout_transition")
	}
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, topic string, s *Session, payload any) {
	if o.events == nil {
		return
	}
	if _, err := o.events.Emit(ctx, topic, s.ID, payload); err != nil {
		o.logger.Warn().Err(err).Str("topic", topic).Str("session_id", s.ID).Msg("checkout_event_emit_failed")
	}
}

func (o *Orchestrator) logAnomalies(s *Session) {
	for _, a := range cart.Check(s.Snapshot) {
		o.logger.Warn().Str("session_id", s.ID).Str("line_id", a.LineID).Str("reason", a.Reason).Msg("cart_snapshot_anomaly")
	}
}

func busy(err error) error {
	if errors.Is(err, lock.ErrBusy) {
		return common.NewAppError(common.KindBusy, "PAYMENT_IN_FLIGHT", "a payment request is already in progress", err)
	}
	return common.Network("PAYMENT_GUARD_UNAVAILABLE", err)
}
