package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// SupportHandler raises the alert for an ambiguous payment. It only records;
// a human reconciles the order with the gateway.
type SupportHandler struct {
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. A malformed payload is not retried.
func (h SupportHandler) ProcessTask(_ context.Context, t *asynq.Task) error {
	var p AmbiguousPaymentTask
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		QueueProcessedTotal.WithLabelValues(t.Type(), "invalid").Inc()
		return fmt.Errorf("queue: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	h.Logger.Error().
		Str("session_id", p.SessionID).
		Str("owner", p.Owner).
		Str("gateway_order_id", p.GatewayOrderID).
		Str("payment_id", p.PaymentID).
		Int64("amount", p.Amount).
		Str("currency", p.Currency).
		Str("cause", p.Cause).
		Time("occurred_at", p.OccurredAt).
		Msg("support_ambiguous_payment")
	QueueProcessedTotal.WithLabelValues(t.Type(), "ok").Inc()
	return nil
}

// NewServeMux routes support task kinds to their handlers.
func NewServeMux(h SupportHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeAmbiguousPayment, h)
	return mux
}
