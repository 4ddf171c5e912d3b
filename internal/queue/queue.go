package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/events"
)

// TypeAmbiguousPayment is the task kind support picks up when a payment was
// captured by the gateway but could not be verified.
const TypeAmbiguousPayment = "checkout:ambiguous_payment"

// SupportQueue is the asynq queue support tasks are placed on.
const SupportQueue = "support"

// AmbiguousPaymentTask is the task payload. It carries enough to find the
// payment with the gateway; it never carries card or customer data.
type AmbiguousPaymentTask struct {
	EventID        string    `json:"eventId"`
	SessionID      string    `json:"sessionId"`
	Owner          string    `json:"owner"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	PaymentID      string    `json:"paymentId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Cause          string    `json:"cause"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewAmbiguousPaymentTask builds the asynq task. The gateway order id is the
// task id so a repeated event for the same order is enqueued once.
func NewAmbiguousPaymentTask(p AmbiguousPaymentTask, maxRetry int) (*asynq.Task, error) {
	if strings.TrimSpace(p.GatewayOrderID) == "" {
		return nil, errors.New("queue: gateway order id is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return asynq.NewTask(TypeAmbiguousPayment, raw,
		asynq.TaskID(TypeAmbiguousPayment+":"+p.GatewayOrderID),
		asynq.MaxRetry(maxRetry),
		asynq.Queue(SupportQueue),
	), nil
}

// TaskClient is the subset of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer turns ambiguous payment events into support tasks.
type Enqueuer struct {
	Client   TaskClient
	MaxRetry int
	Logger   zerolog.Logger
}

// Notify implements events.Notifier. Other topics are ignored; wrap the
// enqueuer with events.TopicFilter to keep them away entirely.
func (e Enqueuer) Notify(ctx context.Context, event events.Event) error {
	if event.Topic != events.TopicPaymentAmbiguous {
		return nil
	}
	if e.Client == nil {
		return errors.New("queue: task client not configured")
	}
	var payload checkout.AmbiguousPayment
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		QueueEnqueuedTotal.WithLabelValues(TypeAmbiguousPayment, "invalid").Inc()
		return fmt.Errorf("queue: decode ambiguous payment: %w", err)
	}
	task, err := NewAmbiguousPaymentTask(AmbiguousPaymentTask{
		EventID:        event.ID,
		SessionID:      payload.SessionID,
		Owner:          payload.Owner,
		GatewayOrderID: payload.GatewayOrderID,
		PaymentID:      payload.PaymentID,
		Amount:         payload.Amount.Amount,
		Currency:       payload.Amount.Currency,
		Cause:          payload.Cause,
		OccurredAt:     event.OccurredAt,
	}, e.MaxRetry)
	if err != nil {
		QueueEnqueuedTotal.WithLabelValues(TypeAmbiguousPayment, "invalid").Inc()
		return err
	}
	info, err := e.Client.EnqueueContext(ctx, task)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
		QueueEnqueuedTotal.WithLabelValues(TypeAmbiguousPayment, "duplicate").Inc()
		e.Logger.Info().Str("gateway_order_id", payload.GatewayOrderID).Msg("support_task_already_queued")
		return nil
	case err != nil:
		QueueEnqueuedTotal.WithLabelValues(TypeAmbiguousPayment, "error").Inc()
		return fmt.Errorf("queue: enqueue %s: %w", TypeAmbiguousPayment, err)
	}
	QueueEnqueuedTotal.WithLabelValues(TypeAmbiguousPayment, "ok").Inc()
	e.Logger.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("gateway_order_id", payload.GatewayOrderID).
		Msg("support_task_enqueued")
	return nil
}
