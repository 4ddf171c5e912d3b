package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/events"
)

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitFansOut(t *testing.T) {
	first := &captureNotifier{}
	second := &captureNotifier{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := events.Bus{Notifiers: []events.Notifier{first, nil, second}, Now: func() time.Time { return fixed }}

	event, err := bus.Emit(context.Background(), events.TopicCheckoutCompleted, "sess-1", map[string]any{"gatewayOrderId": "order_abc"})
	require.NoError(t, err)
	require.NotEmpty(t, event.ID)
	require.Equal(t, fixed, event.OccurredAt)
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, event.ID, second.events[0].ID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "order_abc", decoded["gatewayOrderId"])
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "sess-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicPaymentFailed, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicPaymentFailed, "sess-1", "not json")
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	failing := &captureNotifier{err: errors.New("queue down")}
	after := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{failing, after}}

	_, err := bus.Emit(context.Background(), events.TopicPaymentAmbiguous, "sess-1", nil)
	require.ErrorContains(t, err, "queue down")
	require.Len(t, after.events, 1)
}

func TestTopicFilterAndLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	only := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{
		events.TopicFilter(only, events.TopicPaymentAmbiguous),
		events.LogNotifier{Logger: zerolog.New(&buf)},
	}}

	_, err := bus.Emit(context.Background(), events.TopicCheckoutCancelled, "sess-1", nil)
	require.NoError(t, err)
	require.Empty(t, only.events)
	require.Contains(t, buf.String(), `"topic":"checkout.cancelled"`)

	_, err = bus.Emit(context.Background(), events.TopicPaymentAmbiguous, "sess-1", nil)
	require.NoError(t, err)
	require.Len(t, only.events, 1)
}
