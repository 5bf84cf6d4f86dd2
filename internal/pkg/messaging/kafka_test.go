package messaging_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"laststock/internal/domain"
	"laststock/internal/pkg/messaging"
)

func TestToMessage(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	e := domain.OutboxEvent{
		ID:            "evt-1",
		EventType:     domain.EventOrderConfirmed,
		AggregateType: domain.AggregateOrder,
		AggregateID:   "42",
		Payload:       json.RawMessage(`{"order_number":"PO-20240315-00001"}`),
		CreatedAt:     now,
	}

	msg := messaging.ToMessage(e)

	assert.Equal(t, "purchase_order:42", string(msg.Key))
	assert.JSONEq(t, `{"order_number":"PO-20240315-00001"}`, string(msg.Value))
	assert.Equal(t, now, msg.Time)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_id", msg.Headers[0].Key)
	assert.Equal(t, "evt-1", string(msg.Headers[0].Value))
	assert.Equal(t, "order.confirmed", string(msg.Headers[1].Value))
}
