package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Fatos de domínio gravados na outbox dentro da mesma transação da mutação.
const (
	EventStockAdjusted    = "stock.adjusted"
	EventStockTransferred = "stock.transferred"
	EventStockReserved    = "stock.reserved"
	EventStockReleased    = "stock.released"
	EventOrderCreated     = "order.created"
	EventOrderConfirmed   = "order.confirmed"
	EventOrderDenied      = "order.denied"
)

// Tipos de agregado referenciados pelos fatos.
const (
	AggregateStock = "stock_position"
	AggregateOrder = "purchase_order"
)

// OutboxEvent é um fato pendente de publicação externa.
type OutboxEvent struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
}

// NewOutboxEvent serializa o payload e gera o id do fato.
func NewOutboxEvent(eventType, aggregateType, aggregateID string, payload interface{}, now time.Time) (OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		ID:            uuid.New().String(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       raw,
		CreatedAt:     now,
	}, nil
}

// OutboxRepository é o contrato da tabela de outbox.
type OutboxRepository interface {
	Insert(ctx context.Context, e *OutboxEvent) error
	// ListPending devolve até limit fatos ainda não publicados, do mais antigo ao mais novo.
	ListPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}
