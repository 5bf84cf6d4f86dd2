package movementservice

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/telemetry"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Recorder grava entradas no livro de movimentações usando o repositório da transação
// corrente, de modo que a entrada e a mutação de estoque sejam commitadas juntas.
type Recorder struct {
	now    domain.Clock
	logger logger.Logger
}

func NewRecorder(now domain.Clock, logger logger.Logger) *Recorder {
	if now == nil {
		now = domain.UTCNow
	}
	return &Recorder{now: now, logger: logger}
}

// Record valida e grava uma entrada, devolvendo o id gerado.
func (r *Recorder) Record(ctx context.Context, repo domain.MovementRepository, m domain.MovementEntry) (int64, error) {
	m.Reason = strings.TrimSpace(m.Reason)
	m.ReferenceNumber = strings.TrimSpace(m.ReferenceNumber)
	if err := m.Validate(); err != nil {
		return 0, err
	}
	m.CreatedAt = r.now()

	if err := repo.Insert(ctx, &m); err != nil {
		return 0, apperror.Passthrough("Falha ao registrar movimentação.", err)
	}

	r.logger.Debug("Movimentação registrada.", map[string]interface{}{
		"movement_id": m.ID,
		"type":        m.MovementType,
		"item_id":     m.ItemID,
		"quantity":    m.Quantity,
	})
	return m.ID, nil
}

// RecordPurchase grava a entrada de recebimento de um pedido de compra:
// sem origem, destino no local do pedido, motivo fixo e referência ao número do pedido.
func (r *Recorder) RecordPurchase(ctx context.Context, repo domain.MovementRepository, key domain.StockKey, qty int, orderNumber, createdBy string) (int64, error) {
	return r.Record(ctx, repo, domain.MovementEntry{
		ItemID:          key.ItemID,
		SizeID:          key.SizeID,
		ToLocationID:    domain.LocationRef(key.LocationID),
		MovementType:    domain.MovementPurchase,
		Quantity:        qty,
		Reason:          domain.PurchaseOrderReason,
		ReferenceNumber: orderNumber,
		CreatedBy:       createdBy,
	})
}

// Service expõe a leitura do livro de movimentações.
type Service struct {
	store  domain.TransactionScope
	logger logger.Logger
	tracer trace.Tracer
}

func NewService(store domain.TransactionScope, logger logger.Logger, tracer trace.Tracer) *Service {
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	return &Service{store: store, logger: logger, tracer: tracer}
}

// List devolve uma página do livro em ordem decrescente de id. NextCursor é o id da
// última entrada quando a página veio cheia.
func (s *Service) List(ctx context.Context, filter domain.MovementFilter) (domain.MovementPage, error) {
	ctx, span := s.tracer.Start(ctx, "movements.List")
	defer span.End()

	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return domain.MovementPage{}, apperror.NewValidationError("O início do período deve ser anterior ao fim.")
	}
	span.SetAttributes(attribute.Int64("item_id", filter.ItemID), attribute.Int64("cursor", filter.Cursor))

	entries, err := s.store.Queries().Movements().List(ctx, filter)
	if err != nil {
		return domain.MovementPage{}, telemetry.RecordError(span, apperror.Passthrough("Falha ao listar movimentações.", err))
	}

	page := domain.MovementPage{Items: entries}
	if len(entries) == filter.Limit {
		page.NextCursor = entries[len(entries)-1].ID
	}
	return page, nil
}
