package outboxrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"laststock/internal/domain"
	"laststock/internal/errors"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/logger"
)

// OutboxRepository implementa domain.OutboxRepository sobre a tabela outbox_events.
type OutboxRepository struct {
	DB        database.Querier
	DBTimeout time.Duration
	logger    logger.Logger
}

func NewOutboxRepository(db database.Querier, dbTimeout time.Duration, logger logger.Logger) *OutboxRepository {
	return &OutboxRepository{DB: db, DBTimeout: dbTimeout, logger: logger}
}

func (r *OutboxRepository) Insert(ctx context.Context, e *domain.OutboxEvent) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.DB.ExecContext(ctxTimeout, query,
		e.ID, e.EventType, e.AggregateType, e.AggregateID, []byte(e.Payload), e.CreatedAt,
	); err != nil {
		r.logger.Error("Falha ao gravar fato na outbox.", err)
		return errors.NewDBError("Falha ao gravar outbox", err)
	}
	return nil
}

// ListPending usa SKIP LOCKED para que várias instâncias do relay não disputem as mesmas linhas.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        SELECT id, event_type, aggregate_type, aggregate_id, payload, created_at
        FROM outbox_events
        WHERE published_at IS NULL
        ORDER BY created_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := r.DB.QueryContext(ctxTimeout, query, limit)
	if err != nil {
		r.logger.Error("Falha ao listar outbox pendente.", err)
		return nil, errors.NewDBError("Falha ao listar outbox", err)
	}
	defer rows.Close()

	events := []domain.OutboxEvent{}
	for rows.Next() {
		var (
			e       domain.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &payload, &e.CreatedAt); err != nil {
			return nil, errors.NewDBError("Falha ao ler outbox", err)
		}
		e.Payload = payload
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar outbox", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `UPDATE outbox_events SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := r.DB.ExecContext(ctxTimeout, query, sql.NullTime{Time: at, Valid: true}, pq.Array(ids)); err != nil {
		r.logger.Error("Falha ao marcar outbox como publicada.", err)
		return errors.NewDBError("Falha ao atualizar outbox", err)
	}
	return nil
}
