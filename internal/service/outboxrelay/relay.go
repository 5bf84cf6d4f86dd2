// Package outboxrelay publica no broker os fatos gravados na outbox.
package outboxrelay

import (
	"context"
	"time"

	"laststock/internal/domain"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/messaging"
)

const defaultBatchSize = 100

// Relay lê fatos pendentes em ordem de criação, publica e marca como publicados.
// A entrega é at-least-once: um fato publicado cuja marcação falhe será reenviado.
type Relay struct {
	store     domain.TransactionScope
	publisher messaging.Publisher
	interval  time.Duration
	batchSize int
	now       domain.Clock
	logger    logger.Logger
}

func NewRelay(store domain.TransactionScope, publisher messaging.Publisher, interval time.Duration, batchSize int, logger logger.Logger) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		now:       domain.UTCNow,
		logger:    logger,
	}
}

// Flush publica um lote. Para no primeiro erro de publicação para não furar a ordem;
// os fatos já enviados são marcados mesmo assim.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	var (
		published  int
		publishErr error
	)
	err := r.store.Execute(ctx, func(repos domain.TxRepositories) error {
		pending, err := repos.Outbox().ListPending(ctx, r.batchSize)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(pending))
		for _, e := range pending {
			if err := r.publisher.Publish(ctx, e); err != nil {
				publishErr = err
				r.logger.Warn("Falha ao publicar fato da outbox.", map[string]interface{}{
					"event_id":   e.ID,
					"event_type": e.EventType,
					"error":      err.Error(),
				})
				break
			}
			ids = append(ids, e.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := repos.Outbox().MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, publishErr
}

// Run executa Flush a cada intervalo até ctx ser cancelado e fecha o publisher ao sair.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer func() {
		if err := r.publisher.Close(); err != nil {
			r.logger.Error("Falha ao fechar o publisher da outbox.", err)
		}
	}()

	r.logger.Info("Relay da outbox iniciado.", map[string]interface{}{"interval": r.interval.String(), "batch_size": r.batchSize})
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Relay da outbox encerrado.", nil)
			return
		case <-ticker.C:
			n, err := r.Flush(ctx)
			if err != nil {
				r.logger.Error("Falha no ciclo do relay da outbox.", err)
			}
			if n > 0 {
				r.logger.Debug("Fatos da outbox publicados.", map[string]interface{}{"published": n})
			}
		}
	}
}
