// Package pgstore implementa domain.TransactionScope sobre database/sql.
package pgstore

import (
	"context"
	"database/sql"
	"time"

	"laststock/internal/domain"
	"laststock/internal/errors"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/logger"
	"laststock/internal/repository/movementrepo"
	"laststock/internal/repository/orderrepo"
	"laststock/internal/repository/outboxrepo"
	"laststock/internal/repository/stockrepo"
)

// Store abre transações READ COMMITTED; a serialização por linha vem do FOR UPDATE
// e a detecção de corrida vem do WHERE version.
type Store struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

func NewStore(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *Store {
	return &Store{DB: db, DBTimeout: dbTimeout, logger: logger}
}

type repositories struct {
	stock     *stockrepo.StockRepository
	movements *movementrepo.MovementRepository
	orders    *orderrepo.OrderRepository
	outbox    *outboxrepo.OutboxRepository
}

func (r repositories) Stock() domain.StockRepository        { return r.stock }
func (r repositories) Movements() domain.MovementRepository { return r.movements }
func (r repositories) Orders() domain.OrderRepository       { return r.orders }
func (r repositories) Outbox() domain.OutboxRepository      { return r.outbox }

func (s *Store) bind(q database.Querier) repositories {
	return repositories{
		stock:     stockrepo.NewStockRepository(q, s.DBTimeout, s.logger),
		movements: movementrepo.NewMovementRepository(q, s.DBTimeout, s.logger),
		orders:    orderrepo.NewOrderRepository(q, s.DBTimeout, s.logger),
		outbox:    outboxrepo.NewOutboxRepository(q, s.DBTimeout, s.logger),
	}
}

// Queries devolve repositórios ligados ao pool, fora de transação.
func (s *Store) Queries() domain.TxRepositories {
	return s.bind(s.DB)
}

// Execute roda fn em uma transação. Qualquer erro de fn, ou pânico, desfaz tudo.
func (s *Store) Execute(ctx context.Context, fn func(repos domain.TxRepositories) error) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Falha ao iniciar transação.", err)
		return errors.NewDBError("Falha ao iniciar transação", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("Falha ao desfazer transação.", rbErr)
			}
		}
	}()

	if err = fn(s.bind(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error("Falha ao commitar transação.", err)
		return errors.NewDBError("Falha ao commitar transação", err)
	}
	return nil
}
