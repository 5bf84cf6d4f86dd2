package movementrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"laststock/internal/domain"
	"laststock/internal/errors"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/logger"
)

// MovementRepository implementa domain.MovementRepository: apenas INSERT e SELECT.
type MovementRepository struct {
	DB        database.Querier
	DBTimeout time.Duration
	logger    logger.Logger
}

func NewMovementRepository(db database.Querier, dbTimeout time.Duration, logger logger.Logger) *MovementRepository {
	return &MovementRepository{DB: db, DBTimeout: dbTimeout, logger: logger}
}

// Insert grava a movimentação e preenche o id gerado.
func (r *MovementRepository) Insert(ctx context.Context, m *domain.MovementEntry) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO stock_movements
            (item_id, size_id, from_location_id, to_location_id, movement_type, quantity,
             reason, reference_number, created_at, created_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id`

	err := r.DB.QueryRowContext(ctxTimeout, query,
		m.ItemID, m.SizeID, nullInt64(m.FromLocationID), nullInt64(m.ToLocationID), string(m.MovementType), m.Quantity,
		m.Reason, m.ReferenceNumber, m.CreatedAt, m.CreatedBy,
	).Scan(&m.ID)
	if err != nil {
		r.logger.Error("Falha ao inserir movimentação de estoque.", err)
		return errors.NewDBError("Falha ao inserir movimentação", err)
	}

	r.logger.Debug("Movimentação registrada.", map[string]interface{}{"id": m.ID, "type": m.MovementType, "quantity": m.Quantity})
	return nil
}

// List lê o livro em ordem de id decrescente, aplicando os filtros informados.
func (r *MovementRepository) List(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementEntry, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var (
		conds []string
		args  []interface{}
	)
	where := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ItemID > 0 {
		where("item_id = $%d", filter.ItemID)
	}
	if filter.Type != "" {
		where("movement_type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		where("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		where("created_at < $%d", filter.To)
	}
	if filter.Cursor > 0 {
		where("id < $%d", filter.Cursor)
	}

	query := `
        SELECT id, item_id, size_id, from_location_id, to_location_id, movement_type, quantity,
               reason, reference_number, created_at, created_by
        FROM stock_movements`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		r.logger.Error("Falha ao listar movimentações.", err)
		return nil, errors.NewDBError("Falha ao listar movimentações", err)
	}
	defer rows.Close()

	entries := []domain.MovementEntry{}
	for rows.Next() {
		var (
			m        domain.MovementEntry
			from, to sql.NullInt64
			mtype    string
		)
		if err := rows.Scan(&m.ID, &m.ItemID, &m.SizeID, &from, &to, &mtype, &m.Quantity,
			&m.Reason, &m.ReferenceNumber, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, errors.NewDBError("Falha ao ler movimentação", err)
		}
		m.MovementType = domain.MovementType(mtype)
		if from.Valid {
			m.FromLocationID = domain.LocationRef(from.Int64)
		}
		if to.Valid {
			m.ToLocationID = domain.LocationRef(to.Int64)
		}
		entries = append(entries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar movimentações", err)
	}
	return entries, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
