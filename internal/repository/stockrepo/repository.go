package stockrepo

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

const selectColumns = `
        SELECT id, item_id, size_id, location_id, quantity_good, quantity_damaged, quantity_reserved,
               version, created_at, updated_at
        FROM stock_positions`

// StockRepository implementa domain.StockRepository sobre o PostgreSQL.
// DB pode ser o pool ou uma transação aberta pelo TransactionScope.
type StockRepository struct {
	DB        database.Querier
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewStockRepository cria e retorna uma nova instância do Repositório de Estoque.
func NewStockRepository(db database.Querier, dbTimeout time.Duration, logger logger.Logger) *StockRepository {
	return &StockRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (domain.StockPosition, error) {
	var p domain.StockPosition
	err := row.Scan(
		&p.ID, &p.ItemID, &p.SizeID, &p.LocationID,
		&p.QuantityGood, &p.QuantityDamaged, &p.QuantityReserved,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// Get busca a posição sem bloqueio.
func (r *StockRepository) Get(ctx context.Context, key domain.StockKey) (domain.StockPosition, error) {
	return r.get(ctx, key, false)
}

// GetForUpdate busca a posição com FOR UPDATE, bloqueando a linha até o fim da transação.
func (r *StockRepository) GetForUpdate(ctx context.Context, key domain.StockKey) (domain.StockPosition, error) {
	return r.get(ctx, key, true)
}

func (r *StockRepository) get(ctx context.Context, key domain.StockKey, forUpdate bool) (domain.StockPosition, error) {
	r.logger.Debug("Buscando posição de estoque no repositório.", map[string]interface{}{"key": key.String(), "for_update": forUpdate})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := selectColumns + `
        WHERE item_id = $1 AND size_id = $2 AND location_id = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanPosition(r.DB.QueryRowContext(ctxTimeout, query, key.ItemID, key.SizeID, key.LocationID))
	if err == sql.ErrNoRows {
		return domain.StockPosition{}, errors.NewNotFoundError(fmt.Sprintf("Posição de estoque %s não encontrada.", key))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar posição de estoque no DB.", err)
		return domain.StockPosition{}, errors.NewDBError("Falha ao buscar posição de estoque", err)
	}
	return p, nil
}

// Save grava a posição. Posições novas são inseridas; as existentes são atualizadas com OCC.
// Em ambos os casos p.Version já foi incrementada pelo domínio.
func (r *StockRepository) Save(ctx context.Context, p *domain.StockPosition) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if p.IsNew() {
		query := `
            INSERT INTO stock_positions
                (item_id, size_id, location_id, quantity_good, quantity_damaged, quantity_reserved, version, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
            RETURNING id`

		err := r.DB.QueryRowContext(ctxTimeout, query,
			p.ItemID, p.SizeID, p.LocationID, p.QuantityGood, p.QuantityDamaged, p.QuantityReserved,
			p.Version, p.CreatedAt, p.UpdatedAt,
		).Scan(&p.ID)
		if database.IsUniqueViolation(err) {
			// Outra transação criou a mesma chave primeiro.
			r.logger.Warn("Corrida na criação da posição de estoque.", map[string]interface{}{"key": p.StockKey.String()})
			return errors.NewConcurrencyError("A posição de estoque foi criada por outra operação. Tente novamente.")
		}
		if err != nil {
			r.logger.Error("Falha ao inserir posição de estoque.", err)
			return errors.NewDBError("Falha ao inserir posição de estoque", err)
		}
		r.logger.Info("Nova posição de estoque criada.", map[string]interface{}{"id": p.ID, "key": p.StockKey.String()})
		return nil
	}

	query := `
        UPDATE stock_positions
        SET quantity_good = $1, quantity_damaged = $2, quantity_reserved = $3, version = $4, updated_at = $5
        WHERE id = $6 AND version = $7`

	result, err := r.DB.ExecContext(ctxTimeout, query,
		p.QuantityGood, p.QuantityDamaged, p.QuantityReserved,
		p.Version,
		p.UpdatedAt,
		p.ID,
		p.Version-1, // versão lida
	)
	if err != nil {
		r.logger.Error("Falha ao atualizar posição de estoque.", err)
		return errors.NewDBError("Falha ao atualizar posição de estoque", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Falha no controle de concorrência otimista (OCC). Versão do registro desatualizada.", map[string]interface{}{
			"id":               p.ID,
			"expected_version": p.Version - 1,
		})
		return errors.NewConcurrencyError("A posição de estoque foi modificada por outra operação. Tente novamente.")
	}

	r.logger.Debug("Posição de estoque atualizada.", map[string]interface{}{"id": p.ID, "new_version": p.Version})
	return nil
}

// List devolve posições filtradas, ordenadas pela chave.
func (r *StockRepository) List(ctx context.Context, filter domain.StockFilter) ([]domain.StockPosition, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var (
		conds []string
		args  []interface{}
	)
	add := func(col string, v int64) {
		if v > 0 {
			args = append(args, v)
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	add("item_id", filter.ItemID)
	add("size_id", filter.SizeID)
	add("location_id", filter.LocationID)

	query := selectColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY item_id, size_id, location_id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return r.query(ctxTimeout, query, args...)
}

// ListBelowAvailable devolve as posições com disponível abaixo do limite.
func (r *StockRepository) ListBelowAvailable(ctx context.Context, threshold int) ([]domain.StockPosition, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := selectColumns + `
        WHERE quantity_good - quantity_reserved < $1
        ORDER BY quantity_good - quantity_reserved, item_id, size_id, location_id`

	return r.query(ctxTimeout, query, threshold)
}

func (r *StockRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.StockPosition, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Falha ao listar posições de estoque.", err)
		return nil, errors.NewDBError("Falha ao listar posições de estoque", err)
	}
	defer rows.Close()

	positions := []domain.StockPosition{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler posição de estoque", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar posições de estoque", err)
	}
	return positions, nil
}
