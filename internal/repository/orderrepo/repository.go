package orderrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"laststock/internal/domain"
	"laststock/internal/errors"
	"laststock/internal/pkg/database"
	"laststock/internal/pkg/logger"
)

const selectOrder = `
        SELECT id, order_number, status, location_id, requested_by, department, notes, admin_notes,
               reviewed_at, reviewed_by, version, created_at, updated_at
        FROM purchase_orders`

// OrderRepository implementa domain.OrderRepository (pedido + itens) sobre o PostgreSQL.
type OrderRepository struct {
	DB        database.Querier
	DBTimeout time.Duration
	logger    logger.Logger
}

func NewOrderRepository(db database.Querier, dbTimeout time.Duration, logger logger.Logger) *OrderRepository {
	return &OrderRepository{DB: db, DBTimeout: dbTimeout, logger: logger}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (domain.PurchaseOrder, error) {
	var (
		o          domain.PurchaseOrder
		status     string
		reviewedAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &status, &o.LocationID, &o.RequestedBy, &o.Department, &o.Notes,
		&o.AdminNotes, &reviewedAt, &o.ReviewedBy, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	o.Status = domain.OrderStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		o.ReviewedAt = &t
	}
	return o, nil
}

// Insert grava o pedido e seus itens. Deve rodar dentro de uma transação.
func (r *OrderRepository) Insert(ctx context.Context, o *domain.PurchaseOrder) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        INSERT INTO purchase_orders
            (order_number, status, location_id, requested_by, department, notes, admin_notes,
             reviewed_at, reviewed_by, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id`

	err := r.DB.QueryRowContext(ctxTimeout, query,
		o.OrderNumber, string(o.Status), o.LocationID, o.RequestedBy, o.Department, o.Notes, o.AdminNotes,
		nullTime(o.ReviewedAt), o.ReviewedBy, o.Version, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if database.IsUniqueViolation(err) {
		return errors.NewConflictError(fmt.Sprintf("Número de pedido %s já existe.", o.OrderNumber))
	}
	if err != nil {
		r.logger.Error("Falha ao inserir pedido de compra.", err)
		return errors.NewDBError("Falha ao inserir pedido", err)
	}

	itemQuery := `
        INSERT INTO purchase_order_items (order_id, last_id, size_id, quantity_requested)
        VALUES ($1, $2, $3, $4)
        RETURNING id`

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := r.DB.QueryRowContext(ctxTimeout, itemQuery, o.ID, it.LastID, it.SizeID, it.QuantityRequested).Scan(&it.ID); err != nil {
			r.logger.Error("Falha ao inserir item do pedido.", err)
			return errors.NewDBError("Falha ao inserir item do pedido", err)
		}
	}

	r.logger.Info("Pedido de compra gravado.", map[string]interface{}{"id": o.ID, "order_number": o.OrderNumber, "items": len(o.Items)})
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return r.get(ctx, id, false)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepository) get(ctx context.Context, id int64, forUpdate bool) (domain.PurchaseOrder, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := selectOrder + ` WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(r.DB.QueryRowContext(ctxTimeout, query, id))
	if err == sql.ErrNoRows {
		return domain.PurchaseOrder{}, errors.NewNotFoundError(fmt.Sprintf("Pedido de compra %d não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar pedido de compra.", err)
		return domain.PurchaseOrder{}, errors.NewDBError("Falha ao buscar pedido", err)
	}

	items, err := r.loadItems(ctxTimeout, []int64{o.ID})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.PurchaseOrderItem, error) {
	query := `
        SELECT id, order_id, last_id, size_id, quantity_requested
        FROM purchase_order_items
        WHERE order_id = ANY($1)
        ORDER BY order_id, id`

	rows, err := r.DB.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		r.logger.Error("Falha ao buscar itens de pedidos.", err)
		return nil, errors.NewDBError("Falha ao buscar itens do pedido", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]domain.PurchaseOrderItem, len(orderIDs))
	for rows.Next() {
		var it domain.PurchaseOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.LastID, &it.SizeID, &it.QuantityRequested); err != nil {
			return nil, errors.NewDBError("Falha ao ler item do pedido", err)
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar itens do pedido", err)
	}
	return byOrder, nil
}

// Update grava status, revisão e campos editáveis com OCC. Itens nunca são alterados.
func (r *OrderRepository) Update(ctx context.Context, o *domain.PurchaseOrder) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := `
        UPDATE purchase_orders
        SET status = $1, department = $2, notes = $3, admin_notes = $4, reviewed_at = $5, reviewed_by = $6,
            version = $7, updated_at = $8
        WHERE id = $9 AND version = $10`

	result, err := r.DB.ExecContext(ctxTimeout, query,
		string(o.Status), o.Department, o.Notes, o.AdminNotes, nullTime(o.ReviewedAt), o.ReviewedBy,
		o.Version, o.UpdatedAt, o.ID, o.Version-1,
	)
	if err != nil {
		r.logger.Error("Falha ao atualizar pedido de compra.", err)
		return errors.NewDBError("Falha ao atualizar pedido", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Falha no controle de concorrência otimista (OCC) do pedido.", map[string]interface{}{
			"id":               o.ID,
			"expected_version": o.Version - 1,
		})
		return errors.NewConcurrencyError("O pedido foi modificado por outra operação. Tente novamente.")
	}
	return nil
}

// LastSequenceForDay adquire um advisory lock transacional para o dia e devolve a maior
// sequência já usada. O lock só é liberado no commit/rollback, serializando os criadores do dia.
func (r *OrderRepository) LastSequenceForDay(ctx context.Context, day time.Time) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	prefix := domain.FormatOrderNumber(day, 0)
	prefix = prefix[:len(prefix)-5] // "PO-yyyyMMdd-"

	if _, err := r.DB.ExecContext(ctxTimeout, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		r.logger.Error("Falha ao adquirir lock da sequência diária.", err)
		return 0, errors.NewDBError("Falha ao adquirir lock da sequência", err)
	}

	var last sql.NullString
	err := r.DB.QueryRowContext(ctxTimeout,
		`SELECT MAX(order_number) FROM purchase_orders WHERE order_number LIKE $1`, prefix+"%",
	).Scan(&last)
	if err != nil {
		r.logger.Error("Falha ao ler a sequência diária.", err)
		return 0, errors.NewDBError("Falha ao ler sequência", err)
	}
	if !last.Valid {
		return 0, nil
	}
	seq, err := domain.ParseOrderSequence(last.String)
	if err != nil {
		return 0, errors.NewInternalError("Número de pedido inválido gravado no banco.", err)
	}
	return seq, nil
}

func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.LocationID > 0 {
		args = append(args, filter.LocationID)
		conds = append(conds, fmt.Sprintf("location_id = $%d", len(args)))
	}

	query := selectOrder
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctxTimeout, query, args...)
	if err != nil {
		r.logger.Error("Falha ao listar pedidos de compra.", err)
		return nil, errors.NewDBError("Falha ao listar pedidos", err)
	}
	defer rows.Close()

	orders := []domain.PurchaseOrder{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.NewDBError("Falha ao ler pedido", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar pedidos", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctxTimeout, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
