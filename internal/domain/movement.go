package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperror "laststock/internal/errors"
)

// MovementType classifica a causa de uma movimentação de estoque.
type MovementType string

const (
	MovementPurchase MovementType = "PURCHASE"
	MovementAdjust   MovementType = "ADJUST"
	MovementTransfer MovementType = "TRANSFER"
	MovementDamage   MovementType = "DAMAGE"
	MovementRepair   MovementType = "REPAIR"
	MovementSale     MovementType = "SALE"
	MovementReturn   MovementType = "RETURN"
)

// PurchaseOrderReason é o motivo fixo das entradas geradas por pedidos de compra.
const PurchaseOrderReason = "Purchase Order"

// ParseMovementType aceita o nome do tipo sem diferenciar maiúsculas.
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case MovementPurchase, MovementAdjust, MovementTransfer, MovementDamage,
		MovementRepair, MovementSale, MovementReturn:
		return t, nil
	}
	return "", apperror.NewValidationError(fmt.Sprintf("Tipo de movimentação desconhecido: %q.", s))
}

// MovementEntry é uma entrada imutável do livro de movimentações.
// FromLocationID é nulo para entradas puras; ToLocationID é nulo para saídas, avarias e reparos.
type MovementEntry struct {
	ID              int64        `json:"id"`
	ItemID          int64        `json:"item_id"`
	SizeID          int64        `json:"size_id"`
	FromLocationID  *int64       `json:"from_location_id"`
	ToLocationID    *int64       `json:"to_location_id"`
	MovementType    MovementType `json:"movement_type"`
	Quantity        int          `json:"quantity"`
	Reason          string       `json:"reason,omitempty"`
	ReferenceNumber string       `json:"reference_number,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	CreatedBy       string       `json:"created_by"`
}

// Validate confere os campos obrigatórios antes da gravação.
func (m MovementEntry) Validate() error {
	if m.ItemID <= 0 || m.SizeID <= 0 {
		return apperror.NewValidationError("Movimentação exige item_id e size_id positivos.")
	}
	if m.FromLocationID == nil && m.ToLocationID == nil {
		return apperror.NewValidationError("Movimentação exige local de origem ou destino.")
	}
	if _, err := ParseMovementType(string(m.MovementType)); err != nil {
		return err
	}
	if err := ValidateQuantity(m.Quantity); err != nil {
		return err
	}
	if strings.TrimSpace(m.CreatedBy) == "" {
		return apperror.NewValidationError("Movimentação exige o responsável (created_by).")
	}
	return nil
}

// LocationRef devolve um ponteiro para o id, usado nos campos anuláveis.
func LocationRef(id int64) *int64 { return &id }

// MovementFilter filtra a leitura do livro. Cursor > 0 devolve apenas ids menores que ele;
// a ordem é sempre id decrescente, o que torna a paginação estável.
type MovementFilter struct {
	ItemID int64
	Type   MovementType
	From   time.Time
	To     time.Time
	Cursor int64
	Limit  int
}

// MovementPage é uma página do livro de movimentações.
type MovementPage struct {
	Items      []MovementEntry `json:"items"`
	NextCursor int64           `json:"next_cursor,omitempty"`
}

// MovementRepository é o contrato do livro append-only: não há update nem delete.
type MovementRepository interface {
	Insert(ctx context.Context, m *MovementEntry) error
	List(ctx context.Context, filter MovementFilter) ([]MovementEntry, error)
}
