package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperror "laststock/internal/errors"
)

// StockKey identifica unicamente uma posição de estoque: (forma, tamanho, local).
type StockKey struct {
	ItemID     int64 `json:"item_id"`
	SizeID     int64 `json:"size_id"`
	LocationID int64 `json:"location_id"`
}

// Validate garante que todos os componentes da chave são identificadores positivos.
func (k StockKey) Validate() error {
	if k.ItemID <= 0 || k.SizeID <= 0 || k.LocationID <= 0 {
		return apperror.NewValidationError("item_id, size_id e location_id devem ser positivos.")
	}
	return nil
}

func (k StockKey) String() string {
	return fmt.Sprintf("item=%d/size=%d/location=%d", k.ItemID, k.SizeID, k.LocationID)
}

// AdjustmentType enumera os ajustes manuais permitidos no estoque.
type AdjustmentType string

const (
	AdjustAdd    AdjustmentType = "ADD"
	AdjustRemove AdjustmentType = "REMOVE"
	AdjustDamage AdjustmentType = "DAMAGE"
	AdjustRepair AdjustmentType = "REPAIR"
)

// ParseAdjustmentType aceita o nome do ajuste sem diferenciar maiúsculas.
func ParseAdjustmentType(s string) (AdjustmentType, error) {
	t := AdjustmentType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case AdjustAdd, AdjustRemove, AdjustDamage, AdjustRepair:
		return t, nil
	}
	return "", apperror.NewValidationError(fmt.Sprintf("Tipo de ajuste desconhecido: %q.", s))
}

// MovementType devolve o tipo de movimentação registrado para o ajuste.
func (t AdjustmentType) MovementType() MovementType {
	switch t {
	case AdjustDamage:
		return MovementDamage
	case AdjustRepair:
		return MovementRepair
	default:
		return MovementAdjust
	}
}

// StockPosition é o registro de quantidades de uma chave em três reservatórios:
// bom, avariado e reservado. Invariante: 0 <= reservado <= bom, avariado >= 0.
type StockPosition struct {
	Entity
	StockKey
	QuantityGood     int `json:"quantity_good"`
	QuantityDamaged  int `json:"quantity_damaged"`
	QuantityReserved int `json:"quantity_reserved"`
}

// NewStockPosition cria uma posição zerada, ainda não persistida (Version 0).
func NewStockPosition(key StockKey) StockPosition {
	return StockPosition{StockKey: key}
}

// Key devolve a chave da posição.
func (p StockPosition) Key() StockKey { return p.StockKey }

// LastUpdated é o instante da última mutação.
func (p StockPosition) LastUpdated() time.Time { return p.UpdatedAt }

// Available é a quantidade boa não reservada. Nunca é negativa pelo invariante.
func (p StockPosition) Available() int { return p.QuantityGood - p.QuantityReserved }

// CheckInvariant valida os limites das três quantidades.
func (p StockPosition) CheckInvariant() error {
	if p.QuantityGood < 0 || p.QuantityDamaged < 0 || p.QuantityReserved < 0 {
		return apperror.NewInternalError(fmt.Sprintf("quantidade negativa em %s", p.StockKey), nil)
	}
	if p.QuantityReserved > p.QuantityGood {
		return apperror.NewInternalError(fmt.Sprintf("reservado maior que o bom em %s", p.StockKey), nil)
	}
	return nil
}

// ValidateQuantity rejeita quantidades não positivas antes de qualquer leitura ou escrita.
func ValidateQuantity(qty int) error {
	if qty <= 0 {
		return apperror.NewValidationError("A quantidade deve ser maior que zero.")
	}
	return nil
}

// Apply executa um ajuste manual. Em caso de erro a posição não é alterada.
func (p *StockPosition) Apply(t AdjustmentType, qty int, now time.Time) error {
	if err := ValidateQuantity(qty); err != nil {
		return err
	}

	switch t {
	case AdjustAdd:
		p.QuantityGood += qty

	case AdjustRemove:
		if p.QuantityGood < qty {
			return apperror.NewQuantityRuleError(apperror.CodeInsufficientStock,
				"Estoque insuficiente para remoção.", qty, p.QuantityGood)
		}
		if p.QuantityGood-qty < p.QuantityReserved {
			return apperror.NewQuantityRuleError(apperror.CodeInsufficientAvailable,
				"A remoção consumiria quantidade reservada.", qty, p.Available())
		}
		p.QuantityGood -= qty

	case AdjustDamage:
		if p.QuantityGood < qty {
			return apperror.NewQuantityRuleError(apperror.CodeInsufficientGoodStock,
				"Estoque bom insuficiente para marcar como avariado.", qty, p.QuantityGood)
		}
		if p.QuantityGood-qty < p.QuantityReserved {
			return apperror.NewQuantityRuleError(apperror.CodeInsufficientAvailable,
				"A avaria consumiria quantidade reservada.", qty, p.Available())
		}
		p.QuantityGood -= qty
		p.QuantityDamaged += qty

	case AdjustRepair:
		if p.QuantityDamaged < qty {
			return apperror.NewQuantityRuleError(apperror.CodeInsufficientDamagedStock,
				"Estoque avariado insuficiente para reparo.", qty, p.QuantityDamaged)
		}
		p.QuantityDamaged -= qty
		p.QuantityGood += qty

	default:
		return apperror.NewValidationError(fmt.Sprintf("Tipo de ajuste desconhecido: %q.", t))
	}

	p.touch(now)
	return nil
}

// Receive registra o recebimento de um pedido de compra: entrada pura de estoque bom.
func (p *StockPosition) Receive(qty int, now time.Time) error {
	if err := ValidateQuantity(qty); err != nil {
		return err
	}
	p.QuantityGood += qty
	p.touch(now)
	return nil
}

// Reserve separa qty unidades do estoque disponível.
func (p *StockPosition) Reserve(qty int, now time.Time) error {
	if err := ValidateQuantity(qty); err != nil {
		return err
	}
	if p.Available() < qty {
		return apperror.NewQuantityRuleError(apperror.CodeInsufficientAvailable,
			"Quantidade disponível insuficiente para reserva.", qty, p.Available())
	}
	p.QuantityReserved += qty
	p.touch(now)
	return nil
}

// Release devolve qty unidades reservadas ao disponível.
func (p *StockPosition) Release(qty int, now time.Time) error {
	if err := ValidateQuantity(qty); err != nil {
		return err
	}
	if p.QuantityReserved < qty {
		return apperror.NewQuantityRuleError(apperror.CodeOverRelease,
			"Liberação maior que a quantidade reservada.", qty, p.QuantityReserved)
	}
	p.QuantityReserved -= qty
	p.touch(now)
	return nil
}

// StockFilter define os parâmetros de listagem de posições. Zero significa "sem filtro".
type StockFilter struct {
	ItemID     int64
	SizeID     int64
	LocationID int64
	Limit      int
	Offset     int
}

// StockRepository é o contrato de persistência das posições de estoque.
type StockRepository interface {
	// Get lê a posição sem bloqueio. NotFoundError quando ausente.
	Get(ctx context.Context, key StockKey) (StockPosition, error)
	// GetForUpdate lê a posição bloqueando a linha até o fim da transação.
	GetForUpdate(ctx context.Context, key StockKey) (StockPosition, error)
	// Save insere posições novas (ID 0) ou atualiza com checagem de versão
	// (WHERE version = p.Version-1). Versão divergente resulta em ConcurrencyError.
	Save(ctx context.Context, p *StockPosition) error
	List(ctx context.Context, filter StockFilter) ([]StockPosition, error)
	// ListBelowAvailable devolve posições cujo disponível (bom - reservado) é menor que threshold.
	ListBelowAvailable(ctx context.Context, threshold int) ([]StockPosition, error)
}
