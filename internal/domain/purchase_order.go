package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperror "laststock/internal/errors"
)

// OrderStatus é o estado do ciclo de vida de um pedido de compra.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderDenied    OrderStatus = "DENIED"
)

// ParseOrderStatus aceita o nome do estado sem diferenciar maiúsculas.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case OrderPending, OrderConfirmed, OrderDenied:
		return st, nil
	}
	return "", apperror.NewValidationError(fmt.Sprintf("Status de pedido desconhecido: %q.", s))
}

// IsTerminal informa se o estado não admite novas transições.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderConfirmed || s == OrderDenied
}

// Numeração diária dos pedidos: PO-<yyyyMMdd>-<00001..99999>.
const (
	OrderNumberPrefix = "PO"
	MaxDailySequence  = 99999
	orderDayLayout    = "20060102"
)

// FormatOrderNumber monta o número do pedido para o dia (UTC) e a sequência.
func FormatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%05d", OrderNumberPrefix, day.UTC().Format(orderDayLayout), seq)
}

// ParseOrderSequence extrai a sequência de um número de pedido gerado por FormatOrderNumber.
func ParseOrderSequence(number string) (int, error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != OrderNumberPrefix || len(parts[1]) != len(orderDayLayout) || len(parts[2]) != 5 {
		return 0, apperror.NewValidationError(fmt.Sprintf("Número de pedido malformado: %q.", number))
	}
	if _, err := time.Parse(orderDayLayout, parts[1]); err != nil {
		return 0, apperror.NewValidationError(fmt.Sprintf("Data inválida no número de pedido: %q.", number))
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return 0, apperror.NewValidationError(fmt.Sprintf("Sequência inválida no número de pedido: %q.", number))
	}
	return seq, nil
}

// NextOrderNumber calcula o próximo número do dia a partir da maior sequência existente.
func NextOrderNumber(day time.Time, lastSeq int) (string, error) {
	next := lastSeq + 1
	if next > MaxDailySequence {
		return "", apperror.NewSequenceExhaustedError(
			fmt.Sprintf("Limite de %d pedidos em %s atingido.", MaxDailySequence, day.UTC().Format("2006-01-02")))
	}
	return FormatOrderNumber(day, next), nil
}

// PurchaseOrderItem é uma linha do pedido. Criada junto com o pedido e nunca alterada.
type PurchaseOrderItem struct {
	ID                int64 `json:"id"`
	OrderID           int64 `json:"order_id"`
	LastID            int64 `json:"last_id"`
	SizeID            int64 `json:"size_id"`
	QuantityRequested int   `json:"quantity_requested"`
}

// PurchaseOrder é o agregado do pedido de compra e dono exclusivo de seus itens.
// ReviewedAt/ReviewedBy/AdminNotes só são preenchidos na saída de PENDING e não mudam mais.
type PurchaseOrder struct {
	Entity
	OrderNumber string              `json:"order_number"`
	Status      OrderStatus         `json:"status"`
	LocationID  int64               `json:"location_id"`
	RequestedBy string              `json:"requested_by"`
	Department  string              `json:"department,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	AdminNotes  string              `json:"admin_notes,omitempty"`
	ReviewedAt  *time.Time          `json:"reviewed_at,omitempty"`
	ReviewedBy  string              `json:"reviewed_by,omitempty"`
	Items       []PurchaseOrderItem `json:"items"`
}

// NewOrderLine é a linha recebida na criação do pedido.
type NewOrderLine struct {
	LastID   int64 `json:"last_id"`
	SizeID   int64 `json:"size_id"`
	Quantity int   `json:"quantity"`
}

// NewPurchaseOrder é o payload de criação de pedido.
type NewPurchaseOrder struct {
	LocationID  int64          `json:"location_id"`
	RequestedBy string         `json:"requested_by"`
	Department  string         `json:"department,omitempty"`
	Notes       string         `json:"notes,omitempty"`
	Items       []NewOrderLine `json:"items"`
}

// Validate confere formato e quantidades. A existência das referências é checada no serviço.
func (n NewPurchaseOrder) Validate() error {
	if n.LocationID <= 0 {
		return apperror.NewValidationError("location_id deve ser positivo.")
	}
	if strings.TrimSpace(n.RequestedBy) == "" {
		return apperror.NewValidationError("requested_by é obrigatório.")
	}
	if len(n.Items) == 0 {
		return apperror.NewValidationError("O pedido deve conter ao menos um item.")
	}
	for i, it := range n.Items {
		if it.LastID <= 0 || it.SizeID <= 0 {
			return apperror.NewValidationError(fmt.Sprintf("Item %d requer last_id e size_id positivos.", i+1))
		}
		if it.Quantity <= 0 {
			return apperror.NewValidationError(fmt.Sprintf("Item %d deve ter quantidade maior que zero.", i+1))
		}
	}
	return nil
}

// NewPendingOrder monta um pedido PENDING (versão 1) a partir do payload validado.
func NewPendingOrder(number string, in NewPurchaseOrder, now time.Time) PurchaseOrder {
	o := PurchaseOrder{
		OrderNumber: number,
		Status:      OrderPending,
		LocationID:  in.LocationID,
		RequestedBy: strings.TrimSpace(in.RequestedBy),
		Department:  in.Department,
		Notes:       in.Notes,
		Items:       make([]PurchaseOrderItem, 0, len(in.Items)),
	}
	for _, it := range in.Items {
		o.Items = append(o.Items, PurchaseOrderItem{
			LastID:            it.LastID,
			SizeID:            it.SizeID,
			QuantityRequested: it.Quantity,
		})
	}
	o.touch(now)
	return o
}

// Confirm aplica PENDING -> CONFIRMED.
func (o *PurchaseOrder) Confirm(reviewer, adminNotes string, now time.Time) error {
	return o.review(OrderConfirmed, reviewer, adminNotes, now)
}

// Deny aplica PENDING -> DENIED.
func (o *PurchaseOrder) Deny(reviewer, adminNotes string, now time.Time) error {
	return o.review(OrderDenied, reviewer, adminNotes, now)
}

func (o *PurchaseOrder) review(to OrderStatus, reviewer, adminNotes string, now time.Time) error {
	if strings.TrimSpace(reviewer) == "" {
		return apperror.NewValidationError("A identidade do revisor é obrigatória.")
	}
	if o.Status != OrderPending {
		return apperror.NewInvalidStateError(
			fmt.Sprintf("Pedido %s está %s; apenas pedidos PENDING podem ir para %s.", o.OrderNumber, o.Status, to))
	}
	reviewedAt := now
	o.Status = to
	o.ReviewedAt = &reviewedAt
	o.ReviewedBy = reviewer
	o.AdminNotes = adminNotes
	o.touch(now)
	return nil
}

// OrderFieldsUpdate carrega os campos editáveis de um pedido pendente; nil mantém o valor.
type OrderFieldsUpdate struct {
	Department *string `json:"department,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// IsEmpty informa se nenhum campo foi enviado.
func (u OrderFieldsUpdate) IsEmpty() bool { return u.Department == nil && u.Notes == nil }

// UpdateFields altera departamento/observações enquanto o pedido está PENDING.
func (o *PurchaseOrder) UpdateFields(u OrderFieldsUpdate, now time.Time) error {
	if u.IsEmpty() {
		return apperror.NewValidationError("Nenhum campo para atualizar.")
	}
	if o.Status != OrderPending {
		return apperror.NewInvalidStateError(
			fmt.Sprintf("Pedido %s está %s; apenas pedidos PENDING podem ser editados.", o.OrderNumber, o.Status))
	}
	if u.Department != nil {
		o.Department = *u.Department
	}
	if u.Notes != nil {
		o.Notes = *u.Notes
	}
	o.touch(now)
	return nil
}

// OrderFilter define filtros de listagem de pedidos.
type OrderFilter struct {
	Status     OrderStatus
	LocationID int64
	Limit      int
	Offset     int
}

// OrderRepository é o contrato de persistência dos pedidos e seus itens.
type OrderRepository interface {
	// Insert grava pedido e itens; preenche os ids e a versão 1.
	Insert(ctx context.Context, o *PurchaseOrder) error
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	// GetForUpdate carrega pedido e itens bloqueando a linha do pedido.
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	// Update grava status/campos com checagem de versão (WHERE version = o.Version-1).
	Update(ctx context.Context, o *PurchaseOrder) error
	// LastSequenceForDay serializa os criadores do dia (lock transacional) e devolve a maior sequência existente.
	LastSequenceForDay(ctx context.Context, day time.Time) (int, error)
	List(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error)
}
