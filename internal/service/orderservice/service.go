package orderservice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/batch"
	"laststock/internal/pkg/etag"
	"laststock/internal/pkg/logger"
	"laststock/internal/pkg/telemetry"
	"laststock/internal/service/movementservice"
)

// Service conduz o ciclo de vida dos pedidos de compra: PENDING -> CONFIRMED | DENIED.
type Service struct {
	store    domain.TransactionScope
	catalog  domain.CatalogLookup
	recorder *movementservice.Recorder
	logger   logger.Logger
	tracer   trace.Tracer
	now      domain.Clock
}

// Option ajusta dependências opcionais do serviço.
type Option func(*Service)

func WithClock(c domain.Clock) Option  { return func(s *Service) { s.now = c } }
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

func NewService(store domain.TransactionScope, catalog domain.CatalogLookup, recorder *movementservice.Recorder, logger logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		catalog:  catalog,
		recorder: recorder,
		logger:   logger,
		tracer:   telemetry.NoopTracer(),
		now:      domain.UTCNow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create valida o payload e as referências do catálogo, numera o pedido no dia corrente
// e grava pedido e itens atomicamente.
func (s *Service) Create(ctx context.Context, in domain.NewPurchaseOrder) (domain.PurchaseOrder, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Create", trace.WithAttributes(
		attribute.Int64("location_id", in.LocationID),
		attribute.Int("items", len(in.Items)),
	))
	defer span.End()

	if err := in.Validate(); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := s.ensureReferences(ctx, in); err != nil {
		return domain.PurchaseOrder{}, telemetry.RecordError(span, err)
	}

	var order domain.PurchaseOrder
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		now := s.now()
		last, err := repos.Orders().LastSequenceForDay(ctx, now)
		if err != nil {
			return err
		}
		number, err := domain.NextOrderNumber(now, last)
		if err != nil {
			return err
		}

		o := domain.NewPendingOrder(number, in, now)
		if err := repos.Orders().Insert(ctx, &o); err != nil {
			return err
		}
		if err := s.emit(ctx, repos, domain.EventOrderCreated, o, orderFact{
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			LocationID:  o.LocationID,
			Actor:       o.RequestedBy,
		}); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha ao criar pedido de compra.", err)
		return domain.PurchaseOrder{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna ao criar pedido.", err))
	}

	s.logger.Info("Pedido de compra criado.", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"items":        len(order.Items),
	})
	return order, nil
}

// ReviewRequest confirma ou nega um pedido. Expected nil significa "sem If-Match".
type ReviewRequest struct {
	OrderID    int64
	Reviewer   string
	AdminNotes string
	Expected   *etag.Precondition
}

// Receipt descreve o efeito de um item confirmado sobre o estoque.
type Receipt struct {
	LastID          int64 `json:"last_id"`
	SizeID          int64 `json:"size_id"`
	LocationID      int64 `json:"location_id"`
	Quantity        int   `json:"quantity"`
	GoodBefore      int   `json:"good_before"`
	GoodAfter       int   `json:"good_after"`
	PositionVersion int   `json:"position_version"`
	Created         bool  `json:"created"`
	MovementID      int64 `json:"movement_id"`
}

// ConfirmResult é o pedido confirmado mais o recebimento item a item.
type ConfirmResult struct {
	Order    domain.PurchaseOrder `json:"order"`
	Receipts []Receipt            `json:"receipts"`
}

// Confirm aprova o pedido e dá entrada no estoque de cada item, tudo em uma transação:
// ou o pedido fica CONFIRMED com todas as entradas, ou nada muda.
func (s *Service) Confirm(ctx context.Context, req ReviewRequest) (ConfirmResult, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Confirm", trace.WithAttributes(attribute.Int64("order_id", req.OrderID)))
	defer span.End()

	var result ConfirmResult
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		o, err := s.loadForReview(ctx, repos, req)
		if err != nil {
			return err
		}

		now := s.now()
		if err := o.Confirm(req.Reviewer, req.AdminNotes, now); err != nil {
			return err
		}
		if err := repos.Orders().Update(ctx, &o); err != nil {
			return err
		}

		receipts := make([]Receipt, 0, len(o.Items))
		for _, item := range o.Items {
			r, err := s.receive(ctx, repos, o, item, now)
			if err != nil {
				return err
			}
			receipts = append(receipts, r)
		}

		if err := s.emit(ctx, repos, domain.EventOrderConfirmed, o, orderFact{
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			LocationID:  o.LocationID,
			Actor:       o.ReviewedBy,
			Receipts:    receipts,
		}); err != nil {
			return err
		}

		result = ConfirmResult{Order: o, Receipts: receipts}
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha ao confirmar pedido de compra.", err)
		return ConfirmResult{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna ao confirmar pedido.", err))
	}

	s.logger.Info("Pedido de compra confirmado.", map[string]interface{}{
		"order_id":     result.Order.ID,
		"order_number": result.Order.OrderNumber,
		"reviewed_by":  result.Order.ReviewedBy,
		"receipts":     len(result.Receipts),
	})
	return result, nil
}

// receive dá entrada pura de um item no local do pedido, criando a posição se preciso.
func (s *Service) receive(ctx context.Context, repos domain.TxRepositories, o domain.PurchaseOrder, item domain.PurchaseOrderItem, now time.Time) (Receipt, error) {
	key := domain.StockKey{ItemID: item.LastID, SizeID: item.SizeID, LocationID: o.LocationID}

	p, err := repos.Stock().GetForUpdate(ctx, key)
	created := false
	if apperror.IsCategory(err, "NOT_FOUND") {
		p = domain.NewStockPosition(key)
		created = true
	} else if err != nil {
		return Receipt{}, err
	}

	before := p.QuantityGood
	if err := p.Receive(item.QuantityRequested, now); err != nil {
		return Receipt{}, err
	}
	if err := p.CheckInvariant(); err != nil {
		return Receipt{}, err
	}
	if err := repos.Stock().Save(ctx, &p); err != nil {
		return Receipt{}, err
	}

	movementID, err := s.recorder.RecordPurchase(ctx, repos.Movements(), key, item.QuantityRequested, o.OrderNumber, o.ReviewedBy)
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{
		LastID:          item.LastID,
		SizeID:          item.SizeID,
		LocationID:      o.LocationID,
		Quantity:        item.QuantityRequested,
		GoodBefore:      before,
		GoodAfter:       p.QuantityGood,
		PositionVersion: p.Version,
		Created:         created,
		MovementID:      movementID,
	}, nil
}

// Deny nega o pedido. Não há efeito sobre o estoque.
func (s *Service) Deny(ctx context.Context, req ReviewRequest) (domain.PurchaseOrder, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Deny", trace.WithAttributes(attribute.Int64("order_id", req.OrderID)))
	defer span.End()

	var order domain.PurchaseOrder
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		o, err := s.loadForReview(ctx, repos, req)
		if err != nil {
			return err
		}
		if err := o.Deny(req.Reviewer, req.AdminNotes, s.now()); err != nil {
			return err
		}
		if err := repos.Orders().Update(ctx, &o); err != nil {
			return err
		}
		if err := s.emit(ctx, repos, domain.EventOrderDenied, o, orderFact{
			OrderNumber: o.OrderNumber,
			Status:      o.Status,
			LocationID:  o.LocationID,
			Actor:       o.ReviewedBy,
		}); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha ao negar pedido de compra.", err)
		return domain.PurchaseOrder{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna ao negar pedido.", err))
	}

	s.logger.Info("Pedido de compra negado.", map[string]interface{}{"order_id": order.ID, "order_number": order.OrderNumber})
	return order, nil
}

func (s *Service) loadForReview(ctx context.Context, repos domain.TxRepositories, req ReviewRequest) (domain.PurchaseOrder, error) {
	if req.OrderID <= 0 {
		return domain.PurchaseOrder{}, apperror.NewValidationError("order_id deve ser positivo.")
	}
	o, err := repos.Orders().GetForUpdate(ctx, req.OrderID)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := etag.Check(req.Expected, o.Version); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return o, nil
}

// Get devolve um pedido com seus itens.
func (s *Service) Get(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Get")
	defer span.End()

	o, err := s.store.Queries().Orders().Get(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, telemetry.RecordError(span, apperror.Passthrough("Falha ao buscar pedido.", err))
	}
	return o, nil
}

// List devolve pedidos do mais novo para o mais antigo.
func (s *Service) List(ctx context.Context, filter domain.OrderFilter) ([]domain.PurchaseOrder, error) {
	ctx, span := s.tracer.Start(ctx, "orders.List")
	defer span.End()

	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	orders, err := s.store.Queries().Orders().List(ctx, filter)
	if err != nil {
		return nil, telemetry.RecordError(span, apperror.Passthrough("Falha ao listar pedidos.", err))
	}
	return orders, nil
}

// UpdateRequest altera departamento/observações de um pedido pendente.
type UpdateRequest struct {
	OrderID  int64
	Fields   domain.OrderFieldsUpdate
	Expected *etag.Precondition
}

func (s *Service) UpdateFields(ctx context.Context, req UpdateRequest) (domain.PurchaseOrder, error) {
	ctx, span := s.tracer.Start(ctx, "orders.UpdateFields", trace.WithAttributes(attribute.Int64("order_id", req.OrderID)))
	defer span.End()

	if req.Fields.IsEmpty() {
		return domain.PurchaseOrder{}, apperror.NewValidationError("Nenhum campo para atualizar.")
	}

	var order domain.PurchaseOrder
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		o, err := s.loadForReview(ctx, repos, ReviewRequest{OrderID: req.OrderID, Expected: req.Expected})
		if err != nil {
			return err
		}
		if err := o.UpdateFields(req.Fields, s.now()); err != nil {
			return err
		}
		if err := repos.Orders().Update(ctx, &o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha ao atualizar pedido de compra.", err)
		return domain.PurchaseOrder{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna ao atualizar pedido.", err))
	}

	s.logger.Info("Pedido de compra atualizado.", map[string]interface{}{"order_id": order.ID, "new_version": order.Version})
	return order, nil
}

// BatchUpdateFields aplica cada atualização em sua própria transação.
func (s *Service) BatchUpdateFields(ctx context.Context, items []UpdateRequest) domain.BatchResult {
	ctx, span := s.tracer.Start(ctx, "orders.BatchUpdateFields", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	res := batch.Run(ctx, items,
		func(_ int, it UpdateRequest) string { return strconv.FormatInt(it.OrderID, 10) },
		func(ctx context.Context, it UpdateRequest) (interface{}, error) {
			return s.UpdateFields(ctx, it)
		})

	s.logger.Info("Lote de atualizações de pedidos processado.", map[string]interface{}{"successful": res.Successful, "failed": res.Failed})
	return res
}

// ensureReferences confirma local, formas e tamanhos antes de qualquer escrita.
func (s *Service) ensureReferences(ctx context.Context, in domain.NewPurchaseOrder) error {
	ok, err := s.catalog.LocationExists(ctx, in.LocationID)
	if err != nil {
		return apperror.Passthrough("Falha ao consultar catálogo.", err)
	}
	if !ok {
		return apperror.NewReferenceNotFoundError(fmt.Sprintf("local %d não existe no catálogo.", in.LocationID))
	}
	for i, it := range in.Items {
		if ok, err = s.catalog.LastExists(ctx, it.LastID); err != nil {
			return apperror.Passthrough("Falha ao consultar catálogo.", err)
		} else if !ok {
			return apperror.NewReferenceNotFoundError(fmt.Sprintf("item %d: forma %d não existe no catálogo.", i+1, it.LastID))
		}
		if ok, err = s.catalog.SizeExists(ctx, it.SizeID); err != nil {
			return apperror.Passthrough("Falha ao consultar catálogo.", err)
		} else if !ok {
			return apperror.NewReferenceNotFoundError(fmt.Sprintf("item %d: tamanho %d não existe no catálogo.", i+1, it.SizeID))
		}
	}
	return nil
}

type orderFact struct {
	OrderNumber string             `json:"order_number"`
	Status      domain.OrderStatus `json:"status"`
	LocationID  int64              `json:"location_id"`
	Actor       string             `json:"actor"`
	Receipts    []Receipt          `json:"receipts,omitempty"`
}

func (s *Service) emit(ctx context.Context, repos domain.TxRepositories, eventType string, o domain.PurchaseOrder, payload orderFact) error {
	e, err := domain.NewOutboxEvent(eventType, domain.AggregateOrder, strconv.FormatInt(o.ID, 10), payload, s.now())
	if err != nil {
		return err
	}
	return repos.Outbox().Insert(ctx, &e)
}

func (s *Service) logWarnOrError(msg string, err error) {
	if appErr, ok := apperror.AsAppError(err); ok {
		if _, internal := appErr.(*apperror.InternalError); !internal {
			s.logger.Warn(msg, map[string]interface{}{"category": appErr.Category(), "error": appErr.Error()})
			return
		}
	}
	s.logger.Error(msg, err)
}
