package stockservice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

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

// Service é o livro de estoque: ajustes, reservas, transferências e consultas.
// Toda mutação roda em uma única transação junto com sua movimentação e seu fato de outbox.
type Service struct {
	store             domain.TransactionScope
	catalog           domain.CatalogLookup
	recorder          *movementservice.Recorder
	logger            logger.Logger
	tracer            trace.Tracer
	now               domain.Clock
	lowStockThreshold int
}

// Option ajusta dependências opcionais do serviço.
type Option func(*Service)

func WithClock(c domain.Clock) Option    { return func(s *Service) { s.now = c } }
func WithTracer(t trace.Tracer) Option   { return func(s *Service) { s.tracer = t } }
func WithLowStockThreshold(n int) Option { return func(s *Service) { s.lowStockThreshold = n } }

// NewService cria e retorna uma nova instância do Serviço de Estoque.
func NewService(store domain.TransactionScope, catalog domain.CatalogLookup, recorder *movementservice.Recorder, logger logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:             store,
		catalog:           catalog,
		recorder:          recorder,
		logger:            logger,
		tracer:            telemetry.NoopTracer(),
		now:               domain.UTCNow,
		lowStockThreshold: 5,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AdjustRequest é um ajuste manual. Expected nil significa "sem If-Match".
type AdjustRequest struct {
	Key      domain.StockKey
	Type     domain.AdjustmentType
	Quantity int
	Reason   string
	Actor    string
	Expected *etag.Precondition
}

// AdjustResult devolve a posição após o ajuste e a movimentação gerada.
type AdjustResult struct {
	Position   domain.StockPosition `json:"position"`
	MovementID int64                `json:"movement_id"`
}

func validateActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return apperror.NewValidationError("A identidade do operador é obrigatória.")
	}
	return nil
}

// Adjust aplica ADD, REMOVE, DAMAGE ou REPAIR. ADD cria a posição quando ausente;
// os demais exigem posição existente.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (AdjustResult, error) {
	ctx, span := s.tracer.Start(ctx, "stock.Adjust", trace.WithAttributes(
		attribute.String("key", req.Key.String()),
		attribute.String("type", string(req.Type)),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	s.logger.Debug("Iniciando ajuste de estoque no serviço.", map[string]interface{}{
		"key":      req.Key.String(),
		"type":     req.Type,
		"quantity": req.Quantity,
	})

	// Validações antes de qualquer leitura ou escrita
	if err := domain.ValidateQuantity(req.Quantity); err != nil {
		return AdjustResult{}, err
	}
	if _, err := domain.ParseAdjustmentType(string(req.Type)); err != nil {
		return AdjustResult{}, err
	}
	if err := req.Key.Validate(); err != nil {
		return AdjustResult{}, err
	}
	if err := validateActor(req.Actor); err != nil {
		return AdjustResult{}, err
	}

	var result AdjustResult
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		p, err := repos.Stock().GetForUpdate(ctx, req.Key)
		switch {
		case apperror.IsCategory(err, "NOT_FOUND") && req.Type == domain.AdjustAdd:
			if err := s.ensureKeyReferences(ctx, req.Key); err != nil {
				return err
			}
			p = domain.NewStockPosition(req.Key)
		case err != nil:
			return err
		}

		if err := etag.Check(req.Expected, p.Version); err != nil {
			return err
		}

		before := p
		if err := p.Apply(req.Type, req.Quantity, s.now()); err != nil {
			return err
		}
		if err := p.CheckInvariant(); err != nil {
			return err
		}
		if err := repos.Stock().Save(ctx, &p); err != nil {
			return err
		}

		entry := domain.MovementEntry{
			ItemID:       req.Key.ItemID,
			SizeID:       req.Key.SizeID,
			MovementType: req.Type.MovementType(),
			Quantity:     req.Quantity,
			Reason:       req.Reason,
			CreatedBy:    req.Actor,
		}
		if req.Type == domain.AdjustAdd {
			entry.ToLocationID = domain.LocationRef(req.Key.LocationID)
		} else {
			entry.FromLocationID = domain.LocationRef(req.Key.LocationID)
		}
		movementID, err := s.recorder.Record(ctx, repos.Movements(), entry)
		if err != nil {
			return err
		}

		if err := s.emit(ctx, repos, domain.EventStockAdjusted, p, stockFact{
			StockKey:   req.Key,
			Adjustment: string(req.Type),
			Quantity:   req.Quantity,
			Before:     snapshotOf(before),
			After:      snapshotOf(p),
			MovementID: movementID,
			Actor:      req.Actor,
		}); err != nil {
			return err
		}

		result = AdjustResult{Position: p, MovementID: movementID}
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha ao ajustar estoque.", err)
		return AdjustResult{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna ao ajustar estoque.", err))
	}

	s.logger.Info("Estoque ajustado com sucesso.", map[string]interface{}{
		"key":         req.Key.String(),
		"type":        req.Type,
		"new_good":    result.Position.QuantityGood,
		"new_damaged": result.Position.QuantityDamaged,
		"new_version": result.Position.Version,
	})
	return result, nil
}

// ReserveRequest separa ou devolve quantidade reservada.
type ReserveRequest struct {
	Key      domain.StockKey
	Quantity int
	Actor    string
	Expected *etag.Precondition
}

// Reserve move qty do disponível para o reservado. Não gera movimentação: o estoque físico não muda.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (domain.StockPosition, error) {
	return s.changeReservation(ctx, "stock.Reserve", domain.EventStockReserved, req, func(p *domain.StockPosition) error {
		return p.Reserve(req.Quantity, s.now())
	})
}

// Release devolve qty do reservado ao disponível.
func (s *Service) Release(ctx context.Context, req ReserveRequest) (domain.StockPosition, error) {
	return s.changeReservation(ctx, "stock.Release", domain.EventStockReleased, req, func(p *domain.StockPosition) error {
		return p.Release(req.Quantity, s.now())
	})
}

func (s *Service) changeReservation(ctx context.Context, op, event string, req ReserveRequest, mutate func(*domain.StockPosition) error) (domain.StockPosition, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("key", req.Key.String()),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	if err := domain.ValidateQuantity(req.Quantity); err != nil {
		return domain.StockPosition{}, err
	}
	if err := req.Key.Validate(); err != nil {
		return domain.StockPosition{}, err
	}
	if err := validateActor(req.Actor); err != nil {
		return domain.StockPosition{}, err
	}

	var out domain.StockPosition
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		p, err := repos.Stock().GetForUpdate(ctx, req.Key)
		if err != nil {
			return err
		}
		if err := etag.Check(req.Expected, p.Version); err != nil {
			return err
		}
		before := p
		if err := mutate(&p); err != nil {
			return err
		}
		if err := p.CheckInvariant(); err != nil {
			return err
		}
		if err := repos.Stock().Save(ctx, &p); err != nil {
			return err
		}
		if err := s.emit(ctx, repos, event, p, stockFact{
			StockKey: req.Key,
			Quantity: req.Quantity,
			Before:   snapshotOf(before),
			After:    snapshotOf(p),
			Actor:    req.Actor,
		}); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha ao alterar reserva de estoque.", err)
		return domain.StockPosition{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna ao alterar reserva.", err))
	}

	s.logger.Info("Reserva de estoque alterada.", map[string]interface{}{
		"op":           op,
		"key":          req.Key.String(),
		"new_reserved": out.QuantityReserved,
		"new_version":  out.Version,
	})
	return out, nil
}

// AvailableQuantity devolve bom - reservado.
func (s *Service) AvailableQuantity(ctx context.Context, key domain.StockKey) (int, error) {
	p, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return p.Position.Available(), nil
}

// PositionView é a posição enriquecida com os nomes do catálogo.
type PositionView struct {
	Position  domain.StockPosition `json:"position"`
	Available int                  `json:"available"`
	Names     domain.DisplayNames  `json:"names"`
}

func (s *Service) view(ctx context.Context, p domain.StockPosition) PositionView {
	names, err := s.catalog.DisplayNames(ctx, p.StockKey)
	if err != nil {
		// Nomes são apenas decorativos.
		s.logger.Warn("Falha ao buscar nomes do catálogo.", map[string]interface{}{"key": p.StockKey.String(), "error": err.Error()})
	}
	return PositionView{Position: p, Available: p.Available(), Names: names}
}

// Get devolve a posição de uma chave.
func (s *Service) Get(ctx context.Context, key domain.StockKey) (PositionView, error) {
	ctx, span := s.tracer.Start(ctx, "stock.Get")
	defer span.End()

	if err := key.Validate(); err != nil {
		return PositionView{}, err
	}
	p, err := s.store.Queries().Stock().Get(ctx, key)
	if err != nil {
		return PositionView{}, telemetry.RecordError(span, apperror.Passthrough("Falha ao buscar posição de estoque.", err))
	}
	return s.view(ctx, p), nil
}

// List devolve posições filtradas.
func (s *Service) List(ctx context.Context, filter domain.StockFilter) ([]PositionView, error) {
	ctx, span := s.tracer.Start(ctx, "stock.List")
	defer span.End()

	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	positions, err := s.store.Queries().Stock().List(ctx, filter)
	if err != nil {
		return nil, telemetry.RecordError(span, apperror.Passthrough("Falha ao listar posições de estoque.", err))
	}
	views := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, s.view(ctx, p))
	}
	return views, nil
}

// BatchAdjustItem identifica um ajuste dentro de um lote. Invalid carrega um erro
// de leitura do item (tipo ou tag malformados) e faz o item falhar sem executar.
type BatchAdjustItem struct {
	Ref string
	AdjustRequest
	Invalid error
}

// BatchAdjust executa cada ajuste em sua própria transação; falhas não abortam o lote.
func (s *Service) BatchAdjust(ctx context.Context, items []BatchAdjustItem) domain.BatchResult {
	ctx, span := s.tracer.Start(ctx, "stock.BatchAdjust", trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	res := batch.Run(ctx, items,
		func(i int, it BatchAdjustItem) string {
			if it.Ref != "" {
				return it.Ref
			}
			return strconv.Itoa(i + 1)
		},
		func(ctx context.Context, it BatchAdjustItem) (interface{}, error) {
			if it.Invalid != nil {
				return nil, it.Invalid
			}
			return s.Adjust(ctx, it.AdjustRequest)
		})

	s.logger.Info("Lote de ajustes processado.", map[string]interface{}{"successful": res.Successful, "failed": res.Failed})
	return res
}

// ensureKeyReferences confirma que forma, tamanho e local existem no catálogo.
func (s *Service) ensureKeyReferences(ctx context.Context, key domain.StockKey) error {
	checks := []struct {
		name   string
		id     int64
		exists func(context.Context, int64) (bool, error)
	}{
		{"forma", key.ItemID, s.catalog.LastExists},
		{"tamanho", key.SizeID, s.catalog.SizeExists},
		{"local", key.LocationID, s.catalog.LocationExists},
	}
	for _, c := range checks {
		ok, err := c.exists(ctx, c.id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewReferenceNotFoundError(fmt.Sprintf("%s %d não existe no catálogo.", c.name, c.id))
		}
	}
	return nil
}

// logWarnOrError registra erros de regra como aviso e o restante como erro.
func (s *Service) logWarnOrError(msg string, err error) {
	if appErr, ok := apperror.AsAppError(err); ok {
		if _, internal := appErr.(*apperror.InternalError); !internal {
			s.logger.Warn(msg, map[string]interface{}{"category": appErr.Category(), "error": appErr.Error()})
			return
		}
	}
	s.logger.Error(msg, err)
}
