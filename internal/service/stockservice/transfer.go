package stockservice

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/telemetry"
)

// TransferRequest move estoque bom entre dois locais para a mesma forma e tamanho.
type TransferRequest struct {
	ItemID         int64
	SizeID         int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int
	Reason         string
	Reference      string
	Actor          string
}

// TransferResult traz as duas posições após a transferência e a única movimentação gerada.
type TransferResult struct {
	Source      domain.StockPosition `json:"source"`
	Destination domain.StockPosition `json:"destination"`
	MovementID  int64                `json:"movement_id"`
}

// Transfer debita a origem e credita o destino em uma transação, com uma única
// movimentação TRANSFER. O total de estoque bom da forma/tamanho se conserva.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	ctx, span := s.tracer.Start(ctx, "stock.Transfer", trace.WithAttributes(
		attribute.Int64("item_id", req.ItemID),
		attribute.Int64("from", req.FromLocationID),
		attribute.Int64("to", req.ToLocationID),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	if err := domain.ValidateQuantity(req.Quantity); err != nil {
		return TransferResult{}, err
	}
	if req.FromLocationID == req.ToLocationID {
		return TransferResult{}, apperror.NewValidationError("Origem e destino da transferência devem ser diferentes.")
	}
	src := domain.StockKey{ItemID: req.ItemID, SizeID: req.SizeID, LocationID: req.FromLocationID}
	dst := domain.StockKey{ItemID: req.ItemID, SizeID: req.SizeID, LocationID: req.ToLocationID}
	if err := src.Validate(); err != nil {
		return TransferResult{}, err
	}
	if err := dst.Validate(); err != nil {
		return TransferResult{}, err
	}
	if err := validateActor(req.Actor); err != nil {
		return TransferResult{}, err
	}

	var result TransferResult
	err := s.store.Execute(ctx, func(repos domain.TxRepositories) error {
		source, destination, err := s.lockPair(ctx, repos.Stock(), src, dst)
		if err != nil {
			return err
		}
		if source == nil {
			return apperror.NewNotFoundError(fmt.Sprintf("Posição de origem %s não encontrada.", src))
		}
		if source.QuantityGood < req.Quantity {
			return apperror.NewQuantityRuleError(apperror.CodeInsufficientStock,
				"Estoque insuficiente na origem da transferência.", req.Quantity, source.QuantityGood)
		}
		if destination == nil {
			if err := s.ensureKeyReferences(ctx, dst); err != nil {
				return err
			}
			p := domain.NewStockPosition(dst)
			destination = &p
		}

		now := s.now()
		if err := source.Apply(domain.AdjustRemove, req.Quantity, now); err != nil {
			return err
		}
		if err := destination.Apply(domain.AdjustAdd, req.Quantity, now); err != nil {
			return err
		}
		for _, p := range []*domain.StockPosition{source, destination} {
			if err := p.CheckInvariant(); err != nil {
				return err
			}
			if err := repos.Stock().Save(ctx, p); err != nil {
				return err
			}
		}

		movementID, err := s.recorder.Record(ctx, repos.Movements(), domain.MovementEntry{
			ItemID:          req.ItemID,
			SizeID:          req.SizeID,
			FromLocationID:  domain.LocationRef(req.FromLocationID),
			ToLocationID:    domain.LocationRef(req.ToLocationID),
			MovementType:    domain.MovementTransfer,
			Quantity:        req.Quantity,
			Reason:          req.Reason,
			ReferenceNumber: req.Reference,
			CreatedBy:       req.Actor,
		})
		if err != nil {
			return err
		}

		if err := s.emit(ctx, repos, domain.EventStockTransferred, *source, transferFact{
			ItemID:     req.ItemID,
			SizeID:     req.SizeID,
			From:       req.FromLocationID,
			To:         req.ToLocationID,
			Quantity:   req.Quantity,
			MovementID: movementID,
			Actor:      req.Actor,
		}); err != nil {
			return err
		}

		result = TransferResult{Source: *source, Destination: *destination, MovementID: movementID}
		return nil
	})
	if err != nil {
		s.logWarnOrError("Falha na transferência de estoque.", err)
		return TransferResult{}, telemetry.RecordError(span, apperror.Passthrough("Falha interna na transferência.", err))
	}

	s.logger.Info("Transferência de estoque concluída.", map[string]interface{}{
		"item_id":     req.ItemID,
		"size_id":     req.SizeID,
		"from":        req.FromLocationID,
		"to":          req.ToLocationID,
		"quantity":    req.Quantity,
		"movement_id": result.MovementID,
	})
	return result, nil
}

// lockPair bloqueia as duas posições sempre na ordem crescente de local, evitando deadlock
// entre transferências opostas. Posições ausentes voltam nil.
func (s *Service) lockPair(ctx context.Context, repo domain.StockRepository, src, dst domain.StockKey) (*domain.StockPosition, *domain.StockPosition, error) {
	first, second := src, dst
	if second.LocationID < first.LocationID {
		first, second = second, first
	}

	load := func(k domain.StockKey) (*domain.StockPosition, error) {
		p, err := repo.GetForUpdate(ctx, k)
		if apperror.IsCategory(err, "NOT_FOUND") {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &p, nil
	}

	a, err := load(first)
	if err != nil {
		return nil, nil, err
	}
	b, err := load(second)
	if err != nil {
		return nil, nil, err
	}
	if first == src {
		return a, b, nil
	}
	return b, a, nil
}

type transferFact struct {
	ItemID     int64  `json:"item_id"`
	SizeID     int64  `json:"size_id"`
	From       int64  `json:"from_location_id"`
	To         int64  `json:"to_location_id"`
	Quantity   int    `json:"quantity"`
	MovementID int64  `json:"movement_id"`
	Actor      string `json:"actor"`
}
