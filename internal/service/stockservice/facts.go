package stockservice

import (
	"context"
	"strconv"

	"laststock/internal/domain"
)

type quantities struct {
	Good     int `json:"good"`
	Damaged  int `json:"damaged"`
	Reserved int `json:"reserved"`
	Version  int `json:"version"`
}

func snapshotOf(p domain.StockPosition) quantities {
	return quantities{Good: p.QuantityGood, Damaged: p.QuantityDamaged, Reserved: p.QuantityReserved, Version: p.Version}
}

// stockFact é o payload dos fatos stock.* publicados pela outbox.
type stockFact struct {
	domain.StockKey
	Adjustment string     `json:"adjustment,omitempty"`
	Quantity   int        `json:"quantity"`
	Before     quantities `json:"before"`
	After      quantities `json:"after"`
	MovementID int64      `json:"movement_id,omitempty"`
	Actor      string     `json:"actor"`
}

func (s *Service) emit(ctx context.Context, repos domain.TxRepositories, eventType string, p domain.StockPosition, payload interface{}) error {
	e, err := domain.NewOutboxEvent(eventType, domain.AggregateStock, strconv.FormatInt(p.ID, 10), payload, s.now())
	if err != nil {
		return err
	}
	return repos.Outbox().Insert(ctx, &e)
}
