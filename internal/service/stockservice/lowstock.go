package stockservice

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	apperror "laststock/internal/errors"
	"laststock/internal/pkg/telemetry"
)

// LowStockEntry é uma posição abaixo do limite com a sugestão de reposição.
type LowStockEntry struct {
	PositionView
	Threshold          int `json:"threshold"`
	RecommendedReorder int `json:"recommended_reorder_quantity"`
}

// RecommendedReorderQuantity é a política de reposição: o dobro do déficit,
// ou o próprio limite quando não há déficit.
func RecommendedReorderQuantity(threshold, available int) int {
	deficit := threshold - available
	if deficit > 0 {
		return deficit * 2
	}
	return threshold
}

// LowStock lista posições com disponível abaixo do limite. threshold <= 0 usa o padrão configurado.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]LowStockEntry, error) {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	ctx, span := s.tracer.Start(ctx, "stock.LowStock")
	defer span.End()
	span.SetAttributes(attribute.Int("threshold", threshold))

	positions, err := s.store.Queries().Stock().ListBelowAvailable(ctx, threshold)
	if err != nil {
		return nil, telemetry.RecordError(span, apperror.Passthrough("Falha ao listar estoque baixo.", err))
	}

	entries := make([]LowStockEntry, 0, len(positions))
	for _, p := range positions {
		entries = append(entries, LowStockEntry{
			PositionView:       s.view(ctx, p),
			Threshold:          threshold,
			RecommendedReorder: RecommendedReorderQuantity(threshold, p.Available()),
		})
	}
	return entries, nil
}
