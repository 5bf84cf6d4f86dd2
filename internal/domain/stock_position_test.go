package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newPosition(t *testing.T, good int) domain.StockPosition {
	t.Helper()
	p := domain.NewStockPosition(domain.StockKey{ItemID: 1, SizeID: 2, LocationID: 3})
	require.NoError(t, p.Apply(domain.AdjustAdd, good, now))
	return p
}

func TestStockPosition_AddCreatesVersionOne(t *testing.T) {
	p := domain.NewStockPosition(domain.StockKey{ItemID: 1, SizeID: 2, LocationID: 3})
	assert.Equal(t, 0, p.Version)

	require.NoError(t, p.Apply(domain.AdjustAdd, 10, now))
	assert.Equal(t, 10, p.QuantityGood)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, now, p.LastUpdated())
	assert.Equal(t, now, p.CreatedAt)
}

func TestStockPosition_DamageThenRepair(t *testing.T) {
	p := newPosition(t, 10)

	require.NoError(t, p.Apply(domain.AdjustDamage, 3, now))
	assert.Equal(t, 7, p.QuantityGood)
	assert.Equal(t, 3, p.QuantityDamaged)

	require.NoError(t, p.Apply(domain.AdjustRepair, 2, now))
	assert.Equal(t, 9, p.QuantityGood)
	assert.Equal(t, 1, p.QuantityDamaged)
	assert.Equal(t, 3, p.Version)
	assert.NoError(t, p.CheckInvariant())
}

func TestStockPosition_RuleViolationsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *domain.StockPosition) error
		category string
	}{
		{"remove above good", func(p *domain.StockPosition) error { return p.Apply(domain.AdjustRemove, 11, now) }, apperror.CodeInsufficientStock},
		{"damage above good", func(p *domain.StockPosition) error { return p.Apply(domain.AdjustDamage, 11, now) }, apperror.CodeInsufficientGoodStock},
		{"repair without damaged", func(p *domain.StockPosition) error { return p.Apply(domain.AdjustRepair, 1, now) }, apperror.CodeInsufficientDamagedStock},
		{"remove into reserved", func(p *domain.StockPosition) error { return p.Apply(domain.AdjustRemove, 5, now) }, apperror.CodeInsufficientAvailable},
		{"reserve above available", func(p *domain.StockPosition) error { return p.Reserve(5, now) }, apperror.CodeInsufficientAvailable},
		{"release above reserved", func(p *domain.StockPosition) error { return p.Release(7, now) }, apperror.CodeOverRelease},
		{"zero quantity", func(p *domain.StockPosition) error { return p.Apply(domain.AdjustAdd, 0, now) }, "VALIDATION_ERROR"},
		{"negative reserve", func(p *domain.StockPosition) error { return p.Reserve(-1, now) }, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPosition(t, 10)
			require.NoError(t, p.Reserve(6, now))
			before := p

			err := tt.mutate(&p)

			require.Error(t, err)
			assert.True(t, apperror.IsCategory(err, tt.category), "categoria inesperada: %v", err)
			assert.Equal(t, before, p)
		})
	}
}

func TestStockPosition_ReserveAndRelease(t *testing.T) {
	p := newPosition(t, 10)

	require.NoError(t, p.Reserve(4, now))
	assert.Equal(t, 6, p.Available())

	require.NoError(t, p.Release(3, now))
	assert.Equal(t, 1, p.QuantityReserved)
	assert.Equal(t, 9, p.Available())
	assert.Equal(t, 3, p.Version)
}

func TestStockPosition_Receive(t *testing.T) {
	p := domain.NewStockPosition(domain.StockKey{ItemID: 1, SizeID: 1, LocationID: 1})

	require.NoError(t, p.Receive(25, now))
	assert.Equal(t, 25, p.QuantityGood)
	assert.Equal(t, 1, p.Version)

	assert.Error(t, p.Receive(0, now))
}

func TestParseAdjustmentType(t *testing.T) {
	typ, err := domain.ParseAdjustmentType(" damage ")
	require.NoError(t, err)
	assert.Equal(t, domain.AdjustDamage, typ)
	assert.Equal(t, domain.MovementDamage, typ.MovementType())
	assert.Equal(t, domain.MovementAdjust, domain.AdjustRemove.MovementType())

	_, err = domain.ParseAdjustmentType("SELL")
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))
}
