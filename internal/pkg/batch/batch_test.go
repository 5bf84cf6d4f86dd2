package batch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/batch"
)

func TestRun_PartialFailureKeepsGoing(t *testing.T) {
	items := []int{1, -1, 3}
	var seen []int

	res := batch.Run(context.Background(), items, nil, func(_ context.Context, n int) (interface{}, error) {
		seen = append(seen, n)
		if n < 0 {
			return nil, apperror.NewValidationError("negativo")
		}
		return n * 10, nil
	})

	assert.Equal(t, []int{1, -1, 3}, seen)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)

	assert.Equal(t, "1", res.Results[0].ID)
	assert.Equal(t, domain.BatchItemSuccess, res.Results[0].Status)
	assert.Equal(t, 10, res.Results[0].Data)

	assert.Equal(t, "2", res.Results[1].ID)
	assert.Equal(t, domain.BatchItemError, res.Results[1].Status)
	assert.Equal(t, "VALIDATION_ERROR", res.Results[1].Code)
	assert.Contains(t, res.Results[1].Error, "negativo")
	assert.Nil(t, res.Results[1].Data)

	assert.Equal(t, domain.BatchItemSuccess, res.Results[2].Status)
}

func TestRun_CustomIDAndInternalErrorHidden(t *testing.T) {
	type item struct{ Ref string }
	items := []item{{"a"}, {"b"}}

	res := batch.Run(context.Background(), items,
		func(_ int, it item) string { return it.Ref },
		func(_ context.Context, it item) (interface{}, error) {
			if it.Ref == "b" {
				return nil, errors.New("driver explodiu")
			}
			return "ok", nil
		})

	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "b", res.Results[1].ID)
	assert.NotContains(t, res.Results[1].Error, "driver")
}

func TestRun_EmptyAndCancelled(t *testing.T) {
	res := batch.Run(context.Background(), []int{}, nil, func(context.Context, int) (interface{}, error) {
		t.Fatal("não deveria executar")
		return nil, nil
	})
	assert.Equal(t, 0, res.Successful+res.Failed)
	assert.Empty(t, res.Results)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = batch.Run(ctx, []int{1, 2}, nil, func(context.Context, int) (interface{}, error) {
		return nil, nil
	})
	assert.Equal(t, 0, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, "CANCELLED", res.Results[0].Code)
}

func TestRun_PanickingItemDoesNotAbortBatch(t *testing.T) {
	items := []string{"a", "b", "c"}

	res := batch.Run(context.Background(), items, func(_ int, s string) string { return s }, func(_ context.Context, s string) (interface{}, error) {
		if s == "b" {
			panic("estado corrompido")
		}
		return s, nil
	})

	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	assert.Equal(t, domain.BatchItemSuccess, res.Results[0].Status)
	assert.Equal(t, domain.BatchItemError, res.Results[1].Status)
	assert.Equal(t, "INTERNAL_ERROR", res.Results[1].Code)
	assert.Nil(t, res.Results[1].Data)
	assert.Equal(t, domain.BatchItemSuccess, res.Results[2].Status)
	assert.Equal(t, "c", res.Results[2].Data)
}
