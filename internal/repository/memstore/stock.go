package memstore

import (
	"context"
	"fmt"
	"sort"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
)

type stockRepo struct{ view view }

func (r *stockRepo) Get(_ context.Context, key domain.StockKey) (domain.StockPosition, error) {
	var (
		p  domain.StockPosition
		ok bool
	)
	r.view.read(func(st *state) { p, ok = st.stock[key] })
	if !ok {
		return domain.StockPosition{}, apperror.NewNotFoundError(fmt.Sprintf("Posição de estoque %s não encontrada.", key))
	}
	return p, nil
}

func (r *stockRepo) GetForUpdate(ctx context.Context, key domain.StockKey) (domain.StockPosition, error) {
	return r.Get(ctx, key)
}

func (r *stockRepo) Save(_ context.Context, p *domain.StockPosition) error {
	var err error
	r.view.write(func(st *state) {
		current, exists := st.stock[p.StockKey]
		if p.IsNew() {
			if exists {
				err = apperror.NewConcurrencyError("A posição de estoque foi criada por outra operação. Tente novamente.")
				return
			}
			st.stockSeq++
			p.ID = st.stockSeq
			st.stock[p.StockKey] = *p
			return
		}
		if !exists || current.Version != p.Version-1 {
			err = apperror.NewConcurrencyError("A posição de estoque foi modificada por outra operação. Tente novamente.")
			return
		}
		st.stock[p.StockKey] = *p
	})
	return err
}

func (r *stockRepo) List(_ context.Context, f domain.StockFilter) ([]domain.StockPosition, error) {
	out := []domain.StockPosition{}
	r.view.read(func(st *state) {
		for _, p := range st.stock {
			if (f.ItemID > 0 && p.ItemID != f.ItemID) ||
				(f.SizeID > 0 && p.SizeID != f.SizeID) ||
				(f.LocationID > 0 && p.LocationID != f.LocationID) {
				continue
			}
			out = append(out, p)
		}
	})
	sortPositions(out)
	return paginate(out, f.Limit, f.Offset), nil
}

func (r *stockRepo) ListBelowAvailable(_ context.Context, threshold int) ([]domain.StockPosition, error) {
	out := []domain.StockPosition{}
	r.view.read(func(st *state) {
		for _, p := range st.stock {
			if p.Available() < threshold {
				out = append(out, p)
			}
		}
	})
	sortPositions(out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Available() < out[j].Available() })
	return out, nil
}
