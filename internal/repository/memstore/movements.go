package memstore

import (
	"context"

	"laststock/internal/domain"
)

type movementRepo struct{ view view }

func (r *movementRepo) Insert(_ context.Context, m *domain.MovementEntry) error {
	r.view.write(func(st *state) {
		st.movementSeq++
		m.ID = st.movementSeq
		st.movements = append(st.movements, *m)
	})
	return nil
}

func (r *movementRepo) List(_ context.Context, f domain.MovementFilter) ([]domain.MovementEntry, error) {
	out := []domain.MovementEntry{}
	r.view.read(func(st *state) {
		for i := len(st.movements) - 1; i >= 0; i-- {
			m := st.movements[i]
			if f.ItemID > 0 && m.ItemID != f.ItemID {
				continue
			}
			if f.Type != "" && m.MovementType != f.Type {
				continue
			}
			if !f.From.IsZero() && m.CreatedAt.Before(f.From) {
				continue
			}
			if !f.To.IsZero() && !m.CreatedAt.Before(f.To) {
				continue
			}
			if f.Cursor > 0 && m.ID >= f.Cursor {
				continue
			}
			out = append(out, m)
			if f.Limit > 0 && len(out) == f.Limit {
				return
			}
		}
	})
	return out, nil
}
