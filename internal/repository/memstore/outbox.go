package memstore

import (
	"context"
	"time"

	"laststock/internal/domain"
)

type outboxRepo struct{ view view }

func (r *outboxRepo) Insert(_ context.Context, e *domain.OutboxEvent) error {
	r.view.write(func(st *state) { st.outbox = append(st.outbox, *e) })
	return nil
}

func (r *outboxRepo) ListPending(_ context.Context, limit int) ([]domain.OutboxEvent, error) {
	out := []domain.OutboxEvent{}
	r.view.read(func(st *state) {
		for _, e := range st.outbox {
			if e.PublishedAt != nil {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

func (r *outboxRepo) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	r.view.write(func(st *state) {
		for i := range st.outbox {
			if _, ok := pending[st.outbox[i].ID]; ok {
				t := at
				st.outbox[i].PublishedAt = &t
			}
		}
	})
	return nil
}
