package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
)

type orderRepo struct{ view view }

func (r *orderRepo) Insert(_ context.Context, o *domain.PurchaseOrder) error {
	var err error
	r.view.write(func(st *state) {
		for _, existing := range st.orders {
			if existing.OrderNumber == o.OrderNumber {
				err = apperror.NewConflictError(fmt.Sprintf("Número de pedido %s já existe.", o.OrderNumber))
				return
			}
		}
		st.orderSeq++
		o.ID = st.orderSeq
		for i := range o.Items {
			st.itemSeq++
			o.Items[i].ID = st.itemSeq
			o.Items[i].OrderID = o.ID
		}
		st.orders[o.ID] = cloneOrder(*o)
	})
	return err
}

func (r *orderRepo) Get(_ context.Context, id int64) (domain.PurchaseOrder, error) {
	var (
		o  domain.PurchaseOrder
		ok bool
	)
	r.view.read(func(st *state) {
		o, ok = st.orders[id]
		if ok {
			o = cloneOrder(o)
		}
	})
	if !ok {
		return domain.PurchaseOrder{}, apperror.NewNotFoundError(fmt.Sprintf("Pedido de compra %d não encontrado.", id))
	}
	return o, nil
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id int64) (domain.PurchaseOrder, error) {
	return r.Get(ctx, id)
}

func (r *orderRepo) Update(_ context.Context, o *domain.PurchaseOrder) error {
	var err error
	r.view.write(func(st *state) {
		current, ok := st.orders[o.ID]
		if !ok || current.Version != o.Version-1 {
			err = apperror.NewConcurrencyError("O pedido foi modificado por outra operação. Tente novamente.")
			return
		}
		updated := cloneOrder(*o)
		updated.Items = current.Items
		st.orders[o.ID] = updated
	})
	return err
}

// LastSequenceForDay não precisa de lock: as transações em memória já são serializadas.
func (r *orderRepo) LastSequenceForDay(_ context.Context, day time.Time) (int, error) {
	prefix := domain.FormatOrderNumber(day, 0)
	prefix = prefix[:len(prefix)-5]

	last := 0
	var err error
	r.view.read(func(st *state) {
		for _, o := range st.orders {
			if !strings.HasPrefix(o.OrderNumber, prefix) {
				continue
			}
			seq, perr := domain.ParseOrderSequence(o.OrderNumber)
			if perr != nil {
				err = perr
				return
			}
			if seq > last {
				last = seq
			}
		}
	})
	return last, err
}

func (r *orderRepo) List(_ context.Context, f domain.OrderFilter) ([]domain.PurchaseOrder, error) {
	out := []domain.PurchaseOrder{}
	r.view.read(func(st *state) {
		for _, o := range st.orders {
			if f.Status != "" && o.Status != f.Status {
				continue
			}
			if f.LocationID > 0 && o.LocationID != f.LocationID {
				continue
			}
			out = append(out, cloneOrder(o))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, f.Limit, f.Offset), nil
}
