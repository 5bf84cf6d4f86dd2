// Package memstore é o armazenamento em memória usado por STORAGE_DRIVER=memory e pelos testes.
// Cada transação trabalha sobre uma cópia do estado, trocada no commit; um erro descarta a cópia.
package memstore

import (
	"context"
	"sort"
	"sync"

	"laststock/internal/domain"
)

type state struct {
	stock       map[domain.StockKey]domain.StockPosition
	stockSeq    int64
	movements   []domain.MovementEntry
	movementSeq int64
	orders      map[int64]domain.PurchaseOrder
	orderSeq    int64
	itemSeq     int64
	outbox      []domain.OutboxEvent
}

func newState() *state {
	return &state{
		stock:  make(map[domain.StockKey]domain.StockPosition),
		orders: make(map[int64]domain.PurchaseOrder),
	}
}

func (s *state) clone() *state {
	c := &state{
		stock:       make(map[domain.StockKey]domain.StockPosition, len(s.stock)),
		stockSeq:    s.stockSeq,
		movements:   append([]domain.MovementEntry(nil), s.movements...),
		movementSeq: s.movementSeq,
		orders:      make(map[int64]domain.PurchaseOrder, len(s.orders)),
		orderSeq:    s.orderSeq,
		itemSeq:     s.itemSeq,
		outbox:      append([]domain.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.stock {
		c.stock[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	return c
}

func cloneOrder(o domain.PurchaseOrder) domain.PurchaseOrder {
	o.Items = append([]domain.PurchaseOrderItem(nil), o.Items...)
	if o.ReviewedAt != nil {
		t := *o.ReviewedAt
		o.ReviewedAt = &t
	}
	return o
}

// Store implementa domain.TransactionScope. As transações são serializadas pelo mutex,
// o que equivale a bloquear todas as linhas que a transação tocar.
type Store struct {
	txMu sync.Mutex   // serializa transações
	mu   sync.RWMutex // protege a troca de estado
	st   *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// Execute roda fn sobre uma cópia do estado; só publica a cópia quando fn termina sem erro.
func (s *Store) Execute(ctx context.Context, fn func(repos domain.TxRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(repositories{view: &txView{st: work}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Queries devolve repositórios que leem o último estado commitado.
func (s *Store) Queries() domain.TxRepositories {
	return repositories{view: &committedView{store: s}}
}

// view abstrai o acesso ao estado: dentro da transação é a cópia; fora, o estado commitado sob lock.
type view interface {
	read(func(st *state))
	write(func(st *state))
}

type txView struct{ st *state }

func (v *txView) read(fn func(st *state))  { fn(v.st) }
func (v *txView) write(fn func(st *state)) { fn(v.st) }

type committedView struct{ store *Store }

func (v *committedView) read(fn func(st *state)) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn(v.store.st)
}

// write fora de transação é usado apenas pelo relay da outbox (MarkPublished).
func (v *committedView) write(fn func(st *state)) {
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	fn(v.store.st)
}

type repositories struct{ view view }

func (r repositories) Stock() domain.StockRepository        { return &stockRepo{view: r.view} }
func (r repositories) Movements() domain.MovementRepository { return &movementRepo{view: r.view} }
func (r repositories) Orders() domain.OrderRepository       { return &orderRepo{view: r.view} }
func (r repositories) Outbox() domain.OutboxRepository      { return &outboxRepo{view: r.view} }

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortPositions(ps []domain.StockPosition) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.SizeID != b.SizeID {
			return a.SizeID < b.SizeID
		}
		return a.LocationID < b.LocationID
	})
}
