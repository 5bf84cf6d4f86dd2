package outboxrelay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	"laststock/internal/pkg/logger"
	"laststock/internal/repository/memstore"
	"laststock/internal/service/outboxrelay"
)

type fakePublisher struct {
	mu     sync.Mutex
	sent   []domain.OutboxEvent
	failAt int
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, e domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		return errors.New("broker indisponível")
	}
	p.sent = append(p.sent, e)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func seed(t *testing.T, store *memstore.Store, n int) {
	t.Helper()
	ctx := context.Background()
	err := store.Execute(ctx, func(repos domain.TxRepositories) error {
		for i := 0; i < n; i++ {
			e, err := domain.NewOutboxEvent(domain.EventStockAdjusted, domain.AggregateStock, "1", map[string]int{"seq": i}, time.Now().UTC())
			if err != nil {
				return err
			}
			if err := repos.Outbox().Insert(ctx, &e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func pendingCount(t *testing.T, store *memstore.Store) int {
	t.Helper()
	pending, err := store.Queries().Outbox().ListPending(context.Background(), 0)
	require.NoError(t, err)
	return len(pending)
}

// TestFlush_PublishesInOrderAndMarks testa a publicação de um lote.
func TestFlush_PublishesInOrderAndMarks(t *testing.T) {
	store := memstore.NewStore()
	seed(t, store, 3)
	pub := &fakePublisher{}

	n, err := outboxrelay.NewRelay(store, pub, time.Second, 10, logger.NewNop()).Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, 0, pendingCount(t, store))
	require.Len(t, pub.sent, 3)
	assert.JSONEq(t, `{"seq":0}`, string(pub.sent[0].Payload))
	assert.JSONEq(t, `{"seq":2}`, string(pub.sent[2].Payload))
}

// TestFlush_StopsAtFirstFailure testa que falhas não furam a ordem.
func TestFlush_StopsAtFirstFailure(t *testing.T) {
	store := memstore.NewStore()
	seed(t, store, 3)
	pub := &fakePublisher{failAt: 2}

	n, err := outboxrelay.NewRelay(store, pub, time.Second, 10, logger.NewNop()).Flush(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 2, pendingCount(t, store))
}

// TestFlush_RespectsBatchSize testa o limite do lote.
func TestFlush_RespectsBatchSize(t *testing.T) {
	store := memstore.NewStore()
	seed(t, store, 5)
	relay := outboxrelay.NewRelay(store, &fakePublisher{}, time.Second, 2, logger.NewNop())

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, pendingCount(t, store))
}

// TestRun_DrainsAndClosesOnCancel testa o ciclo em segundo plano.
func TestRun_DrainsAndClosesOnCancel(t *testing.T) {
	store := memstore.NewStore()
	seed(t, store, 4)
	pub := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		outboxrelay.NewRelay(store, pub, 5*time.Millisecond, 100, logger.NewNop()).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return pub.count() == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.True(t, pub.closed)
}
