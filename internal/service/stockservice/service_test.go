package stockservice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/etag"
	"laststock/internal/pkg/logger"
	"laststock/internal/repository/memstore"
	"laststock/internal/service/movementservice"
	"laststock/internal/service/stockservice"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	svc   *stockservice.Service
	store *memstore.Store
	codec *etag.Codec
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := logger.NewLogger("debug")
	store := memstore.NewStore()
	catalog := memstore.NewCatalog().SeedDemo()
	rec := movementservice.NewRecorder(clock, log)
	codec, err := etag.NewCodec("segredo")
	require.NoError(t, err)

	svc := stockservice.NewService(store, catalog, rec, log,
		stockservice.WithClock(clock),
		stockservice.WithLowStockThreshold(5),
	)
	return fixture{svc: svc, store: store, codec: codec}
}

var key = domain.StockKey{ItemID: 1, SizeID: 3, LocationID: 1}

func (f fixture) adjust(t *testing.T, typ domain.AdjustmentType, qty int) (stockservice.AdjustResult, error) {
	t.Helper()
	return f.svc.Adjust(context.Background(), stockservice.AdjustRequest{
		Key: key, Type: typ, Quantity: qty, Reason: "teste", Actor: "ana@fabrica.com",
	})
}

func (f fixture) movements(t *testing.T) []domain.MovementEntry {
	t.Helper()
	m, err := f.store.Queries().Movements().List(context.Background(), domain.MovementFilter{})
	require.NoError(t, err)
	return m
}

func (f fixture) position(t *testing.T, k domain.StockKey) domain.StockPosition {
	t.Helper()
	p, err := f.store.Queries().Stock().Get(context.Background(), k)
	require.NoError(t, err)
	return p
}

// TestAdjust_AddCreatesPositionWithVersionOne testa a criação de posição por ADD.
func TestAdjust_AddCreatesPositionWithVersionOne(t *testing.T) {
	f := newFixture(t)

	res, err := f.adjust(t, domain.AdjustAdd, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Position.QuantityGood)
	assert.Equal(t, 1, res.Position.Version)
	assert.Equal(t, fixedNow, res.Position.LastUpdated())
	assert.NotZero(t, res.MovementID)

	moves := f.movements(t)
	require.Len(t, moves, 1)
	assert.Equal(t, domain.MovementAdjust, moves[0].MovementType)
	assert.Nil(t, moves[0].FromLocationID)
	require.NotNil(t, moves[0].ToLocationID)
	assert.Equal(t, key.LocationID, *moves[0].ToLocationID)
	assert.Equal(t, "ana@fabrica.com", moves[0].CreatedBy)

	events, err := f.store.Queries().Outbox().ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStockAdjusted, events[0].EventType)
}

// TestAdjust_DamageThenRepair reproduz o cenário de avaria e reparo.
func TestAdjust_DamageThenRepair(t *testing.T) {
	f := newFixture(t)

	_, err := f.adjust(t, domain.AdjustAdd, 10)
	require.NoError(t, err)

	res, err := f.adjust(t, domain.AdjustDamage, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Position.QuantityGood)
	assert.Equal(t, 3, res.Position.QuantityDamaged)

	res, err = f.adjust(t, domain.AdjustRepair, 2)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Position.QuantityGood)
	assert.Equal(t, 1, res.Position.QuantityDamaged)
	assert.Equal(t, 3, res.Position.Version)

	moves := f.movements(t)
	require.Len(t, moves, 3)
	// Mais recente primeiro
	assert.Equal(t, domain.MovementRepair, moves[0].MovementType)
	assert.Equal(t, domain.MovementDamage, moves[1].MovementType)
	assert.Equal(t, domain.MovementAdjust, moves[2].MovementType)
	assert.Nil(t, moves[0].ToLocationID)
	require.NotNil(t, moves[0].FromLocationID)
}

// TestAdjust_InsufficientRemoveLeavesStateUntouched testa a remoção acima do estoque.
func TestAdjust_InsufficientRemoveLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	_, err := f.adjust(t, domain.AdjustAdd, 5)
	require.NoError(t, err)

	_, err = f.adjust(t, domain.AdjustRemove, 8)
	require.Error(t, err)
	assert.True(t, apperror.IsCategory(err, apperror.CodeInsufficientStock))

	var qerr *apperror.QuantityRuleError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, 8, qerr.Requested)
	assert.Equal(t, 5, qerr.Current)

	p := f.position(t, key)
	assert.Equal(t, 5, p.QuantityGood)
	assert.Equal(t, 1, p.Version)
	assert.Len(t, f.movements(t), 1)
}

func TestAdjust_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Quantidade inválida
	_, err := f.adjust(t, domain.AdjustAdd, 0)
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))

	// Remoção, avaria e reparo em posição inexistente
	for _, typ := range []domain.AdjustmentType{domain.AdjustRemove, domain.AdjustDamage, domain.AdjustRepair} {
		_, err = f.adjust(t, typ, 1)
		assert.True(t, apperror.IsCategory(err, "NOT_FOUND"), typ)
	}

	// Referência inexistente no catálogo
	_, err = f.svc.Adjust(ctx, stockservice.AdjustRequest{
		Key: domain.StockKey{ItemID: 999, SizeID: 1, LocationID: 1}, Type: domain.AdjustAdd, Quantity: 1, Actor: "x",
	})
	assert.True(t, apperror.IsCategory(err, "REFERENCE_NOT_FOUND"))

	// Sem operador
	_, err = f.svc.Adjust(ctx, stockservice.AdjustRequest{Key: key, Type: domain.AdjustAdd, Quantity: 1})
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))

	// Reparo acima do avariado
	_, err = f.adjust(t, domain.AdjustAdd, 4)
	require.NoError(t, err)
	_, err = f.adjust(t, domain.AdjustRepair, 1)
	assert.True(t, apperror.IsCategory(err, apperror.CodeInsufficientDamagedStock))

	// Avaria acima do bom
	_, err = f.adjust(t, domain.AdjustDamage, 5)
	assert.True(t, apperror.IsCategory(err, apperror.CodeInsufficientGoodStock))

	assert.Len(t, f.movements(t), 1)
}

// TestAdjust_StaleTagIsRejectedWithoutChanges testa o controle otimista via ETag.
func TestAdjust_StaleTagIsRejectedWithoutChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.adjust(t, domain.AdjustAdd, 10)
	require.NoError(t, err)
	tagV1 := f.codec.Encode(res.Position.Version)

	pre, err := f.codec.Decode(tagV1)
	require.NoError(t, err)
	res, err = f.svc.Adjust(ctx, stockservice.AdjustRequest{
		Key: key, Type: domain.AdjustRemove, Quantity: 1, Actor: "x", Expected: &pre,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Position.Version)

	// Mesmo tag de novo: agora desatualizado
	_, err = f.svc.Adjust(ctx, stockservice.AdjustRequest{
		Key: key, Type: domain.AdjustRemove, Quantity: 1, Actor: "x", Expected: &pre,
	})
	assert.True(t, apperror.IsCategory(err, "CONCURRENCY_CONFLICT"))

	p := f.position(t, key)
	assert.Equal(t, 9, p.QuantityGood)
	assert.Equal(t, 2, p.Version)
	assert.Len(t, f.movements(t), 2)
}

// TestAdjust_ConcurrentAddsAreAllApplied garante a monotonicidade de versão sob concorrência.
func TestAdjust_ConcurrentAddsAreAllApplied(t *testing.T) {
	f := newFixture(t)
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.adjust(t, domain.AdjustAdd, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	p := f.position(t, key)
	assert.Equal(t, workers, p.QuantityGood)
	assert.Equal(t, workers, p.Version)
	assert.Len(t, f.movements(t), workers)
}

func TestReserveAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.adjust(t, domain.AdjustAdd, 10)
	require.NoError(t, err)

	p, err := f.svc.Reserve(ctx, stockservice.ReserveRequest{Key: key, Quantity: 6, Actor: "x"})
	require.NoError(t, err)
	assert.Equal(t, 6, p.QuantityReserved)
	assert.Equal(t, 4, p.Available())

	_, err = f.svc.Reserve(ctx, stockservice.ReserveRequest{Key: key, Quantity: 5, Actor: "x"})
	assert.True(t, apperror.IsCategory(err, apperror.CodeInsufficientAvailable))

	// Remoção que consumiria reservado
	_, err = f.adjust(t, domain.AdjustRemove, 5)
	assert.True(t, apperror.IsCategory(err, apperror.CodeInsufficientAvailable))

	_, err = f.svc.Release(ctx, stockservice.ReserveRequest{Key: key, Quantity: 7, Actor: "x"})
	assert.True(t, apperror.IsCategory(err, apperror.CodeOverRelease))

	p, err = f.svc.Release(ctx, stockservice.ReserveRequest{Key: key, Quantity: 6, Actor: "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, p.QuantityReserved)

	available, err := f.svc.AvailableQuantity(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 10, available)

	// Reservas não geram movimentação
	assert.Len(t, f.movements(t), 1)

	_, err = f.svc.Reserve(ctx, stockservice.ReserveRequest{Key: domain.StockKey{ItemID: 2, SizeID: 1, LocationID: 1}, Quantity: 1, Actor: "x"})
	assert.True(t, apperror.IsCategory(err, "NOT_FOUND"))
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.adjust(t, domain.AdjustAdd, 3)
	require.NoError(t, err)

	v, err := f.svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Available)
	assert.Equal(t, "FRM-100", v.Names.ItemCode)
	assert.Equal(t, "Depósito Central", v.Names.LocationName)

	views, err := f.svc.List(ctx, domain.StockFilter{ItemID: 1})
	require.NoError(t, err)
	assert.Len(t, views, 1)

	_, err = f.svc.Get(ctx, domain.StockKey{ItemID: 0, SizeID: 1, LocationID: 1})
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))
}

// TestBatchAdjust_PartialFailure: dois itens válidos e um inválido.
func TestBatchAdjust_PartialFailure(t *testing.T) {
	f := newFixture(t)

	res := f.svc.BatchAdjust(context.Background(), []stockservice.BatchAdjustItem{
		{Ref: "a", AdjustRequest: stockservice.AdjustRequest{Key: key, Type: domain.AdjustAdd, Quantity: 5, Actor: "x"}},
		{Ref: "b", AdjustRequest: stockservice.AdjustRequest{Key: key, Type: domain.AdjustRemove, Quantity: 50, Actor: "x"}},
		{AdjustRequest: stockservice.AdjustRequest{Key: key, Type: domain.AdjustAdd, Quantity: 1, Actor: "x"}},
	})

	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "a", res.Results[0].ID)
	assert.Equal(t, domain.BatchItemError, res.Results[1].Status)
	assert.Equal(t, apperror.CodeInsufficientStock, res.Results[1].Code)
	assert.Equal(t, "3", res.Results[2].ID)

	assert.Equal(t, 6, f.position(t, key).QuantityGood)
}

func (f fixture) transfer(t *testing.T, to int64, qty int) (stockservice.TransferResult, error) {
	t.Helper()
	return f.svc.Transfer(context.Background(), stockservice.TransferRequest{
		ItemID: key.ItemID, SizeID: key.SizeID, FromLocationID: key.LocationID, ToLocationID: to,
		Quantity: qty, Reason: "abastecer linha", Reference: "TR-1", Actor: "ana@fabrica.com",
	})
}

// TestTransfer_ConservesGoodStockWithOneMovement testa a conservação do estoque bom na transferência.
func TestTransfer_ConservesGoodStockWithOneMovement(t *testing.T) {
	f := newFixture(t)
	_, err := f.adjust(t, domain.AdjustAdd, 10)
	require.NoError(t, err)
	dstKey := domain.StockKey{ItemID: key.ItemID, SizeID: key.SizeID, LocationID: 2}

	res, err := f.transfer(t, 2, 4)
	require.NoError(t, err)

	src := f.position(t, key)
	dst := f.position(t, dstKey)
	assert.Equal(t, 6, src.QuantityGood)
	assert.Equal(t, 2, src.Version)
	assert.Equal(t, 4, dst.QuantityGood)
	assert.Equal(t, 1, dst.Version)
	assert.Equal(t, 10, src.QuantityGood+dst.QuantityGood)
	assert.Equal(t, src.QuantityGood, res.Source.QuantityGood)
	assert.Equal(t, dst.QuantityGood, res.Destination.QuantityGood)

	moves := f.movements(t)
	require.Len(t, moves, 2)
	transfer := moves[0]
	assert.Equal(t, res.MovementID, transfer.ID)
	assert.Equal(t, domain.MovementTransfer, transfer.MovementType)
	assert.Equal(t, 4, transfer.Quantity)
	require.NotNil(t, transfer.FromLocationID)
	require.NotNil(t, transfer.ToLocationID)
	assert.Equal(t, int64(1), *transfer.FromLocationID)
	assert.Equal(t, int64(2), *transfer.ToLocationID)
	assert.Equal(t, "TR-1", transfer.ReferenceNumber)

	events, err := f.store.Queries().Outbox().ListPending(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.EventStockTransferred, events[len(events)-1].EventType)

	// Segunda transferência credita a posição de destino já existente.
	_, err = f.transfer(t, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, f.position(t, key).QuantityGood)
	assert.Equal(t, 10, f.position(t, dstKey).QuantityGood)
	assert.Equal(t, 2, f.position(t, dstKey).Version)
	assert.Len(t, f.movements(t), 3)
}

// TestTransfer_ErrorsLeaveStateUntouched testa as rejeições da transferência e o rollback.
func TestTransfer_ErrorsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name     string
		reserve  int
		edit     func(r *stockservice.TransferRequest)
		category string
	}{
		{"mesmo local", 0, func(r *stockservice.TransferRequest) { r.ToLocationID = r.FromLocationID }, "VALIDATION_ERROR"},
		{"quantidade zero", 0, func(r *stockservice.TransferRequest) { r.Quantity = 0 }, "VALIDATION_ERROR"},
		{"sem operador", 0, func(r *stockservice.TransferRequest) { r.Actor = " " }, "VALIDATION_ERROR"},
		{"origem inexistente", 0, func(r *stockservice.TransferRequest) { r.FromLocationID, r.ToLocationID = 2, 1 }, "NOT_FOUND"},
		{"estoque insuficiente", 0, func(r *stockservice.TransferRequest) { r.Quantity = 100 }, apperror.CodeInsufficientStock},
		{"consumiria reservado", 8, func(r *stockservice.TransferRequest) {}, apperror.CodeInsufficientAvailable},
		{"destino fora do catálogo", 0, func(r *stockservice.TransferRequest) { r.ToLocationID = 9 }, "REFERENCE_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, err := f.adjust(t, domain.AdjustAdd, 10)
			require.NoError(t, err)
			if tt.reserve > 0 {
				_, err := f.svc.Reserve(ctx, stockservice.ReserveRequest{Key: key, Quantity: tt.reserve, Actor: "ana@fabrica.com"})
				require.NoError(t, err)
			}
			before := f.position(t, key)
			movesBefore := len(f.movements(t))
			eventsBefore, err := f.store.Queries().Outbox().ListPending(ctx, 0)
			require.NoError(t, err)

			req := stockservice.TransferRequest{
				ItemID: key.ItemID, SizeID: key.SizeID, FromLocationID: key.LocationID, ToLocationID: 2,
				Quantity: 4, Reason: "teste", Actor: "ana@fabrica.com",
			}
			tt.edit(&req)
			_, err = f.svc.Transfer(ctx, req)

			require.Error(t, err)
			assert.True(t, apperror.IsCategory(err, tt.category), "categoria inesperada: %v", err)
			assert.Equal(t, before, f.position(t, key))
			assert.Len(t, f.movements(t), movesBefore)
			events, err := f.store.Queries().Outbox().ListPending(ctx, 0)
			require.NoError(t, err)
			assert.Len(t, events, len(eventsBefore))

			for _, loc := range []int64{2, 9} {
				_, err := f.store.Queries().Stock().Get(ctx, domain.StockKey{ItemID: key.ItemID, SizeID: key.SizeID, LocationID: loc})
				assert.True(t, apperror.IsCategory(err, "NOT_FOUND"), "local %d não deveria ter posição", loc)
			}
		})
	}
}

func TestRecommendedReorderQuantity(t *testing.T) {
	assert.Equal(t, 8, stockservice.RecommendedReorderQuantity(5, 1))
	assert.Equal(t, 10, stockservice.RecommendedReorderQuantity(5, 0))
	assert.Equal(t, 5, stockservice.RecommendedReorderQuantity(5, 5))
	assert.Equal(t, 5, stockservice.RecommendedReorderQuantity(5, 9))
}

func TestLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.adjust(t, domain.AdjustAdd, 2)
	require.NoError(t, err)
	other := domain.StockKey{ItemID: 2, SizeID: 1, LocationID: 1}
	_, err = f.svc.Adjust(ctx, stockservice.AdjustRequest{Key: other, Type: domain.AdjustAdd, Quantity: 20, Actor: "x"})
	require.NoError(t, err)

	entries, err := f.svc.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0].Position.StockKey)
	assert.Equal(t, 5, entries[0].Threshold)
	assert.Equal(t, 6, entries[0].RecommendedReorder)
}

// --- Falhas de infraestrutura ---

// MockStockRepository simula falhas do armazenamento.
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Get(ctx context.Context, k domain.StockKey) (domain.StockPosition, error) {
	args := m.Called(ctx, k)
	return args.Get(0).(domain.StockPosition), args.Error(1)
}

func (m *MockStockRepository) GetForUpdate(ctx context.Context, k domain.StockKey) (domain.StockPosition, error) {
	args := m.Called(ctx, k)
	return args.Get(0).(domain.StockPosition), args.Error(1)
}

func (m *MockStockRepository) Save(ctx context.Context, p *domain.StockPosition) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockStockRepository) List(ctx context.Context, f domain.StockFilter) ([]domain.StockPosition, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.StockPosition), args.Error(1)
}

func (m *MockStockRepository) ListBelowAvailable(ctx context.Context, threshold int) ([]domain.StockPosition, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).([]domain.StockPosition), args.Error(1)
}

// failingScope executa fn com o repositório de estoque mockado e os demais em memória.
type failingScope struct {
	stock *MockStockRepository
	inner domain.TxRepositories
}

func (s failingScope) Stock() domain.StockRepository        { return s.stock }
func (s failingScope) Movements() domain.MovementRepository { return s.inner.Movements() }
func (s failingScope) Orders() domain.OrderRepository       { return s.inner.Orders() }
func (s failingScope) Outbox() domain.OutboxRepository      { return s.inner.Outbox() }

type scope struct{ repos failingScope }

func (s scope) Execute(_ context.Context, fn func(domain.TxRepositories) error) error { return fn(s.repos) }
func (s scope) Queries() domain.TxRepositories                                        { return s.repos }

func TestAdjust_RepositoryFailureIsInternal(t *testing.T) {
	mockRepo := new(MockStockRepository)
	log := logger.NewLogger("debug")
	sc := scope{repos: failingScope{stock: mockRepo, inner: memstore.NewStore().Queries()}}
	svc := stockservice.NewService(sc, memstore.NewCatalog().SeedDemo(), movementservice.NewRecorder(clock, log), log)

	mockRepo.On("GetForUpdate", mock.Anything, key).
		Return(domain.StockPosition{}, apperror.NewDBError("Falha ao buscar posição de estoque", errors.New("conexão recusada")))

	_, err := svc.Adjust(context.Background(), stockservice.AdjustRequest{Key: key, Type: domain.AdjustAdd, Quantity: 1, Actor: "x"})
	require.Error(t, err)
	assert.True(t, apperror.IsCategory(err, "INTERNAL_ERROR"))
	mockRepo.AssertExpectations(t)
}
