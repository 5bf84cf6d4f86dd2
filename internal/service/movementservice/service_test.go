package movementservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
	"laststock/internal/pkg/logger"
	"laststock/internal/repository/memstore"
	"laststock/internal/service/movementservice"
)

// MockMovementRepository é uma implementação mock de domain.MovementRepository
type MockMovementRepository struct {
	mock.Mock
}

func (m *MockMovementRepository) Insert(ctx context.Context, e *domain.MovementEntry) error {
	args := m.Called(ctx, e)
	if args.Error(0) == nil {
		e.ID = 99
	}
	return args.Error(0)
}

func (m *MockMovementRepository) List(ctx context.Context, f domain.MovementFilter) ([]domain.MovementEntry, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.MovementEntry), args.Error(1)
}

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestRecordPurchase_FixesTypeReasonAndOrigin(t *testing.T) {
	repo := new(MockMovementRepository)
	rec := movementservice.NewRecorder(clock, logger.NewLogger("debug"))

	repo.On("Insert", mock.Anything, mock.MatchedBy(func(e *domain.MovementEntry) bool {
		return e.MovementType == domain.MovementPurchase &&
			e.FromLocationID == nil &&
			e.ToLocationID != nil && *e.ToLocationID == 7 &&
			e.Reason == "Purchase Order" &&
			e.ReferenceNumber == "PO-20240315-00001" &&
			e.CreatedBy == "admin@fabrica.com" &&
			e.CreatedAt.Equal(fixedNow)
	})).Return(nil)

	id, err := rec.RecordPurchase(context.Background(), repo,
		domain.StockKey{ItemID: 1, SizeID: 2, LocationID: 7}, 10, "PO-20240315-00001", "admin@fabrica.com")

	require.NoError(t, err)
	assert.Equal(t, int64(99), id)
	repo.AssertExpectations(t)
}

func TestRecord_RejectsInvalidEntryBeforeWriting(t *testing.T) {
	repo := new(MockMovementRepository)
	rec := movementservice.NewRecorder(clock, logger.NewLogger("debug"))

	cases := []domain.MovementEntry{
		{ItemID: 1, SizeID: 1, ToLocationID: domain.LocationRef(1), MovementType: domain.MovementAdjust, Quantity: 0, CreatedBy: "x"},
		{ItemID: 1, SizeID: 1, MovementType: domain.MovementAdjust, Quantity: 1, CreatedBy: "x"},
		{ItemID: 1, SizeID: 1, ToLocationID: domain.LocationRef(1), MovementType: "LOST", Quantity: 1, CreatedBy: "x"},
		{ItemID: 1, SizeID: 1, ToLocationID: domain.LocationRef(1), MovementType: domain.MovementAdjust, Quantity: 1},
	}
	for _, c := range cases {
		_, err := rec.Record(context.Background(), repo, c)
		assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))
	}
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestList_PaginatesWithCursor(t *testing.T) {
	store := memstore.NewStore()
	rec := movementservice.NewRecorder(clock, logger.NewLogger("debug"))
	svc := movementservice.NewService(store, logger.NewLogger("debug"), nil)
	ctx := context.Background()

	require.NoError(t, store.Execute(ctx, func(repos domain.TxRepositories) error {
		for i := 0; i < 3; i++ {
			if _, err := rec.Record(ctx, repos.Movements(), domain.MovementEntry{
				ItemID: 1, SizeID: 1, ToLocationID: domain.LocationRef(1),
				MovementType: domain.MovementAdjust, Quantity: 1, CreatedBy: "t",
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	page, err := svc.List(ctx, domain.MovementFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.NextCursor)

	page, err = svc.List(ctx, domain.MovementFilter{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Items[0].ID)
	assert.Zero(t, page.NextCursor)
}

func TestList_InvalidRange(t *testing.T) {
	svc := movementservice.NewService(memstore.NewStore(), logger.NewLogger("debug"), nil)
	_, err := svc.List(context.Background(), domain.MovementFilter{From: fixedNow, To: fixedNow.Add(-time.Hour)})
	assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"))
}
