package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laststock/internal/domain"
	apperror "laststock/internal/errors"
)

func pendingOrder() domain.PurchaseOrder {
	return domain.NewPendingOrder("PO-20240315-00001", domain.NewPurchaseOrder{
		LocationID:  1,
		RequestedBy: "  maria@fabrica.com ",
		Items:       []domain.NewOrderLine{{LastID: 1, SizeID: 2, Quantity: 30}},
	}, now)
}

func TestOrderNumber_UsesUTCDay(t *testing.T) {
	local := time.Date(2024, 3, 15, 23, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	assert.Equal(t, "PO-20240316-00007", domain.FormatOrderNumber(local, 7))

	seq, err := domain.ParseOrderSequence("PO-20240316-00007")
	require.NoError(t, err)
	assert.Equal(t, 7, seq)
}

func TestParseOrderSequence_Malformed(t *testing.T) {
	for _, n := range []string{"", "PO-2024-00001", "XX-20240315-00001", "PO-20241399-00001", "PO-20240315-0001", "PO-20240315-00000"} {
		_, err := domain.ParseOrderSequence(n)
		assert.True(t, apperror.IsCategory(err, "VALIDATION_ERROR"), n)
	}
}

func TestNextOrderNumber(t *testing.T) {
	n, err := domain.NextOrderNumber(now, 0)
	require.NoError(t, err)
	assert.Equal(t, "PO-20240315-00001", n)

	n, err = domain.NextOrderNumber(now, domain.MaxDailySequence-1)
	require.NoError(t, err)
	assert.Equal(t, "PO-20240315-99999", n)

	_, err = domain.NextOrderNumber(now, domain.MaxDailySequence)
	assert.True(t, apperror.IsCategory(err, "SEQUENCE_EXHAUSTED"))
}

func TestNewPurchaseOrder_Validate(t *testing.T) {
	valid := domain.NewPurchaseOrder{LocationID: 1, RequestedBy: "ana", Items: []domain.NewOrderLine{{LastID: 1, SizeID: 1, Quantity: 1}}}
	require.NoError(t, valid.Validate())

	noItems := valid
	noItems.Items = nil
	noRequester := valid
	noRequester.RequestedBy = "  "
	zeroQty := valid
	zeroQty.Items = []domain.NewOrderLine{{LastID: 1, SizeID: 1, Quantity: 0}}
	noLocation := valid
	noLocation.LocationID = 0

	for _, in := range []domain.NewPurchaseOrder{noItems, noRequester, zeroQty, noLocation} {
		assert.True(t, apperror.IsCategory(in.Validate(), "VALIDATION_ERROR"))
	}
}

func TestPurchaseOrder_ConfirmIsTerminal(t *testing.T) {
	o := pendingOrder()
	assert.Equal(t, 1, o.Version)
	assert.Equal(t, "maria@fabrica.com", o.RequestedBy)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 30, o.Items[0].QuantityRequested)

	later := now.Add(time.Hour)
	require.NoError(t, o.Confirm("admin", "ok", later))
	assert.Equal(t, domain.OrderConfirmed, o.Status)
	assert.Equal(t, "admin", o.ReviewedBy)
	require.NotNil(t, o.ReviewedAt)
	assert.Equal(t, later, *o.ReviewedAt)
	assert.Equal(t, 2, o.Version)

	before := o
	assert.True(t, apperror.IsCategory(o.Deny("admin", "", later), "INVALID_STATE"))
	assert.True(t, apperror.IsCategory(o.Confirm("admin", "", later), "INVALID_STATE"))
	assert.Equal(t, before, o)
}

func TestPurchaseOrder_DenyRequiresReviewer(t *testing.T) {
	o := pendingOrder()

	assert.True(t, apperror.IsCategory(o.Deny(" ", "", now), "VALIDATION_ERROR"))
	assert.Equal(t, domain.OrderPending, o.Status)

	require.NoError(t, o.Deny("admin", "sem verba", now))
	assert.Equal(t, domain.OrderDenied, o.Status)
	assert.Equal(t, "sem verba", o.AdminNotes)
	assert.True(t, o.Status.IsTerminal())
}

func TestPurchaseOrder_UpdateFields(t *testing.T) {
	o := pendingOrder()
	dept := "Solados"

	assert.True(t, apperror.IsCategory(o.UpdateFields(domain.OrderFieldsUpdate{}, now), "VALIDATION_ERROR"))

	require.NoError(t, o.UpdateFields(domain.OrderFieldsUpdate{Department: &dept}, now))
	assert.Equal(t, "Solados", o.Department)
	assert.Equal(t, 2, o.Version)

	require.NoError(t, o.Deny("admin", "", now))
	assert.True(t, apperror.IsCategory(o.UpdateFields(domain.OrderFieldsUpdate{Department: &dept}, now), "INVALID_STATE"))
}
