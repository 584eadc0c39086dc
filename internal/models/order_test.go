package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/medtrade/internal/apperr"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	items := []ShopItem{
		{ProductID: 1, Quantity: 4, Price: dec("4.50"), Type: ShopItemOffer, OfferID: uuid.NullUUID{UUID: uuid.New(), Valid: true}},
	}
	return NewOrderFromCart(10, 20, items, time.Now())
}

func assertTotal(t *testing.T, o *Order) {
	t.Helper()
	want := o.ProductsCost.Add(o.PlatformFee)
	if o.DeliveryFee.Valid {
		want = want.Add(o.DeliveryFee.Decimal)
	}
	assert.True(t, want.Equal(o.TotalCost), "total %s, want %s", o.TotalCost, want)
}

func TestNewOrderFromCartCosts(t *testing.T) {
	o := newTestOrder(t)

	assert.Equal(t, OrderStatusCalculatingLogistics, o.Status)
	assert.False(t, o.Paid)
	assert.False(t, o.DeliveryFee.Valid)
	assert.True(t, dec("18.00").Equal(o.ProductsCost))
	assert.True(t, dec("1.80").Equal(o.PlatformFee))
	assert.True(t, dec("19.80").Equal(o.TotalCost))
	require.Len(t, o.Items, 1)
	assert.Equal(t, o.ID, o.Items[0].OrderID)
	assert.Equal(t, ShopItemOffer, o.Items[0].Type)
	assert.True(t, o.Items[0].OfferID.Valid)
}

func TestPlatformFeeRounding(t *testing.T) {
	items := []ShopItem{{ProductID: 1, Quantity: 3, Price: dec("0.33"), Type: ShopItemSingle}}
	o := NewOrderFromCart(1, 1, items, time.Now())

	assert.True(t, dec("0.99").Equal(o.ProductsCost))
	assert.True(t, dec("0.10").Equal(o.PlatformFee))
	assertTotal(t, o)
}

func TestTransitionTable(t *testing.T) {
	all := []OrderStatus{
		OrderStatusCalculatingLogistics, OrderStatusConfirmingPayment, OrderStatusInTransit,
		OrderStatusCompleted, OrderStatusCanceled,
	}
	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusCalculatingLogistics: {OrderStatusConfirmingPayment: true, OrderStatusCanceled: true},
		OrderStatusConfirmingPayment:    {OrderStatusInTransit: true, OrderStatusCanceled: true},
		OrderStatusInTransit:            {OrderStatusCompleted: true, OrderStatusCanceled: true},
	}
	fee := dec("2.00")

	for _, from := range all {
		for _, to := range all {
			o := newTestOrder(t)
			o.Status = from
			err := o.Transition(to, &fee, time.Now())
			if allowed[from][to] {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, o.Status)
			} else {
				assert.True(t, apperr.Is(err, apperr.KindState), "%s -> %s: %v", from, to, err)
				assert.Equal(t, from, o.Status)
			}
			assertTotal(t, o)
		}
	}
}

func TestTransitionToConfirmingPaymentRequiresFee(t *testing.T) {
	o := newTestOrder(t)

	err := o.Transition(OrderStatusConfirmingPayment, nil, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, OrderStatusCalculatingLogistics, o.Status)

	for _, bad := range []string{"-1", "2.005", "1000000000000"} {
		fee := dec(bad)
		err = o.Transition(OrderStatusConfirmingPayment, &fee, time.Now())
		assert.True(t, apperr.Is(err, apperr.KindValidation), "fee %s: %v", bad, err)
		assert.Equal(t, OrderStatusCalculatingLogistics, o.Status)
		assert.False(t, o.DeliveryFee.Valid)
		assertTotal(t, o)
	}

	fee := dec("2.00")
	require.NoError(t, o.Transition(OrderStatusConfirmingPayment, &fee, time.Now()))
	assert.True(t, dec("21.80").Equal(o.TotalCost))
	assertTotal(t, o)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	o := newTestOrder(t)
	err := o.Transition(OrderStatus("LOST"), nil, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCompletedAtSetOnce(t *testing.T) {
	o := newTestOrder(t)
	fee := dec("0")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, o.Transition(OrderStatusConfirmingPayment, &fee, now))
	require.NoError(t, o.Transition(OrderStatusInTransit, nil, now))
	assert.Nil(t, o.CompletedAt)

	require.NoError(t, o.Transition(OrderStatusCompleted, nil, now))
	require.NotNil(t, o.CompletedAt)
	assert.Equal(t, now, *o.CompletedAt)

	err := o.Transition(OrderStatusCanceled, nil, now.Add(time.Hour))
	assert.True(t, apperr.Is(err, apperr.KindState))
	assert.Equal(t, now, *o.CompletedAt)
}

func TestSetPaid(t *testing.T) {
	o := newTestOrder(t)

	first, err := o.SetPaid(false, time.Now())
	require.NoError(t, err)
	assert.False(t, first)

	first, err = o.SetPaid(true, time.Now())
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, o.Paid)

	first, err = o.SetPaid(true, time.Now())
	require.NoError(t, err)
	assert.False(t, first)

	_, err = o.SetPaid(false, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindState))
	assert.True(t, o.Paid)
}

func TestSetPaidOnTerminalOrder(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Transition(OrderStatusCanceled, nil, time.Now()))

	_, err := o.SetPaid(true, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindState))
	assert.False(t, o.Paid)
}
