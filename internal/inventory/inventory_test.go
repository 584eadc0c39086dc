package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/testutil"
)

func listing(code, lot, price string, quantity int) Listing {
	return Listing{
		Name:       "Saline 0.9%",
		Code:       code,
		LotNumber:  lot,
		Unit:       models.UnitBox,
		Price:      testutil.Dec(price),
		Quantity:   quantity,
		ExpiryDate: time.Now().AddDate(0, 6, 0),
	}
}

func TestValidateListing(t *testing.T) {
	svc := &Service{now: time.Now}

	tests := []struct {
		name  string
		edit  func(*Listing)
		field string
	}{
		{"missing name", func(l *Listing) { l.Name = "  " }, "name"},
		{"missing code", func(l *Listing) { l.Code = "" }, "code"},
		{"missing lot", func(l *Listing) { l.LotNumber = "" }, "lot_number"},
		{"negative price", func(l *Listing) { l.Price = testutil.Dec("-1") }, "price"},
		{"sub-cent price", func(l *Listing) { l.Price = testutil.Dec("1.005") }, "price"},
		{"price above column limit", func(l *Listing) { l.Price = testutil.Dec("1000000000000") }, "price"},
		{"negative quantity", func(l *Listing) { l.Quantity = -1 }, "quantity"},
		{"quantity above column limit", func(l *Listing) { l.Quantity = models.MaxQuantity + 1 }, "quantity"},
		{"expired", func(l *Listing) { l.ExpiryDate = time.Now().Add(-time.Hour) }, "expiry_date"},
		{"unknown unit", func(l *Listing) { l.Unit = "CRATE" }, "unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listing("SAL-1", "L1", "2.50", 5)
			tt.edit(&l)

			err := svc.validate(&l)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}

	l := listing("SAL-1", "L1", "2.50", 0)
	l.Unit = ""
	require.NoError(t, svc.validate(&l))
	assert.Equal(t, models.UnitPiece, l.Unit)
}

func TestServiceClockMatchesTimestampPrecision(t *testing.T) {
	svc := NewService(nil, zaptest.NewLogger(t), database.DefaultTxOptions())

	now := svc.now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Microsecond))
}

func TestDemandOrdersProductIDs(t *testing.T) {
	d := Demand{}
	d.Add(9, 1)
	d.Add(3, 2)
	d.Add(9, 4)

	assert.Equal(t, []int64{3, 9}, d.ProductIDs())
	assert.Equal(t, 5, d[9])
}

func TestAddListingsMergesByCodeAndLot(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	svc := NewService(db, zaptest.NewLogger(t), database.DefaultTxOptions())
	seller := testutil.NewAccount(t, db, "Seller")

	first, err := svc.AddListings(ctx, seller.Hospital.ID, []Listing{
		listing("SAL-1", "L1", "2.50", 10),
		listing("SAL-1", "L2", "2.75", 3),
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	again, err := svc.AddListings(ctx, seller.Hospital.ID, []Listing{listing("SAL-1", "L1", "9.99", 5)})
	require.NoError(t, err)
	require.Len(t, again, 1)

	assert.Equal(t, first[0].ID, again[0].ID)
	assert.Equal(t, 15, again[0].Quantity)
	assert.True(t, testutil.Dec("2.50").Equal(again[0].Price), "restock must keep the listed price")

	products, err := svc.ListBySeller(ctx, seller.Hospital.ID)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = svc.AddListings(ctx, 999999, []Listing{listing("X", "Y", "1", 1)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListSkipsSoldOutLots(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	svc := NewService(db, zaptest.NewLogger(t), database.DefaultTxOptions())
	seller := testutil.NewAccount(t, db, "Seller")

	testutil.NewProduct(t, db, seller.Hospital.ID, "1.00", 4)
	testutil.NewProduct(t, db, seller.Hospital.ID, "1.00", 0)

	page, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}

func TestCheckAvailable(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	seller := testutil.NewAccount(t, db, "Seller")
	product := testutil.NewProduct(t, db, seller.Hospital.ID, "5.00", 3)

	got, err := CheckAvailable(ctx, db, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)

	_, err = CheckAvailable(ctx, db, product.ID, 4)
	assert.True(t, apperr.Is(err, apperr.KindCapacity))

	_, err = CheckAvailable(ctx, db, 424242, 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDebitItemsIsAllOrNothing(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	seller := testutil.NewAccount(t, db, "Seller")
	plenty := testutil.NewProduct(t, db, seller.Hospital.ID, "1.00", 10)
	scarce := testutil.NewProduct(t, db, seller.Hospital.ID, "1.00", 2)

	items := []models.OrderItem{
		{ProductID: plenty.ID, Quantity: 4},
		{ProductID: scarce.ID, Quantity: 2},
		{ProductID: scarce.ID, Quantity: 1},
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sqlx.Tx) error {
		return DebitItems(ctx, tx, items)
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindCapacity))

	assert.Equal(t, 10, testutil.Stock(t, db, plenty.ID))
	assert.Equal(t, 2, testutil.Stock(t, db, scarce.ID))

	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sqlx.Tx) error {
		return DebitItems(ctx, tx, items[:2])
	})
	require.NoError(t, err)
	assert.Equal(t, 6, testutil.Stock(t, db, plenty.ID))
	assert.Equal(t, 0, testutil.Stock(t, db, scarce.ID))
}

func TestConcurrentDebitsNeverOversell(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	seller := testutil.NewAccount(t, db, "Seller")
	product := testutil.NewProduct(t, db, seller.Hospital.ID, "1.00", 10)

	concurrency := 8
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sqlx.Tx) error {
				return DebitItems(ctx, tx, []models.OrderItem{{ProductID: product.ID, Quantity: 3}})
			})
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindCapacity), "unexpected error: %v", err)
	}

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, testutil.Stock(t, db, product.ID))
}
