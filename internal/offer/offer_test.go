package offer

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
	"github.com/safar/medtrade/internal/testutil"
)

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	seller  testutil.Account
	buyer   testutil.Account
	product *models.Product
}

func setup(t *testing.T) fixture {
	db := testutil.DB(t)
	seller := testutil.NewAccount(t, db, "Seller")
	return fixture{
		db:      db,
		svc:     NewService(db, zaptest.NewLogger(t), database.DefaultTxOptions()),
		seller:  seller,
		buyer:   testutil.NewAccount(t, db, "Buyer"),
		product: testutil.NewProduct(t, db, seller.Hospital.ID, "5.00", 10),
	}
}

func line(productID int64, quantity int, price string) models.OfferLine {
	return models.OfferLine{ProductID: productID, Quantity: quantity, Price: testutil.Dec(price)}
}

func cartItems(t *testing.T, db *sqlx.DB, hospitalID int64) []models.ShopItem {
	t.Helper()
	cart, err := store.GetCartByHospital(context.Background(), db, hospitalID)
	require.NoError(t, err)
	if cart == nil {
		return nil
	}
	return cart.Items
}

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []models.OfferLine
	}{
		{"empty", nil},
		{"zero quantity", []models.OfferLine{line(1, 0, "1.00")}},
		{"negative price", []models.OfferLine{line(1, 1, "-0.01")}},
		{"sub-cent price", []models.OfferLine{line(1, 1, "0.001")}},
		{"missing product", []models.OfferLine{line(0, 1, "1.00")}},
		{"price above column limit", []models.OfferLine{line(1, 1, "1000000000000.00")}},
		{"quantity above column limit", []models.OfferLine{line(1, models.MaxQuantity+1, "1.00")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, apperr.Is(validateLines(tt.lines), apperr.KindValidation))
		})
	}

	assert.NoError(t, validateLines([]models.OfferLine{line(1, 1, "0")}))
}

func TestCreateOffer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 4, "4.50")})
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, offer.Status)
	assert.False(t, offer.CreatedAt.IsZero())

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, stored.Products, 1)
	assert.Equal(t, 4, stored.Products[0].Quantity)
	assert.True(t, testutil.Dec("4.50").Equal(stored.Products[0].Price))

	_, err = f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 1, "5.00")})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	pending, err := f.svc.PendingFor(ctx, f.buyer.Owner.ID, f.seller.Hospital.ID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, offer.ID, pending.ID)

	none, err := f.svc.PendingFor(ctx, f.seller.Owner.ID, f.buyer.Hospital.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCreateOfferRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	foreign := testutil.NewProduct(t, f.db, f.buyer.Hospital.ID, "1.00", 10)

	_, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 11, "4.50")})
	assert.True(t, apperr.Is(err, apperr.KindCapacity))

	_, err = f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID,
		[]models.OfferLine{line(f.product.ID, 6, "4.50"), line(f.product.ID, 5, "4.00")})
	assert.True(t, apperr.Is(err, apperr.KindCapacity), "lines of one product are summed")

	_, err = f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(55555, 1, "1.00")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(foreign.ID, 1, "1.00")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.Create(ctx, 424242, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 1, "1.00")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	offers, err := f.svc.ListByCreator(ctx, f.buyer.Owner.ID)
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestConcurrentCreateKeepsOnePending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	concurrency := 6
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 1, "5.00")})
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
		assert.True(t, apperr.Is(err, apperr.KindConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := f.svc.ListByHospital(ctx, f.seller.Hospital.ID, models.OfferStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func offerItems(t *testing.T, db *sqlx.DB, hospitalID int64, offerID uuid.UUID) []models.ShopItem {
	t.Helper()
	var items []models.ShopItem
	for _, item := range cartItems(t, db, hospitalID) {
		if item.OfferID.Valid && item.OfferID.UUID == offerID {
			items = append(items, item)
		}
	}
	return items
}

func TestConcurrentAcceptAndCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 2, "4.00")})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acceptErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.svc.Accept(ctx, offer.ID, f.seller.Owner.ID)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.Cancel(ctx, offer.ID, f.buyer.Owner.ID)
		}()
		wg.Wait()

		require.True(t, (acceptErr == nil) != (cancelErr == nil),
			"round %d: accept=%v cancel=%v", round, acceptErr, cancelErr)

		final, err := f.svc.Get(ctx, offer.ID)
		require.NoError(t, err)
		items := offerItems(t, f.db, f.buyer.Hospital.ID, offer.ID)

		if acceptErr == nil {
			assert.True(t, apperr.Is(cancelErr, apperr.KindState), "round %d: %v", round, cancelErr)
			assert.Equal(t, models.OfferStatusAccepted, final.Status)
			assert.Len(t, items, 1)
		} else {
			assert.True(t, apperr.Is(acceptErr, apperr.KindState), "round %d: %v", round, acceptErr)
			assert.Equal(t, models.OfferStatusCanceled, final.Status)
			assert.Empty(t, items)
		}
	}
}

func TestConcurrentAcceptAndUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 2, "4.00")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var acceptErr, updateErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = f.svc.Accept(ctx, offer.ID, f.seller.Owner.ID)
	}()
	go func() {
		defer wg.Done()
		_, updateErr = f.svc.Update(ctx, offer.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 3, "3.50")})
	}()
	wg.Wait()

	require.NoError(t, acceptErr)
	if updateErr != nil {
		assert.True(t, apperr.Is(updateErr, apperr.KindState), "got %v", updateErr)
	}

	final, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, final.Status)
	require.Len(t, final.Products, 1)

	items := offerItems(t, f.db, f.buyer.Hospital.ID, offer.ID)
	require.Len(t, items, 1)
	assert.Equal(t, final.Products[0].Quantity, items[0].Quantity)
	assert.True(t, final.Products[0].Price.Equal(items[0].Price))
}

func TestUpdateOfferReplacesLines(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.NewProduct(t, f.db, f.seller.Hospital.ID, "2.00", 5)

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID,
		[]models.OfferLine{line(f.product.ID, 4, "4.50"), line(other.ID, 1, "1.00")})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, offer.ID, f.seller.Owner.ID, []models.OfferLine{line(other.ID, 2, "1.50")})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.svc.Update(ctx, offer.ID, f.buyer.Owner.ID, []models.OfferLine{line(other.ID, 6, "1.50")})
	assert.True(t, apperr.Is(err, apperr.KindCapacity))

	updated, err := f.svc.Update(ctx, offer.ID, f.buyer.Owner.ID, []models.OfferLine{line(other.ID, 2, "1.50")})
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	require.Len(t, stored.Products, 1)
	assert.Equal(t, other.ID, stored.Products[0].ProductID)
	assert.Equal(t, updated.Products[0].ID, stored.Products[0].ID)

	_, err = f.svc.Cancel(ctx, offer.ID, f.buyer.Owner.ID)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, offer.ID, f.buyer.Owner.ID, []models.OfferLine{line(other.ID, 1, "1.50")})
	assert.True(t, apperr.Is(err, apperr.KindState))
}

func TestCancelAndReject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 1, "5.00")})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, offer.ID, f.seller.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.svc.Reject(ctx, offer.ID, f.buyer.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	rejected, err := f.svc.Reject(ctx, offer.ID, f.seller.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusRejected, rejected.Status)

	_, err = f.svc.Cancel(ctx, offer.ID, f.buyer.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindState))
	_, err = f.svc.Accept(ctx, offer.ID, f.seller.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindState))

	again, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 1, "5.00")})
	require.NoError(t, err, "a terminal offer frees the pair")

	canceled, err := f.svc.Cancel(ctx, again.ID, f.buyer.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusCanceled, canceled.Status)
}

func TestAcceptFillsCreatorsCart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 4, "4.50")})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, offer.ID, f.buyer.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	accepted, err := f.svc.Accept(ctx, offer.ID, f.seller.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, accepted.Status)

	items := cartItems(t, f.db, f.buyer.Hospital.ID)
	require.Len(t, items, 1)
	assert.Equal(t, models.ShopItemOffer, items[0].Type)
	assert.Equal(t, offer.ID, items[0].OfferID.UUID)
	assert.Equal(t, 4, items[0].Quantity)
	assert.True(t, testutil.Dec("4.50").Equal(items[0].Price))

	assert.Empty(t, cartItems(t, f.db, f.seller.Hospital.ID))
	assert.Equal(t, 10, testutil.Stock(t, f.db, f.product.ID), "acceptance does not consume stock")
}

func TestAcceptFailureChangesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 8, "4.50")})
	require.NoError(t, err)

	_, err = f.db.ExecContext(ctx, `UPDATE products SET quantity = 5 WHERE id = $1`, f.product.ID)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, offer.ID, f.seller.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindCapacity))

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, stored.Status)
	assert.Empty(t, cartItems(t, f.db, f.buyer.Hospital.ID))
}

func TestAcceptWhenCreatorOwnsNoHospital(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loner := testutil.NewUser(t, f.db)

	offer, err := f.svc.Create(ctx, f.seller.Hospital.ID, loner.ID, []models.OfferLine{line(f.product.ID, 1, "5.00")})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, offer.ID, f.seller.Owner.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	stored, err := f.svc.Get(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, stored.Status)
}

func TestListForUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	buyerProduct := testutil.NewProduct(t, f.db, f.buyer.Hospital.ID, "3.00", 3)

	sent, err := f.svc.Create(ctx, f.seller.Hospital.ID, f.buyer.Owner.ID, []models.OfferLine{line(f.product.ID, 1, "5.00")})
	require.NoError(t, err)
	received, err := f.svc.Create(ctx, f.buyer.Hospital.ID, f.seller.Owner.ID, []models.OfferLine{line(buyerProduct.ID, 1, "3.00")})
	require.NoError(t, err)

	offers, err := f.svc.ListForUser(ctx, f.buyer.Owner.ID)
	require.NoError(t, err)
	require.Len(t, offers.Created, 1)
	require.Len(t, offers.Received, 1)
	assert.Equal(t, sent.ID, offers.Created[0].ID)
	assert.Equal(t, received.ID, offers.Received[0].ID)

	loner := testutil.NewUser(t, f.db)
	offers, err = f.svc.ListForUser(ctx, loner.ID)
	require.NoError(t, err)
	assert.Empty(t, offers.Created)
	assert.Empty(t, offers.Received)

	_, err = f.svc.ListByHospital(ctx, f.seller.Hospital.ID, "OPEN")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
