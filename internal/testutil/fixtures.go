package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
)

// Account is a hospital together with the user who owns it.
type Account struct {
	Hospital *models.Hospital
	Owner    *models.User
	Address  *models.DeliveryAddress
}

// NewAccount creates a user, a hospital they own and one delivery address.
func NewAccount(t *testing.T, db *sqlx.DB, name string) Account {
	t.Helper()
	ctx := context.Background()

	user := NewUser(t, db)

	hospital, err := store.CreateHospital(ctx, db, name, name+" GmbH")
	if err != nil {
		t.Fatalf("Create hospital: %v", err)
	}

	if err := store.AssignOwner(ctx, db, hospital.ID, user.ID); err != nil {
		t.Fatalf("Assign owner: %v", err)
	}
	hospital.OwnerID = uuid.NullUUID{UUID: user.ID, Valid: true}

	addr, err := store.CreateDeliveryAddress(ctx, db, models.DeliveryAddress{
		HospitalID: hospital.ID,
		Street:     "1 Main St",
		City:       "Berlin",
		PostalCode: "10115",
		Country:    "DE",
	})
	if err != nil {
		t.Fatalf("Create address: %v", err)
	}

	return Account{Hospital: hospital, Owner: user, Address: addr}
}

// NewUser creates a user that owns no hospital.
func NewUser(t *testing.T, db *sqlx.DB) *models.User {
	t.Helper()

	user, err := store.CreateUser(context.Background(), db, fmt.Sprintf("wallet-%s", uuid.NewString()))
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

// NewProduct lists quantity units of a fresh lot for the seller at price.
func NewProduct(t *testing.T, db *sqlx.DB, sellerID int64, price string, quantity int) *models.Product {
	t.Helper()

	product, err := store.CreateProduct(context.Background(), db, models.Product{
		SellerHospitalID: sellerID,
		Name:             "Surgical gloves",
		Manufacturer:     "Acme Medical",
		Code:             "GLV-" + uuid.NewString()[:8],
		LotNumber:        "LOT-1",
		Unit:             models.UnitBox,
		Price:            decimal.RequireFromString(price),
		Quantity:         quantity,
		ExpiryDate:       time.Now().AddDate(1, 0, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return product
}

// Stock reads a product's live quantity.
func Stock(t *testing.T, db *sqlx.DB, productID int64) int {
	t.Helper()

	product, err := store.GetProduct(context.Background(), db, productID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	return product.Quantity
}

// Balance reads a hospital's stored balance.
func Balance(t *testing.T, db *sqlx.DB, hospitalID int64) decimal.Decimal {
	t.Helper()

	hospital, err := store.GetHospital(context.Background(), db, hospitalID)
	if err != nil {
		t.Fatalf("Get hospital: %v", err)
	}
	return hospital.Balance
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
