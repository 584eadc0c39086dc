package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Hospital is the account aggregate. Balance changes only through wallet
// ledger entries.
type Hospital struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	CompanyName string          `db:"company_name" json:"company_name"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	OwnerID     uuid.NullUUID   `db:"owner_id" json:"owner_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// OwnedBy reports whether userID is the hospital's owner.
func (h *Hospital) OwnedBy(userID uuid.UUID) bool {
	return h.OwnerID.Valid && h.OwnerID.UUID == userID
}

type DeliveryAddress struct {
	ID         int64     `db:"id" json:"id"`
	HospitalID int64     `db:"hospital_id" json:"hospital_id"`
	Street     string    `db:"street" json:"street"`
	City       string    `db:"city" json:"city"`
	PostalCode string    `db:"postal_code" json:"postal_code"`
	Country    string    `db:"country" json:"country"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type ProductUnit string

const (
	UnitBox   ProductUnit = "BOX"
	UnitPiece ProductUnit = "PIECE"
)

func (u ProductUnit) Valid() bool {
	return u == UnitBox || u == UnitPiece
}

// Product is a lotted listing owned by one seller hospital. Code and
// LotNumber form its natural key within the seller.
type Product struct {
	ID               int64           `db:"id" json:"id"`
	SellerHospitalID int64           `db:"seller_hospital_id" json:"seller_hospital_id"`
	Name             string          `db:"name" json:"name"`
	Manufacturer     string          `db:"manufacturer" json:"manufacturer"`
	Code             string          `db:"code" json:"code"`
	LotNumber        string          `db:"lot_number" json:"lot_number"`
	Description      string          `db:"description" json:"description,omitempty"`
	Unit             ProductUnit     `db:"unit" json:"unit"`
	Price            decimal.Decimal `db:"price" json:"price"`
	Quantity         int             `db:"quantity" json:"quantity"`
	ExpiryDate       time.Time       `db:"expiry_date" json:"expiry_date"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
