package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusRejected OfferStatus = "REJECTED"
	OfferStatusCanceled OfferStatus = "CANCELED"
)

func (s OfferStatus) Valid() bool {
	switch s {
	case OfferStatusPending, OfferStatusAccepted, OfferStatusRejected, OfferStatusCanceled:
		return true
	}
	return false
}

// Offer is a buyer's request against a seller hospital's listings. Only a
// PENDING offer can change; every other status is terminal.
type Offer struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	HospitalID int64          `db:"hospital_id" json:"hospital_id"`
	CreatorID  uuid.UUID      `db:"creator_id" json:"creator_id"`
	Status     OfferStatus    `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
	Products   []OfferProduct `db:"-" json:"products"`
}

// OfferProduct freezes quantity and price at the time the offer was written.
type OfferProduct struct {
	ID        int64           `db:"id" json:"id"`
	OfferID   uuid.UUID       `db:"offer_id" json:"offer_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Position  int             `db:"position" json:"-"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
}

// OfferLine is one requested line as submitted by the buyer.
type OfferLine struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// NewOffer always yields a PENDING offer stamped with now.
func NewOffer(hospitalID int64, creatorID uuid.UUID, lines []OfferLine, now time.Time) *Offer {
	o := &Offer{
		ID:         uuid.New(),
		HospitalID: hospitalID,
		CreatorID:  creatorID,
		Status:     OfferStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	o.ReplaceLines(lines)
	return o
}

// ReplaceLines swaps the whole line set.
func (o *Offer) ReplaceLines(lines []OfferLine) {
	o.Products = make([]OfferProduct, 0, len(lines))
	for i, line := range lines {
		o.Products = append(o.Products, OfferProduct{
			OfferID:   o.ID,
			ProductID: line.ProductID,
			Position:  i,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
}

func (o *Offer) IsPending() bool {
	return o.Status == OfferStatusPending
}

// UserOffers groups the offers a user wrote and the ones their hospital received.
type UserOffers struct {
	Created  []Offer `json:"created"`
	Received []Offer `json:"received"`
}
