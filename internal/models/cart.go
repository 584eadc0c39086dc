package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ShopItemType string

const (
	ShopItemSingle ShopItemType = "SINGLE"
	ShopItemOffer  ShopItemType = "OFFER"
)

// ShopItem is a cart line. SINGLE items consolidate per product and follow the
// catalog price; OFFER items keep the negotiated price and belong to the group
// named by OfferID.
type ShopItem struct {
	ID        int64           `db:"id" json:"id"`
	CartID    int64           `db:"cart_id" json:"cart_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Type      ShopItemType    `db:"type" json:"type"`
	OfferID   uuid.NullUUID   `db:"offer_id" json:"offer_id"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

func (i ShopItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	ID         int64      `db:"id" json:"id"`
	HospitalID int64      `db:"hospital_id" json:"hospital_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	Items      []ShopItem `db:"-" json:"items"`
}

// CartView is a cart with its derived totals.
type CartView struct {
	Cart
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func NewCartView(c Cart) CartView {
	if c.Items == nil {
		c.Items = []ShopItem{}
	}
	view := CartView{Cart: c, TotalAmount: decimal.Zero}
	for _, item := range c.Items {
		view.TotalItems += item.Quantity
		view.TotalAmount = view.TotalAmount.Add(item.Subtotal())
	}
	return view
}
