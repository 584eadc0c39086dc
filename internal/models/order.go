package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/apperr"
)

type OrderStatus string

const (
	OrderStatusCalculatingLogistics OrderStatus = "CALCULATING_LOGISTICS"
	OrderStatusConfirmingPayment    OrderStatus = "CONFIRMING_PAYMENT"
	OrderStatusInTransit            OrderStatus = "IN_TRANSIT"
	OrderStatusCompleted            OrderStatus = "COMPLETED"
	OrderStatusCanceled             OrderStatus = "CANCELED"
)

// PlatformFeeRate is charged on the products cost of every order.
var PlatformFeeRate = decimal.New(10, -2)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCalculatingLogistics: {OrderStatusConfirmingPayment, OrderStatusCanceled},
	OrderStatusConfirmingPayment:    {OrderStatusInTransit, OrderStatusCanceled},
	OrderStatusInTransit:            {OrderStatusCompleted, OrderStatusCanceled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCalculatingLogistics, OrderStatusConfirmingPayment, OrderStatusInTransit,
		OrderStatusCompleted, OrderStatusCanceled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID                uuid.UUID           `db:"id" json:"id"`
	HospitalID        int64               `db:"hospital_id" json:"hospital_id"`
	DeliveryAddressID int64               `db:"delivery_address_id" json:"delivery_address_id"`
	Status            OrderStatus         `db:"status" json:"status"`
	ProductsCost      decimal.Decimal     `db:"products_cost" json:"products_cost"`
	PlatformFee       decimal.Decimal     `db:"platform_fee" json:"platform_fee"`
	DeliveryFee       decimal.NullDecimal `db:"delivery_fee" json:"delivery_fee"`
	TotalCost         decimal.Decimal     `db:"total_cost" json:"total_cost"`
	Paid              bool                `db:"paid" json:"paid"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time           `db:"updated_at" json:"updated_at"`
	CompletedAt       *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	Items             []OrderItem         `db:"-" json:"items,omitempty"`
}

type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Type      ShopItemType    `db:"type" json:"type"`
	OfferID   uuid.NullUUID   `db:"offer_id" json:"offer_id"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrderFromCart freezes cart items into a new order in CALCULATING_LOGISTICS.
func NewOrderFromCart(hospitalID, addressID int64, items []ShopItem, now time.Time) *Order {
	o := &Order{
		ID:                uuid.New(),
		HospitalID:        hospitalID,
		DeliveryAddressID: addressID,
		Status:            OrderStatusCalculatingLogistics,
		ProductsCost:      decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
		Items:             make([]OrderItem, 0, len(items)),
	}
	for _, item := range items {
		oi := OrderItem{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Type:      item.Type,
			OfferID:   item.OfferID,
		}
		o.Items = append(o.Items, oi)
		o.ProductsCost = o.ProductsCost.Add(oi.Subtotal())
	}
	o.PlatformFee = o.ProductsCost.Mul(PlatformFeeRate).Round(2)
	o.Recalculate()
	return o
}

// Recalculate restores TotalCost = ProductsCost + PlatformFee + DeliveryFee.
// A missing delivery fee counts as zero.
func (o *Order) Recalculate() {
	total := o.ProductsCost.Add(o.PlatformFee)
	if o.DeliveryFee.Valid {
		total = total.Add(o.DeliveryFee.Decimal)
	}
	o.TotalCost = total
}

// Transition moves the order along the fulfilment state machine. Moving to
// CONFIRMING_PAYMENT requires the delivery fee.
func (o *Order) Transition(next OrderStatus, deliveryFee *decimal.Decimal, now time.Time) error {
	if !next.Valid() {
		return apperr.Validation("status", "unknown order status %q", next)
	}
	if o.Status.Terminal() {
		return apperr.State("order", o.ID, "order is %s and can no longer change", o.Status)
	}
	if !o.Status.CanTransitionTo(next) {
		return apperr.State("order", o.ID, "cannot move from %s to %s", o.Status, next)
	}

	if next == OrderStatusConfirmingPayment {
		if deliveryFee == nil {
			return apperr.Validation("delivery_fee", "delivery fee is required when moving to %s", next)
		}
		if err := CheckMoney("delivery_fee", *deliveryFee); err != nil {
			return err
		}
		o.DeliveryFee = decimal.NewNullDecimal(*deliveryFee)
	}

	o.Status = next
	if next == OrderStatusCompleted && o.CompletedAt == nil {
		completed := now
		o.CompletedAt = &completed
	}
	o.UpdatedAt = now
	o.Recalculate()
	return nil
}

// SetPaid applies the paid flag. The result reports whether this call is the
// first false to true flip, which is when stock must be debited.
func (o *Order) SetPaid(paid bool, now time.Time) (firstPayment bool, err error) {
	if o.Paid == paid {
		return false, nil
	}
	if o.Status.Terminal() {
		return false, apperr.State("order", o.ID, "order is %s and can no longer change", o.Status)
	}
	if !paid {
		return false, apperr.State("order", o.ID, "a paid order cannot be marked unpaid")
	}
	o.Paid = true
	o.UpdatedAt = now
	return true, nil
}

// SalesRecord is one order seen from a seller: only that seller's items.
type SalesRecord struct {
	OrderID           uuid.UUID       `db:"id" json:"order_id"`
	Status            OrderStatus     `db:"status" json:"status"`
	Paid              bool            `db:"paid" json:"paid"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	CompletedAt       *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	BuyerHospitalID   int64           `db:"hospital_id" json:"buyer_hospital_id"`
	BuyerHospitalName string          `db:"buyer_hospital_name" json:"buyer_hospital_name"`
	SoldItems         []OrderItem     `db:"-" json:"sold_items"`
	TotalSalesAmount  decimal.Decimal `db:"-" json:"total_sales_amount"`
}
