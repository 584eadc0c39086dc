// Package inventory owns product stock. Availability checks here are soft;
// DebitItems is the only operation that consumes stock.
package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
)

const listingKeyConstraint = "products_seller_code_lot"

// Listing is one lot a seller puts on the marketplace.
type Listing struct {
	Name         string
	Manufacturer string
	Code         string
	LotNumber    string
	Description  string
	Unit         models.ProductUnit
	Price        decimal.Decimal
	Quantity     int
	ExpiryDate   time.Time
}

type Service struct {
	db     *sqlx.DB
	log    *zap.Logger
	txOpts database.TxOptions
	now    func() time.Time
}

func NewService(db *sqlx.DB, log *zap.Logger, txOpts database.TxOptions) *Service {
	return &Service{db: db, log: log, txOpts: txOpts, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// AddListings merges each listing into the seller's stock. A lot the seller
// already lists gains quantity and keeps its original price.
func (s *Service) AddListings(ctx context.Context, sellerID int64, listings []Listing) ([]models.Product, error) {
	if len(listings) == 0 {
		return nil, apperr.Validation("products", "at least one product is required")
	}
	for i := range listings {
		if err := s.validate(&listings[i]); err != nil {
			return nil, err
		}
	}

	var products []models.Product
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		if _, err := store.GetHospital(ctx, tx, sellerID); err != nil {
			return err
		}

		for _, l := range listings {
			product, err := addListing(ctx, tx, sellerID, l)
			if err != nil {
				return err
			}
			products = append(products, *product)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("listings added",
		zap.Int64("hospital_id", sellerID),
		zap.Int("count", len(products)))

	return products, nil
}

func addListing(ctx context.Context, tx *sqlx.Tx, sellerID int64, l Listing) (*models.Product, error) {
	existing, err := store.LockListing(ctx, tx, sellerID, l.Code, l.LotNumber)
	if err != nil {
		return nil, err
	}

	p := models.Product{
		SellerHospitalID: sellerID,
		Name:             l.Name,
		Manufacturer:     l.Manufacturer,
		Code:             l.Code,
		LotNumber:        l.LotNumber,
		Description:      l.Description,
		Unit:             l.Unit,
		Price:            l.Price,
		Quantity:         l.Quantity,
		ExpiryDate:       l.ExpiryDate,
	}

	if existing != nil {
		p.ID = existing.ID
		return store.RestockListing(ctx, tx, p, l.Quantity)
	}

	product, err := store.CreateProduct(ctx, tx, p)
	if err != nil && database.ConstraintName(err) == listingKeyConstraint {
		return nil, apperr.Conflict("product", nil, "lot %s/%s was listed concurrently", l.Code, l.LotNumber)
	}
	return product, err
}

func (s *Service) validate(l *Listing) error {
	l.Name = strings.TrimSpace(l.Name)
	l.Code = strings.TrimSpace(l.Code)
	l.LotNumber = strings.TrimSpace(l.LotNumber)

	switch {
	case l.Name == "":
		return apperr.Validation("name", "name is required")
	case l.Code == "":
		return apperr.Validation("code", "code is required")
	case l.LotNumber == "":
		return apperr.Validation("lot_number", "lot number is required")
	case l.Quantity < 0:
		return apperr.Validation("quantity", "quantity must be non-negative")
	case l.Quantity > models.MaxQuantity:
		return apperr.Validation("quantity", "quantity exceeds %d", models.MaxQuantity)
	case !l.ExpiryDate.After(s.now()):
		return apperr.Validation("expiry_date", "expiry date must be in the future")
	}

	if err := models.CheckMoney("price", l.Price); err != nil {
		return err
	}

	if l.Unit == "" {
		l.Unit = models.UnitPiece
	}
	if !l.Unit.Valid() {
		return apperr.Validation("unit", "unknown unit %q", l.Unit)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, productID int64) (*models.Product, error) {
	return store.GetProduct(ctx, s.db, productID)
}

// ListBySeller returns a seller's lots, soonest expiry first.
func (s *Service) ListBySeller(ctx context.Context, sellerID int64) ([]models.Product, error) {
	if _, err := store.GetHospital(ctx, s.db, sellerID); err != nil {
		return nil, err
	}
	return store.ListProductsBySeller(ctx, s.db, sellerID)
}

// List pages through every lot that still has stock.
func (s *Service) List(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return store.ListProducts(ctx, s.db, page, pageSize)
}

// CheckAvailable is the soft stock check. It returns the live product when
// at least quantity units are listed; nothing is reserved.
func CheckAvailable(ctx context.Context, q sqlx.QueryerContext, productID int64, quantity int) (*models.Product, error) {
	product, err := store.GetProduct(ctx, q, productID)
	if err != nil {
		return nil, err
	}

	if quantity > product.Quantity {
		return nil, apperr.Capacity(productID, quantity, product.Quantity)
	}

	return product, nil
}

// Demand sums requested quantities per product.
type Demand map[int64]int

func (d Demand) Add(productID int64, quantity int) {
	d[productID] += quantity
}

// ProductIDs returns the demanded products in ascending id order.
func (d Demand) ProductIDs() []int64 {
	ids := make([]int64, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DebitItems consumes stock for every item or for none. Products are updated
// in ascending id order so concurrent debits lock rows in the same order.
func DebitItems(ctx context.Context, tx *sqlx.Tx, items []models.OrderItem) error {
	demand := Demand{}
	for _, item := range items {
		demand.Add(item.ProductID, item.Quantity)
	}

	for _, id := range demand.ProductIDs() {
		if err := store.DecrementStock(ctx, tx, id, demand[id]); err != nil {
			return err
		}
	}

	return nil
}
