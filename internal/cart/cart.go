// Package cart stages a hospital's purchases before they become an order.
package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/inventory"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
)

type Service struct {
	db     *sqlx.DB
	log    *zap.Logger
	txOpts database.TxOptions
}

func NewService(db *sqlx.DB, log *zap.Logger, txOpts database.TxOptions) *Service {
	return &Service{db: db, log: log, txOpts: txOpts}
}

// AddSingleItem adds a direct purchase. Repeated adds of one product merge
// into a single line priced at the current catalog price.
func (s *Service) AddSingleItem(ctx context.Context, hospitalID, productID int64, quantity int, requester uuid.UUID) (*models.ShopItem, error) {
	if err := models.CheckQuantity("quantity", quantity); err != nil {
		return nil, err
	}

	var item *models.ShopItem
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		if _, err := store.RequireOwner(ctx, tx, hospitalID, requester); err != nil {
			return err
		}

		product, err := inventory.CheckAvailable(ctx, tx, productID, quantity)
		if err != nil {
			return err
		}

		cart, err := store.EnsureCart(ctx, tx, hospitalID)
		if err != nil {
			return err
		}

		item, err = store.UpsertSingleItem(ctx, tx, cart.ID, productID, quantity, product.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cart item added",
		zap.Int64("hospital_id", hospitalID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("line_quantity", item.Quantity))

	return item, nil
}

// AddOfferGroup puts one OFFER line per offer product into the hospital's
// cart. It runs inside the caller's transaction and never merges lines.
func AddOfferGroup(ctx context.Context, tx *sqlx.Tx, hospitalID int64, offer *models.Offer) ([]models.ShopItem, error) {
	cart, err := store.EnsureCart(ctx, tx, hospitalID)
	if err != nil {
		return nil, err
	}

	items := make([]models.ShopItem, 0, len(offer.Products))
	for _, line := range offer.Products {
		item, err := store.InsertOfferItem(ctx, tx, cart.ID, offer.ID, line)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, nil
}

// RemoveItem deletes a SINGLE line, or the whole group when the item came
// from an offer. It returns how many lines were removed.
func (s *Service) RemoveItem(ctx context.Context, hospitalID, itemID int64, requester uuid.UUID) (int64, error) {
	var removed int64
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		if _, err := store.RequireOwner(ctx, tx, hospitalID, requester); err != nil {
			return err
		}

		cart, err := store.EnsureCart(ctx, tx, hospitalID)
		if err != nil {
			return err
		}

		item, err := store.GetShopItem(ctx, tx, cart.ID, itemID)
		if err != nil {
			return err
		}

		if item.Type == models.ShopItemOffer {
			removed, err = store.DeleteOfferGroup(ctx, tx, cart.ID, item.OfferID.UUID)
			return err
		}

		removed = 1
		return store.DeleteShopItem(ctx, tx, item.ID)
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("cart item removed",
		zap.Int64("hospital_id", hospitalID),
		zap.Int64("item_id", itemID),
		zap.Int64("removed", removed))

	return removed, nil
}

// GetCart returns the cart with its totals. A hospital without a cart sees
// an empty one.
func (s *Service) GetCart(ctx context.Context, hospitalID int64, requester uuid.UUID) (*models.CartView, error) {
	if _, err := store.RequireOwner(ctx, s.db, hospitalID, requester); err != nil {
		return nil, err
	}

	cart, err := store.GetCartByHospital(ctx, s.db, hospitalID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{HospitalID: hospitalID}
	}

	view := models.NewCartView(*cart)
	return &view, nil
}
