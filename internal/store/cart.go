package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/models"
)

const shopItemColumns = `id, cart_id, product_id, quantity, price, type, offer_id, created_at, updated_at`

// EnsureCart returns the hospital's cart, creating it on first use, and holds
// the cart row lock. Every cart mutation takes this lock first.
func EnsureCart(ctx context.Context, tx *sqlx.Tx, hospitalID int64) (*models.Cart, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO carts (hospital_id, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT (hospital_id) DO NOTHING`,
		hospitalID)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	cart := &models.Cart{}
	query := `SELECT id, hospital_id, created_at, updated_at FROM carts WHERE hospital_id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, tx, cart, query, hospitalID); err != nil {
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	return cart, nil
}

// GetCartByHospital returns the cart with its items, or nil when the hospital
// never had one.
func GetCartByHospital(ctx context.Context, q sqlx.QueryerContext, hospitalID int64) (*models.Cart, error) {
	cart := &models.Cart{}

	query := `SELECT id, hospital_id, created_at, updated_at FROM carts WHERE hospital_id = $1`
	if err := sqlx.GetContext(ctx, q, cart, query, hospitalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	items, err := ListCartItems(ctx, q, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

func ListCartItems(ctx context.Context, q sqlx.QueryerContext, cartID int64) ([]models.ShopItem, error) {
	items := []models.ShopItem{}

	query := `SELECT ` + shopItemColumns + ` FROM shop_items WHERE cart_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, q, &items, query, cartID); err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}

	return items, nil
}

// UpsertSingleItem adds quantity to the cart's SINGLE line for the product,
// creating it if needed. The line's price is refreshed to price.
func UpsertSingleItem(ctx context.Context, tx *sqlx.Tx, cartID, productID int64, quantity int, price decimal.Decimal) (*models.ShopItem, error) {
	item := &models.ShopItem{}

	query := `
		INSERT INTO shop_items (cart_id, product_id, quantity, price, type, offer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'SINGLE', NULL, NOW(), NOW())
		ON CONFLICT (cart_id, product_id) WHERE type = 'SINGLE'
		DO UPDATE SET quantity = shop_items.quantity + EXCLUDED.quantity,
		              price = EXCLUDED.price,
		              updated_at = NOW()
		RETURNING ` + shopItemColumns

	if err := sqlx.GetContext(ctx, tx, item, query, cartID, productID, quantity, price); err != nil {
		return nil, fmt.Errorf("upsert single item: %w", err)
	}

	return item, nil
}

func InsertOfferItem(ctx context.Context, tx *sqlx.Tx, cartID int64, offerID uuid.UUID, line models.OfferProduct) (*models.ShopItem, error) {
	item := &models.ShopItem{}

	query := `
		INSERT INTO shop_items (cart_id, product_id, quantity, price, type, offer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'OFFER', $5, NOW(), NOW())
		RETURNING ` + shopItemColumns

	err := sqlx.GetContext(ctx, tx, item, query, cartID, line.ProductID, line.Quantity, line.Price, offerID)
	if err != nil {
		return nil, fmt.Errorf("insert offer item: %w", err)
	}

	return item, nil
}

// GetShopItem finds an item inside a specific cart.
func GetShopItem(ctx context.Context, q sqlx.QueryerContext, cartID, itemID int64) (*models.ShopItem, error) {
	item := &models.ShopItem{}

	query := `SELECT ` + shopItemColumns + ` FROM shop_items WHERE id = $1 AND cart_id = $2`
	if err := sqlx.GetContext(ctx, q, item, query, itemID, cartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("shop item", itemID)
		}
		return nil, fmt.Errorf("get shop item: %w", err)
	}

	return item, nil
}

func DeleteShopItem(ctx context.Context, tx *sqlx.Tx, itemID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM shop_items WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("delete shop item: %w", err)
	}
	return nil
}

// DeleteOfferGroup removes every item a single accepted offer put in the cart.
func DeleteOfferGroup(ctx context.Context, tx *sqlx.Tx, cartID int64, offerID uuid.UUID) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM shop_items WHERE cart_id = $1 AND type = 'OFFER' AND offer_id = $2`,
		cartID, offerID)
	if err != nil {
		return 0, fmt.Errorf("delete offer group: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return removed, nil
}

func ClearCart(ctx context.Context, tx *sqlx.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM shop_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}

	return nil
}
