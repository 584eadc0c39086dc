package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/models"
)

const productColumns = `id, seller_hospital_id, name, manufacturer, code, lot_number, description,
	unit, price, quantity, expiry_date, created_at, updated_at`

func CreateProduct(ctx context.Context, q sqlx.QueryerContext, p models.Product) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (seller_hospital_id, name, manufacturer, code, lot_number, description,
		                      unit, price, quantity, expiry_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING ` + productColumns

	err := sqlx.GetContext(ctx, q, product, query,
		p.SellerHospitalID, p.Name, p.Manufacturer, p.Code, p.LotNumber, p.Description,
		p.Unit, p.Price, p.Quantity, p.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := sqlx.GetContext(ctx, q, product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductsByIDs returns the products that exist, keyed by id.
func GetProductsByIDs(ctx context.Context, q sqlx.QueryerContext, ids []int64) (map[int64]models.Product, error) {
	var products []models.Product

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	if err := sqlx.SelectContext(ctx, q, &products, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// LockListing finds a seller's product by its natural key and locks it.
// It returns nil, nil when the seller has no such lot.
func LockListing(ctx context.Context, tx *sqlx.Tx, sellerID int64, code, lotNumber string) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE seller_hospital_id = $1 AND code = $2 AND lot_number = $3
		FOR UPDATE`

	if err := sqlx.GetContext(ctx, tx, product, query, sellerID, code, lotNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock listing: %w", err)
	}

	return product, nil
}

// RestockListing adds quantity to an existing lot and refreshes its
// descriptive fields. The listed price is left alone.
func RestockListing(ctx context.Context, tx *sqlx.Tx, p models.Product, added int) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET quantity = quantity + $1,
		    name = $2,
		    manufacturer = $3,
		    description = $4,
		    unit = $5,
		    expiry_date = $6,
		    updated_at = NOW()
		WHERE id = $7
		RETURNING ` + productColumns

	err := sqlx.GetContext(ctx, tx, product, query,
		added, p.Name, p.Manufacturer, p.Description, p.Unit, p.ExpiryDate, p.ID)
	if err != nil {
		return nil, fmt.Errorf("restock listing: %w", err)
	}

	return product, nil
}

// DecrementStock consumes quantity units iff at least that many remain.
// This conditional update is the only place stock is ever reduced.
func DecrementStock(ctx context.Context, tx *sqlx.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET quantity = quantity - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		available := 0
		err := tx.QueryRowxContext(ctx, `SELECT quantity FROM products WHERE id = $1`, productID).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("product", productID)
		}
		if err != nil {
			return fmt.Errorf("read stock: %w", err)
		}
		return apperr.Capacity(productID, quantity, available)
	}

	return nil
}

func ListProductsBySeller(ctx context.Context, q sqlx.QueryerContext, sellerID int64) ([]models.Product, error) {
	products := []models.Product{}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE seller_hospital_id = $1
		ORDER BY expiry_date ASC, id ASC`

	if err := sqlx.SelectContext(ctx, q, &products, query, sellerID); err != nil {
		return nil, fmt.Errorf("list products by seller: %w", err)
	}

	return products, nil
}

func ListProducts(ctx context.Context, q sqlx.QueryerContext, page, pageSize int) (*OffsetPage, error) {
	var total int64
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM products WHERE quantity > 0`); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE quantity > 0
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	products := []models.Product{}
	if err := sqlx.SelectContext(ctx, q, &products, query, pageSize, offset); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}
