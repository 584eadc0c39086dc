package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/models"
)

const orderColumns = `id, hospital_id, delivery_address_id, status, products_cost, platform_fee,
	delivery_fee, total_cost, paid, created_at, updated_at, completed_at`

const orderItemColumns = `id, order_id, product_id, quantity, price, type, offer_id`

// InsertOrder persists an order and its frozen items.
func InsertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, hospital_id, delivery_address_id, status, products_cost, platform_fee,
		                     delivery_fee, total_cost, paid, created_at, updated_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.HospitalID, order.DeliveryAddressID, order.Status, order.ProductsCost,
		order.PlatformFee, order.DeliveryFee, order.TotalCost, order.Paid, order.CreatedAt,
		order.UpdatedAt, order.CompletedAt)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price, type, offer_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			order.ID, item.ProductID, item.Quantity, item.Price, item.Type, item.OfferID).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return nil
}

func GetOrder(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*models.Order, error) {
	return getOrder(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// LockOrder reads the order and holds its row lock, so status changes and
// payments on one order serialize.
func LockOrder(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Order, error) {
	return getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	if err := sqlx.GetContext(ctx, q, order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orders := []models.Order{*order}
	if err := attachOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// UpdateOrder writes the mutable order fields. Items never change.
func UpdateOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1,
		     delivery_fee = $2,
		     total_cost = $3,
		     paid = $4,
		     updated_at = $5,
		     completed_at = $6
		 WHERE id = $7`,
		order.Status, order.DeliveryFee, order.TotalCost, order.Paid, order.UpdatedAt,
		order.CompletedAt, order.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	return nil
}

// ListOrdersCursor pages through a hospital's orders newest first.
func ListOrdersCursor(ctx context.Context, q sqlx.QueryerContext, hospitalID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, apperr.Validation("cursor", "malformed cursor")
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE hospital_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	orders := []models.Order{}
	if err := sqlx.SelectContext(ctx, q, &orders, query, hospitalID, cursorData.CreatedAt, cursorData.ID, limit+1); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListPendingOrders returns the hospital's orders that are not yet terminal.
func ListPendingOrders(ctx context.Context, q sqlx.QueryerContext, hospitalID int64) ([]models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE hospital_id = $1
		  AND status NOT IN ($2, $3)
		ORDER BY created_at DESC, id DESC`

	orders := []models.Order{}
	err := sqlx.SelectContext(ctx, q, &orders, query, hospitalID,
		models.OrderStatusCompleted, models.OrderStatusCanceled)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	if err := attachOrderItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// ListSalesHistory returns every order holding at least one product of the
// seller, with the items narrowed to that seller's products.
func ListSalesHistory(ctx context.Context, q sqlx.QueryerContext, sellerID int64) ([]models.SalesRecord, error) {
	query := `
		SELECT o.id, o.status, o.paid, o.created_at, o.completed_at, o.hospital_id,
		       h.name AS buyer_hospital_name
		FROM orders o
		JOIN hospitals h ON h.id = o.hospital_id
		WHERE EXISTS (
			SELECT 1
			FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.seller_hospital_id = $1
		)
		ORDER BY o.created_at DESC, o.id DESC`

	records := []models.SalesRecord{}
	if err := sqlx.SelectContext(ctx, q, &records, query, sellerID); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]string, len(records))
	index := make(map[uuid.UUID]int, len(records))
	for i, r := range records {
		ids[i] = r.OrderID.String()
		index[r.OrderID] = i
		records[i].SoldItems = []models.OrderItem{}
		records[i].TotalSalesAmount = decimal.Zero
	}

	var items []models.OrderItem
	itemsQuery := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.type, oi.offer_id
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[]) AND p.seller_hospital_id = $2
		ORDER BY oi.id`

	if err := sqlx.SelectContext(ctx, q, &items, itemsQuery, pq.Array(ids), sellerID); err != nil {
		return nil, fmt.Errorf("list sold items: %w", err)
	}

	for _, item := range items {
		r := &records[index[item.OrderID]]
		r.SoldItems = append(r.SoldItems, item)
		r.TotalSalesAmount = r.TotalSalesAmount.Add(item.Subtotal())
	}

	return records, nil
}

func attachOrderItems(ctx context.Context, q sqlx.QueryerContext, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		index[o.ID] = i
		orders[i].Items = []models.OrderItem{}
	}

	var items []models.OrderItem
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY id`

	if err := sqlx.SelectContext(ctx, q, &items, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("get order items: %w", err)
	}

	for _, item := range items {
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}

	return nil
}
