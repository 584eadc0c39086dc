// Package order freezes carts into orders and drives them through
// fulfilment. Paying an order is the only point where stock is consumed.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/inventory"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
	"github.com/safar/medtrade/internal/wallet"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type Service struct {
	db     *sqlx.DB
	log    *zap.Logger
	txOpts database.TxOptions
	now    func() time.Time
}

func NewService(db *sqlx.DB, log *zap.Logger, txOpts database.TxOptions) *Service {
	return &Service{
		db:     db,
		log:    log,
		txOpts: txOpts,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CreateFromCart converts the hospital's cart into an order and empties the
// cart in the same transaction.
func (s *Service) CreateFromCart(ctx context.Context, hospitalID, addressID int64, requester uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		if _, err := store.RequireOwner(ctx, tx, hospitalID, requester); err != nil {
			return err
		}

		cart, err := store.EnsureCart(ctx, tx, hospitalID)
		if err != nil {
			return err
		}

		items, err := store.ListCartItems(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.State("cart", cart.ID, "cart is empty")
		}

		addr, err := store.GetDeliveryAddress(ctx, tx, addressID)
		if err != nil {
			return err
		}
		if addr.HospitalID != hospitalID {
			return apperr.Validation("delivery_address_id",
				"delivery address %d does not belong to hospital %d", addressID, hospitalID)
		}

		order = models.NewOrderFromCart(hospitalID, addressID, items, s.now())
		if err := store.InsertOrder(ctx, tx, order); err != nil {
			return err
		}

		return store.ClearCart(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("hospital_id", hospitalID),
		zap.Int("items", len(order.Items)),
		zap.String("total_cost", order.TotalCost.StringFixed(2)))

	return order, nil
}

// TransitionStatus moves an order along the fulfilment state machine.
// deliveryFee is required when entering CONFIRMING_PAYMENT and ignored
// otherwise.
func (s *Service) TransitionStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus, deliveryFee *decimal.Decimal) (*models.Order, error) {
	var (
		order    *models.Order
		previous models.OrderStatus
	)
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		order, err = store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		previous = order.Status
		if err := order.Transition(next, deliveryFee, s.now()); err != nil {
			return err
		}

		return store.UpdateOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(order.Status)),
		zap.String("total_cost", order.TotalCost.StringFixed(2)))

	return order, nil
}

// SetPaid records payment confirmed outside the wallet. The first false to
// true flip debits stock for every item; if any product is short nothing is
// debited and the order stays unpaid.
func (s *Service) SetPaid(ctx context.Context, orderID uuid.UUID, paid bool) (*models.Order, error) {
	var (
		order *models.Order
		first bool
	)
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		order, err = store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		first, err = order.SetPaid(paid, s.now())
		if err != nil || !first {
			return err
		}

		if err := inventory.DebitItems(ctx, tx, order.Items); err != nil {
			return err
		}

		return store.UpdateOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	if first {
		s.log.Info("order paid, stock debited",
			zap.String("order_id", orderID.String()),
			zap.Int("items", len(order.Items)))
	}

	return order, nil
}

// PayFromWallet lets the buyer pay an order awaiting payment from its own
// balance. The withdrawal, the stock debit and the paid flag commit together.
func (s *Service) PayFromWallet(ctx context.Context, orderID uuid.UUID, requester uuid.UUID) (*models.Order, error) {
	var (
		order *models.Order
		entry *models.WalletTransaction
	)
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		order, err = store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if _, err := store.RequireOwner(ctx, tx, order.HospitalID, requester); err != nil {
			return err
		}
		if order.Status != models.OrderStatusConfirmingPayment {
			return apperr.State("order", orderID, "order is %s, payment is accepted only in %s",
				order.Status, models.OrderStatusConfirmingPayment)
		}
		if order.Paid {
			return apperr.State("order", orderID, "order is already paid")
		}

		if order.TotalCost.IsPositive() {
			entry, err = wallet.Record(ctx, tx, wallet.Entry{
				HospitalID:  order.HospitalID,
				Type:        models.WalletWithdraw,
				Amount:      order.TotalCost,
				Description: fmt.Sprintf("payment for order %s", orderID),
				OrderID:     uuid.NullUUID{UUID: orderID, Valid: true},
			})
			if err != nil {
				return err
			}
		}

		if _, err := order.SetPaid(true, s.now()); err != nil {
			return err
		}

		if err := inventory.DebitItems(ctx, tx, order.Items); err != nil {
			return err
		}

		return store.UpdateOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("order_id", orderID.String()),
		zap.Int64("hospital_id", order.HospitalID),
		zap.String("total_cost", order.TotalCost.StringFixed(2)),
	}
	if entry != nil {
		fields = append(fields, zap.Int64("transaction_id", entry.ID))
	}
	s.log.Info("order paid from wallet", fields...)

	return order, nil
}

// Get returns an order to the owner of the buying hospital.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID, requester uuid.UUID) (*models.Order, error) {
	order, err := store.GetOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	if _, err := store.RequireOwner(ctx, s.db, order.HospitalID, requester); err != nil {
		return nil, err
	}

	return order, nil
}

// ListPending returns the hospital's orders that have not reached a terminal
// status, newest first.
func (s *Service) ListPending(ctx context.Context, hospitalID int64, requester uuid.UUID) ([]models.Order, error) {
	if _, err := store.RequireOwner(ctx, s.db, hospitalID, requester); err != nil {
		return nil, err
	}
	return store.ListPendingOrders(ctx, s.db, hospitalID)
}

// ListHistory pages through every order of the hospital, newest first.
func (s *Service) ListHistory(ctx context.Context, hospitalID int64, requester uuid.UUID, cursor string, limit int) (*store.CursorPage, error) {
	if _, err := store.RequireOwner(ctx, s.db, hospitalID, requester); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return store.ListOrdersCursor(ctx, s.db, hospitalID, cursor, limit)
}

// SalesHistory lists the orders that bought from the seller hospital, each
// narrowed to the seller's own items.
func (s *Service) SalesHistory(ctx context.Context, sellerID int64, requester uuid.UUID) ([]models.SalesRecord, error) {
	if _, err := store.RequireOwner(ctx, s.db, sellerID, requester); err != nil {
		return nil, err
	}
	return store.ListSalesHistory(ctx, s.db, sellerID)
}
