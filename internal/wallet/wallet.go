// Package wallet keeps hospital balances as an append-only ledger. Every
// balance change writes the new balance and a ledger row with before and
// after snapshots in the same transaction, under the hospital row lock.
package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
)

// Entry describes a requested balance movement.
type Entry struct {
	HospitalID  int64
	Type        models.WalletTransactionType
	Amount      decimal.Decimal
	Description string
	OrderID     uuid.NullUUID
}

func (e Entry) validate() error {
	if e.Type != models.WalletDeposit && e.Type != models.WalletWithdraw {
		return apperr.Validation("type", "transaction type must be DEPOSIT or WITHDRAW, got %q", e.Type)
	}
	return validateAmount(e.Amount)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount", "amount must be positive")
	}
	return models.CheckMoney("amount", amount)
}

// Record applies a deposit or withdrawal inside tx. The hospital row stays
// locked until tx ends, so entries for one hospital form a gapless chain.
func Record(ctx context.Context, tx *sqlx.Tx, e Entry) (*models.WalletTransaction, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	hospital, err := store.LockHospital(ctx, tx, e.HospitalID)
	if err != nil {
		return nil, err
	}

	before := hospital.Balance
	after := before.Add(e.Amount)
	if after.GreaterThan(models.MaxMoney) {
		return nil, apperr.Validation("amount", "balance would exceed %s", models.MaxMoney.StringFixed(2))
	}
	if e.Type == models.WalletWithdraw {
		after = before.Sub(e.Amount)
		if after.IsNegative() {
			return nil, apperr.InsufficientFunds(e.HospitalID, before, e.Amount)
		}
	}

	return apply(ctx, tx, models.WalletTransaction{
		HospitalID:    e.HospitalID,
		Type:          e.Type,
		Amount:        e.Amount,
		Description:   e.Description,
		OrderID:       e.OrderID,
		BalanceBefore: before,
		BalanceAfter:  after,
	})
}

func apply(ctx context.Context, tx *sqlx.Tx, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	if err := store.UpdateBalance(ctx, tx, entry.HospitalID, entry.BalanceAfter); err != nil {
		return nil, err
	}
	return store.InsertWalletTransaction(ctx, tx, entry)
}

type Service struct {
	db     *sqlx.DB
	log    *zap.Logger
	txOpts database.TxOptions
}

func NewService(db *sqlx.DB, log *zap.Logger, txOpts database.TxOptions) *Service {
	return &Service{db: db, log: log, txOpts: txOpts}
}

func (s *Service) RecordTransaction(ctx context.Context, e Entry) (*models.WalletTransaction, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	var entry *models.WalletTransaction
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		if e.OrderID.Valid {
			if _, err := store.GetOrder(ctx, tx, e.OrderID.UUID); err != nil {
				return err
			}
		}

		var err error
		entry, err = Record(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logEntry(entry)
	return entry, nil
}

// SetBalance overwrites the balance through an ADJUSTMENT entry.
func (s *Service) SetBalance(ctx context.Context, hospitalID int64, balance decimal.Decimal, description string) (*models.WalletTransaction, error) {
	if err := models.CheckMoney("balance", balance); err != nil {
		return nil, err
	}

	return s.adjust(ctx, hospitalID, description, func(before decimal.Decimal) decimal.Decimal {
		return balance
	})
}

// AdjustBalance moves the balance by delta, which may be negative, through an
// ADJUSTMENT entry.
func (s *Service) AdjustBalance(ctx context.Context, hospitalID int64, delta decimal.Decimal, description string) (*models.WalletTransaction, error) {
	if err := validateAmount(delta.Abs()); err != nil {
		return nil, err
	}

	return s.adjust(ctx, hospitalID, description, func(before decimal.Decimal) decimal.Decimal {
		return before.Add(delta)
	})
}

func (s *Service) adjust(ctx context.Context, hospitalID int64, description string, next func(decimal.Decimal) decimal.Decimal) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		hospital, err := store.LockHospital(ctx, tx, hospitalID)
		if err != nil {
			return err
		}

		before := hospital.Balance
		after := next(before)
		if after.IsNegative() {
			return apperr.InsufficientFunds(hospitalID, before, before.Sub(after))
		}
		if after.Equal(before) {
			return apperr.Validation("balance", "adjustment does not change the balance")
		}
		if after.GreaterThan(models.MaxMoney) {
			return apperr.Validation("balance", "balance would exceed %s", models.MaxMoney.StringFixed(2))
		}

		entry, err = apply(ctx, tx, models.WalletTransaction{
			HospitalID:    hospitalID,
			Type:          models.WalletAdjustment,
			Amount:        after.Sub(before).Abs(),
			Description:   description,
			BalanceBefore: before,
			BalanceAfter:  after,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logEntry(entry)
	return entry, nil
}

// ListTransactions pages a hospital's ledger newest first. Only the owner may
// read it.
func (s *Service) ListTransactions(ctx context.Context, hospitalID int64, requester uuid.UUID, txType models.WalletTransactionType, page, pageSize int) (*store.OffsetPage, error) {
	if txType != "" && !txType.Valid() {
		return nil, apperr.Validation("type", "unknown transaction type %q", txType)
	}
	if _, err := store.RequireOwner(ctx, s.db, hospitalID, requester); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	return store.ListWalletTransactions(ctx, s.db, hospitalID, txType, page, pageSize)
}

func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	if _, err := store.GetOrder(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	return store.ListWalletTransactionsByOrder(ctx, s.db, orderID)
}

func (s *Service) logEntry(entry *models.WalletTransaction) {
	s.log.Info("wallet entry appended",
		zap.Int64("hospital_id", entry.HospitalID),
		zap.Int64("transaction_id", entry.ID),
		zap.String("type", string(entry.Type)),
		zap.String("amount", entry.Amount.StringFixed(2)),
		zap.String("balance_after", entry.BalanceAfter.StringFixed(2)))
}
