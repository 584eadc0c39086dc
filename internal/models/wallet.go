package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletTransactionType string

const (
	WalletDeposit  WalletTransactionType = "DEPOSIT"
	WalletWithdraw WalletTransactionType = "WITHDRAW"
	// WalletAdjustment is an administrative correction. Its amount is the
	// absolute change; the direction is BalanceAfter against BalanceBefore.
	WalletAdjustment WalletTransactionType = "ADJUSTMENT"
)

func (t WalletTransactionType) Valid() bool {
	switch t {
	case WalletDeposit, WalletWithdraw, WalletAdjustment:
		return true
	}
	return false
}

// WalletTransaction is an append-only ledger row.
type WalletTransaction struct {
	ID            int64                 `db:"id" json:"id"`
	HospitalID    int64                 `db:"hospital_id" json:"hospital_id"`
	Type          WalletTransactionType `db:"type" json:"type"`
	Amount        decimal.Decimal       `db:"amount" json:"amount"`
	Description   string                `db:"description" json:"description"`
	OrderID       uuid.NullUUID         `db:"order_id" json:"order_id"`
	BalanceBefore decimal.Decimal       `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal       `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time             `db:"created_at" json:"created_at"`
}
