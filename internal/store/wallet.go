package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safar/medtrade/internal/models"
)

const walletColumns = `id, hospital_id, type, amount, description, order_id, balance_before, balance_after, created_at`

// InsertWalletTransaction appends a ledger row. Rows are never updated.
func InsertWalletTransaction(ctx context.Context, tx *sqlx.Tx, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	created := &models.WalletTransaction{}

	query := `
		INSERT INTO wallet_transactions (hospital_id, type, amount, description, order_id,
		                                 balance_before, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + walletColumns

	err := sqlx.GetContext(ctx, tx, created, query,
		entry.HospitalID, entry.Type, entry.Amount, entry.Description, entry.OrderID,
		entry.BalanceBefore, entry.BalanceAfter)
	if err != nil {
		return nil, fmt.Errorf("append wallet transaction: %w", err)
	}

	return created, nil
}

// ListWalletTransactions pages a hospital's ledger newest first. An empty
// txType lists every type.
func ListWalletTransactions(ctx context.Context, q sqlx.QueryerContext, hospitalID int64, txType models.WalletTransactionType, page, pageSize int) (*OffsetPage, error) {
	where := `WHERE hospital_id = $1`
	args := []interface{}{hospitalID}
	if txType != "" {
		where += ` AND type = $2`
		args = append(args, txType)
	}

	var total int64
	if err := sqlx.GetContext(ctx, q, &total, `SELECT COUNT(*) FROM wallet_transactions `+where, args...); err != nil {
		return nil, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`
		SELECT %s
		FROM wallet_transactions
		%s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`, walletColumns, where, len(args)+1, len(args)+2)

	entries := []models.WalletTransaction{}
	if err := sqlx.SelectContext(ctx, q, &entries, query, append(args, pageSize, offset)...); err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}

	return NewOffsetPage(entries, total, page, pageSize), nil
}

func ListWalletTransactionsByOrder(ctx context.Context, q sqlx.QueryerContext, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	entries := []models.WalletTransaction{}

	query := `SELECT ` + walletColumns + ` FROM wallet_transactions WHERE order_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, q, &entries, query, orderID); err != nil {
		return nil, fmt.Errorf("list order wallet transactions: %w", err)
	}

	return entries, nil
}
