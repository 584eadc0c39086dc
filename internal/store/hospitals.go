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

const hospitalColumns = `id, name, company_name, balance, owner_id, created_at, updated_at`

func CreateHospital(ctx context.Context, q sqlx.QueryerContext, name, companyName string) (*models.Hospital, error) {
	hospital := &models.Hospital{}

	query := `
		INSERT INTO hospitals (name, company_name, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		RETURNING ` + hospitalColumns

	if err := sqlx.GetContext(ctx, q, hospital, query, name, companyName); err != nil {
		return nil, fmt.Errorf("create hospital: %w", err)
	}

	return hospital, nil
}

// AssignOwner links a user to a hospital. A user owns at most one hospital
// and a hospital has at most one owner.
func AssignOwner(ctx context.Context, q sqlx.ExecerContext, hospitalID int64, userID uuid.UUID) error {
	result, err := q.ExecContext(ctx,
		`UPDATE hospitals SET owner_id = $1, updated_at = NOW() WHERE id = $2 AND owner_id IS NULL`,
		userID, hospitalID)
	if err != nil {
		return fmt.Errorf("assign owner: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperr.Conflict("hospital", hospitalID, "hospital is missing or already has an owner")
	}

	return nil
}

func GetHospital(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.Hospital, error) {
	return getHospital(ctx, q, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id)
}

// LockHospital reads the hospital and holds its row lock until the
// transaction ends. Wallet entries for one hospital serialize on it.
func LockHospital(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Hospital, error) {
	return getHospital(ctx, tx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1 FOR UPDATE`, id)
}

func getHospital(ctx context.Context, q sqlx.QueryerContext, query string, id int64) (*models.Hospital, error) {
	hospital := &models.Hospital{}

	if err := sqlx.GetContext(ctx, q, hospital, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("hospital", id)
		}
		return nil, fmt.Errorf("get hospital: %w", err)
	}

	return hospital, nil
}

func GetHospitalByOwner(ctx context.Context, q sqlx.QueryerContext, userID uuid.UUID) (*models.Hospital, error) {
	hospital := &models.Hospital{}

	query := `SELECT ` + hospitalColumns + ` FROM hospitals WHERE owner_id = $1`

	if err := sqlx.GetContext(ctx, q, hospital, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("hospital owned by user", userID)
		}
		return nil, fmt.Errorf("get hospital by owner: %w", err)
	}

	return hospital, nil
}

// RequireOwner loads the hospital and fails unless userID owns it.
func RequireOwner(ctx context.Context, q sqlx.QueryerContext, hospitalID int64, userID uuid.UUID) (*models.Hospital, error) {
	hospital, err := GetHospital(ctx, q, hospitalID)
	if err != nil {
		return nil, err
	}

	if !hospital.OwnedBy(userID) {
		return nil, apperr.Unauthorized("hospital", hospitalID, "user %s does not own this hospital", userID)
	}

	return hospital, nil
}

func UpdateBalance(ctx context.Context, tx *sqlx.Tx, hospitalID int64, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE hospitals SET balance = $1, updated_at = NOW() WHERE id = $2`,
		balance, hospitalID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	return nil
}

func CreateDeliveryAddress(ctx context.Context, q sqlx.QueryerContext, addr models.DeliveryAddress) (*models.DeliveryAddress, error) {
	created := &models.DeliveryAddress{}

	query := `
		INSERT INTO delivery_addresses (hospital_id, street, city, postal_code, country, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, hospital_id, street, city, postal_code, country, created_at`

	err := sqlx.GetContext(ctx, q, created, query,
		addr.HospitalID, addr.Street, addr.City, addr.PostalCode, addr.Country)
	if err != nil {
		return nil, fmt.Errorf("create delivery address: %w", err)
	}

	return created, nil
}

func ListDeliveryAddresses(ctx context.Context, q sqlx.QueryerContext, hospitalID int64) ([]models.DeliveryAddress, error) {
	addrs := []models.DeliveryAddress{}

	query := `
		SELECT id, hospital_id, street, city, postal_code, country, created_at
		FROM delivery_addresses
		WHERE hospital_id = $1
		ORDER BY id`

	if err := sqlx.SelectContext(ctx, q, &addrs, query, hospitalID); err != nil {
		return nil, fmt.Errorf("list delivery addresses: %w", err)
	}

	return addrs, nil
}

func ListHospitals(ctx context.Context, q sqlx.QueryerContext) ([]models.Hospital, error) {
	hospitals := []models.Hospital{}

	query := `SELECT ` + hospitalColumns + ` FROM hospitals ORDER BY id`
	if err := sqlx.SelectContext(ctx, q, &hospitals, query); err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}

	return hospitals, nil
}

func GetDeliveryAddress(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.DeliveryAddress, error) {
	addr := &models.DeliveryAddress{}

	query := `
		SELECT id, hospital_id, street, city, postal_code, country, created_at
		FROM delivery_addresses
		WHERE id = $1`

	if err := sqlx.GetContext(ctx, q, addr, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("delivery address", id)
		}
		return nil, fmt.Errorf("get delivery address: %w", err)
	}

	return addr, nil
}
