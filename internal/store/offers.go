package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/models"
)

const offerColumns = `id, hospital_id, creator_id, status, created_at, updated_at`

const pendingOfferIndex = "offers_one_pending_per_pair"

// OfferFilter narrows ListOffers. Zero values do not filter.
type OfferFilter struct {
	CreatorID  uuid.UUID
	HospitalID int64
	Status     models.OfferStatus
}

// InsertOffer persists a new offer with its lines. A second PENDING offer for
// the same creator and hospital trips the partial unique index.
func InsertOffer(ctx context.Context, tx *sqlx.Tx, offer *models.Offer) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO offers (id, hospital_id, creator_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		offer.ID, offer.HospitalID, offer.CreatorID, offer.Status, offer.CreatedAt, offer.UpdatedAt)
	if err != nil {
		if database.ClassifyError(err) == database.ErrorClassUniqueViolation &&
			database.ConstraintName(err) == pendingOfferIndex {
			return apperr.Conflict("offer", nil,
				"creator %s already has a pending offer for hospital %d", offer.CreatorID, offer.HospitalID)
		}
		return fmt.Errorf("insert offer: %w", err)
	}

	return insertOfferProducts(ctx, tx, offer)
}

// ReplaceOfferLines swaps the full line set of an offer.
func ReplaceOfferLines(ctx context.Context, tx *sqlx.Tx, offer *models.Offer) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM offer_products WHERE offer_id = $1`, offer.ID); err != nil {
		return fmt.Errorf("delete offer lines: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE offers SET updated_at = $1 WHERE id = $2`, offer.UpdatedAt, offer.ID); err != nil {
		return fmt.Errorf("touch offer: %w", err)
	}

	return insertOfferProducts(ctx, tx, offer)
}

func insertOfferProducts(ctx context.Context, tx *sqlx.Tx, offer *models.Offer) error {
	for i := range offer.Products {
		line := &offer.Products[i]
		err := tx.QueryRowxContext(ctx,
			`INSERT INTO offer_products (offer_id, product_id, position, quantity, price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			offer.ID, line.ProductID, line.Position, line.Quantity, line.Price).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("insert offer line: %w", err)
		}
	}

	return nil
}

func UpdateOfferStatus(ctx context.Context, tx *sqlx.Tx, offer *models.Offer) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE offers SET status = $1, updated_at = $2 WHERE id = $3`,
		offer.Status, offer.UpdatedAt, offer.ID)
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}

	return nil
}

func GetOffer(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*models.Offer, error) {
	return getOffer(ctx, q, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id)
}

// LockOffer reads an offer with its lines and holds the offer row lock, so
// concurrent accept, reject, cancel and update calls on it serialize.
func LockOffer(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Offer, error) {
	return getOffer(ctx, tx, `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id)
}

func getOffer(ctx context.Context, q sqlx.QueryerContext, query string, id uuid.UUID) (*models.Offer, error) {
	offer := &models.Offer{}

	if err := sqlx.GetContext(ctx, q, offer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("offer", id)
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}

	offers := []models.Offer{*offer}
	if err := attachOfferProducts(ctx, q, offers); err != nil {
		return nil, err
	}

	return &offers[0], nil
}

// FindPendingOffer returns the creator's pending offer for a hospital, or nil.
func FindPendingOffer(ctx context.Context, q sqlx.QueryerContext, creatorID uuid.UUID, hospitalID int64) (*models.Offer, error) {
	offers, err := ListOffers(ctx, q, OfferFilter{
		CreatorID:  creatorID,
		HospitalID: hospitalID,
		Status:     models.OfferStatusPending,
	})
	if err != nil {
		return nil, err
	}
	if len(offers) == 0 {
		return nil, nil
	}
	return &offers[0], nil
}

// ListOffers returns matching offers newest first, lines included.
func ListOffers(ctx context.Context, q sqlx.QueryerContext, f OfferFilter) ([]models.Offer, error) {
	var conditions []string
	var args []interface{}

	if f.CreatorID != uuid.Nil {
		args = append(args, f.CreatorID)
		conditions = append(conditions, fmt.Sprintf("creator_id = $%d", len(args)))
	}
	if f.HospitalID != 0 {
		args = append(args, f.HospitalID)
		conditions = append(conditions, fmt.Sprintf("hospital_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + offerColumns + ` FROM offers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	offers := []models.Offer{}
	if err := sqlx.SelectContext(ctx, q, &offers, query, args...); err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}

	if err := attachOfferProducts(ctx, q, offers); err != nil {
		return nil, err
	}

	return offers, nil
}

func attachOfferProducts(ctx context.Context, q sqlx.QueryerContext, offers []models.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	ids := make([]string, len(offers))
	index := make(map[uuid.UUID]int, len(offers))
	for i, o := range offers {
		ids[i] = o.ID.String()
		index[o.ID] = i
		offers[i].Products = []models.OfferProduct{}
	}

	var lines []models.OfferProduct
	query := `
		SELECT id, offer_id, product_id, position, quantity, price
		FROM offer_products
		WHERE offer_id = ANY($1::uuid[])
		ORDER BY offer_id, position`

	if err := sqlx.SelectContext(ctx, q, &lines, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load offer lines: %w", err)
	}

	for _, line := range lines {
		i := index[line.OfferID]
		offers[i].Products = append(offers[i].Products, line)
	}

	return nil
}
