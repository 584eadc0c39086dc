// Package offer runs the negotiation between a buyer and a seller hospital.
//
// An offer is written by a user (the creator) against one seller hospital's
// products. While PENDING the creator may replace its lines or cancel it and
// the seller's owner may accept or reject it. Acceptance copies the lines into
// the cart of the hospital the creator owns.
package offer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/cart"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/inventory"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
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

func (s *Service) Create(ctx context.Context, hospitalID int64, creator uuid.UUID, lines []models.OfferLine) (*models.Offer, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var offer *models.Offer
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		if _, err := store.GetUser(ctx, tx, creator); err != nil {
			return err
		}
		if _, err := store.GetHospital(ctx, tx, hospitalID); err != nil {
			return err
		}

		pending, err := store.FindPendingOffer(ctx, tx, creator, hospitalID)
		if err != nil {
			return err
		}
		if pending != nil {
			return apperr.Conflict("offer", pending.ID,
				"a pending offer for hospital %d already exists", hospitalID)
		}

		if err := checkLines(ctx, tx, hospitalID, lines); err != nil {
			return err
		}

		offer = models.NewOffer(hospitalID, creator, lines, s.now())
		return store.InsertOffer(ctx, tx, offer)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.Int64("hospital_id", hospitalID),
		zap.String("creator_id", creator.String()),
		zap.Int("lines", len(offer.Products)))

	return offer, nil
}

// Update replaces every line of a pending offer.
func (s *Service) Update(ctx context.Context, offerID uuid.UUID, requester uuid.UUID, lines []models.OfferLine) (*models.Offer, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var offer *models.Offer
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		offer, err = lockForCreator(ctx, tx, offerID, requester)
		if err != nil {
			return err
		}

		if err := checkLines(ctx, tx, offer.HospitalID, lines); err != nil {
			return err
		}

		offer.ReplaceLines(lines)
		offer.UpdatedAt = s.now()
		return store.ReplaceOfferLines(ctx, tx, offer)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("offer updated",
		zap.String("offer_id", offerID.String()),
		zap.Int("lines", len(offer.Products)))

	return offer, nil
}

func (s *Service) Cancel(ctx context.Context, offerID uuid.UUID, requester uuid.UUID) (*models.Offer, error) {
	var offer *models.Offer
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		offer, err = lockForCreator(ctx, tx, offerID, requester)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, tx, offer, models.OfferStatusCanceled)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("offer canceled", zap.String("offer_id", offerID.String()))
	return offer, nil
}

// Accept grants a pending offer. Stock is re-checked but not reserved; the
// status change and the cart lines commit together or not at all.
func (s *Service) Accept(ctx context.Context, offerID uuid.UUID, requester uuid.UUID) (*models.Offer, error) {
	var (
		offer   *models.Offer
		buyerID int64
	)
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		offer, err = lockForSeller(ctx, tx, offerID, requester)
		if err != nil {
			return err
		}

		if err := checkStock(ctx, tx, offer.Products); err != nil {
			return err
		}

		buyer, err := store.GetHospitalByOwner(ctx, tx, offer.CreatorID)
		if err != nil {
			return err
		}
		buyerID = buyer.ID

		if _, err := cart.AddOfferGroup(ctx, tx, buyer.ID, offer); err != nil {
			return err
		}

		return s.setStatus(ctx, tx, offer, models.OfferStatusAccepted)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("offer accepted",
		zap.String("offer_id", offerID.String()),
		zap.Int64("seller_hospital_id", offer.HospitalID),
		zap.Int64("buyer_hospital_id", buyerID))

	return offer, nil
}

func (s *Service) Reject(ctx context.Context, offerID uuid.UUID, requester uuid.UUID) (*models.Offer, error) {
	var offer *models.Offer
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		offer, err = lockForSeller(ctx, tx, offerID, requester)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, tx, offer, models.OfferStatusRejected)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("offer rejected", zap.String("offer_id", offerID.String()))
	return offer, nil
}

func (s *Service) setStatus(ctx context.Context, tx *sqlx.Tx, offer *models.Offer, status models.OfferStatus) error {
	offer.Status = status
	offer.UpdatedAt = s.now()
	return store.UpdateOfferStatus(ctx, tx, offer)
}

func (s *Service) Get(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return store.GetOffer(ctx, s.db, offerID)
}

func (s *Service) ListByCreator(ctx context.Context, creator uuid.UUID) ([]models.Offer, error) {
	return store.ListOffers(ctx, s.db, store.OfferFilter{CreatorID: creator})
}

// ListByHospital lists offers received by a hospital. An empty status lists
// all of them.
func (s *Service) ListByHospital(ctx context.Context, hospitalID int64, status models.OfferStatus) ([]models.Offer, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("status", "unknown offer status %q", status)
	}
	if _, err := store.GetHospital(ctx, s.db, hospitalID); err != nil {
		return nil, err
	}
	return store.ListOffers(ctx, s.db, store.OfferFilter{HospitalID: hospitalID, Status: status})
}

// PendingFor returns the creator's pending offer to a hospital, or nil.
func (s *Service) PendingFor(ctx context.Context, creator uuid.UUID, hospitalID int64) (*models.Offer, error) {
	return store.FindPendingOffer(ctx, s.db, creator, hospitalID)
}

// ListForUser returns the offers a user wrote and the offers received by the
// hospital they own.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) (*models.UserOffers, error) {
	created, err := s.ListByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &models.UserOffers{Created: created, Received: []models.Offer{}}

	hospital, err := store.GetHospitalByOwner(ctx, s.db, userID)
	if apperr.Is(err, apperr.KindNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Received, err = store.ListOffers(ctx, s.db, store.OfferFilter{HospitalID: hospital.ID})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func lockForCreator(ctx context.Context, tx *sqlx.Tx, offerID, requester uuid.UUID) (*models.Offer, error) {
	offer, err := store.LockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.CreatorID != requester {
		return nil, apperr.Unauthorized("offer", offerID, "only the creator can change this offer")
	}
	if !offer.IsPending() {
		return nil, apperr.State("offer", offerID, "offer is %s", offer.Status)
	}
	return offer, nil
}

func lockForSeller(ctx context.Context, tx *sqlx.Tx, offerID, requester uuid.UUID) (*models.Offer, error) {
	offer, err := store.LockOffer(ctx, tx, offerID)
	if err != nil {
		return nil, err
	}
	if _, err := store.RequireOwner(ctx, tx, offer.HospitalID, requester); err != nil {
		return nil, err
	}
	if !offer.IsPending() {
		return nil, apperr.State("offer", offerID, "offer is %s", offer.Status)
	}
	return offer, nil
}

func validateLines(lines []models.OfferLine) error {
	if len(lines) == 0 {
		return apperr.Validation("products", "at least one product is required")
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return apperr.Validation("product_id", "product id is required")
		}
		if err := models.CheckQuantity("quantity", line.Quantity); err != nil {
			return err
		}
		if err := models.CheckMoney("price", line.Price); err != nil {
			return err
		}
	}
	return nil
}

// checkLines verifies every product exists, belongs to the seller and has
// enough visible stock for the summed quantity.
func checkLines(ctx context.Context, q sqlx.QueryerContext, sellerID int64, lines []models.OfferLine) error {
	demand := inventory.Demand{}
	for _, line := range lines {
		demand.Add(line.ProductID, line.Quantity)
	}

	products, err := store.GetProductsByIDs(ctx, q, demand.ProductIDs())
	if err != nil {
		return err
	}

	for _, id := range demand.ProductIDs() {
		product, ok := products[id]
		if !ok {
			return apperr.Validation("product_id", "product %d does not exist", id)
		}
		if product.SellerHospitalID != sellerID {
			return apperr.Validation("product_id", "product %d is not sold by hospital %d", id, sellerID)
		}
		if demand[id] > product.Quantity {
			return apperr.Capacity(id, demand[id], product.Quantity)
		}
	}

	return nil
}

func checkStock(ctx context.Context, q sqlx.QueryerContext, lines []models.OfferProduct) error {
	demand := inventory.Demand{}
	for _, line := range lines {
		demand.Add(line.ProductID, line.Quantity)
	}

	products, err := store.GetProductsByIDs(ctx, q, demand.ProductIDs())
	if err != nil {
		return err
	}

	for _, id := range demand.ProductIDs() {
		product, ok := products[id]
		if !ok {
			return apperr.NotFound("product", id)
		}
		if demand[id] > product.Quantity {
			return apperr.Capacity(id, demand[id], product.Quantity)
		}
	}

	return nil
}
