// Package hospital provisions the accounts the trading core works on:
// users, hospitals, ownership and delivery addresses.
package hospital

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/database"
	"github.com/safar/medtrade/internal/models"
	"github.com/safar/medtrade/internal/store"
)

const maxDeliveryAddresses = 5

type Service struct {
	db     *sqlx.DB
	log    *zap.Logger
	txOpts database.TxOptions
}

func NewService(db *sqlx.DB, log *zap.Logger, txOpts database.TxOptions) *Service {
	return &Service{db: db, log: log, txOpts: txOpts}
}

// CreateUser registers a user by wallet address. Addresses are unique.
func (s *Service) CreateUser(ctx context.Context, walletAddress string) (*models.User, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, apperr.Validation("wallet_address", "wallet address is required")
	}

	user, err := store.CreateUser(ctx, s.db, walletAddress)
	if err != nil {
		if database.ClassifyError(err) == database.ErrorClassUniqueViolation {
			return nil, apperr.Conflict("user", nil, "wallet address %s is already registered", walletAddress)
		}
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) CreateHospital(ctx context.Context, name, companyName string) (*models.Hospital, error) {
	name = strings.TrimSpace(name)
	companyName = strings.TrimSpace(companyName)
	if name == "" {
		return nil, apperr.Validation("name", "hospital name is required")
	}
	if companyName == "" {
		return nil, apperr.Validation("company_name", "company name is required")
	}

	hospital, err := store.CreateHospital(ctx, s.db, name, companyName)
	if err != nil {
		return nil, err
	}

	s.log.Info("hospital created", zap.Int64("hospital_id", hospital.ID), zap.String("name", name))
	return hospital, nil
}

// AssignOwner makes userID the owner of the hospital. Neither side may
// already be linked.
func (s *Service) AssignOwner(ctx context.Context, hospitalID int64, userID uuid.UUID) (*models.Hospital, error) {
	var hospital *models.Hospital
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		var err error
		hospital, err = store.LockHospital(ctx, tx, hospitalID)
		if err != nil {
			return err
		}
		if _, err := store.GetUser(ctx, tx, userID); err != nil {
			return err
		}
		if hospital.OwnerID.Valid {
			return apperr.Conflict("hospital", hospitalID, "hospital already has an owner")
		}

		owned, err := store.GetHospitalByOwner(ctx, tx, userID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if owned != nil {
			return apperr.Conflict("user", userID, "user already owns hospital %d", owned.ID)
		}

		if err := store.AssignOwner(ctx, tx, hospitalID, userID); err != nil {
			if database.ClassifyError(err) == database.ErrorClassUniqueViolation {
				return apperr.Conflict("user", userID, "user already owns a hospital")
			}
			return err
		}
		hospital.OwnerID = uuid.NullUUID{UUID: userID, Valid: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("hospital owner assigned",
		zap.Int64("hospital_id", hospitalID),
		zap.String("user_id", userID.String()))

	return hospital, nil
}

func (s *Service) Get(ctx context.Context, hospitalID int64) (*models.Hospital, error) {
	return store.GetHospital(ctx, s.db, hospitalID)
}

func (s *Service) List(ctx context.Context) ([]models.Hospital, error) {
	return store.ListHospitals(ctx, s.db)
}

// AddDeliveryAddress stores a new address for the requester's hospital. A
// hospital keeps at most five.
func (s *Service) AddDeliveryAddress(ctx context.Context, hospitalID int64, addr models.DeliveryAddress, requester uuid.UUID) (*models.DeliveryAddress, error) {
	addr.Street = strings.TrimSpace(addr.Street)
	addr.City = strings.TrimSpace(addr.City)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.TrimSpace(addr.Country)

	switch {
	case addr.Street == "":
		return nil, apperr.Validation("street", "street is required")
	case addr.City == "":
		return nil, apperr.Validation("city", "city is required")
	case addr.PostalCode == "":
		return nil, apperr.Validation("postal_code", "postal code is required")
	case addr.Country == "":
		return nil, apperr.Validation("country", "country is required")
	}

	var created *models.DeliveryAddress
	err := database.WithTransaction(ctx, s.db, s.txOpts, func(tx *sqlx.Tx) error {
		hospital, err := store.LockHospital(ctx, tx, hospitalID)
		if err != nil {
			return err
		}
		if !hospital.OwnedBy(requester) {
			return apperr.Unauthorized("hospital", hospitalID, "user %s does not own this hospital", requester)
		}

		existing, err := store.ListDeliveryAddresses(ctx, tx, hospitalID)
		if err != nil {
			return err
		}
		if len(existing) >= maxDeliveryAddresses {
			return apperr.State("hospital", hospitalID, "a hospital can have at most %d delivery addresses", maxDeliveryAddresses)
		}

		addr.HospitalID = hospitalID
		created, err = store.CreateDeliveryAddress(ctx, tx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("delivery address added",
		zap.Int64("hospital_id", hospitalID),
		zap.Int64("address_id", created.ID))

	return created, nil
}

func (s *Service) ListDeliveryAddresses(ctx context.Context, hospitalID int64, requester uuid.UUID) ([]models.DeliveryAddress, error) {
	if _, err := store.RequireOwner(ctx, s.db, hospitalID, requester); err != nil {
		return nil, err
	}
	return store.ListDeliveryAddresses(ctx, s.db, hospitalID)
}
