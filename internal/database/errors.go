package database

import (
	"errors"

	"github.com/lib/pq"

	"github.com/safar/medtrade/internal/apperr"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassUniqueViolation
	ErrorClassCheckViolation
	ErrorClassOutOfRange
)

// Non-negativity checks on the contended columns. They only fire when an
// application-level guard was bypassed.
const (
	stockCheckConstraint   = "products_quantity_non_negative"
	balanceCheckConstraint = "hospitals_balance_non_negative"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		case "23505":
			return ErrorClassUniqueViolation
		case "23514":
			return ErrorClassCheckViolation
		case "22003":
			return ErrorClassOutOfRange
		}
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether the caller may safely resubmit the same unit of work.
func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// ConstraintName returns the violated constraint or index, if err is a pq error.
func ConstraintName(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// translate gives a kind to the Postgres errors a caller can act on: lost
// races, violated stock or balance checks, and values too large for their
// column. Errors that already carry a kind pass through untouched.
func translate(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if IsRetryable(err) {
		return apperr.Wrap(apperr.KindConflict, err, "concurrent update, retry the request")
	}

	switch ClassifyError(err) {
	case ErrorClassCheckViolation:
		switch ConstraintName(err) {
		case stockCheckConstraint:
			return apperr.Wrap(apperr.KindCapacity, err, "stock would go negative")
		case balanceCheckConstraint:
			return apperr.Wrap(apperr.KindInsufficientFunds, err, "balance would go negative")
		}
	case ErrorClassOutOfRange:
		return apperr.Wrap(apperr.KindValidation, err, "value exceeds the storable range")
	}

	return err
}
