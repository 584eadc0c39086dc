package models

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/safar/medtrade/internal/apperr"
)

// Column limits: money is NUMERIC(14,2) and quantities are INTEGER.
var MaxMoney = decimal.RequireFromString("999999999999.99")

const MaxQuantity = math.MaxInt32

// CheckMoney rejects negative amounts, sub-cent precision and amounts the
// money columns cannot store.
func CheckMoney(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return apperr.Validation(field, "%s must be non-negative", field)
	case !v.Equal(v.Round(2)):
		return apperr.Validation(field, "%s has more than two decimal places", field)
	case v.GreaterThan(MaxMoney):
		return apperr.Validation(field, "%s exceeds %s", field, MaxMoney.StringFixed(2))
	}
	return nil
}

// CheckQuantity rejects quantities outside 1..MaxQuantity.
func CheckQuantity(field string, q int) error {
	if q <= 0 {
		return apperr.Validation(field, "%s must be positive", field)
	}
	if q > MaxQuantity {
		return apperr.Validation(field, "%s exceeds %d", field, MaxQuantity)
	}
	return nil
}
