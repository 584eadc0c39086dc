package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/safar/medtrade/internal/apperr"
)

func TestCheckMoney(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"0", true},
		{"12.50", true},
		{"999999999999.99", true},
		{"-0.01", false},
		{"0.001", false},
		{"1000000000000", false},
	}

	for _, tt := range tests {
		err := CheckMoney("amount", dec(tt.value))
		if tt.ok {
			assert.NoError(t, err, tt.value)
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%s: %v", tt.value, err)
	}
}

func TestCheckQuantity(t *testing.T) {
	assert.NoError(t, CheckQuantity("quantity", 1))
	assert.NoError(t, CheckQuantity("quantity", MaxQuantity))
	assert.True(t, apperr.Is(CheckQuantity("quantity", 0), apperr.KindValidation))
	assert.True(t, apperr.Is(CheckQuantity("quantity", MaxQuantity+1), apperr.KindValidation))
}
