package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/pkg/models"
)

func TestParseAlertType(t *testing.T) {
	tests := []struct {
		raw  string
		want models.AlertType
	}{
		{"PRICE_DROP", models.AlertPriceDrop},
		{"price_drop", models.AlertPriceDrop},
		{" price_increase ", models.AlertPriceIncrease},
		{"stock_available", models.AlertStockAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseAlertType(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAlertTypeRejectsUnknown(t *testing.T) {
	_, err := parseAlertType("lightning_deal")
	assert.Error(t, err)
}
