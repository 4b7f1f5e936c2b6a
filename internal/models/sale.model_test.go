package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSale() *SalePayload {
	return &SalePayload{
		ExternalID: "3f0b6a47-2f07-4c5a-9df6-1a2b3c4d5e6f",
		LocationID: 1,
		Items: []SaleItemPayload{
			{ProductID: 1, Quantity: 2, UnitPrice: 10, Subtotal: 20},
			{ProductID: 2, Quantity: 1, UnitPrice: 5.5, Subtotal: 5.5},
		},
		Subtotal:       25.5,
		DiscountAmount: 0.5,
		TaxAmount:      2.5,
		TotalAmount:    27.5,
		PaymentMethod:  PAYMENT_CASH,
	}
}

func TestSalePayloadValid(t *testing.T) {
	require.NoError(t, validSale().Validate())
}

func TestSalePayloadRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SalePayload)
	}{
		{"missing external id", func(p *SalePayload) { p.ExternalID = "" }},
		{"no items", func(p *SalePayload) { p.Items = nil }},
		{"zero quantity", func(p *SalePayload) { p.Items[0].Quantity = 0 }},
		{"negative quantity", func(p *SalePayload) { p.Items[0].Quantity = -1 }},
		{"negative price", func(p *SalePayload) { p.Items[0].UnitPrice = -3 }},
		{"unknown payment method", func(p *SalePayload) { p.PaymentMethod = "barter" }},
		{"negative discount", func(p *SalePayload) { p.DiscountAmount = -1 }},
		{"item subtotal mismatch", func(p *SalePayload) { p.Items[0].Subtotal = 19 }},
		{"subtotal mismatch", func(p *SalePayload) { p.Subtotal = 30 }},
		{"total mismatch", func(p *SalePayload) { p.TotalAmount = 99 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validSale()
			tt.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestSalePayloadFloatNoiseTotals(t *testing.T) {
	// Binary float representations of 0.1-style prices must not trip the
	// decimal consistency checks.
	p := &SalePayload{
		ExternalID:    "d290f1ee-6c54-4b01-90e6-d701748f0851",
		LocationID:    1,
		Items:         []SaleItemPayload{{ProductID: 1, Quantity: 3, UnitPrice: 0.1, Subtotal: 0.3}},
		Subtotal:      0.3,
		TaxAmount:     0.03,
		TotalAmount:   0.33,
		PaymentMethod: PAYMENT_CARD,
	}
	require.NoError(t, p.Validate())
}

func TestOrderPayloadValidate(t *testing.T) {
	p := &OrderPayload{
		ExternalID:  "b7f9d0a1-4a2b-4c3d-8e9f-0a1b2c3d4e5f",
		LocationID:  1,
		Items:       []OrderItemPayload{{ProductID: 1, Quantity: 1, UnitPrice: 9}},
		TotalAmount: 9,
	}
	require.NoError(t, p.Validate())

	p.Items = nil
	assert.Error(t, p.Validate())
}

func TestCustomerPayloadValidate(t *testing.T) {
	p := &CustomerPayload{ExternalID: "x", Name: "Amina"}
	require.NoError(t, p.Validate())

	p.Name = ""
	assert.Error(t, p.Validate())
}
