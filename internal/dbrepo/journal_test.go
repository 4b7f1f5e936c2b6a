package dbrepo

import (
	"testing"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertBalanced(t *testing.T, lines []models.JournalEntryLine) {
	t.Helper()
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(decimal.NewFromFloat(l.DebitAmount))
		credit = credit.Add(decimal.NewFromFloat(l.CreditAmount))
	}
	assert.True(t, debit.Equal(credit), "debits %s != credits %s", debit, credit)
}

func TestBuildSalePostingCashSale(t *testing.T) {
	sale := &models.SaleDB{
		Subtotal:       100,
		DiscountAmount: 10,
		TaxAmount:      13.5,
		TotalAmount:    103.5,
		PaymentMethod:  models.PAYMENT_CASH,
	}

	lines, err := BuildSalePosting(sale)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assertBalanced(t, lines)

	assert.Equal(t, models.ACCOUNT_CASH, lines[0].AccountCode)
	assert.InDelta(t, 103.5, lines[0].DebitAmount, 0.001)
	assert.Equal(t, models.ACCOUNT_REVENUE, lines[1].AccountCode)
	assert.InDelta(t, 90, lines[1].CreditAmount, 0.001)
	assert.Equal(t, models.ACCOUNT_TAX_PAYABLE, lines[2].AccountCode)
	assert.InDelta(t, 13.5, lines[2].CreditAmount, 0.001)
}

func TestBuildSalePostingCardDebitsReceivable(t *testing.T) {
	sale := &models.SaleDB{
		Subtotal:      50,
		TotalAmount:   50,
		PaymentMethod: models.PAYMENT_CARD,
	}

	lines, err := BuildSalePosting(sale)
	require.NoError(t, err)
	require.Len(t, lines, 2, "no tax line when tax is zero")
	assertBalanced(t, lines)
	assert.Equal(t, models.ACCOUNT_RECEIVABLE, lines[0].AccountCode)
}

func TestBuildSalePostingFloatNoise(t *testing.T) {
	// 0.1 + 0.2 style inputs must still balance to the cent.
	sale := &models.SaleDB{
		Subtotal:      0.3,
		TaxAmount:     0.03,
		TotalAmount:   0.33,
		PaymentMethod: models.PAYMENT_MOBILE_MONEY,
	}

	lines, err := BuildSalePosting(sale)
	require.NoError(t, err)
	assertBalanced(t, lines)
}

func TestBuildSalePostingUnbalancedRejected(t *testing.T) {
	sale := &models.SaleDB{
		Subtotal:      100,
		TaxAmount:     5,
		TotalAmount:   200,
		PaymentMethod: models.PAYMENT_CASH,
	}

	_, err := BuildSalePosting(sale)
	assert.Error(t, err)
}
