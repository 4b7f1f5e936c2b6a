package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("validation failed")

// SalePayload is the client-composed sale as it travels through the offline
// queue and into POST /api/v1/sales. ExternalID is generated on the client
// at enqueue time and is the sole idempotency key.
type SalePayload struct {
	ExternalID     string            `json:"external_id"`
	LocationID     int64             `json:"location_id"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	SoldAt         time.Time         `json:"sold_at"`
	Items          []SaleItemPayload `json:"items"`
	Subtotal       float64           `json:"subtotal"`
	DiscountAmount float64           `json:"discount_amount"`
	TaxAmount      float64           `json:"tax_amount"`
	TotalAmount    float64           `json:"total_amount"`
	PaymentMethod  string            `json:"payment_method"`
	Notes          string            `json:"notes,omitempty"`
}

type SaleItemPayload struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// Validate enforces the structural rules before any database work starts.
// Totals are checked with decimal arithmetic so float noise in the JSON
// representation never produces a false mismatch.
func (p *SalePayload) Validate() error {
	if p.ExternalID == "" {
		return errors.New("external_id is required")
	}
	if len(p.Items) == 0 {
		return errors.New("sale must contain at least one item")
	}
	switch p.PaymentMethod {
	case PAYMENT_CASH, PAYMENT_CARD, PAYMENT_MOBILE_MONEY, PAYMENT_BANK_TRANSFER:
	default:
		return errors.New("unknown payment_method")
	}
	if p.DiscountAmount < 0 || p.TaxAmount < 0 {
		return errors.New("discount_amount and tax_amount must not be negative")
	}

	sum := decimal.Zero
	for _, it := range p.Items {
		if it.ProductID <= 0 {
			return errors.New("item product_id is required")
		}
		if it.Quantity <= 0 {
			return errors.New("item quantity must be positive")
		}
		if it.UnitPrice < 0 {
			return errors.New("item unit_price must not be negative")
		}
		line := decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromFloat(it.Quantity))
		if !line.Round(2).Equal(decimal.NewFromFloat(it.Subtotal).Round(2)) {
			return errors.New("item subtotal does not match quantity * unit_price")
		}
		sum = sum.Add(line)
	}
	if !sum.Round(2).Equal(decimal.NewFromFloat(p.Subtotal).Round(2)) {
		return errors.New("subtotal does not match sum of items")
	}

	want := decimal.NewFromFloat(p.Subtotal).
		Sub(decimal.NewFromFloat(p.DiscountAmount)).
		Add(decimal.NewFromFloat(p.TaxAmount))
	if !want.Round(2).Equal(decimal.NewFromFloat(p.TotalAmount).Round(2)) {
		return errors.New("total_amount does not match subtotal - discount + tax")
	}
	return nil
}

// DB structs
type SaleDB struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	SaleNumber string    `json:"sale_number"`
	LocationID int64     `json:"location_id"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	SoldAt     time.Time `json:"sold_at"`

	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	TotalAmount    float64 `json:"total_amount"`
	PaymentMethod  string  `json:"payment_method"`

	Notes *string `json:"notes,omitempty"`

	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Items     []SaleItemDB `json:"items"`
}

type SaleItemDB struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// SaleIngestResult tells the handler which terminal outcome the repo reached.
type SaleIngestResult struct {
	Sale        *SaleDB `json:"sale"`
	IsDuplicate bool    `json:"is_duplicate"`
}
