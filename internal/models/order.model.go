package models

import (
	"errors"
	"time"
)

// OrderPayload is a queued order mutation. Orders carry no financial side
// effects at ingestion time, stock and postings happen at fulfilment.
type OrderPayload struct {
	ExternalID   string             `json:"external_id"`
	LocationID   int64              `json:"location_id"`
	CustomerID   *int64             `json:"customer_id,omitempty"`
	PlacedAt     time.Time          `json:"placed_at"`
	DeliveryDate *time.Time         `json:"delivery_date,omitempty"`
	Items        []OrderItemPayload `json:"items"`
	TotalAmount  float64            `json:"total_amount"`
	Notes        string             `json:"notes,omitempty"`
}

type OrderItemPayload struct {
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

func (p *OrderPayload) Validate() error {
	if p.ExternalID == "" {
		return errors.New("external_id is required")
	}
	if len(p.Items) == 0 {
		return errors.New("order must contain at least one item")
	}
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
	}
	if p.TotalAmount < 0 {
		return errors.New("total_amount must not be negative")
	}
	return nil
}

// DB structs
type OrderDB struct {
	ID           int64      `json:"id"`
	ExternalID   string     `json:"external_id"`
	LocationID   int64      `json:"location_id"`
	CustomerID   *int64     `json:"customer_id,omitempty"`
	PlacedAt     time.Time  `json:"placed_at"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`

	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
	Notes       *string `json:"notes,omitempty"`

	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Items     []OrderItemDB `json:"items"`
}

type OrderItemDB struct {
	ID        int64   `json:"id"`
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderIngestResult struct {
	Order       *OrderDB `json:"order"`
	IsDuplicate bool     `json:"is_duplicate"`
}
