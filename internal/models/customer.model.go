package models

import (
	"errors"
	"time"
)

// CustomerPayload is a queued customer mutation. Ingestion upserts by
// external id so a customer edited offline on two registers converges.
type CustomerPayload struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
}

func (p *CustomerPayload) Validate() error {
	if p.ExternalID == "" {
		return errors.New("external_id is required")
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type CustomerDB struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Phone      *string   `json:"phone,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Address    *string   `json:"address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CustomerIngestResult struct {
	Customer    *CustomerDB `json:"customer"`
	IsDuplicate bool        `json:"is_duplicate"`
}
