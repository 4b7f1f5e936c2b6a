package dbrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCustomerNotFound = errors.New("customer not found")

type CustomerRepo struct {
	db *pgxpool.Pool
}

func NewCustomerRepo(db *pgxpool.Pool) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// UpsertCustomer ingests a queued customer mutation. The upsert makes
// replays and concurrent submissions from two registers converge on the
// latest write for that external id.
func (r *CustomerRepo) UpsertCustomer(ctx context.Context, p *models.CustomerPayload) (*models.CustomerIngestResult, error) {
	existing, err := r.GetCustomerByExternalID(ctx, p.ExternalID)
	if err != nil && !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	var c models.CustomerDB
	err = r.db.QueryRow(ctx, `
		INSERT INTO customers(external_id, name, phone, email, address)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''))
		ON CONFLICT (external_id) DO UPDATE SET
			name       = EXCLUDED.name,
			phone      = EXCLUDED.phone,
			email      = EXCLUDED.email,
			address    = EXCLUDED.address,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, external_id, name, phone, email, address, created_at, updated_at
	`,
		p.ExternalID, p.Name, p.Phone, p.Email, p.Address,
	).Scan(&c.ID, &c.ExternalID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert customer failed: %w", err)
	}

	return &models.CustomerIngestResult{Customer: &c, IsDuplicate: existing != nil}, nil
}

func (r *CustomerRepo) GetCustomerByExternalID(ctx context.Context, externalID string) (*models.CustomerDB, error) {
	var c models.CustomerDB
	err := r.db.QueryRow(ctx, `
		SELECT id, external_id, name, phone, email, address, created_at, updated_at
		FROM customers
		WHERE external_id = $1`,
		externalID,
	).Scan(&c.ID, &c.ExternalID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer failed: %w", err)
	}
	return &c, nil
}

// ListCustomers feeds the client reference cache.
func (r *CustomerRepo) ListCustomers(ctx context.Context) ([]*models.CustomerDB, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, external_id, name, phone, email, address, created_at, updated_at
		FROM customers
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list customers failed: %w", err)
	}
	defer rows.Close()

	var customers []*models.CustomerDB
	for rows.Next() {
		var c models.CustomerDB
		if err := rows.Scan(&c.ID, &c.ExternalID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("customer scan failed: %w", err)
		}
		customers = append(customers, &c)
	}
	return customers, rows.Err()
}
