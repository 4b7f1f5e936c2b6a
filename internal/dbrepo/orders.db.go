package dbrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepo struct {
	db *pgxpool.Pool
}

func NewOrderRepo(db *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrder ingests a queued order under the same idempotency contract as
// sales. Orders have no stock or journal side effects at ingestion; those
// happen at fulfilment.
func (r *OrderRepo) CreateOrder(ctx context.Context, p *models.OrderPayload) (*models.OrderIngestResult, error) {
	// --------------------
	// Step 1: Duplicate check
	// --------------------
	existing, err := r.GetOrderByExternalID(ctx, p.ExternalID)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, err
	}
	if existing != nil {
		return &models.OrderIngestResult{Order: existing, IsDuplicate: true}, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// --------------------
	// Step 2: Insert order
	// --------------------
	order := &models.OrderDB{
		ExternalID:   p.ExternalID,
		LocationID:   p.LocationID,
		CustomerID:   p.CustomerID,
		PlacedAt:     p.PlacedAt,
		DeliveryDate: p.DeliveryDate,
		TotalAmount:  p.TotalAmount,
		Status:       "pending",
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(
			external_id, location_id, customer_id, placed_at, delivery_date,
			total_amount, status, notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''))
		RETURNING id, created_at, updated_at
	`,
		p.ExternalID,
		p.LocationID,
		p.CustomerID,
		p.PlacedAt,
		p.DeliveryDate,
		p.TotalAmount,
		order.Status,
		p.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if utils.IsUniqueViolation(err, "orders_external_id_key") {
			dup, lookupErr := r.GetOrderByExternalID(ctx, p.ExternalID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return &models.OrderIngestResult{Order: dup, IsDuplicate: true}, nil
		}
		return nil, fmt.Errorf("insert order failed: %w", err)
	}

	// --------------------
	// Step 3: Insert order items
	// --------------------
	for _, item := range p.Items {
		var itemID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, unit_price)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`,
			order.ID,
			item.ProductID,
			item.Quantity,
			item.UnitPrice,
		).Scan(&itemID)
		if err != nil {
			return nil, fmt.Errorf("insert order item failed: %w", err)
		}
		order.Items = append(order.Items, models.OrderItemDB{
			ID:        itemID,
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order failed: %w", err)
	}
	return &models.OrderIngestResult{Order: order, IsDuplicate: false}, nil
}

const orderColumns = `
	id, external_id, location_id, customer_id, placed_at, delivery_date,
	total_amount, status, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.OrderDB, error) {
	var o models.OrderDB
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.LocationID, &o.CustomerID, &o.PlacedAt, &o.DeliveryDate,
		&o.TotalAmount, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order failed: %w", err)
	}
	return &o, nil
}

func (r *OrderRepo) GetOrderByExternalID(ctx context.Context, externalID string) (*models.OrderDB, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE external_id = $1`, externalID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.OrderDB, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderRepo) attachItems(ctx context.Context, order *models.OrderDB) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("order items query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.OrderItemDB
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("order item scan failed: %w", err)
		}
		order.Items = append(order.Items, it)
	}
	return rows.Err()
}
