package dbrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrSaleNotFound    = errors.New("sale not found")
	ErrProductNotFound = errors.New("product not found")
)

type SaleRepo struct {
	db *pgxpool.Pool
}

func NewSaleRepo(db *pgxpool.Pool) *SaleRepo {
	return &SaleRepo{db: db}
}

// CreateSale ingests one client-submitted sale exactly once. The external id
// is the sole idempotency key: a resubmission of an already-committed sale
// returns the stored row with IsDuplicate set and performs no writes.
func (r *SaleRepo) CreateSale(ctx context.Context, p *models.SalePayload) (*models.SaleIngestResult, error) {
	// --------------------
	// Step 1: Duplicate check before opening a tx
	// --------------------
	existing, err := r.GetSaleByExternalID(ctx, p.ExternalID)
	if err != nil && !errors.Is(err, ErrSaleNotFound) {
		return nil, err
	}
	if existing != nil {
		return &models.SaleIngestResult{Sale: existing, IsDuplicate: true}, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// --------------------
	// Step 2: Assign the sequential sale number inside the tx
	// --------------------
	saleNumber, err := nextSaleNumberTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	// --------------------
	// Step 3: Insert sale row
	// --------------------
	sale := &models.SaleDB{
		ExternalID:     p.ExternalID,
		SaleNumber:     saleNumber,
		LocationID:     p.LocationID,
		CustomerID:     p.CustomerID,
		SoldAt:         p.SoldAt,
		Subtotal:       p.Subtotal,
		DiscountAmount: p.DiscountAmount,
		TaxAmount:      p.TaxAmount,
		TotalAmount:    p.TotalAmount,
		PaymentMethod:  p.PaymentMethod,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sales(
			external_id, sale_number, location_id, customer_id, sold_at,
			subtotal, discount_amount, tax_amount, total_amount,
			payment_method, notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''))
		RETURNING id, created_at, updated_at
	`,
		p.ExternalID,
		saleNumber,
		p.LocationID,
		p.CustomerID,
		p.SoldAt,
		p.Subtotal,
		p.DiscountAmount,
		p.TaxAmount,
		p.TotalAmount,
		p.PaymentMethod,
		p.Notes,
	).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		// Another register committed the same external id between the
		// lookup and the insert. Resolve as duplicate, not as an error.
		if utils.IsUniqueViolation(err, "sales_external_id_key") {
			dup, lookupErr := r.GetSaleByExternalID(ctx, p.ExternalID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return &models.SaleIngestResult{Sale: dup, IsDuplicate: true}, nil
		}
		return nil, fmt.Errorf("insert sale failed: %w", err)
	}

	// --------------------
	// Step 4: Insert items and decrement stock
	// --------------------
	for _, item := range p.Items {
		var itemID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO sale_items(sale_id, product_id, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`,
			sale.ID,
			item.ProductID,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
		).Scan(&itemID)
		if err != nil {
			return nil, fmt.Errorf("insert sale item failed: %w", err)
		}
		sale.Items = append(sale.Items, models.SaleItemDB{
			ID:        itemID,
			SaleID:    sale.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})

		tag, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $1, updated_at = CURRENT_TIMESTAMP
			WHERE id = $2
		`,
			item.Quantity,
			item.ProductID,
		)
		if err != nil {
			return nil, fmt.Errorf("decrement stock failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrProductNotFound)
		}
	}

	// --------------------
	// Step 5: Post the balanced journal entry. Any failure rolls back
	// the sale so the client retries the whole mutation.
	// --------------------
	if _, err := PostSaleTx(ctx, tx, sale); err != nil {
		return nil, fmt.Errorf("post sale journal failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sale failed: %w", err)
	}
	return &models.SaleIngestResult{Sale: sale, IsDuplicate: false}, nil
}

// nextSaleNumberTx assigns the next SAL-YYYYMMDD-NNNN for today.
func nextSaleNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	day := time.Now()
	prefix := fmt.Sprintf("SAL-%s-", day.Format("20060102"))

	var seq int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(RIGHT(sale_number, 4) AS BIGINT)), 0)
		FROM sales
		WHERE sale_number LIKE $1 || '%'`,
		prefix,
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("sale number sequence failed: %w", err)
	}
	return utils.SaleNumber(day, seq+1), nil
}

const saleColumns = `
	id, external_id, sale_number, location_id, customer_id, sold_at,
	subtotal, discount_amount, tax_amount, total_amount,
	payment_method, notes, created_at, updated_at`

func scanSale(row pgx.Row) (*models.SaleDB, error) {
	var s models.SaleDB
	err := row.Scan(
		&s.ID, &s.ExternalID, &s.SaleNumber, &s.LocationID, &s.CustomerID, &s.SoldAt,
		&s.Subtotal, &s.DiscountAmount, &s.TaxAmount, &s.TotalAmount,
		&s.PaymentMethod, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("scan sale failed: %w", err)
	}
	return &s, nil
}

// GetSaleByExternalID looks a sale up by its idempotency key, items included.
func (r *SaleRepo) GetSaleByExternalID(ctx context.Context, externalID string) (*models.SaleDB, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE external_id = $1`, externalID)
	sale, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

// GetSaleByID returns one sale with its items.
func (r *SaleRepo) GetSaleByID(ctx context.Context, id int64) (*models.SaleDB, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *SaleRepo) attachItems(ctx context.Context, sale *models.SaleDB) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id`,
		sale.ID,
	)
	if err != nil {
		return fmt.Errorf("sale items query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.SaleItemDB
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return fmt.Errorf("sale item scan failed: %w", err)
		}
		sale.Items = append(sale.Items, it)
	}
	return rows.Err()
}

// SaleFilter narrows the delta feed. Exactly one of Since or AfterID is
// expected; LocationID 0 means all locations.
type SaleFilter struct {
	Since      *time.Time
	AfterID    int64
	LocationID int64
	Limit      int
	Offset     int
}

// ListSales serves the delta feed: sales changed since a timestamp, or a
// stable id-ordered page for full resyncs.
func (r *SaleRepo) ListSales(ctx context.Context, f SaleFilter) ([]*models.SaleDB, error) {
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 100
	}

	query := `SELECT ` + saleColumns + ` FROM sales WHERE ($1 = 0 OR location_id = $1)`
	args := []interface{}{f.LocationID}

	if f.Since != nil {
		query += ` AND updated_at > $2 ORDER BY updated_at, id LIMIT $3 OFFSET $4`
		args = append(args, *f.Since, f.Limit, f.Offset)
	} else {
		query += ` AND id > $2 ORDER BY id LIMIT $3 OFFSET $4`
		args = append(args, f.AfterID, f.Limit, f.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales failed: %w", err)
	}
	defer rows.Close()

	var sales []*models.SaleDB
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sales rows failed: %w", err)
	}

	for _, s := range sales {
		if err := r.attachItems(ctx, s); err != nil {
			return nil, err
		}
	}
	return sales, nil
}
