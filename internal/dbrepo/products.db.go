package dbrepo

import (
	"context"
	"fmt"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepo struct {
	db *pgxpool.Pool
}

func NewProductRepo(db *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{db: db}
}

// GetProducts fetches the catalog clients cache for offline use.
func (s *ProductRepo) GetProducts(ctx context.Context) ([]*models.Product, error) {
	query := `
        SELECT
            id, name, COALESCE(category_id, 0), price, tax_rate, stock_quantity, created_at, updated_at
        FROM products
        ORDER BY id;
    `
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error fetching products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.Price, &p.TaxRate, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// GetCategories fetches the category list for the client cache.
func (s *ProductRepo) GetCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("error fetching categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}
