package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/product"
)

// ProductFilter narrows catalog listings. ActiveOnly is set for storefront
// reads; admin listings see everything.
type ProductFilter struct {
	ActiveOnly bool
	Category   string
	Featured   bool
}

// ProductStore is the persistence contract for the catalog.
type ProductStore interface {
	Create(ctx context.Context, p *product.Product) error
	GetByID(ctx context.Context, id string) (*product.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*product.Product, error)
	Update(ctx context.Context, p *product.Product) error
	// Deactivate is the delete operation: products referenced by order
	// snapshots are hidden, never removed.
	Deactivate(ctx context.Context, id string) error
}

type PostgresProductStore struct {
	db *sql.DB
}

func NewPostgresProductStore(db *sql.DB) *PostgresProductStore {
	return &PostgresProductStore{db: db}
}

const productColumns = `id, name, description, price, images, category, inventory, featured, active, created_at, updated_at`

func (s *PostgresProductStore) Create(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, images, category, inventory, featured, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Description, p.Price, images, p.Category, p.Inventory, p.Featured, p.Active, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresProductStore) GetByID(ctx context.Context, id string) (*product.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func (s *PostgresProductStore) List(ctx context.Context, filter ProductFilter) ([]*product.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []any{}

	if filter.ActiveOnly {
		query += ` AND active = true`
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Featured {
		query += ` AND featured = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *PostgresProductStore) Update(ctx context.Context, p *product.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET name = $2, description = $3, price = $4, images = $5,
			category = $6, inventory = $7, featured = $8, active = $9, updated_at = $10
		 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Price, images, p.Category, p.Inventory, p.Featured, p.Active, time.Now())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

func (s *PostgresProductStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

func scanProduct(row rowScanner) (*product.Product, error) {
	var p product.Product
	var images []byte

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &images, &p.Category,
		&p.Inventory, &p.Featured, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, err
	}
	return &p, nil
}
