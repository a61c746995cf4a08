package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"agrimarket/internal/model"
)

const productColumns = `id, farmer_id, name, category, description, price, unit, quantity, image_url, created_at, updated_at`

type ProductService struct {
	db *sql.DB
}

func NewProductService(db *sql.DB) *ProductService {
	return &ProductService{db: db}
}

type ProductInput struct {
	Name        string
	Category    string
	Description string
	Price       float64
	Unit        string
	Quantity    int
	ImageURL    string
}

type ProductFilter struct {
	FarmerID string
	Category string
	Search   string
}

func (in ProductInput) validate() error {
	if blank(in.Name) {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Price < 0 || in.Quantity < 0 {
		return fmt.Errorf("%w: price and quantity must be >= 0", ErrValidation)
	}
	return nil
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.FarmerID, &p.Name, &p.Category, &p.Description, &p.Price, &p.Unit,
		&p.Quantity, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductService) Create(ctx context.Context, farmerID string, in ProductInput) (*model.Product, error) {
	if blank(farmerID) {
		return nil, fmt.Errorf("%w: farmer_id is required", ErrValidation)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if blank(in.Unit) {
		in.Unit = "kg"
	}

	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (farmer_id, name, category, description, price, unit, quantity, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		farmerID, strings.TrimSpace(in.Name), in.Category, in.Description, in.Price, in.Unit, in.Quantity, in.ImageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, f ProductFilter) ([]model.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.FarmerID != "" {
		args = append(args, f.FarmerID)
		where = append(where, fmt.Sprintf("farmer_id = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return products, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id, farmerID string, in ProductInput) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkOwner(ctx, id, farmerID); err != nil {
		return nil, err
	}
	if blank(in.Unit) {
		in.Unit = "kg"
	}

	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products SET name = $1, category = $2, description = $3, price = $4, unit = $5,
			quantity = $6, image_url = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING `+productColumns,
		strings.TrimSpace(in.Name), in.Category, in.Description, in.Price, in.Unit, in.Quantity, in.ImageURL, id,
	))
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id, farmerID string) error {
	if err := s.checkOwner(ctx, id, farmerID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (s *ProductService) checkOwner(ctx context.Context, id, farmerID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT farmer_id FROM products WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("get product owner: %w", err)
	}
	if owner != farmerID {
		return ErrForbidden
	}
	return nil
}
