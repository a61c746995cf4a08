package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"agrimarket/internal/model"
)

const orderColumns = `o.id, o.buyer_id, o.seller_id, o.product_id, COALESCE(p.name, ''), o.quantity, o.unit_price,
	o.total_price, o.delivery_address, o.notes, o.status, o.created_at, o.updated_at`

type OrderService struct {
	db *sql.DB
}

func NewOrderService(db *sql.DB) *OrderService {
	return &OrderService{db: db}
}

// CreateOrderInput mirrors the purchase form. SellerID, UnitPrice and TotalPrice
// default to the product's farmer, price and price*quantity when left zero.
type CreateOrderInput struct {
	BuyerID         string
	SellerID        string
	ProductID       string
	Quantity        int
	UnitPrice       float64
	TotalPrice      float64
	DeliveryAddress string
	Notes           string
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ProductID, &o.ProductName, &o.Quantity, &o.UnitPrice,
		&o.TotalPrice, &o.DeliveryAddress, &o.Notes, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts the order and takes the quantity out of the product's stock in
// one transaction. The product row stays locked until commit.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if blank(in.BuyerID) || blank(in.ProductID) {
		return nil, fmt.Errorf("%w: buyer_id and product_id are required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	if in.UnitPrice < 0 || in.TotalPrice < 0 {
		return nil, fmt.Errorf("%w: prices must be >= 0", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		farmerID string
		price    float64
		stock    int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT farmer_id, price, quantity FROM products WHERE id = $1 FOR UPDATE`, in.ProductID,
	).Scan(&farmerID, &price, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", in.ProductID, ErrNotFound)
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	if stock < in.Quantity {
		return nil, fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, stock, in.Quantity)
	}

	if blank(in.SellerID) {
		in.SellerID = farmerID
	}
	if in.UnitPrice == 0 {
		in.UnitPrice = price
	}
	if in.TotalPrice == 0 {
		in.TotalPrice = math.Round(in.UnitPrice*float64(in.Quantity)*100) / 100
	}

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (buyer_id, seller_id, product_id, quantity, unit_price, total_price,
			delivery_address, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING id`,
		in.BuyerID, in.SellerID, in.ProductID, in.Quantity, in.UnitPrice, in.TotalPrice,
		in.DeliveryAddress, in.Notes,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - $1, updated_at = NOW() WHERE id = $2`,
		in.Quantity, in.ProductID,
	)
	if err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}

	order, err := scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o LEFT JOIN products p ON p.id = o.product_id WHERE o.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// ListByUser returns orders where the user is the buyer, or the seller when
// userType is farmer or seller.
func (s *OrderService) ListByUser(ctx context.Context, userID, userType string) ([]model.Order, error) {
	column := "o.buyer_id"
	switch userType {
	case model.RoleBuyer:
	case model.RoleFarmer, "seller":
		column = "o.seller_id"
	default:
		return nil, fmt.Errorf("%w: unknown user type %q", ErrValidation, userType)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN products p ON p.id = o.product_id
		WHERE `+column+` = $1
		ORDER BY o.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return orders, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o LEFT JOIN products p ON p.id = o.product_id WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) (*model.Order, error) {
	if !model.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}
