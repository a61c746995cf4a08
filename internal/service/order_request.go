package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"agrimarket/internal/model"
)

const requestColumns = `r.id, r.buyer_id, COALESCE(u.name, ''), r.product_name, r.quantity, r.by_date, r.max_price_per_unit,
	r.allow_multiple_farmers, r.description, r.status, r.is_scheduled, r.schedule_id, r.created_at`

type OrderRequestService struct {
	db *sql.DB
}

func NewOrderRequestService(db *sql.DB) *OrderRequestService {
	return &OrderRequestService{db: db}
}

type CreateOrderRequestInput struct {
	BuyerID              string
	ProductName          string
	Quantity             int
	ByDate               time.Time
	MaxPricePerUnit      *float64
	AllowMultipleFarmers bool
	Description          string
	IsScheduled          bool
	ScheduleID           *string
}

func scanRequest(row rowScanner) (*model.OrderRequest, error) {
	var (
		req        model.OrderRequest
		maxPrice   sql.NullFloat64
		scheduleID sql.NullString
	)
	err := row.Scan(&req.ID, &req.BuyerID, &req.BuyerName, &req.ProductName, &req.Quantity, &req.ByDate, &maxPrice,
		&req.AllowMultipleFarmers, &req.Description, &req.Status, &req.IsScheduled, &scheduleID, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	req.MaxPricePerUnit = floatPtr(maxPrice)
	req.ScheduleID = stringPtr(scheduleID)
	return &req, nil
}

func (s *OrderRequestService) Create(ctx context.Context, in CreateOrderRequestInput) (*model.OrderRequest, error) {
	if blank(in.BuyerID) || blank(in.ProductName) {
		return nil, fmt.Errorf("%w: buyer_id and product_name are required", ErrValidation)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	if in.ByDate.IsZero() {
		return nil, fmt.Errorf("%w: by_date is required", ErrValidation)
	}
	if in.MaxPricePerUnit != nil && *in.MaxPricePerUnit < 0 {
		return nil, fmt.Errorf("%w: max_price_per_unit must be >= 0", ErrValidation)
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO order_requests (buyer_id, product_name, quantity, by_date, max_price_per_unit,
			allow_multiple_farmers, description, status, is_scheduled, schedule_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', $8, $9)
		RETURNING id`,
		in.BuyerID, strings.TrimSpace(in.ProductName), in.Quantity, truncateDay(in.ByDate), in.MaxPricePerUnit,
		in.AllowMultipleFarmers, in.Description, in.IsScheduled, in.ScheduleID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert order request: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *OrderRequestService) Get(ctx context.Context, id string) (*model.OrderRequest, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM order_requests r LEFT JOIN users u ON u.id = r.buyer_id WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order request %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get order request: %w", err)
	}
	return req, nil
}

// ListForBuyer returns all of a buyer's requests, newest first, each with its applications.
func (s *OrderRequestService) ListForBuyer(ctx context.Context, buyerID string) ([]model.OrderRequest, error) {
	requests, err := s.query(ctx, `SELECT `+requestColumns+` FROM order_requests r LEFT JOIN users u ON u.id = r.buyer_id
		WHERE r.buyer_id = $1 ORDER BY r.created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return requests, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+applicationColumns+`
		FROM order_applications a
		JOIN order_requests r ON r.id = a.order_request_id
		LEFT JOIN users f ON f.id = a.farmer_id
		WHERE r.buyer_id = $1
		ORDER BY a.created_at ASC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	byRequest := make(map[string][]model.OrderApplication)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		byRequest[app.OrderRequestID] = append(byRequest[app.OrderRequestID], *app)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	for i := range requests {
		requests[i].Applications = byRequest[requests[i].ID]
	}
	return requests, nil
}

// ListOpenForFarmer returns the open requests a farmer can still apply to.
func (s *OrderRequestService) ListOpenForFarmer(ctx context.Context, today time.Time) ([]model.OrderRequest, error) {
	return s.query(ctx, `SELECT `+requestColumns+` FROM order_requests r LEFT JOIN users u ON u.id = r.buyer_id
		WHERE r.status = 'open' AND r.by_date >= $1 ORDER BY r.by_date ASC`, truncateDay(today))
}

func (s *OrderRequestService) query(ctx context.Context, query string, args ...any) ([]model.OrderRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order requests: %w", err)
	}
	defer rows.Close()

	var requests []model.OrderRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order request: %w", err)
		}
		requests = append(requests, *req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return requests, nil
}
