package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agrimarket/internal/model"
)

const applicationColumns = `a.id, a.order_request_id, a.farmer_id, COALESCE(f.name, ''), r.product_name, a.price_per_unit,
	a.available_quantity, a.delivery_date, a.notes, a.status, a.created_at, a.updated_at`

type ApplicationService struct {
	db *sql.DB
}

func NewApplicationService(db *sql.DB) *ApplicationService {
	return &ApplicationService{db: db}
}

type SubmitApplicationInput struct {
	OrderRequestID    string
	FarmerID          string
	PricePerUnit      float64
	AvailableQuantity int
	DeliveryDate      *time.Time
	Notes             string
}

func scanApplication(row rowScanner) (*model.OrderApplication, error) {
	var (
		app      model.OrderApplication
		delivery sql.NullTime
	)
	err := row.Scan(&app.ID, &app.OrderRequestID, &app.FarmerID, &app.FarmerName, &app.ProductName, &app.PricePerUnit,
		&app.AvailableQuantity, &delivery, &app.Notes, &app.Status, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, err
	}
	app.DeliveryDate = timePtr(delivery)
	return &app, nil
}

// Submit records a pending bid. The parent request row is locked for the duration of the
// checks so the single-farmer rule cannot be raced; the (request, farmer) unique
// constraint backs up the duplicate check.
func (s *ApplicationService) Submit(ctx context.Context, in SubmitApplicationInput) (*model.OrderApplication, error) {
	if blank(in.OrderRequestID) || blank(in.FarmerID) {
		return nil, fmt.Errorf("%w: order_request_id and farmer_id are required", ErrValidation)
	}
	if in.PricePerUnit <= 0 || in.AvailableQuantity <= 0 {
		return nil, fmt.Errorf("%w: price_per_unit and available_quantity must be > 0", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		status        string
		allowMultiple bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT status, allow_multiple_farmers FROM order_requests WHERE id = $1 FOR UPDATE`,
		in.OrderRequestID,
	).Scan(&status, &allowMultiple)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order request %s: %w", in.OrderRequestID, ErrNotFound)
		}
		return nil, fmt.Errorf("lock order request: %w", err)
	}

	var mine, total int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE farmer_id = $2), COUNT(*)
		FROM order_applications WHERE order_request_id = $1`,
		in.OrderRequestID, in.FarmerID,
	).Scan(&mine, &total)
	if err != nil {
		return nil, fmt.Errorf("count applications: %w", err)
	}

	switch {
	case mine > 0:
		return nil, ErrDuplicateApplication
	case status != model.RequestStatusOpen:
		return nil, ErrRequestClosed
	case !allowMultiple && total > 0:
		// any prior application blocks, whatever its status
		return nil, ErrSingleFarmerOnly
	}

	var delivery any
	if in.DeliveryDate != nil {
		delivery = truncateDay(*in.DeliveryDate)
	}

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO order_applications (order_request_id, farmer_id, price_per_unit, available_quantity,
			delivery_date, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING id`,
		in.OrderRequestID, in.FarmerID, in.PricePerUnit, in.AvailableQuantity, delivery, in.Notes,
	).Scan(&id)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, ErrDuplicateApplication
		}
		return nil, fmt.Errorf("insert application: %w", err)
	}

	app, err := s.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return app, nil
}

// Decide applies the buyer's verdict. Accepting closes the parent request once the
// accepted quantity covers the requested quantity, or immediately for single-farmer
// requests. Closing is permanent.
func (s *ApplicationService) Decide(ctx context.Context, applicationID, buyerID, status string) (*model.OrderApplication, error) {
	if status != model.ApplicationStatusAccepted && status != model.ApplicationStatusRejected {
		return nil, fmt.Errorf("%w: status must be accepted or rejected", ErrInvalidStatus)
	}
	if blank(applicationID) || blank(buyerID) {
		return nil, fmt.Errorf("%w: application_id and buyer_id are required", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		requestID     string
		owner         string
		requested     int
		allowMultiple bool
		current       string
		ownQuantity   int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT r.id, r.buyer_id, r.quantity, r.allow_multiple_farmers, a.status, a.available_quantity
		FROM order_applications a
		JOIN order_requests r ON r.id = a.order_request_id
		WHERE a.id = $1
		FOR UPDATE`,
		applicationID,
	).Scan(&requestID, &owner, &requested, &allowMultiple, &current, &ownQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %s: %w", applicationID, ErrNotFound)
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}
	if owner != buyerID {
		return nil, ErrForbidden
	}
	if current != model.ApplicationStatusPending {
		return nil, ErrAlreadyDecided
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE order_applications SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}

	if status == model.ApplicationStatusAccepted {
		var others int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(available_quantity), 0) FROM order_applications
			WHERE order_request_id = $1 AND status = 'accepted' AND id <> $2`,
			requestID, applicationID,
		).Scan(&others)
		if err != nil {
			return nil, fmt.Errorf("sum accepted quantity: %w", err)
		}

		if !allowMultiple || others+ownQuantity >= requested {
			_, err = tx.ExecContext(ctx,
				`UPDATE order_requests SET status = 'closed' WHERE id = $1 AND status = 'open'`,
				requestID,
			)
			if err != nil {
				return nil, fmt.Errorf("close order request: %w", err)
			}
		}
	}

	app, err := s.get(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return app, nil
}

// ListByFarmer returns a farmer's applications, newest first.
func (s *ApplicationService) ListByFarmer(ctx context.Context, farmerID string) ([]model.OrderApplication, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+applicationColumns+`
		FROM order_applications a
		JOIN order_requests r ON r.id = a.order_request_id
		LEFT JOIN users f ON f.id = a.farmer_id
		WHERE a.farmer_id = $1
		ORDER BY a.created_at DESC`, farmerID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var apps []model.OrderApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, *app)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return apps, nil
}

func (s *ApplicationService) get(ctx context.Context, tx *sql.Tx, id string) (*model.OrderApplication, error) {
	app, err := scanApplication(tx.QueryRowContext(ctx, `SELECT `+applicationColumns+`
		FROM order_applications a
		JOIN order_requests r ON r.id = a.order_request_id
		LEFT JOIN users f ON f.id = a.farmer_id
		WHERE a.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}
