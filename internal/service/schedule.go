package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"agrimarket/internal/metrics"
	"agrimarket/internal/model"
)

const scheduleColumns = `id, buyer_id, product_name, quantity, frequency, schedule_day, next_execution_date,
	days_before_needed, max_price_per_unit, allow_multiple_farmers, description, is_active, created_at, updated_at`

var errScheduleRaced = errors.New("schedule was advanced by a concurrent run")

type ScheduleService struct {
	db *sql.DB
	zl *zap.Logger
}

func NewScheduleService(db *sql.DB, zl *zap.Logger) *ScheduleService {
	return &ScheduleService{db: db, zl: zl}
}

type CreateScheduleInput struct {
	BuyerID              string
	ProductName          string
	Quantity             int
	Frequency            string
	ScheduleDay          *int
	NextExecutionDate    time.Time
	DaysBeforeNeeded     int
	MaxPricePerUnit      *float64
	AllowMultipleFarmers bool
	Description          string
}

// UpdateScheduleInput carries the fields a buyer may change; nil leaves a field as is.
// next_execution_date is deliberately absent: only Process advances it.
type UpdateScheduleInput struct {
	Quantity             *int
	Frequency            *string
	ScheduleDay          *int
	DaysBeforeNeeded     *int
	MaxPricePerUnit      *float64
	AllowMultipleFarmers *bool
	Description          *string
	IsActive             *bool
}

type ScheduleResult struct {
	ScheduleID        string `json:"schedule_id"`
	Success           bool   `json:"success"`
	OrderRequestID    string `json:"order_request_id,omitempty"`
	NextExecutionDate string `json:"next_execution_date,omitempty"`
	Error             string `json:"error,omitempty"`
}

type ProcessResult struct {
	Processed int              `json:"processed"`
	Total     int              `json:"total"`
	Results   []ScheduleResult `json:"results"`
}

func scanSchedule(row rowScanner) (*model.OrderSchedule, error) {
	var (
		sch      model.OrderSchedule
		day      sql.NullInt64
		maxPrice sql.NullFloat64
	)
	err := row.Scan(&sch.ID, &sch.BuyerID, &sch.ProductName, &sch.Quantity, &sch.Frequency, &day,
		&sch.NextExecutionDate, &sch.DaysBeforeNeeded, &maxPrice, &sch.AllowMultipleFarmers,
		&sch.Description, &sch.IsActive, &sch.CreatedAt, &sch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sch.ScheduleDay = intPtr(day)
	sch.MaxPricePerUnit = floatPtr(maxPrice)
	return &sch, nil
}

func validateSchedule(quantity int, frequency string, day *int, daysBefore int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}
	if !validFrequency(frequency) {
		return fmt.Errorf("%w: frequency must be daily, weekly or monthly", ErrValidation)
	}
	if day != nil && (*day < 1 || *day > 31) {
		return fmt.Errorf("%w: schedule_day must be between 1 and 31", ErrValidation)
	}
	if daysBefore < 0 {
		return fmt.Errorf("%w: days_before_needed must be >= 0", ErrValidation)
	}
	return nil
}

func (s *ScheduleService) Create(ctx context.Context, in CreateScheduleInput) (*model.OrderSchedule, error) {
	if blank(in.BuyerID) || blank(in.ProductName) {
		return nil, fmt.Errorf("%w: buyer_id and product_name are required", ErrValidation)
	}
	if err := validateSchedule(in.Quantity, in.Frequency, in.ScheduleDay, in.DaysBeforeNeeded); err != nil {
		return nil, err
	}
	if in.NextExecutionDate.IsZero() {
		return nil, fmt.Errorf("%w: next_execution_date is required", ErrValidation)
	}
	next := truncateDay(in.NextExecutionDate)
	if in.Frequency == model.FrequencyMonthly && in.ScheduleDay == nil {
		d := next.Day()
		in.ScheduleDay = &d
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO order_schedules (buyer_id, product_name, quantity, frequency, schedule_day, next_execution_date,
			days_before_needed, max_price_per_unit, allow_multiple_farmers, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		RETURNING `+scheduleColumns,
		in.BuyerID, strings.TrimSpace(in.ProductName), in.Quantity, in.Frequency, in.ScheduleDay, next,
		in.DaysBeforeNeeded, in.MaxPricePerUnit, in.AllowMultipleFarmers, in.Description,
	)
	sch, err := scanSchedule(row)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return sch, nil
}

func (s *ScheduleService) ListByBuyer(ctx context.Context, buyerID string) ([]model.OrderSchedule, error) {
	return s.query(ctx, `SELECT `+scheduleColumns+` FROM order_schedules WHERE buyer_id = $1 ORDER BY next_execution_date ASC`, buyerID)
}

// Due lists active schedules whose next execution date is on or before now.
func (s *ScheduleService) Due(ctx context.Context, now time.Time) ([]model.OrderSchedule, error) {
	return s.query(ctx, `SELECT `+scheduleColumns+` FROM order_schedules
		WHERE is_active = TRUE AND next_execution_date <= $1 ORDER BY next_execution_date ASC`, truncateDay(now))
}

func (s *ScheduleService) active(ctx context.Context) ([]model.OrderSchedule, error) {
	return s.query(ctx, `SELECT `+scheduleColumns+` FROM order_schedules
		WHERE is_active = TRUE ORDER BY next_execution_date ASC`)
}

func (s *ScheduleService) query(ctx context.Context, query string, args ...any) ([]model.OrderSchedule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.OrderSchedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sch)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleService) Update(ctx context.Context, id, buyerID string, in UpdateScheduleInput) (*model.OrderSchedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sch, err := scanSchedule(tx.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM order_schedules WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sch.BuyerID != buyerID {
		return nil, ErrForbidden
	}

	if in.Quantity != nil {
		sch.Quantity = *in.Quantity
	}
	if in.Frequency != nil {
		sch.Frequency = *in.Frequency
	}
	if in.ScheduleDay != nil {
		sch.ScheduleDay = in.ScheduleDay
	}
	if in.DaysBeforeNeeded != nil {
		sch.DaysBeforeNeeded = *in.DaysBeforeNeeded
	}
	if in.MaxPricePerUnit != nil {
		sch.MaxPricePerUnit = in.MaxPricePerUnit
	}
	if in.AllowMultipleFarmers != nil {
		sch.AllowMultipleFarmers = *in.AllowMultipleFarmers
	}
	if in.Description != nil {
		sch.Description = *in.Description
	}
	if in.IsActive != nil {
		sch.IsActive = *in.IsActive
	}
	if err := validateSchedule(sch.Quantity, sch.Frequency, sch.ScheduleDay, sch.DaysBeforeNeeded); err != nil {
		return nil, err
	}

	updated, err := scanSchedule(tx.QueryRowContext(ctx, `
		UPDATE order_schedules
		SET quantity = $1, frequency = $2, schedule_day = $3, days_before_needed = $4, max_price_per_unit = $5,
			allow_multiple_farmers = $6, description = $7, is_active = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING `+scheduleColumns,
		sch.Quantity, sch.Frequency, sch.ScheduleDay, sch.DaysBeforeNeeded, sch.MaxPricePerUnit,
		sch.AllowMultipleFarmers, sch.Description, sch.IsActive, id,
	))
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return updated, nil
}

func (s *ScheduleService) Delete(ctx context.Context, id, buyerID string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT buyer_id FROM order_schedules WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("get schedule: %w", err)
	}
	if owner != buyerID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM order_schedules WHERE id = $1 AND buyer_id = $2`, id, buyerID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

// Process fires every due schedule: one open order request per schedule and the
// schedule's next execution date advanced by one period. Each schedule commits on its
// own, so a failing schedule never aborts the rest. Only a failure to list schedules
// is returned as an error.
//
// With force the date filter is dropped and every active schedule fires, advancing from
// its current next execution date. A forced re-run after a normal one therefore creates
// a second order request for the same period.
func (s *ScheduleService) Process(ctx context.Context, now time.Time, force bool) (*ProcessResult, error) {
	today := truncateDay(now)

	var (
		schedules []model.OrderSchedule
		err       error
	)
	if force {
		schedules, err = s.active(ctx)
	} else {
		schedules, err = s.Due(ctx, today)
	}
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	out := &ProcessResult{Total: len(schedules), Results: make([]ScheduleResult, 0, len(schedules))}
	for _, sch := range schedules {
		requestID, next, err := s.fire(ctx, sch, today)
		if err != nil {
			s.zl.Error("schedule processing failed", zap.String("schedule_id", sch.ID), zap.Error(err))
			metrics.RecordSchedule("failed")
			out.Results = append(out.Results, ScheduleResult{ScheduleID: sch.ID, Error: err.Error()})
			continue
		}

		s.zl.Info("schedule fired",
			zap.String("schedule_id", sch.ID),
			zap.String("order_request_id", requestID),
			zap.Time("next_execution_date", next))
		metrics.RecordSchedule("success")
		out.Processed++
		out.Results = append(out.Results, ScheduleResult{
			ScheduleID:        sch.ID,
			Success:           true,
			OrderRequestID:    requestID,
			NextExecutionDate: next.Format(time.DateOnly),
		})
	}

	return out, nil
}

func (s *ScheduleService) fire(ctx context.Context, sch model.OrderSchedule, today time.Time) (string, time.Time, error) {
	anchor := 0
	if sch.ScheduleDay != nil {
		anchor = *sch.ScheduleDay
	}
	current := truncateDay(sch.NextExecutionDate)
	next, err := NextExecutionDate(current, sch.Frequency, anchor)
	if err != nil {
		return "", time.Time{}, err
	}
	byDate := today.AddDate(0, 0, sch.DaysBeforeNeeded)
	description := strings.TrimSpace(sch.Description + " " + model.AutoGeneratedMarker)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var requestID string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO order_requests (buyer_id, product_name, quantity, by_date, max_price_per_unit,
			allow_multiple_farmers, description, status, is_scheduled, schedule_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', TRUE, $8)
		RETURNING id`,
		sch.BuyerID, sch.ProductName, sch.Quantity, byDate, sch.MaxPricePerUnit,
		sch.AllowMultipleFarmers, description, sch.ID,
	).Scan(&requestID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("insert order request: %w", err)
	}

	// guarded on the old date so two concurrent runs cannot both fire this occurrence
	res, err := tx.ExecContext(ctx, `
		UPDATE order_schedules SET next_execution_date = $1, updated_at = NOW()
		WHERE id = $2 AND next_execution_date = $3`,
		next, sch.ID, current,
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("advance schedule: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", time.Time{}, fmt.Errorf("advance schedule: %w", err)
	} else if n == 0 {
		return "", time.Time{}, errScheduleRaced
	}

	if err := tx.Commit(); err != nil {
		return "", time.Time{}, fmt.Errorf("commit tx: %w", err)
	}
	return requestID, next, nil
}
