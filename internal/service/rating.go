package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"agrimarket/internal/model"
)

type RatingService struct {
	db *sql.DB
}

func NewRatingService(db *sql.DB) *RatingService {
	return &RatingService{db: db}
}

type CreateRatingInput struct {
	RaterID     string
	RatedUserID string
	OrderID     *string
	Rating      int
	Comment     string
}

func (s *RatingService) Create(ctx context.Context, in CreateRatingInput) (*model.Rating, error) {
	if blank(in.RaterID) || blank(in.RatedUserID) {
		return nil, fmt.Errorf("%w: rater_id and rated_user_id are required", ErrValidation)
	}
	if in.RaterID == in.RatedUserID {
		return nil, fmt.Errorf("%w: cannot rate yourself", ErrValidation)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	var (
		r       model.Rating
		orderID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ratings (rater_id, rated_user_id, order_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, rater_id, rated_user_id, order_id, rating, comment, created_at`,
		in.RaterID, in.RatedUserID, in.OrderID, in.Rating, strings.TrimSpace(in.Comment),
	).Scan(&r.ID, &r.RaterID, &r.RatedUserID, &orderID, &r.Rating, &r.Comment, &r.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return nil, fmt.Errorf("rating for this order: %w", ErrConflict)
		}
		return nil, fmt.Errorf("insert rating: %w", err)
	}
	r.OrderID = stringPtr(orderID)
	return &r, nil
}

// ListForUser returns ratings received by the user, newest first.
func (s *RatingService) ListForUser(ctx context.Context, userID string) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.rater_id, COALESCE(u.name, ''), r.rated_user_id, r.order_id, r.rating, r.comment, r.created_at
		FROM ratings r
		LEFT JOIN users u ON u.id = r.rater_id
		WHERE r.rated_user_id = $1
		ORDER BY r.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var (
			r       model.Rating
			orderID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RaterID, &r.RaterName, &r.RatedUserID, &orderID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.OrderID = stringPtr(orderID)
		ratings = append(ratings, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return ratings, nil
}
