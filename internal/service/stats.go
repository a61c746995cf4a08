package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"go.uber.org/zap"

	"agrimarket/internal/model"
)

type StatsService struct {
	db *sql.DB
	zl *zap.Logger
}

func NewStatsService(db *sql.DB, zl *zap.Logger) *StatsService {
	return &StatsService{db: db, zl: zl}
}

// ForUser derives rating and order statistics. A missing ratings table yields
// zero rating stats instead of an error.
func (s *StatsService) ForUser(ctx context.Context, userID, userType string) (*model.UserStats, error) {
	column := "buyer_id"
	switch userType {
	case model.RoleBuyer:
	case model.RoleFarmer, "seller":
		column = "seller_id"
	default:
		return nil, fmt.Errorf("%w: unknown user type %q", ErrValidation, userType)
	}

	stats := &model.UserStats{
		UserID:          userID,
		UserType:        userType,
		RatingBreakdown: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	if err := s.ratings(ctx, userID, stats); err != nil {
		if pgCode(err) != pgUndefinedTable {
			return nil, err
		}
		s.zl.Warn("ratings table missing, reporting zero ratings", zap.String("user_id", userID))
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'delivered'),
			COALESCE(SUM(total_price), 0)
		FROM orders WHERE `+column+` = $1`, userID,
	).Scan(&stats.TotalOrders, &stats.CompletedOrders, &stats.TotalValue)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}

	return stats, nil
}

func (s *StatsService) ratings(ctx context.Context, userID string, stats *model.UserStats) error {
	rows, err := s.db.QueryContext(ctx, `SELECT rating FROM ratings WHERE rated_user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	sum := 0
	for rows.Next() {
		var r int
		if err := rows.Scan(&r); err != nil {
			return fmt.Errorf("scan rating: %w", err)
		}
		if r >= 1 && r <= 5 {
			stats.RatingBreakdown[r]++
		}
		stats.TotalRatings++
		sum += r
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("rows iteration failed: %w", err)
	}

	if stats.TotalRatings > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(stats.TotalRatings)*10) / 10
	}
	return nil
}
