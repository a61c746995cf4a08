package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"agrimarket/internal/model"
)

const orderStatsSQL = `SELECT COUNT\(\*\), COUNT\(\*\) FILTER \(WHERE status = 'delivered'\), COALESCE\(SUM\(total_price\), 0\) FROM orders WHERE `

func TestStatsForFarmer(t *testing.T) {
	db, mock := newMock(t)
	svc := NewStatsService(db, zap.NewNop())

	mock.ExpectQuery(`SELECT rating FROM ratings WHERE rated_user_id = \$1`).
		WithArgs("farmer-1").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(5).AddRow(4).AddRow(4))
	mock.ExpectQuery(orderStatsSQL + `seller_id = \$1`).
		WithArgs("farmer-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed", "value"}).AddRow(3, 2, 120.5))

	stats, err := svc.ForUser(context.Background(), "farmer-1", model.RoleFarmer)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRatings)
	assert.InDelta(t, 4.3, stats.AverageRating, 0.0001)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 0, 4: 2, 5: 1}, stats.RatingBreakdown)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 2, stats.CompletedOrders)
	assert.InDelta(t, 120.5, stats.TotalValue, 0.0001)
}

func TestStatsMissingRatingsTable(t *testing.T) {
	db, mock := newMock(t)
	core, logs := observer.New(zap.WarnLevel)
	svc := NewStatsService(db, zap.New(core))

	mock.ExpectQuery(`SELECT rating FROM ratings`).
		WillReturnError(&pgconn.PgError{Code: pgUndefinedTable, Message: `relation "ratings" does not exist`})
	mock.ExpectQuery(orderStatsSQL + `buyer_id = \$1`).
		WithArgs("buyer-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed", "value"}).AddRow(0, 0, 0))

	stats, err := svc.ForUser(context.Background(), "buyer-1", model.RoleBuyer)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRatings)
	assert.Zero(t, stats.AverageRating)
	assert.Len(t, stats.RatingBreakdown, 5)
	assert.Equal(t, 1, logs.Len())
}

func TestStatsUnknownUserType(t *testing.T) {
	svc := NewStatsService(nil, zap.NewNop())

	_, err := svc.ForUser(context.Background(), "user-1", "admin")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateRating(t *testing.T) {
	db, mock := newMock(t)
	svc := NewRatingService(db)
	orderID := "ord-1"

	mock.ExpectQuery(`INSERT INTO ratings`).
		WithArgs("buyer-1", "farmer-1", "ord-1", 5, "great").
		WillReturnRows(sqlmock.NewRows([]string{"id", "rater_id", "rated_user_id", "order_id", "rating", "comment", "created_at"}).
			AddRow("rat-1", "buyer-1", "farmer-1", "ord-1", 5, "great", date(2024, 3, 1)))

	r, err := svc.Create(context.Background(), CreateRatingInput{
		RaterID: "buyer-1", RatedUserID: "farmer-1", OrderID: &orderID, Rating: 5, Comment: " great ",
	})
	require.NoError(t, err)
	require.NotNil(t, r.OrderID)
	assert.Equal(t, "ord-1", *r.OrderID)
}

func TestCreateRatingValidationAndConflict(t *testing.T) {
	svc := NewRatingService(nil)

	_, err := svc.Create(context.Background(), CreateRatingInput{RaterID: "a", RatedUserID: "b", Rating: 6})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), CreateRatingInput{RaterID: "a", RatedUserID: "a", Rating: 3})
	assert.ErrorIs(t, err, ErrValidation)

	db, mock := newMock(t)
	mock.ExpectQuery(`INSERT INTO ratings`).WillReturnError(uniqueViolation())

	_, err = NewRatingService(db).Create(context.Background(), CreateRatingInput{RaterID: "a", RatedUserID: "b", Rating: 3})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListRatingsForUser(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`WHERE r.rated_user_id = \$1`).
		WithArgs("farmer-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "rater_id", "rater_name", "rated_user_id", "order_id", "rating", "comment", "created_at"}).
			AddRow("rat-1", "buyer-1", "Buyer", "farmer-1", nil, 4, "", date(2024, 3, 1)))

	ratings, err := NewRatingService(db).ListForUser(context.Background(), "farmer-1")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Nil(t, ratings[0].OrderID)
	assert.Equal(t, "Buyer", ratings[0].RaterName)
}
