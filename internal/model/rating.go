package model

import "time"

type Rating struct {
	ID          string    `json:"id"`
	RaterID     string    `json:"rater_id"`
	RaterName   string    `json:"rater_name,omitempty"`
	RatedUserID string    `json:"rated_user_id"`
	OrderID     *string   `json:"order_id,omitempty"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserStats is derived on read, never stored.
type UserStats struct {
	UserID          string      `json:"user_id"`
	UserType        string      `json:"user_type"`
	TotalRatings    int         `json:"total_ratings"`
	AverageRating   float64     `json:"average_rating"`
	RatingBreakdown map[int]int `json:"rating_breakdown"`
	TotalOrders     int         `json:"total_orders"`
	CompletedOrders int         `json:"completed_orders"`
	TotalValue      float64     `json:"total_value"`
}
