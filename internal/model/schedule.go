package model

import "time"

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// OrderSchedule is a buyer's recurring demand template.
type OrderSchedule struct {
	ID                   string    `json:"id"`
	BuyerID              string    `json:"buyer_id"`
	ProductName          string    `json:"product_name"`
	Quantity             int       `json:"quantity"`
	Frequency            string    `json:"frequency"` // daily, weekly, monthly
	ScheduleDay          *int      `json:"schedule_day,omitempty"`
	NextExecutionDate    time.Time `json:"next_execution_date"`
	DaysBeforeNeeded     int       `json:"days_before_needed"`
	MaxPricePerUnit      *float64  `json:"max_price_per_unit,omitempty"`
	AllowMultipleFarmers bool      `json:"allow_multiple_farmers"`
	Description          string    `json:"description,omitempty"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
