package model

import "time"

const (
	RequestStatusOpen   = "open"
	RequestStatusClosed = "closed"
)

// AutoGeneratedMarker is appended to the description of requests created by a schedule.
const AutoGeneratedMarker = "[Auto-Generated Order]"

type OrderRequest struct {
	ID                   string             `json:"id"`
	BuyerID              string             `json:"buyer_id"`
	BuyerName            string             `json:"buyer_name,omitempty"`
	ProductName          string             `json:"product_name"`
	Quantity             int                `json:"quantity"`
	ByDate               time.Time          `json:"by_date"`
	MaxPricePerUnit      *float64           `json:"max_price_per_unit,omitempty"`
	AllowMultipleFarmers bool               `json:"allow_multiple_farmers"`
	Description          string             `json:"description,omitempty"`
	Status               string             `json:"status"` // open, closed
	IsScheduled          bool               `json:"is_scheduled"`
	ScheduleID           *string            `json:"schedule_id,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	Applications         []OrderApplication `json:"applications,omitempty"`
}
