package model

import "time"

const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

// OrderApplication is a farmer's bid against an order request.
type OrderApplication struct {
	ID                string     `json:"id"`
	OrderRequestID    string     `json:"order_request_id"`
	FarmerID          string     `json:"farmer_id"`
	FarmerName        string     `json:"farmer_name,omitempty"`
	ProductName       string     `json:"product_name,omitempty"`
	PricePerUnit      float64    `json:"price_per_unit"`
	AvailableQuantity int        `json:"available_quantity"`
	DeliveryDate      *time.Time `json:"delivery_date,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Status            string     `json:"status"` // pending, accepted, rejected
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
