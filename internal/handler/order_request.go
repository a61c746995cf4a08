package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/service"
)

type createOrderRequestRequest struct {
	BuyerID              string   `json:"buyer_id"`
	ProductName          string   `json:"product_name"`
	Quantity             int      `json:"quantity"`
	ByDate               string   `json:"by_date"`
	MaxPricePerUnit      *float64 `json:"max_price_per_unit"`
	AllowMultipleFarmers bool     `json:"allow_multiple_farmers"`
	Description          string   `json:"description"`
	IsScheduled          bool     `json:"is_scheduled"`
	ScheduleID           *string  `json:"schedule_id"`
}

func CreateOrderRequestHandler(requestSvc OrderRequestService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequestRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		buyerID, err := actingAs(r, req.BuyerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if req.ByDate == "" {
			writeError(w, http.StatusBadRequest, "by_date is required")
			return
		}
		byDate, err := parseDate(req.ByDate)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if req.ScheduleID != nil && !validID(*req.ScheduleID) {
			writeError(w, http.StatusBadRequest, "invalid schedule id")
			return
		}

		created, err := requestSvc.Create(r.Context(), service.CreateOrderRequestInput{
			BuyerID:              buyerID,
			ProductName:          req.ProductName,
			Quantity:             req.Quantity,
			ByDate:               byDate,
			MaxPricePerUnit:      req.MaxPricePerUnit,
			AllowMultipleFarmers: req.AllowMultipleFarmers,
			Description:          req.Description,
			IsScheduled:          req.IsScheduled,
			ScheduleID:           req.ScheduleID,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// ListOrderRequestsHandler serves the buyer view (?buyer_id=, with nested
// applications) or the farmer view (?farmer_id=, open requests not yet past by_date).
// Either id must be the caller's own.
func ListOrderRequestsHandler(requestSvc OrderRequestService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			requests []model.OrderRequest
			err      error
		)
		switch {
		case q.Get("buyer_id") != "":
			var owner string
			if owner, err = actingAs(r, q.Get("buyer_id")); err == nil {
				requests, err = requestSvc.ListForBuyer(r.Context(), owner)
			}
		case q.Get("farmer_id") != "":
			if _, err = actingAs(r, q.Get("farmer_id")); err == nil {
				requests, err = requestSvc.ListOpenForFarmer(r.Context(), time.Now())
			}
		default:
			writeError(w, http.StatusBadRequest, "buyer_id or farmer_id is required")
			return
		}
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if requests == nil {
			requests = []model.OrderRequest{}
		}
		writeJSON(w, http.StatusOK, requests)
	}
}
