package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/service"
)

type submitApplicationRequest struct {
	OrderRequestID    string  `json:"order_request_id"`
	FarmerID          string  `json:"farmer_id"`
	PricePerUnit      float64 `json:"price_per_unit"`
	AvailableQuantity int     `json:"available_quantity"`
	DeliveryDate      string  `json:"delivery_date"`
	Notes             string  `json:"notes"`
}

type decideApplicationRequest struct {
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
	BuyerID       string `json:"buyer_id"`
}

func SubmitApplicationHandler(appSvc ApplicationService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitApplicationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		farmerID, err := actingAs(r, req.FarmerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if !validID(req.OrderRequestID) {
			writeError(w, http.StatusBadRequest, "invalid order request id")
			return
		}

		var delivery *time.Time
		if req.DeliveryDate != "" {
			d, err := parseDate(req.DeliveryDate)
			if err != nil {
				fail(w, r, zl, err)
				return
			}
			delivery = &d
		}

		app, err := appSvc.Submit(r.Context(), service.SubmitApplicationInput{
			OrderRequestID:    req.OrderRequestID,
			FarmerID:          farmerID,
			PricePerUnit:      req.PricePerUnit,
			AvailableQuantity: req.AvailableQuantity,
			DeliveryDate:      delivery,
			Notes:             req.Notes,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusCreated, app)
	}
}

// DecideApplicationHandler serves PUT /api/order-applications.
func DecideApplicationHandler(appSvc ApplicationService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req decideApplicationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		buyerID, err := actingAs(r, req.BuyerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if !validID(req.ApplicationID) {
			writeError(w, http.StatusBadRequest, "invalid application id")
			return
		}

		app, err := appSvc.Decide(r.Context(), req.ApplicationID, buyerID, req.Status)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func ListApplicationsHandler(appSvc ApplicationService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmerID, err := actingAs(r, r.URL.Query().Get("farmer_id"))
		if err != nil {
			fail(w, r, zl, err)
			return
		}

		apps, err := appSvc.ListByFarmer(r.Context(), farmerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if apps == nil {
			apps = []model.OrderApplication{}
		}
		writeJSON(w, http.StatusOK, apps)
	}
}
