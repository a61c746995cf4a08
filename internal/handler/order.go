package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

type createOrderRequest struct {
	BuyerID         string  `json:"buyer_id"`
	SellerID        string  `json:"seller_id"`
	ProductID       string  `json:"product_id"`
	Quantity        int     `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	TotalPrice      float64 `json:"total_price"`
	DeliveryAddress string  `json:"delivery_address"`
	Notes           string  `json:"notes"`
}

type updateOrderRequest struct {
	Status string `json:"status"`
}

func CreateOrderHandler(orderSvc OrderService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		buyerID, err := actingAs(r, req.BuyerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if !validID(req.ProductID) {
			writeError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		order, err := orderSvc.Create(r.Context(), service.CreateOrderInput{
			BuyerID:         buyerID,
			SellerID:        req.SellerID,
			ProductID:       req.ProductID,
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			TotalPrice:      req.TotalPrice,
			DeliveryAddress: req.DeliveryAddress,
			Notes:           req.Notes,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

// ListOrdersHandler serves GET /api/orders?userId=&userType=; both default to the caller
// and userId may only name the caller.
func ListOrdersHandler(orderSvc OrderService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actingAs(r, r.URL.Query().Get("userId"))
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		userType := r.URL.Query().Get("userType")
		if userType == "" {
			userType = mw.Role(r.Context())
		}

		orders, err := orderSvc.ListByUser(r.Context(), userID, userType)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func GetOrderHandler(orderSvc OrderService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid order id")
			return
		}

		order, err := orderParty(r, orderSvc, id)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func UpdateOrderHandler(orderSvc OrderService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid order id")
			return
		}

		var req updateOrderRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if _, err := orderParty(r, orderSvc, id); err != nil {
			fail(w, r, zl, err)
			return
		}
		order, err := orderSvc.UpdateStatus(r.Context(), id, req.Status)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// orderParty loads the order and checks the caller is its buyer or seller.
func orderParty(r *http.Request, orderSvc OrderService, id string) (*model.Order, error) {
	order, err := orderSvc.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	caller := mw.UserID(r.Context())
	if caller != order.BuyerID && caller != order.SellerID {
		return nil, fmt.Errorf("%w: not a party to this order", service.ErrForbidden)
	}
	return order, nil
}
