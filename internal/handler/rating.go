package handler

import (
	"net/http"

	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

type createRatingRequest struct {
	RaterID     string  `json:"rater_id"`
	RatedUserID string  `json:"rated_user_id"`
	OrderID     *string `json:"order_id"`
	Rating      int     `json:"rating"`
	Comment     string  `json:"comment"`
}

func CreateRatingHandler(ratingSvc RatingService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRatingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		raterID, err := actingAs(r, req.RaterID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if !validID(req.RatedUserID) {
			writeError(w, http.StatusBadRequest, "invalid rated user id")
			return
		}
		if req.OrderID != nil && !validID(*req.OrderID) {
			writeError(w, http.StatusBadRequest, "invalid order id")
			return
		}

		rating, err := ratingSvc.Create(r.Context(), service.CreateRatingInput{
			RaterID:     raterID,
			RatedUserID: req.RatedUserID,
			OrderID:     req.OrderID,
			Rating:      req.Rating,
			Comment:     req.Comment,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusCreated, rating)
	}
}

func ListRatingsHandler(ratingSvc RatingService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			userID = mw.UserID(r.Context())
		}

		ratings, err := ratingSvc.ListForUser(r.Context(), userID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if ratings == nil {
			ratings = []model.Rating{}
		}
		writeJSON(w, http.StatusOK, ratings)
	}
}
