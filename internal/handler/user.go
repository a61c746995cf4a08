package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

type updateUserRequest struct {
	Name      *string  `json:"name"`
	Phone     *string  `json:"phone"`
	Location  *string  `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func GetUserHandler(userSvc UserService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}

		user, err := userSvc.Get(r.Context(), id)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func UpdateUserHandler(userSvc UserService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		if id != mw.UserID(r.Context()) {
			writeError(w, http.StatusForbidden, service.ErrForbidden.Error())
			return
		}

		var req updateUserRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := userSvc.Update(r.Context(), id, service.UpdateUserInput{
			Name:      req.Name,
			Phone:     req.Phone,
			Location:  req.Location,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// UserStatsHandler serves GET /api/user-stats?userId=&userType=. Both default to the caller.
func UserStatsHandler(statsSvc StatsService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			userID = mw.UserID(r.Context())
		}
		userType := r.URL.Query().Get("userType")
		if userType == "" {
			userType = mw.Role(r.Context())
		}

		stats, err := statsSvc.ForUser(r.Context(), userID, userType)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
