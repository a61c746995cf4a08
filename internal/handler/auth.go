package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func RegisterHandler(authSvc AuthService, secret string, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password required")
			return
		}

		user, err := authSvc.Register(r.Context(), service.RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Role:     req.Role,
			Phone:    req.Phone,
			Location: req.Location,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}

		respondWithToken(w, r, zl, secret, user, http.StatusCreated)
	}
}

func LoginHandler(authSvc AuthService, secret string, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			fail(w, r, zl, err)
			return
		}

		respondWithToken(w, r, zl, secret, user, http.StatusOK)
	}
}

func respondWithToken(w http.ResponseWriter, r *http.Request, zl *zap.Logger, secret string, user *model.User, status int) {
	token, err := mw.IssueToken(secret, user.ID, user.Role, time.Now())
	if err != nil {
		zl.Error("token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, status, authResponse{Token: token, User: user})
}
