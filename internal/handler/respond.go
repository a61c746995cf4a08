package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agrimarket/internal/integration"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps service and integration errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, integration.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateApplication),
		errors.Is(err, service.ErrRequestClosed),
		errors.Is(err, service.ErrSingleFarmerOnly),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrAlreadyDecided):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, integration.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. 5xx responses carry a generic message and
// the cause is logged.
func fail(w http.ResponseWriter, r *http.Request, zl *zap.Logger, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		zl.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, "internal error")
	case http.StatusBadGateway:
		zl.Warn("upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, status, "external service is unavailable, please try again later")
	default:
		writeError(w, status, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// actingAs resolves the user a request acts for. A claimed id from the body or
// query must match the token; an empty claim means the caller.
func actingAs(r *http.Request, claimed string) (string, error) {
	caller := mw.UserID(r.Context())
	if claimed == "" || claimed == caller {
		return caller, nil
	}
	return "", fmt.Errorf("%w: acting for another user", service.ErrForbidden)
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", service.ErrValidation, s)
	}
	return t, nil
}
