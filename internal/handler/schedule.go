package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

type createScheduleRequest struct {
	BuyerID              string   `json:"buyer_id"`
	ProductName          string   `json:"product_name"`
	Quantity             int      `json:"quantity"`
	Frequency            string   `json:"frequency"`
	ScheduleDay          *int     `json:"schedule_day"`
	NextExecutionDate    string   `json:"next_execution_date"`
	DaysBeforeNeeded     int      `json:"days_before_needed"`
	MaxPricePerUnit      *float64 `json:"max_price_per_unit"`
	AllowMultipleFarmers bool     `json:"allow_multiple_farmers"`
	Description          string   `json:"description"`
}

type updateScheduleRequest struct {
	Quantity             *int     `json:"quantity"`
	Frequency            *string  `json:"frequency"`
	ScheduleDay          *int     `json:"schedule_day"`
	DaysBeforeNeeded     *int     `json:"days_before_needed"`
	MaxPricePerUnit      *float64 `json:"max_price_per_unit"`
	AllowMultipleFarmers *bool    `json:"allow_multiple_farmers"`
	Description          *string  `json:"description"`
	IsActive             *bool    `json:"is_active"`
}

type processRequest struct {
	Force bool `json:"force"`
}

type processResponse struct {
	Success bool `json:"success"`
	*service.ProcessResult
}

func CreateScheduleHandler(scheduleSvc ScheduleService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		buyerID, err := actingAs(r, req.BuyerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if req.NextExecutionDate == "" {
			writeError(w, http.StatusBadRequest, "next_execution_date is required")
			return
		}
		next, err := parseDate(req.NextExecutionDate)
		if err != nil {
			fail(w, r, zl, err)
			return
		}

		sch, err := scheduleSvc.Create(r.Context(), service.CreateScheduleInput{
			BuyerID:              buyerID,
			ProductName:          req.ProductName,
			Quantity:             req.Quantity,
			Frequency:            req.Frequency,
			ScheduleDay:          req.ScheduleDay,
			NextExecutionDate:    next,
			DaysBeforeNeeded:     req.DaysBeforeNeeded,
			MaxPricePerUnit:      req.MaxPricePerUnit,
			AllowMultipleFarmers: req.AllowMultipleFarmers,
			Description:          req.Description,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusCreated, sch)
	}
}

func ListSchedulesHandler(scheduleSvc ScheduleService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actingAs(r, r.URL.Query().Get("buyer_id"))
		if err != nil {
			fail(w, r, zl, err)
			return
		}

		schedules, err := scheduleSvc.ListByBuyer(r.Context(), buyerID)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if schedules == nil {
			schedules = []model.OrderSchedule{}
		}
		writeJSON(w, http.StatusOK, schedules)
	}
}

func UpdateScheduleHandler(scheduleSvc ScheduleService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid schedule id")
			return
		}

		var req updateScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sch, err := scheduleSvc.Update(r.Context(), id, mw.UserID(r.Context()), service.UpdateScheduleInput{
			Quantity:             req.Quantity,
			Frequency:            req.Frequency,
			ScheduleDay:          req.ScheduleDay,
			DaysBeforeNeeded:     req.DaysBeforeNeeded,
			MaxPricePerUnit:      req.MaxPricePerUnit,
			AllowMultipleFarmers: req.AllowMultipleFarmers,
			Description:          req.Description,
			IsActive:             req.IsActive,
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, sch)
	}
}

func DeleteScheduleHandler(scheduleSvc ScheduleService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid schedule id")
			return
		}

		if err := scheduleSvc.Delete(r.Context(), id, mw.UserID(r.Context())); err != nil {
			fail(w, r, zl, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DueSchedulesHandler lists what a process run would fire, without firing it.
func DueSchedulesHandler(scheduleSvc ScheduleService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, err := scheduleSvc.Due(r.Context(), time.Now())
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if due == nil {
			due = []model.OrderSchedule{}
		}
		writeJSON(w, http.StatusOK, due)
	}
}

// ProcessSchedulesHandler serves POST /api/schedules/process. An empty body means force=false.
func ProcessSchedulesHandler(scheduleSvc ScheduleService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := decodeOptional(r.Body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		res, err := scheduleSvc.Process(r.Context(), time.Now(), req.Force)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if res.Results == nil {
			res.Results = []service.ScheduleResult{}
		}
		writeJSON(w, http.StatusOK, processResponse{Success: true, ProcessResult: res})
	}
}

func decodeOptional(body io.Reader, dst any) error {
	err := json.NewDecoder(body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
