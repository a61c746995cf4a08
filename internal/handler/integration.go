package handler

import (
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"agrimarket/internal/integration"
)

const maxUploadSize = 10 << 20

type chatRequest struct {
	Message string                `json:"message"`
	History []integration.Message `json:"history"`
}

func parseCoord(s string) (*float64, bool) {
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

// WeatherHandler serves GET /api/weather?lat=&lon= or ?city=.
func WeatherHandler(weather WeatherProvider, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, okLat := parseCoord(q.Get("lat"))
		lon, okLon := parseCoord(q.Get("lon"))
		if !okLat || !okLon {
			writeError(w, http.StatusBadRequest, "lat and lon must be numbers")
			return
		}

		report, err := weather.Current(r.Context(), integration.Location{Lat: lat, Lon: lon, City: q.Get("city")})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func ReverseGeocodeHandler(geo Geocoder, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, okLat := parseCoord(q.Get("lat"))
		lon, okLon := parseCoord(q.Get("lon"))
		if !okLat || !okLon || lat == nil || lon == nil {
			writeError(w, http.StatusBadRequest, "lat and lon are required")
			return
		}

		place, err := geo.Reverse(r.Context(), *lat, *lon)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, place)
	}
}

func ChatHandler(chat ChatProvider, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		answer, err := chat.Ask(r.Context(), req.Message, req.History)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, answer)
	}
}

func SchemesHandler(chat ChatProvider, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := chat.Schemes(r.Context(), r.URL.Query().Get("state"), r.URL.Query().Get("category"))
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// QualityHandler accepts a multipart upload in the "image" field.
func QualityHandler(analyzer QualityAnalyzer, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		f, hdr, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file is required")
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read image")
			return
		}

		report, err := analyzer.Analyze(r.Context(), hdr.Filename, data)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
