package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"agrimarket/internal/model"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
)

type productRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
	Quantity    int     `json:"quantity"`
	ImageURL    string  `json:"image_url"`
}

func (p productRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Price:       p.Price,
		Unit:        p.Unit,
		Quantity:    p.Quantity,
		ImageURL:    p.ImageURL,
	}
}

func ListProductsHandler(productSvc ProductService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		products, err := productSvc.List(r.Context(), service.ProductFilter{
			FarmerID: q.Get("farmer_id"),
			Category: q.Get("category"),
			Search:   q.Get("search"),
		})
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		if products == nil {
			products = []model.Product{}
		}
		writeJSON(w, http.StatusOK, products)
	}
}

func CreateProductHandler(productSvc ProductService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mw.Role(r.Context()) != model.RoleFarmer {
			writeError(w, http.StatusForbidden, "only farmers can list products")
			return
		}

		var req productRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := productSvc.Create(r.Context(), mw.UserID(r.Context()), req.input())
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

func GetProductHandler(productSvc ProductService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		p, err := productSvc.Get(r.Context(), id)
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func UpdateProductHandler(productSvc ProductService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		var req productRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := productSvc.Update(r.Context(), id, mw.UserID(r.Context()), req.input())
		if err != nil {
			fail(w, r, zl, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func DeleteProductHandler(productSvc ProductService, zl *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !validID(id) {
			writeError(w, http.StatusBadRequest, "invalid product id")
			return
		}

		if err := productSvc.Delete(r.Context(), id, mw.UserID(r.Context())); err != nil {
			fail(w, r, zl, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
