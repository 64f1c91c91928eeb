package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/sales-api/internal/common"
)

// Handler exposes product endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	def, maxLimit := h.service.Limits()
	page, limit := common.ParsePagination(r, def, maxLimit)
	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.writePage(w, result)
}

// ProductsByCategory handles GET /api/v1/products/category/{category}.
func (h *Handler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	def, maxLimit := h.service.Limits()
	page, limit := common.ParsePagination(r, def, maxLimit)
	result, err := h.service.ListByCategory(r.Context(), chi.URLParam(r, "category"), page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.writePage(w, result)
}

// Product handles GET /api/v1/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Create handles POST /api/v1/products.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Update handles PUT /api/v1/products/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in UpdateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Delete handles DELETE /api/v1/products/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	p, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

func (h *Handler) writePage(w http.ResponseWriter, result ProductPage) {
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Pagination.TotalItems))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": result.Pagination,
	})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return false
	}
	return true
}
