package analytics

import (
	"net/http"

	"github.com/noah-isme/sales-api/internal/common"
)

// Handler exposes statistics read endpoints.
type Handler struct {
	Svc *Service
}

// Stats handles GET /api/v1/sales/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	overview, err := h.Svc.Overview(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": overview})
}

// CurrentMonth handles GET /api/v1/sales/stats/current-month.
func (h *Handler) CurrentMonth(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	items, err := h.Svc.CurrentMonthSales(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}
