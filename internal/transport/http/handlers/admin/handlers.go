package adminhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"payrun/internal/domain/auth"
	"payrun/internal/platform/metrics"
	"payrun/internal/transport/http/api"
	"payrun/internal/transport/http/middleware"
)

type Handler struct {
	Metrics *metrics.Collector
	Perms   middleware.PermissionStore
}

func NewHandler(collector *metrics.Collector, perms middleware.PermissionStore) *Handler {
	return &Handler{Metrics: collector, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Get("/admin/metrics", h.handleMetrics)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}
