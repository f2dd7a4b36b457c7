package audithandler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/platform/metrics"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

type Handler struct {
	Service        *audit.Service
	Metrics        *metrics.Collector
	MetricsEnabled bool
}

func NewHandler(service *audit.Service, collector *metrics.Collector, metricsEnabled bool) *Handler {
	return &Handler{Service: service, Metrics: collector, MetricsEnabled: metricsEnabled}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth, middleware.RequireAdmin)
		r.Get("/audit/events", h.handleListEvents)
		if h.MetricsEnabled {
			r.Get("/metrics", h.handleMetrics)
		}
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 100, 500)
	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entityType"),
		ActorEmail: r.URL.Query().Get("actorEmail"),
	}
	includeDetails := r.URL.Query().Get("includeDetails") == "true"

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}

	events, err := h.Service.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}
