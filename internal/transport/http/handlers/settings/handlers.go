package settingshandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/settings"
	"letterdesk/internal/platform/email"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

const maxSettingBytes = 64 * 1024

type Handler struct {
	Settings *settings.Store
	Mail     *email.Manager
	Audit    *audit.Service
}

func NewHandler(store *settings.Store, mail *email.Manager, auditSvc *audit.Service) *Handler {
	return &Handler{Settings: store, Mail: mail, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Use(middleware.RequireAuth, middleware.RequireAdmin)
		r.Get("/{key}", h.handleGet)
		r.Put("/{key}", h.handlePut)
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !settings.KnownKey(key) {
		api.Fail(w, http.StatusNotFound, "unknown_setting", "unknown settings key", middleware.GetRequestID(r.Context()))
		return
	}
	value, err := h.Settings.Get(r.Context(), key)
	if errors.Is(err, settings.ErrNotFound) {
		api.Success(w, map[string]any{"key": key, "value": map[string]any{}}, middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "setting_get_failed", "failed to load setting", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"key": key, "value": value}, middleware.GetRequestID(r.Context()))
}

// handlePut stores the raw JSON value. SMTP updates also reconfigure the
// live mailer so the change takes effect without a restart.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	key := chi.URLParam(r, "key")
	if !settings.KnownKey(key) {
		api.Fail(w, http.StatusNotFound, "unknown_setting", "unknown settings key", middleware.GetRequestID(r.Context()))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingBytes))
	if err != nil || !json.Valid(body) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "value must be valid JSON", middleware.GetRequestID(r.Context()))
		return
	}

	if key == settings.KeySMTP {
		var smtp email.Settings
		if err := json.Unmarshal(body, &smtp); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "malformed SMTP settings", middleware.GetRequestID(r.Context()))
			return
		}
		h.Mail.Configure(smtp)
	}

	if err := h.Settings.Set(r.Context(), key, body); err != nil {
		api.Fail(w, http.StatusInternalServerError, "setting_put_failed", "failed to store setting", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "settings.update", "setting", key, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, json.RawMessage(body)); err != nil {
		slog.Warn("audit settings.update failed", "err", err)
	}
	api.Success(w, map[string]any{"key": key, "value": json.RawMessage(body)}, middleware.GetRequestID(r.Context()))
}
