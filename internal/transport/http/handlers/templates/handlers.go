package templatehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/templates"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

type Handler struct {
	Templates *templates.Store
	Audit     *audit.Service
}

func NewHandler(store *templates.Store, auditSvc *audit.Service) *Handler {
	return &Handler{Templates: store, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Get("/{templateID}", h.handleGet)
		r.With(middleware.RequireAdmin).Post("/", h.handleCreate)
		r.With(middleware.RequireAdmin).Put("/{templateID}", h.handleUpdate)
		r.With(middleware.RequireAdmin).Delete("/{templateID}", h.handleDelete)
	})
}

// handleList hides inactive templates from non-admins so the request form
// only offers letter types that accept submissions.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	includeInactive := user.IsAdmin() && r.URL.Query().Get("includeInactive") == "true"
	items, err := h.Templates.List(r.Context(), includeInactive)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "templates_list_failed", "failed to list templates", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.Templates.GetByID(r.Context(), chi.URLParam(r, "templateID"))
	if errors.Is(err, templates.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "template not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_get_failed", "failed to load template", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, tmpl, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload templates.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !h.validateUpsert(w, r, &payload) {
		return
	}

	tmpl, err := h.Templates.Create(r.Context(), payload)
	if errors.Is(err, templates.ErrDuplicate) {
		api.Fail(w, http.StatusConflict, "duplicate_template", "a template with this value already exists", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_create_failed", "failed to create template", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "template.create", "letter_template", tmpl.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, tmpl); err != nil {
		slog.Warn("audit template.create failed", "err", err)
	}
	api.Created(w, tmpl, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "templateID")

	var payload templates.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if !h.validateUpsert(w, r, &payload) {
		return
	}

	before, err := h.Templates.GetByID(r.Context(), id)
	if errors.Is(err, templates.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "template not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_update_failed", "failed to update template", middleware.GetRequestID(r.Context()))
		return
	}

	tmpl, err := h.Templates.Update(r.Context(), id, payload)
	if errors.Is(err, templates.ErrDuplicate) {
		api.Fail(w, http.StatusConflict, "duplicate_template", "a template with this value already exists", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_update_failed", "failed to update template", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "template.update", "letter_template", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, tmpl); err != nil {
		slog.Warn("audit template.update failed", "err", err)
	}
	api.Success(w, tmpl, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "templateID")

	err := h.Templates.Delete(r.Context(), id)
	if errors.Is(err, templates.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "template not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "template_delete_failed", "failed to delete template", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "template.delete", "letter_template", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit template.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) validateUpsert(w http.ResponseWriter, r *http.Request, payload *templates.UpsertInput) bool {
	payload.Value = strings.TrimSpace(strings.ToLower(payload.Value))

	v := shared.NewValidator()
	v.Required("label", payload.Label, "label is required")
	v.Required("value", payload.Value, "value is required")
	for i, field := range payload.Fields {
		if field.Name == "" {
			v.Add("fields", "field "+strconv.Itoa(i)+" is missing a name")
			continue
		}
		switch field.Type {
		case templates.FieldText, templates.FieldDate, templates.FieldSelect, "":
		default:
			v.Add("fields", "field "+field.Name+" has unknown type "+string(field.Type))
		}
		if field.Type == templates.FieldSelect && len(field.Options) == 0 {
			v.Add("fields", "select field "+field.Name+" needs options")
		}
	}
	return !v.Reject(w, middleware.GetRequestID(r.Context()))
}
