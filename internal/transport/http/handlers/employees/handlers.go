package employeehandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/auth"
	"letterdesk/internal/domain/employee"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

type Handler struct {
	Employees *employee.Store
	Audit     *audit.Service
}

func NewHandler(employees *employee.Store, auditSvc *audit.Service) *Handler {
	return &Handler{Employees: employees, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Get("/{employeeID}", h.handleGet)
		r.With(middleware.RequireAdmin).Post("/", h.handleCreate)
		r.With(middleware.RequireAdmin).Put("/{employeeID}", h.handleUpdate)
		r.With(middleware.RequireAdmin).Patch("/{employeeID}/role", h.handleSetRole)
		r.With(middleware.RequireAdmin).Delete("/{employeeID}", h.handleDelete)
		r.With(middleware.RequireAdmin).Get("/export", h.handleExport)
		r.With(middleware.RequireAdmin).Post("/import", h.handleImport)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.List(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, employees, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id := chi.URLParam(r, "employeeID")
	emp, err := h.Employees.GetByID(r.Context(), id)
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_get_failed", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}
	if !user.IsAdmin() && emp.ID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "admin role required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload employee.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))

	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "employeeId is required")
	v.Required("name", payload.Name, "name is required")
	v.Required("email", payload.Email, "email is required")
	startDate, ok := parseOptionalDate(v, "startDate", payload.StartDate)
	if !ok || v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	passwordHash := ""
	if payload.Password != "" {
		hash, err := auth.HashPassword(payload.Password)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", middleware.GetRequestID(r.Context()))
			return
		}
		passwordHash = hash
	}

	emp, err := h.Employees.Create(r.Context(), payload, passwordHash, startDate)
	if errors.Is(err, employee.ErrDuplicate) {
		api.Fail(w, http.StatusConflict, "duplicate_employee", "employee id or email already exists", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "employee.create", "employee", emp.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, emp); err != nil {
		slog.Warn("audit employee.create failed", "err", err)
	}
	api.Created(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "employeeID")

	var payload employee.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	v.Required("email", payload.Email, "email is required")
	startDate, ok := parseOptionalDate(v, "startDate", payload.StartDate)
	if !ok || v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Employees.GetByID(r.Context(), id)
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", middleware.GetRequestID(r.Context()))
		return
	}

	emp, err := h.Employees.Update(r.Context(), id, payload, startDate)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "employee.update", "employee", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, emp); err != nil {
		slog.Warn("audit employee.update failed", "err", err)
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	if !user.IsSuperAdmin() {
		api.Fail(w, http.StatusForbidden, "super_admin_required", "only the bootstrap administrator may change roles", middleware.GetRequestID(r.Context()))
		return
	}
	id := chi.URLParam(r, "employeeID")

	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Role != auth.RoleUser && payload.Role != auth.RoleAdmin {
		api.Fail(w, http.StatusBadRequest, "invalid_role", "role must be user or admin", middleware.GetRequestID(r.Context()))
		return
	}

	err := h.Employees.SetRole(r.Context(), id, payload.Role)
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, employee.ErrSuperAdminDemote) {
		api.Fail(w, http.StatusForbidden, "super_admin_protected", "the bootstrap administrator cannot be demoted", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_role_failed", "failed to change role", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "employee.role", "employee", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit employee.role failed", "err", err)
	}
	api.Success(w, map[string]string{"id": id, "role": payload.Role}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "employeeID")

	err := h.Employees.Delete(r.Context(), id)
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, employee.ErrSuperAdminDemote) {
		api.Fail(w, http.StatusForbidden, "super_admin_protected", "the bootstrap administrator cannot be removed", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_delete_failed", "failed to delete employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "employee.delete", "employee", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit employee.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.List(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employees_export_failed", "failed to export employees", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="employees.csv"`)
	if err := employee.WriteRosterCSV(w, employees); err != nil {
		slog.Warn("roster export write failed", "err", err)
	}
}

// handleImport upserts roster rows from a CSV body keyed by employee id.
// Rows that fail are reported per-line instead of aborting the import.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	inputs, err := employee.ParseRosterCSV(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_csv", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}

	var imported int
	var failures []map[string]string
	for i, input := range inputs {
		v := shared.NewValidator()
		startDate, ok := parseOptionalDate(v, "startDate", input.StartDate)
		if !ok || input.EmployeeID == "" || input.Name == "" || input.Email == "" {
			failures = append(failures, map[string]string{
				"row":    strconv.Itoa(i + 2),
				"reason": "missing employeeId, name or email, or bad startDate",
			})
			continue
		}
		if _, err := h.Employees.Upsert(r.Context(), input, startDate); err != nil {
			failures = append(failures, map[string]string{"row": strconv.Itoa(i + 2), "reason": err.Error()})
			continue
		}
		imported++
	}

	if err := h.Audit.Record(r.Context(), user.Email, "employee.import", "employee", "", middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]int{"imported": imported, "failed": len(failures)}); err != nil {
		slog.Warn("audit employee.import failed", "err", err)
	}
	api.Success(w, map[string]any{"imported": imported, "failures": failures}, middleware.GetRequestID(r.Context()))
}

func parseOptionalDate(v *shared.Validator, field, raw string) (*time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	parsed, err := shared.ParseDate(raw)
	if err != nil {
		v.Add(field, "must be an RFC3339 or YYYY-MM-DD date")
		return nil, false
	}
	return &parsed, true
}
