package authhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/auth"
	"letterdesk/internal/domain/employee"
	"letterdesk/internal/domain/notify"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

const resetTokenTTL = time.Hour

type Handler struct {
	Employees *employee.Store
	Notify    *notify.Service
	Audit     *audit.Service
	JWTSecret string
}

func NewHandler(employees *employee.Store, notifier *notify.Service, auditSvc *audit.Service, jwtSecret string) *Handler {
	return &Handler{Employees: employees, Notify: notifier, Audit: auditSvc, JWTSecret: jwtSecret}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/password-reset/request", h.handlePasswordResetRequest)
		r.Post("/password-reset/confirm", h.handlePasswordResetConfirm)
		r.With(middleware.RequireAuth).Get("/me", h.handleMe)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))

	v := shared.NewValidator()
	v.Required("email", payload.Email, "email is required")
	v.Required("password", payload.Password, "password is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, hash, err := h.Employees.PasswordHashByEmail(r.Context(), payload.Email)
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to log in", middleware.GetRequestID(r.Context()))
		return
	}
	if hash == "" || auth.CheckPassword(hash, payload.Password) != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", middleware.GetRequestID(r.Context()))
		return
	}

	emp, err := h.Employees.GetByID(r.Context(), id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to log in", middleware.GetRequestID(r.Context()))
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, auth.Claims{
		UserID:     emp.ID,
		EmployeeID: emp.EmployeeID,
		Email:      emp.Email,
		Name:       emp.Name,
		Role:       emp.Role,
	}, auth.TokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to issue token", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), emp.Email, "auth.login", "employee", emp.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.login failed", "err", err)
	}
	api.Success(w, map[string]any{"token": token, "user": emp}, middleware.GetRequestID(r.Context()))
}

// handlePasswordResetRequest always answers 200 so the endpoint cannot be
// used to probe which addresses exist.
func (h *Handler) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.Email = strings.TrimSpace(strings.ToLower(payload.Email))
	if payload.Email == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "email is required", middleware.GetRequestID(r.Context()))
		return
	}

	emp, err := h.Employees.GetByEmail(r.Context(), payload.Email)
	if err == nil {
		token := uuid.NewString()
		expiry := time.Now().Add(resetTokenTTL)
		if err := h.Employees.SetResetToken(r.Context(), emp.ID, token, expiry); err != nil {
			slog.Warn("failed to store password reset token", "err", err)
		} else {
			h.Notify.PasswordReset(r.Context(), emp.Email, token)
		}
	} else if !errors.Is(err, employee.ErrNotFound) {
		slog.Warn("password reset lookup failed", "err", err)
	}

	api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("token", payload.Token, "token is required")
	if len(payload.NewPassword) < 8 {
		v.Add("newPassword", "password must be at least 8 characters")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Employees.ConsumeResetToken(r.Context(), payload.Token, time.Now())
	if errors.Is(err, employee.ErrInvalidResetToken) {
		api.Fail(w, http.StatusBadRequest, "invalid_token", "reset token is invalid or expired", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "password_reset_failed", "failed to reset password", middleware.GetRequestID(r.Context()))
		return
	}

	hash, err := auth.HashPassword(payload.NewPassword)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "password_reset_failed", "failed to reset password", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Employees.SetPassword(r.Context(), id, hash); err != nil {
		api.Fail(w, http.StatusInternalServerError, "password_reset_failed", "failed to reset password", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), "", "auth.password_reset", "employee", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit auth.password_reset failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Employees.GetByID(r.Context(), user.UserID)
	if errors.Is(err, employee.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "me_failed", "failed to load profile", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}
