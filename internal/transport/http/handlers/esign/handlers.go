package esignhandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/esign"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

const maxWebhookBytes = 1 * 1024 * 1024

type Handler struct {
	Client *esign.Client
	Audit  *audit.Service
}

func NewHandler(client *esign.Client, auditSvc *audit.Service) *Handler {
	return &Handler{Client: client, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/esign", func(r chi.Router) {
		r.Post("/webhook", h.handleWebhook)
		r.Get("/callback", h.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth, middleware.RequireAdmin)
			r.Get("/auth-url", h.handleAuthURL)
			r.Get("/consent-url", h.handleConsentURL)
			r.Post("/auth", h.handleAuthCode)
			r.Post("/jwt", h.handleAuthJWT)
			r.Get("/session", h.handleSession)
		})
	})
}

type sessionView struct {
	Email       string `json:"email"`
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	BaseURI     string `json:"baseUri"`
}

func viewOf(session *esign.Session) sessionView {
	return sessionView{
		Email:       session.Email,
		AccountID:   session.AccountID,
		AccountName: session.AccountName,
		BaseURI:     session.BaseURI,
	}
}

func (h *Handler) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	if !h.Client.Configured() {
		api.Fail(w, http.StatusServiceUnavailable, "esign_not_configured", "signing provider is not configured", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"url": h.Client.AuthURL(user.Email)}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleConsentURL(w http.ResponseWriter, r *http.Request) {
	if !h.Client.Configured() {
		api.Fail(w, http.StatusServiceUnavailable, "esign_not_configured", "signing provider is not configured", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"url": h.Client.ConsentURL()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAuthCode(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "authorization code is required", middleware.GetRequestID(r.Context()))
		return
	}

	session, err := h.Client.ExchangeCode(r.Context(), payload.Code, user.Email)
	if err != nil {
		h.writeProviderError(w, r, err)
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "esign.auth", "esign_session", session.AccountID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit esign.auth failed", "err", err)
	}
	api.Success(w, viewOf(session), middleware.GetRequestID(r.Context()))
}

// handleAuthJWT runs the server-side grant for the configured impersonated
// user. A consent error carries the URL the admin must visit first.
func (h *Handler) handleAuthJWT(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	session, err := h.Client.AuthenticateJWT(r.Context(), user.Email)
	if err != nil {
		h.writeProviderError(w, r, err)
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "esign.jwt", "esign_session", session.AccountID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit esign.jwt failed", "err", err)
	}
	api.Success(w, viewOf(session), middleware.GetRequestID(r.Context()))
}

// handleCallback is the provider redirect target. The state parameter is
// the admin email the auth URL was issued for.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_callback", "code and state are required", middleware.GetRequestID(r.Context()))
		return
	}

	session, err := h.Client.ExchangeCode(r.Context(), code, state)
	if err != nil {
		h.writeProviderError(w, r, err)
		return
	}
	api.Success(w, viewOf(session), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	session, err := h.Client.SessionFor(r.Context(), user.Email)
	if errors.Is(err, esign.ErrAuthRequired) || errors.Is(err, esign.ErrNotConfigured) {
		api.Success(w, map[string]any{"active": false}, middleware.GetRequestID(r.Context()))
		return
	}
	var consentErr *esign.ConsentError
	if errors.As(err, &consentErr) {
		api.Success(w, map[string]any{"active": false, "consentUrl": consentErr.ConsentURL}, middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusBadGateway, "esign_session_failed", "failed to check signing session", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"active": true, "session": viewOf(session)}, middleware.GetRequestID(r.Context()))
}

// handleWebhook accepts provider event posts. Events are logged and
// acknowledged; the envelope-status endpoint is the source of truth for
// request state.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read webhook body", middleware.GetRequestID(r.Context()))
		return
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			EnvelopeID string `json:"envelopeId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		slog.Warn("unparseable signing webhook", "err", err)
	} else {
		slog.Info("signing webhook received", "event", event.Event, "envelopeId", event.Data.EnvelopeID)
	}

	if err := h.Audit.Record(r.Context(), "", "esign.webhook", "envelope", event.Data.EnvelopeID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, json.RawMessage(body)); err != nil {
		slog.Warn("audit esign.webhook failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "accepted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	var consentErr *esign.ConsentError
	var statusErr *esign.StatusError
	switch {
	case errors.Is(err, esign.ErrNotConfigured):
		api.Fail(w, http.StatusServiceUnavailable, "esign_not_configured", "signing provider is not configured", middleware.GetRequestID(r.Context()))
	case errors.As(err, &consentErr):
		api.FailWithDetails(w, http.StatusBadRequest, "esign_consent_required", "signing provider consent required", map[string]string{"consentUrl": consentErr.ConsentURL}, middleware.GetRequestID(r.Context()))
	case errors.As(err, &statusErr):
		api.Fail(w, http.StatusBadGateway, "esign_provider_error", "signing provider rejected the request", middleware.GetRequestID(r.Context()))
	default:
		api.Fail(w, http.StatusBadGateway, "esign_auth_failed", "failed to authenticate with the signing provider", middleware.GetRequestID(r.Context()))
	}
}
