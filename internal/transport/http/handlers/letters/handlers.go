package letterhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/auth"
	"letterdesk/internal/domain/docgen"
	"letterdesk/internal/domain/esign"
	"letterdesk/internal/domain/letters"
	"letterdesk/internal/transport/http/api"
	"letterdesk/internal/transport/http/middleware"
	"letterdesk/internal/transport/http/shared"
)

type Handler struct {
	Service *letters.Service
	Audit   *audit.Service
}

func NewHandler(service *letters.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/letter-requests", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{requestID}", h.handleGet)
		r.With(middleware.RequireAdmin).Patch("/{requestID}/decision", h.handleDecision)
		r.With(middleware.RequireAdmin).Post("/{requestID}/generate", h.handleGenerate)
		r.Get("/{requestID}/download", h.handleDownload)
		r.Get("/{requestID}/preview", h.handlePreview)
		r.Post("/{requestID}/withdraw", h.handleWithdraw)
		r.Post("/{requestID}/retake", h.handleRetake)
		r.With(middleware.RequireAdmin).Get("/{requestID}/envelope-status", h.handleEnvelopeStatus)
		r.With(middleware.RequireAdmin).Delete("/{requestID}", h.handleDelete)
	})
	r.With(middleware.RequireAuth).Post("/pdf/fill-template", h.handleFillTemplate)
}

// handleList shows admins every request. Everyone else only sees their own
// regardless of the employeeId filter they pass.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	filter := letters.Filter{
		Status:     r.URL.Query().Get("status"),
		EmployeeID: r.URL.Query().Get("employeeId"),
		LetterType: r.URL.Query().Get("letterType"),
	}
	if !user.IsAdmin() {
		filter.EmployeeID = user.EmployeeID
	}
	if filter.Status != "" && !letters.Status(filter.Status).Valid() {
		api.Fail(w, http.StatusBadRequest, "invalid_status", "unknown status filter", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 20, 100)
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "letters_list_failed", "failed to list letter requests", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload letters.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("letterType", payload.LetterType, "letterType is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	emp, err := h.Service.Employees.GetByEmployeeID(r.Context(), user.EmployeeID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "letter_create_failed", "failed to create letter request", middleware.GetRequestID(r.Context()))
		return
	}

	req, err := h.Service.Submit(r.Context(), emp, payload)
	var validationErr *letters.ValidationError
	switch {
	case errors.Is(err, letters.ErrUnknownLetterType):
		api.Fail(w, http.StatusBadRequest, "unknown_letter_type", "no such letter type", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, letters.ErrInactiveLetterType):
		api.Fail(w, http.StatusBadRequest, "letter_type_inactive", "this letter type is not accepting requests", middleware.GetRequestID(r.Context()))
		return
	case errors.As(err, &validationErr):
		api.FailWithDetails(w, http.StatusBadRequest, "validation_failed", "letter details failed validation", validationErr.Issues, middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "letter_create_failed", "failed to create letter request", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "letter.create", "letter_request", req.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, req); err != nil {
		slog.Warn("audit letter.create failed", "err", err)
	}
	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	_, req, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requestID")

	var payload letters.DecisionInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("decision", payload.Decision, "decision is required")
	v.Enum("decision", payload.Decision, []string{string(letters.StatusApproved), string(letters.StatusRejected)}, "decision must be approved or rejected")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	req, err := h.Service.Decide(r.Context(), id, payload, user.Name)
	var signingErr *letters.SigningError
	var consentErr *esign.ConsentError
	switch {
	case errors.Is(err, letters.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "letter request not found", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, letters.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, letters.ErrLetterNotGenerated):
		api.Fail(w, http.StatusBadRequest, "letter_not_generated", "generate the letter before sending it for signing", middleware.GetRequestID(r.Context()))
		return
	case errors.As(err, &signingErr):
		// The approval is already recorded; SigningError wraps whatever the
		// provider returned, so it must be checked before the session cases.
		api.FailWithDetails(w, http.StatusBadGateway, "esign_send_failed", "decision recorded but sending for signing failed", signingErr.Request, middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, esign.ErrAuthRequired), errors.Is(err, esign.ErrNotConfigured):
		api.Fail(w, http.StatusBadRequest, "esign_auth_required", "no active signing session for this admin", middleware.GetRequestID(r.Context()))
		return
	case errors.As(err, &consentErr):
		api.FailWithDetails(w, http.StatusBadRequest, "esign_consent_required", "signing provider consent required", map[string]string{"consentUrl": consentErr.ConsentURL}, middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "decision_failed", "failed to record decision", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "letter.decision", "letter_request", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit letter.decision failed", "err", err)
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requestID")
	legacy, _ := strconv.ParseBool(r.URL.Query().Get("legacy"))

	req, err := h.Service.Generate(r.Context(), id, legacy)
	switch {
	case errors.Is(err, letters.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "letter request not found", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, docgen.ErrTemplateNotFound):
		api.Fail(w, http.StatusBadRequest, "template_not_found", "no template for this letter type", middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "generate_failed", "failed to generate letter", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "letter.generate", "letter_request", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]bool{"legacy": legacy}); err != nil {
		slog.Warn("audit letter.generate failed", "err", err)
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	_, req, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	if req.GeneratedLetterPath == nil || *req.GeneratedLetterPath == "" {
		api.Fail(w, http.StatusNotFound, "letter_not_generated", "letter has not been generated yet", middleware.GetRequestID(r.Context()))
		return
	}
	file, err := os.Open(*req.GeneratedLetterPath)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "letter_file_missing", "generated letter file is missing", middleware.GetRequestID(r.Context()))
		return
	}
	defer file.Close()

	filename := "letter.docx"
	if req.GeneratedLetterFilename != nil && *req.GeneratedLetterFilename != "" {
		filename = *req.GeneratedLetterFilename
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeContent(w, r, filename, time.Time{}, file)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, req, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	out, err := h.Service.PreviewPDF(r.Context(), req.ID)
	if errors.Is(err, docgen.ErrTemplateNotFound) {
		api.Fail(w, http.StatusNotFound, "template_not_found", "no PDF template for this letter type", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "preview_failed", "failed to render preview", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(out)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requestID")

	req, err := h.Service.Withdraw(r.Context(), id, user.EmployeeID, user.IsAdmin())
	if !h.writeLifecycleError(w, r, err) {
		return
	}
	if err := h.Audit.Record(r.Context(), user.Email, "letter.withdraw", "letter_request", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit letter.withdraw failed", "err", err)
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRetake(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requestID")

	req, err := h.Service.Retake(r.Context(), id, user.EmployeeID, user.IsAdmin())
	if !h.writeLifecycleError(w, r, err) {
		return
	}
	if err := h.Audit.Record(r.Context(), user.Email, "letter.retake", "letter_request", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit letter.retake failed", "err", err)
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEnvelopeStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requestID")

	adminEmail := r.URL.Query().Get("adminEmail")
	if adminEmail == "" {
		adminEmail = user.Email
	}

	req, err := h.Service.PollEnvelope(r.Context(), id, adminEmail)
	switch {
	case errors.Is(err, letters.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "letter request not found", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, letters.ErrLetterNotGenerated):
		api.Fail(w, http.StatusBadRequest, "no_envelope", "request has no signing envelope", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, esign.ErrAuthRequired), errors.Is(err, esign.ErrNotConfigured):
		api.Fail(w, http.StatusBadRequest, "esign_auth_required", "no active signing session for this admin", middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		api.Fail(w, http.StatusBadGateway, "envelope_status_failed", "failed to query envelope status", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	id := chi.URLParam(r, "requestID")

	err := h.Service.Delete(r.Context(), id)
	if errors.Is(err, letters.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "letter request not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "letter_delete_failed", "failed to delete letter request", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.Email, "letter.delete", "letter_request", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit letter.delete failed", "err", err)
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

// handleFillTemplate renders an ad-hoc payload straight onto the PDF
// template for its letter type without creating a request.
func (h *Handler) handleFillTemplate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload struct {
		LetterType       string            `json:"letterType"`
		EmployeeID       string            `json:"employeeId"`
		EmployeeName     string            `json:"employeeName"`
		Details          map[string]string `json:"details"`
		EmployeeComments string            `json:"employeeComments"`
		AdminNotes       string            `json:"adminNotes"`
		Status           string            `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("letterType", payload.LetterType, "letterType is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	if payload.EmployeeID == "" || !user.IsAdmin() {
		payload.EmployeeID = user.EmployeeID
		payload.EmployeeName = user.Name
	}

	out, err := h.Service.FillPDF(r.Context(), docgen.Request{
		LetterType:       payload.LetterType,
		EmployeeID:       payload.EmployeeID,
		EmployeeName:     payload.EmployeeName,
		RequestDate:      time.Now(),
		Details:          payload.Details,
		EmployeeComments: payload.EmployeeComments,
		AdminNotes:       payload.AdminNotes,
		Status:           payload.Status,
	})
	if errors.Is(err, docgen.ErrTemplateNotFound) {
		api.Fail(w, http.StatusNotFound, "template_not_found", "no PDF template for this letter type", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "fill_template_failed", "failed to fill template", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(out)
}

// loadVisible fetches the request and enforces that non-admins only see
// their own.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) (auth.UserContext, *letters.LetterRequest, bool) {
	user, authed := middleware.GetUser(r.Context())
	if !authed {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return user, nil, false
	}
	id := chi.URLParam(r, "requestID")
	req, err := h.Service.Get(r.Context(), id)
	if errors.Is(err, letters.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "letter request not found", middleware.GetRequestID(r.Context()))
		return user, nil, false
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "letter_get_failed", "failed to load letter request", middleware.GetRequestID(r.Context()))
		return user, nil, false
	}
	if !user.IsAdmin() && req.EmployeeID != user.EmployeeID {
		api.Fail(w, http.StatusForbidden, "forbidden", "not your letter request", middleware.GetRequestID(r.Context()))
		return user, nil, false
	}
	return user, req, true
}

// writeLifecycleError maps common lifecycle errors; returns true when err
// was nil and the caller should continue.
func (h *Handler) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, letters.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "letter request not found", middleware.GetRequestID(r.Context()))
	case errors.Is(err, letters.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not your letter request", middleware.GetRequestID(r.Context()))
	case errors.Is(err, letters.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), middleware.GetRequestID(r.Context()))
	default:
		api.Fail(w, http.StatusInternalServerError, "letter_update_failed", "failed to update letter request", middleware.GetRequestID(r.Context()))
	}
	return false
}
