package letters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"letterdesk/internal/domain/docgen"
	"letterdesk/internal/domain/employee"
	"letterdesk/internal/domain/esign"
	"letterdesk/internal/domain/notify"
	"letterdesk/internal/domain/templates"
	"letterdesk/internal/platform/metrics"
)

var (
	ErrForbidden          = errors.New("not allowed for this request")
	ErrUnknownLetterType  = errors.New("unknown letter type")
	ErrInactiveLetterType = errors.New("letter type is not accepting requests")
	ErrLetterNotGenerated = errors.New("letter has not been generated yet")
)

// ValidationError carries per-field issues from details validation.
type ValidationError struct {
	Issues []templates.FieldIssue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("letter details failed validation (%d issues)", len(e.Issues))
}

// SigningError means the decision was recorded but handing the letter to
// the signing provider failed. The request stays approved.
type SigningError struct {
	Request *LetterRequest
	Err     error
}

func (e *SigningError) Error() string {
	return "sending for signing failed: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error { return e.Err }

type Service struct {
	Store        *Store
	Templates    *templates.Store
	Employees    *employee.Store
	Registry     *docgen.Registry
	ESign        *esign.Client
	Notify       *notify.Service
	Metrics      *metrics.Collector
	GeneratedDir string

	now func() time.Time
}

func NewService(store *Store, tmpl *templates.Store, emps *employee.Store, registry *docgen.Registry, signer *esign.Client, notifier *notify.Service, collector *metrics.Collector, generatedDir string) *Service {
	return &Service{
		Store:        store,
		Templates:    tmpl,
		Employees:    emps,
		Registry:     registry,
		ESign:        signer,
		Notify:       notifier,
		Metrics:      collector,
		GeneratedDir: generatedDir,
		now:          time.Now,
	}
}

// Submit validates the details against the letter type's field definitions
// and records a new pending request. Admins are notified best-effort.
func (s *Service) Submit(ctx context.Context, emp *employee.Employee, input SubmitInput) (*LetterRequest, error) {
	tmpl, err := s.Templates.GetByValue(ctx, input.LetterType)
	if errors.Is(err, templates.ErrNotFound) {
		return nil, ErrUnknownLetterType
	}
	if err != nil {
		return nil, err
	}
	if !tmpl.IsActive {
		return nil, ErrInactiveLetterType
	}
	if issues := templates.ValidateDetails(tmpl.Fields, input.Details); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	req, err := s.Store.Create(ctx, emp.EmployeeID, emp.Name, input.LetterType, input.Details, input.EmployeeComments)
	if err != nil {
		return nil, err
	}
	s.Metrics.LetterCreated()

	admins, err := s.Employees.AdminEmails(ctx)
	if err != nil {
		slog.Warn("failed to load admin emails for notification", "error", err)
	} else {
		s.Notify.RequestSubmitted(ctx, admins, emp.Name, input.LetterType, req.ID)
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id string) (*LetterRequest, error) {
	return s.Store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]LetterRequest, int, error) {
	items, err := s.Store.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Decide approves or rejects a request. When the decision is an approval
// and the input names an admin e-sign account, the generated letter is also
// handed to the signing provider: a missing provider session rejects the
// whole update, while an envelope failure after approval is reported as a
// SigningError with the request left approved.
func (s *Service) Decide(ctx context.Context, id string, input DecisionInput, actorName string) (*LetterRequest, error) {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var event Event
	switch input.Decision {
	case string(StatusApproved):
		event = EventApprove
	case string(StatusRejected):
		event = EventReject
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, input.Decision)
	}
	next, err := Next(req.Status, event)
	if err != nil {
		return nil, err
	}

	sendForSigning := event == EventApprove && input.AdminEmail != ""

	var session *esign.Session
	if sendForSigning {
		if !Can(next, EventSendForSigning) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, next, EventSendForSigning)
		}
		if req.GeneratedLetterPath == nil || *req.GeneratedLetterPath == "" {
			return nil, ErrLetterNotGenerated
		}
		session, err = s.ESign.SessionFor(ctx, input.AdminEmail)
		if err != nil {
			return nil, err
		}
	}

	decidedAt := s.now()
	if err := s.Store.UpdateDecision(ctx, id, next, input.AdminNotes, actorName, decidedAt); err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, req, string(next), input.AdminNotes)

	if sendForSigning {
		if err := s.sendForSigning(ctx, req, session, input.ReturnURL); err != nil {
			approved, getErr := s.Store.GetByID(ctx, id)
			if getErr != nil {
				approved = req
			}
			return nil, &SigningError{Request: approved, Err: err}
		}
	}
	return s.Store.GetByID(ctx, id)
}

func (s *Service) sendForSigning(ctx context.Context, req *LetterRequest, session *esign.Session, returnURL string) error {
	emp, err := s.Employees.GetByEmployeeID(ctx, req.EmployeeID)
	if err != nil {
		return fmt.Errorf("load signer: %w", err)
	}
	document, err := os.ReadFile(*req.GeneratedLetterPath)
	if err != nil {
		return fmt.Errorf("read generated letter: %w", err)
	}

	docName := req.LetterType + ".docx"
	if req.GeneratedLetterFilename != nil && *req.GeneratedLetterFilename != "" {
		docName = *req.GeneratedLetterFilename
	}
	envelopeID, envelopeStatus, err := s.ESign.CreateEnvelope(ctx, session, esign.EnvelopeInput{
		Document:     document,
		DocumentName: docName,
		SignerName:   emp.Name,
		SignerEmail:  emp.Email,
		Subject:      "Please sign: " + req.LetterType + " letter",
	})
	if err != nil {
		return err
	}

	signingURL, err := s.ESign.RecipientView(ctx, session, envelopeID, emp.Name, emp.Email, returnURL)
	if err != nil {
		slog.Warn("recipient view unavailable, envelope was still sent",
			"envelopeId", envelopeID, "error", err)
		signingURL = ""
	}

	if err := s.Store.UpdateEnvelope(ctx, req.ID, StatusSentForSigning, envelopeID, envelopeStatus, signingURL, s.now()); err != nil {
		return err
	}
	s.Metrics.EnvelopeSent()
	return nil
}

// Generate fills the letter's template and stores the result on disk.
// legacy switches from {{PLACEHOLDER}} substitution to the fixed literal
// tokens older templates carry. A pending request moves to
// letter_generated; any later regeneration keeps the current status.
func (s *Service) Generate(ctx context.Context, id string, legacy bool) (*LetterRequest, error) {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	templatePath, err := s.Registry.Resolve(req.LetterType)
	if err != nil {
		return nil, err
	}
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	docReq, docEmp := s.docgenInputs(ctx, req)
	now := s.now()

	var filled []byte
	if legacy {
		filled, err = docgen.FillDocxLiteral(template, docgen.LegacyTokens(docReq, now))
	} else {
		filled, err = docgen.FillDocx(template, docgen.BuildTemplateData(docReq, docEmp, now))
	}
	if err != nil {
		return nil, err
	}

	filename := docgen.GeneratedFilename(req.LetterType, req.EmployeeID, now)
	if err := os.MkdirAll(s.GeneratedDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(s.GeneratedDir, filename)
	if err := os.WriteFile(path, filled, 0o644); err != nil {
		return nil, err
	}

	status := req.Status
	if next, err := Next(req.Status, EventMarkGenerated); err == nil {
		status = next
	}
	if err := s.Store.UpdateGenerated(ctx, id, status, path, filename, now); err != nil {
		return nil, err
	}
	s.Metrics.LetterFilled()
	return s.Store.GetByID(ctx, id)
}

// PreviewPDF renders the request onto its PDF template without touching
// the stored record.
func (s *Service) PreviewPDF(ctx context.Context, id string) ([]byte, error) {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	base := s.Registry.TemplateName(req.LetterType)
	templatePath := filepath.Join(s.Registry.TemplateDir, replaceExt(base, ".pdf"))
	if _, err := os.Stat(templatePath); err != nil {
		return nil, docgen.ErrTemplateNotFound
	}
	docReq, docEmp := s.docgenInputs(ctx, req)
	return docgen.FillPDFTemplate(templatePath, docReq, docEmp, s.now())
}

// FillPDF renders an ad-hoc request payload onto the matching PDF template
// without a stored record. The roster is consulted for the employee block
// when the id matches.
func (s *Service) FillPDF(ctx context.Context, docReq docgen.Request) ([]byte, error) {
	base := s.Registry.TemplateName(docReq.LetterType)
	templatePath := filepath.Join(s.Registry.TemplateDir, replaceExt(base, ".pdf"))
	if _, err := os.Stat(templatePath); err != nil {
		return nil, docgen.ErrTemplateNotFound
	}

	docEmp := docgen.Employee{EmployeeID: docReq.EmployeeID, Name: docReq.EmployeeName}
	if emp, err := s.Employees.GetByEmployeeID(ctx, docReq.EmployeeID); err == nil {
		docEmp.Name = emp.Name
		docEmp.Email = emp.Email
		docEmp.Title = emp.Title
		docEmp.Department = emp.Department
		docEmp.Address = emp.Address
		if emp.StartDate != nil {
			docEmp.StartDate = emp.StartDate.Format("2006-01-02")
		}
	}
	out, err := docgen.FillPDFTemplate(templatePath, docReq, docEmp, s.now())
	if err != nil {
		return nil, err
	}
	s.Metrics.LetterFilled()
	return out, nil
}

func replaceExt(name, ext string) string {
	return name[:len(name)-len(filepath.Ext(name))] + ext
}

// Withdraw lets the owner (or an admin) pull back a pending request.
// The withdrawal stamps processedDate like any other decision.
func (s *Service) Withdraw(ctx context.Context, id, actorEmployeeID string, isAdmin bool) (*LetterRequest, error) {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && req.EmployeeID != actorEmployeeID {
		return nil, ErrForbidden
	}
	next, err := Next(req.Status, EventWithdraw)
	if err != nil {
		return nil, err
	}
	if err := s.Store.UpdateDecision(ctx, id, next, req.AdminNotes, actorEmployeeID, s.now()); err != nil {
		return nil, err
	}
	return s.Store.GetByID(ctx, id)
}

// Retake resubmits a request from any state: decision, generated-letter
// and signing fields are cleared and the request goes back to pending.
func (s *Service) Retake(ctx context.Context, id, actorEmployeeID string, isAdmin bool) (*LetterRequest, error) {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && req.EmployeeID != actorEmployeeID {
		return nil, ErrForbidden
	}
	s.removeGeneratedFile(req)
	if err := s.Store.ResetForRetake(ctx, id, s.now()); err != nil {
		return nil, err
	}
	return s.Store.GetByID(ctx, id)
}

// PollEnvelope refreshes a request's signing state from the provider.
func (s *Service) PollEnvelope(ctx context.Context, id, adminEmail string) (*LetterRequest, error) {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.EnvelopeID == nil || *req.EnvelopeID == "" {
		return nil, ErrLetterNotGenerated
	}
	session, err := s.ESign.SessionFor(ctx, adminEmail)
	if err != nil {
		return nil, err
	}
	status, err := s.ESign.EnvelopeStatus(ctx, session, *req.EnvelopeID)
	if err != nil {
		return nil, err
	}
	if status == "completed" {
		if err := s.Store.MarkCompleted(ctx, id, status, s.now()); err != nil {
			return nil, err
		}
	} else if err := s.Store.UpdateEnvelopeStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.Store.GetByID(ctx, id)
}

// Delete removes the request and its generated letter file if any.
func (s *Service) Delete(ctx context.Context, id string) error {
	req, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.removeGeneratedFile(req)
	return nil
}

func (s *Service) removeGeneratedFile(req *LetterRequest) {
	if req.GeneratedLetterPath == nil || *req.GeneratedLetterPath == "" {
		return
	}
	if err := os.Remove(*req.GeneratedLetterPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove generated letter file",
			"path", *req.GeneratedLetterPath, "error", err)
	}
}

func (s *Service) notifyDecision(ctx context.Context, req *LetterRequest, status, adminNotes string) {
	emp, err := s.Employees.GetByEmployeeID(ctx, req.EmployeeID)
	if err != nil {
		slog.Warn("failed to load employee for decision notification",
			"employeeId", req.EmployeeID, "error", err)
		return
	}
	s.Notify.RequestDecided(ctx, emp.Email, req.LetterType, status, adminNotes)
}

// docgenInputs converts the stored request plus its roster record into the
// document engine's inputs. A missing roster record falls back to the data
// captured on the request itself.
func (s *Service) docgenInputs(ctx context.Context, req *LetterRequest) (docgen.Request, docgen.Employee) {
	docReq := docgen.Request{
		LetterType:       req.LetterType,
		EmployeeID:       req.EmployeeID,
		EmployeeName:     req.EmployeeName,
		RequestDate:      req.RequestDate,
		Details:          req.Details,
		EmployeeComments: req.EmployeeComments,
		AdminNotes:       req.AdminNotes,
		Status:           string(req.Status),
	}
	docEmp := docgen.Employee{EmployeeID: req.EmployeeID, Name: req.EmployeeName}
	emp, err := s.Employees.GetByEmployeeID(ctx, req.EmployeeID)
	if err != nil {
		slog.Warn("roster record missing for letter generation",
			"employeeId", req.EmployeeID, "error", err)
		return docReq, docEmp
	}
	docEmp.Name = emp.Name
	docEmp.Email = emp.Email
	docEmp.Title = emp.Title
	docEmp.Department = emp.Department
	docEmp.Address = emp.Address
	if emp.StartDate != nil {
		docEmp.StartDate = emp.StartDate.Format("2006-01-02")
	}
	return docReq, docEmp
}
