package letters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("letter request not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const requestColumns = `
    id, employee_id, employee_name, letter_type, details, employee_comments,
    admin_notes, status, request_date, processed_date, processed_by,
    generated_letter_path, generated_letter_filename, letter_generated_date,
    envelope_id, envelope_status, signing_url, sent_for_signing_date,
    completed_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*LetterRequest, error) {
	var req LetterRequest
	var details []byte
	err := row.Scan(
		&req.ID, &req.EmployeeID, &req.EmployeeName, &req.LetterType, &details,
		&req.EmployeeComments, &req.AdminNotes, &req.Status, &req.RequestDate,
		&req.ProcessedDate, &req.ProcessedBy,
		&req.GeneratedLetterPath, &req.GeneratedLetterFilename, &req.LetterGeneratedDate,
		&req.EnvelopeID, &req.EnvelopeStatus, &req.SigningURL, &req.SentForSigningDate,
		&req.CompletedDate, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	if req.Details == nil {
		req.Details = map[string]string{}
	}
	return &req, nil
}

func (s *Store) Create(ctx context.Context, employeeID, employeeName, letterType string, details map[string]string, comments string) (*LetterRequest, error) {
	if details == nil {
		details = map[string]string{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	row := s.DB.QueryRow(ctx, `
    INSERT INTO letter_requests (employee_id, employee_name, letter_type, details, employee_comments)
    VALUES ($1, $2, $3, $4::jsonb, $5)
    RETURNING`+requestColumns+`
  `, employeeID, employeeName, letterType, payload, comments)
	return scanRequest(row)
}

func (s *Store) GetByID(ctx context.Context, id string) (*LetterRequest, error) {
	row := s.DB.QueryRow(ctx, `SELECT`+requestColumns+` FROM letter_requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]LetterRequest, error) {
	query, args := buildFilterQuery(`SELECT`+requestColumns, filter)
	query += fmt.Sprintf(" ORDER BY request_date DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LetterRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildFilterQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildFilterQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM letter_requests WHERE 1=1"
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.LetterType != "" {
		args = append(args, filter.LetterType)
		query += fmt.Sprintf(" AND letter_type = $%d", len(args))
	}
	return query, args
}

func (s *Store) UpdateDecision(ctx context.Context, id string, status Status, adminNotes, processedBy string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE letter_requests
    SET status = $2, admin_notes = $3, processed_by = $4, processed_date = $5, updated_at = now()
    WHERE id = $1
  `, id, status, adminNotes, processedBy, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateGenerated(ctx context.Context, id string, status Status, path, filename string, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE letter_requests
    SET status = $2, generated_letter_path = $3, generated_letter_filename = $4,
        letter_generated_date = $5, updated_at = now()
    WHERE id = $1
  `, id, status, path, filename, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateEnvelope(ctx context.Context, id string, status Status, envelopeID, envelopeStatus, signingURL string, sentAt time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE letter_requests
    SET status = $2, envelope_id = $3, envelope_status = $4, signing_url = $5,
        sent_for_signing_date = $6, updated_at = now()
    WHERE id = $1
  `, id, status, envelopeID, envelopeStatus, signingURL, sentAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateEnvelopeStatus(ctx context.Context, id, envelopeStatus string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE letter_requests SET envelope_status = $2, updated_at = now() WHERE id = $1
  `, id, envelopeStatus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkCompleted(ctx context.Context, id, envelopeStatus string, completedAt time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE letter_requests
    SET status = $2, envelope_status = $3, completed_date = $4, updated_at = now()
    WHERE id = $1
  `, id, StatusCompleted, envelopeStatus, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetForRetake returns a request to a clean pending state: decision,
// generated-letter and signing fields are all cleared.
func (s *Store) ResetForRetake(ctx context.Context, id string, now time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE letter_requests
    SET status = $2, request_date = $3, processed_date = NULL, processed_by = NULL,
        admin_notes = '', generated_letter_path = NULL, generated_letter_filename = NULL,
        letter_generated_date = NULL, envelope_id = NULL, envelope_status = NULL,
        signing_url = NULL, sent_for_signing_date = NULL, completed_date = NULL,
        updated_at = now()
    WHERE id = $1
  `, id, StatusPending, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM letter_requests WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
