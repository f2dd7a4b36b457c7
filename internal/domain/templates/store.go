package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("letter template not found")
	ErrDuplicate = errors.New("letter template value already exists")
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const templateColumns = `id, label, value, url, fields, is_active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var tpl Template
	var fields []byte
	err := row.Scan(&tpl.ID, &tpl.Label, &tpl.Value, &tpl.URL, &fields, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &tpl.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	if tpl.Fields == nil {
		tpl.Fields = []Field{}
	}
	return &tpl, nil
}

func (s *Store) List(ctx context.Context, includeInactive bool) ([]Template, error) {
	query := `SELECT ` + templateColumns + ` FROM letter_templates`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY label`

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var tpl Template
		var fields []byte
		if err := rows.Scan(&tpl.ID, &tpl.Label, &tpl.Value, &tpl.URL, &fields, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &tpl.Fields); err != nil {
				return nil, fmt.Errorf("decode fields: %w", err)
			}
		}
		if tpl.Fields == nil {
			tpl.Fields = []Field{}
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, id string) (*Template, error) {
	return scanTemplate(s.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM letter_templates WHERE id = $1`, id))
}

func (s *Store) GetByValue(ctx context.Context, value string) (*Template, error) {
	return scanTemplate(s.DB.QueryRow(ctx, `SELECT `+templateColumns+` FROM letter_templates WHERE value = $1`, strings.ToLower(strings.TrimSpace(value))))
}

func (s *Store) Create(ctx context.Context, input UpsertInput) (*Template, error) {
	fields, err := json.Marshal(fieldsOrEmpty(input.Fields))
	if err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	row := s.DB.QueryRow(ctx, `
    INSERT INTO letter_templates (label, value, url, fields, is_active)
    VALUES ($1, $2, $3, $4::jsonb, $5)
    RETURNING `+templateColumns+`
  `, input.Label, strings.ToLower(strings.TrimSpace(input.Value)), input.URL, fields, active)

	tpl, err := scanTemplate(row)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return nil, ErrDuplicate
	}
	return tpl, err
}

func (s *Store) Update(ctx context.Context, id string, input UpsertInput) (*Template, error) {
	fields, err := json.Marshal(fieldsOrEmpty(input.Fields))
	if err != nil {
		return nil, err
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	row := s.DB.QueryRow(ctx, `
    UPDATE letter_templates
    SET label = $2, url = $3, fields = $4::jsonb, is_active = $5, updated_at = now()
    WHERE id = $1
    RETURNING `+templateColumns+`
  `, id, input.Label, input.URL, fields, active)
	return scanTemplate(row)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM letter_templates WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func fieldsOrEmpty(fields []Field) []Field {
	if fields == nil {
		return []Field{}
	}
	return fields
}
