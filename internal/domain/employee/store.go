package employee

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"letterdesk/internal/domain/auth"
)

var (
	ErrNotFound          = errors.New("employee not found")
	ErrDuplicate         = errors.New("employee already exists")
	ErrSuperAdminDemote  = errors.New("the bootstrap administrator cannot be demoted")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const employeeColumns = `
    id, employee_id, name, email, title, department, address, start_date,
    role, created_at, updated_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.EmployeeID, &emp.Name, &emp.Email, &emp.Title,
		&emp.Department, &emp.Address, &emp.StartDate, &emp.Role,
		&emp.CreatedAt, &emp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `SELECT`+employeeColumns+` FROM employees WHERE id = $1`, id))
}

func (s *Store) GetByEmployeeID(ctx context.Context, employeeID string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `SELECT`+employeeColumns+` FROM employees WHERE employee_id = $1`, employeeID))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, `SELECT`+employeeColumns+` FROM employees WHERE lower(email) = lower($1)`, email))
}

func (s *Store) List(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `SELECT`+employeeColumns+` FROM employees ORDER BY employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var emp Employee
		if err := rows.Scan(
			&emp.ID, &emp.EmployeeID, &emp.Name, &emp.Email, &emp.Title,
			&emp.Department, &emp.Address, &emp.StartDate, &emp.Role,
			&emp.CreatedAt, &emp.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

func (s *Store) AdminEmails(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT email FROM employees WHERE role = $1", auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (s *Store) Create(ctx context.Context, input UpsertInput, passwordHash string, startDate *time.Time) (*Employee, error) {
	role := input.Role
	if role != auth.RoleAdmin {
		role = auth.RoleUser
	}
	row := s.DB.QueryRow(ctx, `
    INSERT INTO employees (employee_id, name, email, title, department, address, start_date, role, password_hash)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    RETURNING`+employeeColumns+`
  `, input.EmployeeID, input.Name, input.Email, input.Title, input.Department, input.Address, startDate, role, passwordHash)

	emp, err := scanEmployee(row)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return nil, ErrDuplicate
	}
	return emp, err
}

func (s *Store) Update(ctx context.Context, id string, input UpsertInput, startDate *time.Time) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    UPDATE employees
    SET name = $2, email = $3, title = $4, department = $5, address = $6,
        start_date = $7, updated_at = now()
    WHERE id = $1
    RETURNING`+employeeColumns+`
  `, id, input.Name, input.Email, input.Title, input.Department, input.Address, startDate)
	return scanEmployee(row)
}

// Upsert inserts or refreshes a roster row keyed by employee_id. Used by the
// CSV import; role and credentials are left untouched on update.
func (s *Store) Upsert(ctx context.Context, input UpsertInput, startDate *time.Time) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO employees (employee_id, name, email, title, department, address, start_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (employee_id) DO UPDATE
    SET name = EXCLUDED.name, email = EXCLUDED.email, title = EXCLUDED.title,
        department = EXCLUDED.department, address = EXCLUDED.address,
        start_date = EXCLUDED.start_date, updated_at = now()
    RETURNING`+employeeColumns+`
  `, input.EmployeeID, input.Name, input.Email, input.Title, input.Department, input.Address, startDate)
	return scanEmployee(row)
}

func (s *Store) SetRole(ctx context.Context, id, role string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Name == auth.SuperAdminName && role != auth.RoleAdmin {
		return ErrSuperAdminDemote
	}
	_, err = s.DB.Exec(ctx, "UPDATE employees SET role = $2, updated_at = now() WHERE id = $1", id, role)
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Name == auth.SuperAdminName {
		return ErrSuperAdminDemote
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM employees WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) PasswordHashByEmail(ctx context.Context, email string) (id, hash string, err error) {
	err = s.DB.QueryRow(ctx, "SELECT id, password_hash FROM employees WHERE lower(email) = lower($1)", email).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

func (s *Store) SetPassword(ctx context.Context, id, hash string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET password_hash = $2, reset_token = NULL, reset_token_expiry = NULL, updated_at = now()
    WHERE id = $1
  `, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE employees SET reset_token = $2, reset_token_expiry = $3, updated_at = now() WHERE id = $1
  `, id, token, expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ConsumeResetToken(ctx context.Context, token string, now time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    SELECT id FROM employees WHERE reset_token = $1 AND reset_token_expiry > $2
  `, token, now).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidResetToken
	}
	return id, err
}
