package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"letterdesk/internal/domain/auth"
	"letterdesk/internal/platform/config"
)

type seedTemplate struct {
	Label  string
	Value  string
	Fields string
}

var defaultTemplates = []seedTemplate{
	{"Visa Letter", "visa_letter", `[
		{"name":"destination","label":"Destination Country","type":"text","required":true},
		{"name":"travelDates","label":"Travel Dates","type":"text","required":true},
		{"name":"travelPurpose","label":"Purpose of Travel","type":"text","required":false}
	]`},
	{"Experience Letter", "experience", `[]`},
	{"Salary Certificate", "salary", `[
		{"name":"salary","label":"Annual Salary","type":"text","required":false}
	]`},
	{"Employment Verification", "employment", `[]`},
	{"Internship Completion", "internship_completion", `[
		{"name":"startDate","label":"Internship Start","type":"date","required":true},
		{"name":"endDate","label":"Internship End","type":"date","required":true},
		{"name":"projectName","label":"Project Name","type":"text","required":false}
	]`},
	{"Certification Reimbursement", "certification_reimbursement", `[
		{"name":"certificationName","label":"Certification Name","type":"text","required":true},
		{"name":"certificationCost","label":"Certification Cost","type":"text","required":true},
		{"name":"institute","label":"Institute","type":"text","required":false}
	]`},
	{"HR Letter", "hr_letter", `[]`},
	{"Travel NOC", "travel_noc", `[
		{"name":"destination","label":"Destination","type":"text","required":true},
		{"name":"travelDates","label":"Travel Dates","type":"text","required":true},
		{"name":"travelPurpose","label":"Purpose of Travel","type":"text","required":false}
	]`},
	{"No Objection Certificate", "noc", `[]`},
}

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureSuperAdmin(ctx, pool, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		return err
	}
	return ensureTemplates(ctx, pool)
}

func ensureSuperAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM employees WHERE email = $1", email).Scan(&id)
	if err == nil {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	return pool.QueryRow(ctx, `
    INSERT INTO employees (employee_id, name, email, role, password_hash)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id
  `, "STI0001", auth.SuperAdminName, email, auth.RoleAdmin, hash).Scan(&id)
}

func ensureTemplates(ctx context.Context, pool *pgxpool.Pool) error {
	for _, tpl := range defaultTemplates {
		_, err := pool.Exec(ctx, `
      INSERT INTO letter_templates (label, value, fields)
      VALUES ($1, $2, $3::jsonb)
      ON CONFLICT (value) DO NOTHING
    `, tpl.Label, tpl.Value, tpl.Fields)
		if err != nil {
			return err
		}
	}
	return nil
}
