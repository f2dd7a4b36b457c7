package templates

import "time"

type FieldType string

const (
	FieldText   FieldType = "text"
	FieldDate   FieldType = "date"
	FieldSelect FieldType = "select"
)

// Field describes one input a letter template expects from the employee.
type Field struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

type Template struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Value     string    `json:"value"`
	URL       string    `json:"url"`
	Fields    []Field   `json:"fields"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type UpsertInput struct {
	Label    string  `json:"label"`
	Value    string  `json:"value"`
	URL      string  `json:"url"`
	Fields   []Field `json:"fields"`
	IsActive *bool   `json:"isActive"`
}
