package templates

import (
	"fmt"
	"strings"
	"time"
)

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidateDetails checks a submitted details bag against a template's field
// definitions. Unknown keys are rejected, required fields must be present
// and non-empty, dates must be YYYY-MM-DD and selects must match an option.
func ValidateDetails(fields []Field, details map[string]string) []FieldIssue {
	var issues []FieldIssue

	known := make(map[string]Field, len(fields))
	for _, f := range fields {
		known[f.Name] = f
	}

	for key := range details {
		if _, ok := known[key]; !ok {
			issues = append(issues, FieldIssue{Field: key, Reason: "unknown field"})
		}
	}

	for _, f := range fields {
		value, present := details[f.Name]
		trimmed := strings.TrimSpace(value)

		if f.Required && (!present || trimmed == "") {
			issues = append(issues, FieldIssue{Field: f.Name, Reason: "required"})
			continue
		}
		if trimmed == "" {
			continue
		}

		switch f.Type {
		case FieldDate:
			if _, err := time.Parse("2006-01-02", trimmed); err != nil {
				issues = append(issues, FieldIssue{Field: f.Name, Reason: "must be a date in YYYY-MM-DD format"})
			}
		case FieldSelect:
			if !containsFold(f.Options, trimmed) {
				issues = append(issues, FieldIssue{
					Field:  f.Name,
					Reason: fmt.Sprintf("must be one of: %s", strings.Join(f.Options, ", ")),
				})
			}
		}
	}

	return issues
}

func containsFold(options []string, value string) bool {
	for _, option := range options {
		if strings.EqualFold(strings.TrimSpace(option), value) {
			return true
		}
	}
	return false
}
