package docgen

import (
	"strings"
	"time"
)

// TokenReplacement is one literal substitution in a legacy template.
// Order matters: longer tokens must run before substrings of themselves.
type TokenReplacement struct {
	Token string
	Value string
}

const legacyDateLayout = "02-01-06"

// LegacyTokens builds the ordered replacement list for templates that use
// literal markers instead of {{KEY}} placeholders.
func LegacyTokens(req Request, now time.Time) []TokenReplacement {
	requestDate := req.RequestDate
	if requestDate.IsZero() {
		requestDate = now
	}

	cost := lookup(req.Details, "certificationCost", "certification_cost", "cost", "amount")
	course := lookup(req.Details, "certificationName", "certification_name", "certification", "courseName", "course name")

	tokens := []TokenReplacement{
		{Token: "DD-MM-YY", Value: requestDate.Format(legacyDateLayout)},
		{Token: "Employee Name", Value: req.EmployeeName},
		{Token: "Employee name", Value: req.EmployeeName},
		{Token: "STI0XYZ", Value: req.EmployeeID},
		{Token: "Course name", Value: course},
		{Token: "Employee ID", Value: req.EmployeeID},
	}

	// The bare XYZ marker doubles as the cost slot. Only substitute it for
	// certification letters or when a cost was actually provided, otherwise
	// unrelated XYZ text in a template would be clobbered.
	if isCertificationType(req.LetterType) || strings.TrimSpace(cost) != "" {
		tokens = append(tokens, TokenReplacement{Token: "XYZ", Value: cost})
	}

	return tokens
}

func isCertificationType(letterType string) bool {
	normalized := normalizeType(letterType)
	return strings.HasPrefix(normalized, "certification")
}
