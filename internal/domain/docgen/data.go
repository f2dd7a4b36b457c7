package docgen

import (
	"sort"
	"strings"
	"time"
)

// Request carries the letter-request fields the document engine needs.
type Request struct {
	LetterType       string
	EmployeeID       string
	EmployeeName     string
	RequestDate      time.Time
	Details          map[string]string
	EmployeeComments string
	AdminNotes       string
	Status           string
}

// Employee carries the roster fields referenced by templates.
type Employee struct {
	EmployeeID string
	Name       string
	Email      string
	Title      string
	Department string
	Address    string
	StartDate  string
}

const missingValue = "N/A"

const letterDateLayout = "January 2, 2006"

// lookup tries each spelling of a detail key and returns the first
// non-empty value.
func lookup(details map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := details[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func orMissing(value string) string {
	if strings.TrimSpace(value) == "" {
		return missingValue
	}
	return value
}

// BuildTemplateData returns the placeholder map for a request. Every
// canonical key is always present, defaulting to "N/A", and legacy alias
// spellings are emitted alongside so older templates keep filling.
func BuildTemplateData(req Request, emp Employee, now time.Time) map[string]string {
	details := req.Details
	if details == nil {
		details = map[string]string{}
	}

	name := req.EmployeeName
	if strings.TrimSpace(name) == "" {
		name = emp.Name
	}

	data := map[string]string{
		"CURRENT_DATE":       now.Format(letterDateLayout),
		"EMPLOYEE_NAME":      orMissing(name),
		"EMPLOYEE_ID":        orMissing(req.EmployeeID),
		"REQUEST_DATE":       req.RequestDate.Format(letterDateLayout),
		"LETTER_TYPE":        orMissing(req.LetterType),
		"ADDITIONAL_DETAILS": orMissing(joinDetails(details)),
		"EMPLOYEE_COMMENTS":  orMissing(req.EmployeeComments),
		"DEPARTMENT":         orMissing(firstNonEmpty(lookup(details, "department"), emp.Department)),
		"POSITION":           orMissing(firstNonEmpty(lookup(details, "position", "title", "jobTitle"), emp.Title)),
		"START_DATE":         orMissing(firstNonEmpty(lookup(details, "startDate", "start_date", "start date"), emp.StartDate)),
		"SALARY":             orMissing(lookup(details, "salary", "annualSalary", "annual_salary")),
		"END_DATE":           orMissing(lookup(details, "endDate", "end_date", "end date")),
		"PROJECT_NAME":       orMissing(lookup(details, "projectName", "project_name", "project name")),
		"DESTINATION":        orMissing(lookup(details, "destination", "destinationCountry", "destination_country")),
		"TRAVEL_DATES":       orMissing(lookup(details, "travelDates", "travel_dates", "travel dates")),
		"TRAVEL_PURPOSE":     orMissing(lookup(details, "travelPurpose", "travel_purpose", "purpose")),
		"CERTIFICATION_NAME": orMissing(lookup(details, "certificationName", "certification_name", "certification", "courseName", "course name")),
		"CERTIFICATION_COST": orMissing(lookup(details, "certificationCost", "certification_cost", "cost", "amount")),
	}

	addAliases(data)
	return data
}

// addAliases emits snake_case and PascalCase spellings for every canonical
// key plus the short names older templates used.
func addAliases(data map[string]string) {
	short := map[string]string{
		"EMPLOYEE_NAME":      "Name",
		"CURRENT_DATE":       "Date",
		"CERTIFICATION_COST": "Amount",
		"CERTIFICATION_NAME": "CourseName",
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := data[key]
		data[strings.ToLower(key)] = value
		data[pascalCase(key)] = value
		if alias, ok := short[key]; ok {
			data[alias] = value
		}
	}
}

func pascalCase(upperSnake string) string {
	parts := strings.Split(strings.ToLower(upperSnake), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}

func joinDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(details[key]) == "" {
			continue
		}
		lines = append(lines, splitCamel(key)+": "+details[key])
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// splitCamel turns camelCase detail keys into readable labels,
// e.g. "travelDates" becomes "Travel Dates".
func splitCamel(key string) string {
	if key == "" {
		return key
	}
	var b strings.Builder
	for i, r := range key {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	label := b.String()
	return strings.ToUpper(label[:1]) + label[1:]
}
