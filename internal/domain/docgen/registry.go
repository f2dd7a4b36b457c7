package docgen

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Registry maps letter types to template files under TemplateDir. Known
// synonyms resolve to a shared template; anything else falls back to a
// direct <type>.docx lookup.
type Registry struct {
	TemplateDir string
}

var typeTemplates = map[string]string{
	"visa":                         "visa_letter.docx",
	"visa_letter":                  "visa_letter.docx",
	"visaletter":                   "visa_letter.docx",
	"certification":                "certification_reimbursement.docx",
	"certification_reimbursement":  "certification_reimbursement.docx",
	"certificationreimbursement":   "certification_reimbursement.docx",
	"internship":                   "internship_completion.docx",
	"internship_completion":        "internship_completion.docx",
	"internshipcompletion":         "internship_completion.docx",
	"hr_letter":                    "hrletter.docx",
	"hrletter":                     "hrletter.docx",
	"travel_noc":                   "travelnoc.docx",
	"travelnoc":                    "travelnoc.docx",
	"travel":                       "travelnoc.docx",
	"experience":                   "experience.docx",
	"salary":                       "salary.docx",
	"employment":                   "employment.docx",
	"noc":                          "noc.docx",
}

func NewRegistry(templateDir string) *Registry {
	return &Registry{TemplateDir: templateDir}
}

func normalizeType(letterType string) string {
	return strings.ToLower(strings.TrimSpace(letterType))
}

// Resolve returns the absolute template path for a letter type.
func (r *Registry) Resolve(letterType string) (string, error) {
	normalized := normalizeType(letterType)
	if normalized == "" {
		return "", ErrTemplateNotFound
	}

	if name, ok := typeTemplates[normalized]; ok {
		return filepath.Join(r.TemplateDir, name), nil
	}

	direct := filepath.Join(r.TemplateDir, normalized+".docx")
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}
	return "", ErrTemplateNotFound
}

// TemplateName returns the template file name a letter type maps to without
// checking the filesystem. Unknown types map to the direct fallback name.
func (r *Registry) TemplateName(letterType string) string {
	normalized := normalizeType(letterType)
	if name, ok := typeTemplates[normalized]; ok {
		return name
	}
	return normalized + ".docx"
}

// GeneratedFilename builds the stored name for a generated letter.
func GeneratedFilename(letterType, employeeID string, now time.Time) string {
	stamp := now.UTC().Format(time.RFC3339)
	stamp = strings.ReplaceAll(stamp, ":", "-")
	stamp = strings.ReplaceAll(stamp, ".", "-")
	return normalizeType(letterType) + "_" + employeeID + "_" + stamp + ".docx"
}
