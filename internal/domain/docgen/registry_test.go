package docgen

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveSynonyms(t *testing.T) {
	reg := NewRegistry("templates")

	cases := map[string]string{
		"visa":                        "visa_letter.docx",
		"Visa_Letter":                 "visa_letter.docx",
		"visaletter":                  "visa_letter.docx",
		"certification":               "certification_reimbursement.docx",
		"certificationreimbursement":  "certification_reimbursement.docx",
		"internship":                  "internship_completion.docx",
		"hr_letter":                   "hrletter.docx",
		"hrletter":                    "hrletter.docx",
		"travel_noc":                  "travelnoc.docx",
		"travel":                      "travelnoc.docx",
		"experience":                  "experience.docx",
		"salary":                      "salary.docx",
	}

	for input, want := range cases {
		path, err := reg.Resolve(input)
		if err != nil {
			t.Fatalf("resolve %q: %v", input, err)
		}
		if filepath.Base(path) != want {
			t.Fatalf("resolve %q: got %s, want %s", input, filepath.Base(path), want)
		}
	}
}

func TestResolveDirectFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "relocation.docx"), []byte("stub"), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	reg := NewRegistry(dir)
	path, err := reg.Resolve("Relocation")
	if err != nil {
		t.Fatalf("expected direct fallback to resolve, got %v", err)
	}
	if filepath.Base(path) != "relocation.docx" {
		t.Fatalf("unexpected path %s", path)
	}

	if _, err := reg.Resolve("does_not_exist"); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestGeneratedFilename(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	name := GeneratedFilename("Visa", "STI0042", now)

	if !strings.HasPrefix(name, "visa_STI0042_") {
		t.Fatalf("unexpected prefix: %s", name)
	}
	if !strings.HasSuffix(name, ".docx") {
		t.Fatalf("unexpected suffix: %s", name)
	}
	if strings.ContainsAny(name, ":.") && !strings.HasSuffix(name, ".docx") {
		t.Fatalf("timestamp separators must be replaced: %s", name)
	}
	if strings.Count(name, ":") != 0 {
		t.Fatalf("colon survived in filename: %s", name)
	}
}
