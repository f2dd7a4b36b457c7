package docgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// escapeXML sanitizes a value before it is spliced into a document part.
// The ampersand must be replaced first.
func escapeXML(value string) string {
	value = strings.ReplaceAll(value, "&", "&amp;")
	value = strings.ReplaceAll(value, "<", "&lt;")
	value = strings.ReplaceAll(value, ">", "&gt;")
	value = strings.ReplaceAll(value, `"`, "&quot;")
	value = strings.ReplaceAll(value, "'", "&apos;")
	return value
}

func isWordPart(name string) bool {
	return strings.HasPrefix(name, "word/") && strings.HasSuffix(name, ".xml")
}

// FillDocx replaces {{KEY}} placeholders across every word/*.xml part of a
// .docx archive. Unknown placeholders are left intact; an opening marker
// with no closing marker fails with ErrMalformedPlaceholder.
func FillDocx(template []byte, data map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	return rewriteDocx(reader, func(name, content string) (string, error) {
		if !isWordPart(name) {
			return content, nil
		}
		return replacePlaceholders(content, data)
	})
}

// FillDocxLiteral applies ordered literal token replacements across every
// word/*.xml part. Used for templates that predate {{KEY}} placeholders.
func FillDocxLiteral(template []byte, tokens []TokenReplacement) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	return rewriteDocx(reader, func(name, content string) (string, error) {
		if !isWordPart(name) {
			return content, nil
		}
		for _, token := range tokens {
			content = strings.ReplaceAll(content, token.Token, escapeXML(token.Value))
		}
		return content, nil
	})
}

func rewriteDocx(reader *zip.Reader, transform func(name, content string) (string, error)) ([]byte, error) {
	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		content, err := transform(file.Name, string(raw))
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", file.Name, err)
		}

		header := &zip.FileHeader{Name: file.Name, Method: file.Method}
		w, err := writer.CreateHeader(header)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func replacePlaceholders(content string, data map[string]string) (string, error) {
	var b strings.Builder
	rest := content
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.Index(rest[open:], "}}")
		if closing < 0 {
			return "", ErrMalformedPlaceholder
		}
		closing += open

		key := strings.TrimSpace(rest[open+2 : closing])
		if value, ok := data[key]; ok {
			b.WriteString(rest[:open])
			b.WriteString(escapeXML(value))
		} else {
			b.WriteString(rest[:closing+2])
		}
		rest = rest[closing+2:]
	}
}
