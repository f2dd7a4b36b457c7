package docgen

import (
	"strings"
	"testing"
)

// measure by rune count so widths are predictable in tests.
func runeWidth(s string) float64 {
	return float64(len([]rune(s)))
}

func TestWrapTextRespectsMaxWidth(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	lines := WrapText(runeWidth, text, 15)

	if len(lines) < 3 {
		t.Fatalf("expected multiple lines, got %v", lines)
	}
	for _, line := range lines {
		if runeWidth(line) > 15 {
			t.Fatalf("line %q exceeds max width", line)
		}
	}
	if strings.Join(lines, " ") != text {
		t.Fatalf("wrap lost words: %v", lines)
	}
}

func TestWrapTextSingleLongWord(t *testing.T) {
	lines := WrapText(runeWidth, "incomprehensibilities", 10)
	if len(lines) != 1 || lines[0] != "incomprehensibilities" {
		t.Fatalf("long word must stand alone: %v", lines)
	}
}

func TestWrapTextEmpty(t *testing.T) {
	if lines := WrapText(runeWidth, "   ", 10); lines != nil {
		t.Fatalf("expected nil for blank text, got %v", lines)
	}
}
