package textnorm

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims edges", "  hello  ", "hello"},
		{"collapses runs", "a  b\t\tc\n\nd", "a b c d"},
		{"strips controls", "a\x00b\x07c", "abc"},
		{"curly quotes", "“hi” and ‘there’", `"hi" and 'there'`},
		{"dashes", "a – b — c", "a - b - c"},
		{"empty", "", ""},
		{"only whitespace", "   \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		valid    bool
		wantErrs []string
	}{
		{"valid input", "Should I switch jobs?", true, nil},
		{"too short", "hi", false, []string{ErrTooShort}},
		{"blank", "   ", false, []string{ErrInvalidType}},
		{"empty", "", false, []string{ErrInvalidType}},
		{"no letters", "123 456!", false, []string{ErrNoTextualContent}},
		{"too long", strings.Repeat("a", 11000), false, []string{ErrTooLong}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.input)
			if res.Valid != tt.valid {
				t.Fatalf("Validate(%q).Valid = %v, want %v (errors: %v)",
					tt.input, res.Valid, tt.valid, res.Errors)
			}
			if len(res.Errors) != len(tt.wantErrs) {
				t.Fatalf("error count = %d, want %d (%v)", len(res.Errors), len(tt.wantErrs), res.Errors)
			}
			for i, code := range tt.wantErrs {
				if res.Errors[i] != code {
					t.Errorf("Errors[%d] = %q, want %q", i, res.Errors[i], code)
				}
			}
		})
	}
}

func TestValidate_ReturnsNormalizedOnlyWhenValid(t *testing.T) {
	res := Validate("  what   should I do  ")
	if !res.Valid {
		t.Fatalf("expected valid, got errors %v", res.Errors)
	}
	if res.Normalized != "what should I do" {
		t.Errorf("Normalized = %q", res.Normalized)
	}

	bad := Validate("12")
	if bad.Normalized != "" {
		t.Errorf("invalid input should not return normalized text, got %q", bad.Normalized)
	}
}

func TestValidate_LengthBoundsUseNormalizedText(t *testing.T) {
	// 11000 raw chars that collapse under the limit must pass.
	padded := "ok " + strings.Repeat(" ", 10000) + "then"
	res := Validate(padded)
	if !res.Valid {
		t.Fatalf("expected valid after collapsing, got %v", res.Errors)
	}
}
