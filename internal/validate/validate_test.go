package validate

import (
	"errors"
	"strings"
	"testing"
	_ "time/tzdata"

	"github.com/aquatracking/aquatracking/internal/domain"
)

func TestValidRut(t *testing.T) {
	tests := []struct {
		rut  string
		want bool
	}{
		{"12.345.678-5", true},
		{"12345678-5", true},
		{"123456785", true},
		{"11.111.111-1", true},
		{"7.654.321-6", true},
		{"10.000.013-k", true},
		{"10000013-K", true},
		{"10000004-0", true},
		{"12.345.678-9", false},
		{"10000013-0", false},
		{"", false},
		{"K", false},
		{"123456789012-3", false},
	}
	for _, tt := range tests {
		if got := ValidRut(tt.rut); got != tt.want {
			t.Errorf("ValidRut(%q) = %v, want %v", tt.rut, got, tt.want)
		}
	}
}

func TestNormalizeRut(t *testing.T) {
	if got := NormalizeRut("10.000.013-k"); got != "10000013-K" {
		t.Errorf("unexpected %q", got)
	}
	if got := NormalizeRut(" 12345678 5 "); got != "12345678-5" {
		t.Errorf("unexpected %q", got)
	}
}

func TestFormatPhone(t *testing.T) {
	tests := map[string]string{
		"912345678":        "+56 9 1234 5678",
		"+56912345678":     "+56 9 1234 5678",
		"+56 9 1234 5678":  "+56 9 1234 5678",
		"(2) 2345-6789":    "+56 2 2345 6789",
		" 12345 ":          "12345",
		"+1 415 555 01234": "+1 415 555 01234",
	}
	for in, want := range tests {
		if got := FormatPhone(in); got != want {
			t.Errorf("FormatPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

type sample struct {
	Name    string `validate:"required"`
	Members int    `validate:"min=1"`
	Rut     string `validate:"omitempty,rut"`
	Zone    string `validate:"omitempty,iana_tz"`
}

func TestStruct(t *testing.T) {
	if err := Struct(sample{Name: "casa", Members: 2, Rut: "12345678-5", Zone: "America/Santiago"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	err := Struct(sample{Members: 0, Rut: "12345678-9", Zone: "Mars/Olympus"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	for _, part := range []string{"name is required", "members must be at least 1", "rut is not a valid RUT", "zone is not a known timezone"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("expected %q in %q", part, err.Error())
		}
	}
}
