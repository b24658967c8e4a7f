package language_test

import (
	"testing"

	"archivist/internal/language"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"English", "English"},
		{"english", "English"},
		{" en ", "English"},
		{"eng", "English"},
		{"en-US", "English"},
		{"ger", "German"},
		{"Deutsch", "German"},
		{"fre", "French"},
		{"zh-Hant", "Chinese"},
		{"Latin.", "Latin"},
		{"", language.Unknown},
		{"unknown", language.Unknown},
		{"cs", "Czech"},
		{"klingonese", "Klingonese"},
	}
	for _, tt := range tests {
		if got := language.Normalize(tt.input); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToISO2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"English", "en"},
		{"deu", "de"},
		{"dut", "nl"},
		{"pt-BR", "pt"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := language.ToISO2(tt.input); got != tt.want {
			t.Fatalf("ToISO2(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
