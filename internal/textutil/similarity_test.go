package textutil

import (
	"math"
	"testing"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Herbert Simon", "Herbert Simon", 1},
		{"case insensitive", "ALLEN NEWELL", "allen newell", 1},
		{"both empty", "", "", 1},
		{"one empty", "abc", "", 0},
		{"disjoint", "abc", "xyz", 0},
		// difflib: SequenceMatcher(None, "abcd", "bcde").ratio() == 0.75
		{"overlap", "abcd", "bcde", 0.75},
		{"hyphen variant", "Carnegie Mellon University", "Carnegie-Mellon University", 2 * 25.0 / 52},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Ratio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRatioSymmetricForNames(t *testing.T) {
	a, b := "Herbert Simon", "Herbert A Simon"
	if Ratio(a, b) < 0.8 {
		t.Fatalf("expected similar names, got %v", Ratio(a, b))
	}
	if math.Abs(Ratio(a, b)-Ratio(b, a)) > 1e-9 {
		t.Fatalf("ratio not symmetric")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("keep", 0); got != "keep" {
		t.Fatalf("Truncate = %q", got)
	}
}
