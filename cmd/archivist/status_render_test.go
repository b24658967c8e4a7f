package main

import (
	"fmt"
	"strings"
	"testing"

	"archivist/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Database", statusError, "locked", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Database:", "[FAIL] locked")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Database", statusOK, "ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestPreflightKind(t *testing.T) {
	cases := []struct {
		result preflight.Result
		want   statusKind
	}{
		{preflight.Result{Passed: true}, statusOK},
		{preflight.Result{Skipped: true}, statusWarn},
		{preflight.Result{}, statusError},
	}
	for _, tc := range cases {
		if got := preflightKind(tc.result); got != tc.want {
			t.Fatalf("preflightKind(%+v) = %v, want %v", tc.result, got, tc.want)
		}
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&strings.Builder{}) {
		t.Fatal("expected no color for non-file writers")
	}
}
