package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"archivist/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "extract", "pdftotext", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "pdftotext", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrConfiguration, "analyze", "init", "missing key", nil), "configuration"},
		{services.Wrap(services.ErrValidation, "analyze", "prepare", "text too short", nil), "validation"},
		{services.Wrap(services.ErrNotFound, "download", "fetch", "404", nil), "not_found"},
		{fmt.Errorf("fetch: %w", context.DeadlineExceeded), "timeout"},
		{services.Wrap(services.ErrExternalTool, "extract", "tesseract", "exit 1", nil), "external_tool"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
		if tc.err != nil && services.Hint(tc.err) == "" {
			t.Fatalf("expected hint for %v", tc.err)
		}
	}
}
