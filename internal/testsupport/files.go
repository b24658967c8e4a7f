package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// PDFHeader starts every fake PDF produced by these helpers.
const PDFHeader = "%PDF-1.4\n"

// FakePDF returns a byte slice that begins with a PDF header and is padded to
// size bytes. A size smaller than the header yields just the header.
func FakePDF(size int) []byte {
	if size < len(PDFHeader) {
		size = len(PDFHeader)
	}
	buf := bytes.Repeat([]byte{0x42}, size)
	copy(buf, PDFHeader)
	return buf
}

// WritePDF creates parent directories and writes a fake PDF of size bytes.
func WritePDF(t testing.TB, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, FakePDF(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
