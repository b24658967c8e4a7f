package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "box00001", "folder00100", "doc.pdf")

	written, err := WriteAtomic(dst, strings.NewReader("hello world"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if written.Size != 11 || written.Path != dst {
		t.Fatalf("unexpected result %+v", written)
	}
	// sha256("hello world")
	if written.SHA256 != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("unexpected hash %s", written.SHA256)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteAtomicLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "doc.pdf")

	if _, err := WriteAtomic(dst, failingReader{}, 0o644); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err=%v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{empty: false, full: true, filepath.Join(dir, "missing"): false, dir: false}
	for path, want := range cases {
		got, err := NonEmptyFile(path)
		if err != nil {
			t.Fatalf("NonEmptyFile(%s): %v", path, err)
		}
		if got != want {
			t.Fatalf("NonEmptyFile(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7 body"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := HasPrefix(path, []byte("%PDF-")); err != nil || !ok {
		t.Fatalf("HasPrefix = %v, %v", ok, err)
	}
	short := filepath.Join(dir, "short")
	if err := os.WriteFile(short, []byte("%P"), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := HasPrefix(short, []byte("%PDF-")); err != nil || ok {
		t.Fatalf("HasPrefix(short) = %v, %v", ok, err)
	}
}
