package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"archivist/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.PDFDir = filepath.Join(base, "pdfs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "catalog.db")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Pipeline.DefaultDelaySeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPDFBaseURL points downloads at a test server.
func WithPDFBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.PDFBaseURL = url
	}
}

// WithAnalysisKeys sets both provider keys and endpoints.
func WithAnalysisKeys(primaryURL, fallbackURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.Primary.APIKey = "primary-test-key"
		b.cfg.Analysis.Primary.BaseURL = primaryURL
		b.cfg.Analysis.Fallback.APIKey = "fallback-test-key"
		b.cfg.Analysis.Fallback.BaseURL = fallbackURL
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each script body is run by /bin/sh; an empty body
// exits 0. If scripts is empty the OCR tools are stubbed.
func WithStubbedBinaries(scripts map[string]string) ConfigOption {
	return func(b *configBuilder) {
		if len(scripts) == 0 {
			scripts = map[string]string{"pdftotext": "", "pdftoppm": "", "tesseract": ""}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for name, body := range scripts {
			if body == "" {
				body = "exit 0"
			}
			script := []byte("#!/bin/sh\n" + body + "\n")
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
