package extract_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archivist/internal/catalog"
	"archivist/internal/extract"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/services/ocr"
	"archivist/internal/stage"
	"archivist/internal/testsupport"
)

type fakeTools struct {
	native    string
	nativeErr error
	scanned   string
	ocrErr    error
	ocrCalls  int
	seenPaths []string
}

func (f *fakeTools) NativeText(_ context.Context, path string) (string, error) {
	f.seenPaths = append(f.seenPaths, path)
	return f.native, f.nativeErr
}

func (f *fakeTools) OCRText(context.Context, string) (string, error) {
	f.ocrCalls++
	return f.scanned, f.ocrErr
}

func TestExtractorPolicy(t *testing.T) {
	long := strings.Repeat("decision making ", 10)
	cases := []struct {
		name       string
		tools      fakeTools
		wantText   string
		wantMethod extract.Method
		wantOCR    int
		wantErr    error
	}{
		{name: "native", tools: fakeTools{native: long}, wantText: strings.TrimSpace(long), wantMethod: extract.MethodNative},
		{name: "short native falls back", tools: fakeTools{native: "p. 1", scanned: "scanned page"}, wantText: "scanned page", wantMethod: extract.MethodOCR, wantOCR: 1},
		{name: "exactly fifty chars falls back", tools: fakeTools{native: strings.Repeat("x", 50), scanned: "ocr"}, wantText: "ocr", wantMethod: extract.MethodOCR, wantOCR: 1},
		{name: "empty ocr keeps short native", tools: fakeTools{native: "p. 1"}, wantText: "p. 1", wantMethod: extract.MethodNative, wantOCR: 1},
		{name: "native error recovered by ocr", tools: fakeTools{nativeErr: errors.New("damaged xref"), scanned: "ok"}, wantText: "ok", wantMethod: extract.MethodOCR, wantOCR: 1},
		{name: "nothing recovered", tools: fakeTools{}, wantErr: services.ErrValidation, wantOCR: 1},
		{name: "ocr failure", tools: fakeTools{ocrErr: services.Wrap(services.ErrTimeout, "ocr", "recognize", "slow", nil)}, wantErr: services.ErrTimeout, wantOCR: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tools := tc.tools
			text, err := extract.NewExtractor(&tools, 50).Extract(context.Background(), "doc.pdf")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if text.Content != tc.wantText || text.Method != tc.wantMethod {
				t.Fatalf("got %q/%s, want %q/%s", text.Content, text.Method, tc.wantText, tc.wantMethod)
			}
			if tools.ocrCalls != tc.wantOCR {
				t.Fatalf("ocr calls = %d, want %d", tools.ocrCalls, tc.wantOCR)
			}
		})
	}
}

func TestNormalizeComposesToNFC(t *testing.T) {
	decomposed := "  Cafe\u0301\x00 notes\f"
	if got := extract.Normalize(decomposed); got != "Caf\u00e9 notes" {
		t.Fatalf("unexpected normalization %q", got)
	}
}

func TestHandlerReadsLocalPDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewItem(10, "Chess memo")
	testsupport.MustIngest(t, store, item)
	rel := item.Locator.RelativePath()
	testsupport.WritePDF(t, filepath.Join(cfg.Paths.PDFDir, rel), 64)
	testsupport.MustAdvance(t, store, 10, catalog.StageDownload, catalog.Result{LocalPDFPath: rel})

	tools := &fakeTools{native: strings.Repeat("heuristic search ", 8)}
	exec := pipeline.NewExecutor(store, nil, []stage.Handler{extract.New(cfg, tools, nil)})
	report, err := exec.Run(context.Background(), catalog.StageExtract, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if tools.seenPaths[0] != filepath.Join(cfg.Paths.PDFDir, rel) {
		t.Fatalf("unexpected pdf path %q", tools.seenPaths[0])
	}
	text, err := store.GetText(context.Background(), 10)
	if err != nil || !strings.HasPrefix(text, "heuristic search") {
		t.Fatalf("GetText = %q, %v", text, err)
	}
}

func TestReocrForcesOCRAndReopensAnalysis(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := testsupport.NewItem(12, "Scanned letter")
	testsupport.MustIngest(t, store, item, testsupport.NewItem(13, "Not downloaded"))
	rel := item.Locator.RelativePath()
	testsupport.WritePDF(t, filepath.Join(cfg.Paths.PDFDir, rel), 64)
	testsupport.MustAdvance(t, store, 12, catalog.StageDownload, catalog.Result{LocalPDFPath: rel})
	testsupport.MustAdvance(t, store, 12, catalog.StageExtract, catalog.Result{TextContent: "garbled native layer"})
	testsupport.MustAdvance(t, store, 12, catalog.StageAnalyze, catalog.Result{Summary: "garbage", Tags: []string{"noise"}})

	tools := &fakeTools{native: strings.Repeat("garbled native layer ", 8), scanned: "Dear Allen, thank you"}
	exec := pipeline.NewExecutor(store, nil, []stage.Handler{extract.New(cfg, tools, nil)})

	got, err := extract.Reocr(ctx, exec, store, 12)
	if err != nil {
		t.Fatalf("Reocr: %v", err)
	}
	if len(tools.seenPaths) != 0 || tools.ocrCalls != 1 {
		t.Fatalf("expected OCR only, got native=%d ocr=%d", len(tools.seenPaths), tools.ocrCalls)
	}
	if got.ExtractStatus != catalog.StatusDone || got.TextContent != "Dear Allen, thank you" {
		t.Fatalf("unexpected extract result %s %q", got.ExtractStatus, got.TextContent)
	}
	if got.AnalysisStatus != catalog.StatusNotStarted || got.Summary != "" || len(got.Tags) != 0 {
		t.Fatalf("analysis should be reopened, got %s %q %v", got.AnalysisStatus, got.Summary, got.Tags)
	}

	if _, err := extract.Reocr(ctx, exec, store, 13); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for undownloaded item, got %v", err)
	}
	if _, err := extract.Reocr(ctx, exec, store, 99); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHandlerMissingPDF(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := extract.New(cfg, &fakeTools{native: "unused"}, nil)
	item := testsupport.NewItem(11, "Gone")
	item.LocalPDFPath = "box00001/folder00100/missing.pdf"
	if _, err := handler.Process(context.Background(), &item); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	item.LocalPDFPath = ""
	if _, err := handler.Process(context.Background(), &item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandlerWithOCRBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{
		"pdftotext": `echo "1"`,
		"pdftoppm":  `: > "$5-1.png"`,
		"tesseract": `echo "Organizations and bounded rationality"`,
	}))
	pdf := filepath.Join(cfg.Paths.PDFDir, "scan.pdf")
	testsupport.WritePDF(t, pdf, 32)
	handler := extract.New(cfg, ocr.New(cfg.OCR), nil)
	item := testsupport.NewItem(12, "Scan")
	item.LocalPDFPath = "scan.pdf"

	result, err := handler.Process(context.Background(), &item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.TextContent != "Organizations and bounded rationality" {
		t.Fatalf("unexpected text %q", result.TextContent)
	}
	if h := handler.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected healthy tools, got %+v", h)
	}
}

func TestStreamCompletesBothStagesWithoutKeepingPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "doc0002") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(testsupport.FakePDF(256))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithPDFBaseURL(server.URL))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 2)

	tools := &fakeTools{native: strings.Repeat("administrative behavior ", 5)}
	exec := pipeline.NewExecutor(store, nil, []stage.Handler{extract.NewStream(cfg, nil, tools, nil)})
	report, err := exec.Run(context.Background(), catalog.StageStream, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	ok, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok.DownloadStatus != catalog.StatusDone || ok.ExtractStatus != catalog.StatusDone || ok.LocalPDFPath != "" {
		t.Fatalf("unexpected streamed item %+v", ok)
	}
	failed, err := store.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if failed.DownloadStatus != catalog.StatusFailed || failed.ExtractStatus != catalog.StatusFailed {
		t.Fatalf("fused stages must fail together, got %s/%s", failed.DownloadStatus, failed.ExtractStatus)
	}

	entries, err := os.ReadDir(filepath.Join(cfg.Paths.DataDir, "stream"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("spooled pdfs left behind: %v", entries)
	}
}
