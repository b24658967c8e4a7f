package download_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"archivist/internal/catalog"
	"archivist/internal/download"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/stage"
	"archivist/internal/testsupport"
)

type fileServer struct {
	mu       sync.Mutex
	requests []string
	body     func(path string) (int, []byte)
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	s.mu.Unlock()
	status, body := http.StatusOK, testsupport.FakePDF(2048)
	if s.body != nil {
		status, body = s.body(r.URL.Path)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func setup(t *testing.T, srv *fileServer) (*download.Handler, *catalog.Store, string) {
	t.Helper()
	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithPDFBaseURL(server.URL+"/file"))
	store := testsupport.MustOpenStore(t, cfg)
	return download.New(cfg, nil, nil), store, cfg.Paths.PDFDir
}

func TestProcessWritesPDFUnderLocatorPath(t *testing.T) {
	srv := &fileServer{}
	handler, _, pdfDir := setup(t, srv)
	item := testsupport.NewItem(1, "Letter")
	item.Locator = catalog.Locator{Box: 69, Folder: 5305, Bundle: 1, Document: 1}

	result, err := handler.Process(context.Background(), &item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	wantRel := "box00069/folder05305/Simon_box00069_fld05305_bdl0001_doc0001.pdf"
	if result.LocalPDFPath != wantRel {
		t.Fatalf("unexpected path %q", result.LocalPDFPath)
	}
	wantURL := "/file/box00069/fld05305/bdl0001/Simon_box00069_fld05305_bdl0001_doc0001.pdf"
	if len(srv.requests) != 1 || srv.requests[0] != wantURL {
		t.Fatalf("unexpected requests %v", srv.requests)
	}
	info, err := os.Stat(filepath.Join(pdfDir, wantRel))
	if err != nil || info.Size() != 2048 {
		t.Fatalf("pdf not written: %v", err)
	}
}

func TestProcessReusesExistingFile(t *testing.T) {
	srv := &fileServer{}
	handler, _, pdfDir := setup(t, srv)
	item := testsupport.NewItem(2, "Memo")
	testsupport.WritePDF(t, filepath.Join(pdfDir, item.Locator.RelativePath()), 100)

	_, err := handler.Process(context.Background(), &item)
	var skip *pipeline.SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected skip, got %v", err)
	}
	if skip.Result.LocalPDFPath != item.Locator.RelativePath() {
		t.Fatalf("skip result lost the path: %+v", skip.Result)
	}
	if len(srv.requests) != 0 {
		t.Fatalf("existing file should not be fetched, got %v", srv.requests)
	}
}

func TestProcessRefetchesCorruptFile(t *testing.T) {
	srv := &fileServer{}
	handler, _, pdfDir := setup(t, srv)
	item := testsupport.NewItem(5, "Truncated")
	dest := filepath.Join(pdfDir, item.Locator.RelativePath())
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dest, []byte("<html>session expired</html>"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := handler.Process(context.Background(), &item); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(srv.requests) != 1 {
		t.Fatalf("corrupt file should be fetched again, got %v", srv.requests)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") || len(data) != 2048 {
		t.Fatalf("corrupt file not replaced, got %d bytes", len(data))
	}
}

func TestProcessForcedRunRefetchesExistingFile(t *testing.T) {
	srv := &fileServer{}
	handler, _, pdfDir := setup(t, srv)
	item := testsupport.NewItem(6, "Memo")
	dest := filepath.Join(pdfDir, item.Locator.RelativePath())
	testsupport.WritePDF(t, dest, 100)

	ctx := services.WithForce(context.Background(), true)
	if _, err := handler.Process(ctx, &item); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(srv.requests) != 1 {
		t.Fatalf("forced run should fetch again, got %v", srv.requests)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() != 2048 {
		t.Fatalf("file not replaced: %v", err)
	}
}

func TestProcessErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   []byte
		marker error
	}{
		{"missing", http.StatusNotFound, []byte("nope"), services.ErrNotFound},
		{"overloaded", http.StatusServiceUnavailable, nil, services.ErrTransient},
		{"html", http.StatusOK, []byte("<html>login</html>"), services.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := &fileServer{body: func(string) (int, []byte) { return tc.status, tc.body }}
			handler, _, pdfDir := setup(t, srv)
			item := testsupport.NewItem(3, "Report")
			_, err := handler.Process(context.Background(), &item)
			if !errors.Is(err, tc.marker) {
				t.Fatalf("expected %v, got %v", tc.marker, err)
			}
			if info, _ := os.Stat(filepath.Join(pdfDir, item.Locator.RelativePath())); info != nil {
				t.Fatal("failed download left a file behind")
			}
		})
	}
}

func TestProcessRequiresLocator(t *testing.T) {
	handler, _, _ := setup(t, &fileServer{})
	item := testsupport.NewItem(4, "No locator")
	item.Locator = catalog.Locator{}
	if _, err := handler.Process(context.Background(), &item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDownloadBatchThroughExecutor(t *testing.T) {
	srv := &fileServer{body: func(path string) (int, []byte) {
		if strings.Contains(path, "doc0002") {
			return http.StatusNotFound, nil
		}
		return http.StatusOK, testsupport.FakePDF(512)
	}}
	handler, store, _ := setup(t, srv)
	testsupport.SeedItems(t, store, 3)

	exec := pipeline.NewExecutor(store, nil, []stage.Handler{handler})
	report, err := exec.Run(context.Background(), catalog.StageDownload, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	item, err := store.Get(context.Background(), 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.DownloadStatus != catalog.StatusFailed {
		t.Fatalf("expected failed status, got %s", item.DownloadStatus)
	}

	again, err := exec.Run(context.Background(), catalog.StageDownload, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Attempted != 1 {
		t.Fatalf("only the failed item should be retried, attempted %d", again.Attempted)
	}
}

func TestHealthCheck(t *testing.T) {
	handler, _, _ := setup(t, &fileServer{})
	if h := handler.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected healthy, got %+v", h)
	}
}
