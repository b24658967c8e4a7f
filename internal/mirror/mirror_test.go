package mirror_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"archivist/internal/catalog"
	"archivist/internal/mirror"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/services/objectstore"
	"archivist/internal/stage"
	"archivist/internal/testsupport"
)

type fakeBucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	meta     map[string]map[string]string
	putErr   error
	healthy  error
	putCalls int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (b *fakeBucket) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *fakeBucket) Put(_ context.Context, obj objectstore.Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putCalls++
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	if obj.ContentType != "application/pdf" {
		return errors.New("unexpected content type " + obj.ContentType)
	}
	b.objects[obj.Key] = data
	b.meta[obj.Key] = obj.Metadata
	return nil
}

func (b *fakeBucket) PublicURL(key string) string { return "https://files.example.org/" + key }

func (b *fakeBucket) HealthCheck(context.Context) error { return b.healthy }

func TestMirrorUploadsLocalFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewItem(4, "Memo")
	testsupport.MustIngest(t, store, item)
	rel := item.Locator.RelativePath()
	testsupport.WritePDF(t, filepath.Join(cfg.Paths.PDFDir, rel), 128)
	testsupport.MustAdvance(t, store, 4, catalog.StageDownload, catalog.Result{LocalPDFPath: rel})

	bucket := newFakeBucket()
	handler := mirror.New(cfg, bucket, nil, nil)
	exec := pipeline.NewExecutor(store, nil, []stage.Handler{handler})
	report, err := exec.Run(context.Background(), catalog.StageMirror, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	data := bucket.objects[rel]
	if len(data) != 128 || !bytes.HasPrefix(data, []byte(testsupport.PDFHeader)) {
		t.Fatalf("unexpected upload of %d bytes", len(data))
	}
	meta := bucket.meta[rel]
	if meta["box"] != "box00005" || meta["doc_id"] != item.Locator.DocID() {
		t.Fatalf("unexpected metadata %v", meta)
	}

	got, err := store.Get(context.Background(), 4)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MirrorStatus != catalog.StatusDone || got.MirrorKey != rel {
		t.Fatalf("unexpected item %+v", got)
	}
	if url := handler.PublicURL(got); url != "https://files.example.org/"+rel {
		t.Fatalf("unexpected public url %q", url)
	}
}

func TestMirrorSkipsExistingObject(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	item := testsupport.NewItem(6, "Already there")
	bucket := newFakeBucket()
	bucket.objects[item.Locator.RelativePath()] = []byte("%PDF-old")

	_, err := mirror.New(cfg, bucket, nil, nil).Process(context.Background(), &item)
	var skip *pipeline.SkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected skip, got %v", err)
	}
	if skip.Result.MirrorKey != item.Locator.RelativePath() || bucket.putCalls != 0 {
		t.Fatalf("unexpected skip %+v puts=%d", skip, bucket.putCalls)
	}
}

func TestMirrorStreamsWhenNoLocalFile(t *testing.T) {
	var requested string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(testsupport.FakePDF(300))
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithPDFBaseURL(server.URL))
	item := testsupport.NewItem(8, "Streamed")
	item.LocalPDFPath = "box00002/folder00103/gone.pdf"
	bucket := newFakeBucket()

	result, err := mirror.New(cfg, bucket, nil, nil).Process(context.Background(), &item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.MirrorKey != item.Locator.RelativePath() || len(bucket.objects[result.MirrorKey]) != 300 {
		t.Fatalf("unexpected result %+v", result)
	}
	if filepath.Base(requested) != item.Locator.DocID()+".pdf" {
		t.Fatalf("unexpected source path %q", requested)
	}
}

func TestMirrorErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	item := testsupport.NewItem(9, "Broken")
	testsupport.WritePDF(t, filepath.Join(cfg.Paths.PDFDir, "x.pdf"), 16)
	item.LocalPDFPath = "x.pdf"

	bucket := newFakeBucket()
	bucket.putErr = services.Wrap(services.ErrTransient, "mirror", "upload", "503", nil)
	if _, err := mirror.New(cfg, bucket, nil, nil).Process(context.Background(), &item); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	if _, err := mirror.New(cfg, nil, nil, nil).Process(context.Background(), &item); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	item.LocalPDFPath = ""
	cfg.Source.PDFBaseURL = ""
	if _, err := mirror.New(cfg, newFakeBucket(), nil, nil).Process(context.Background(), &item); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without source url, got %v", err)
	}
}

func TestMirrorHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if h := mirror.New(cfg, nil, nil, nil).HealthCheck(context.Background()); h.Ready {
		t.Fatalf("expected unhealthy without bucket")
	}
	bucket := newFakeBucket()
	bucket.healthy = errors.New("bucket archive not found")
	if h := mirror.New(cfg, bucket, nil, nil).HealthCheck(context.Background()); h.Ready {
		t.Fatalf("expected unhealthy on bucket error")
	}
	bucket.healthy = nil
	if h := mirror.New(cfg, bucket, nil, nil).HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected healthy, got %+v", h)
	}
}
