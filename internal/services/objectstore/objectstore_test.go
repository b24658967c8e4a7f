package objectstore_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"archivist/internal/services"
	"archivist/internal/services/objectstore"
	"archivist/internal/testsupport"
)

// fakeS3 answers the handful of path-style S3 requests the client issues.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	headers map[string]http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/archive/")
	switch r.Method {
	case http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("ETag", `"etag"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = string(data)
		f.headers[key] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newClient(t *testing.T, handler http.Handler) *objectstore.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t)
	cfg.Mirror.Endpoint = server.URL
	cfg.Mirror.AccessKeyID = "access"
	cfg.Mirror.SecretAccessKey = "secret"
	cfg.Mirror.Bucket = "archive"
	cfg.Mirror.Region = "auto"
	cfg.Mirror.UseSSL = false
	client, err := objectstore.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestExistsAndPut(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, headers: map[string]http.Header{}}
	client := newClient(t, fake)
	ctx := context.Background()
	key := "box00069/folder05305/Simon_box00069_fld05305_bdl0001_doc0001.pdf"

	exists, err := client.Exists(ctx, key)
	if err != nil || exists {
		t.Fatalf("Exists before upload = %v, %v", exists, err)
	}
	body := "%PDF-1.4 test"
	err = client.Put(ctx, objectstore.Object{
		Key:         key,
		Body:        strings.NewReader(body),
		Size:        int64(len(body)),
		ContentType: "application/pdf",
		Metadata:    map[string]string{"box": "69"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Plain-HTTP uploads use aws-chunked framing around the payload.
	if !strings.Contains(fake.objects[key], body) {
		t.Fatalf("unexpected stored body %q", fake.objects[key])
	}
	if got := fake.headers[key].Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := fake.headers[key].Get("X-Amz-Meta-Box"); got != "69" {
		t.Fatalf("unexpected metadata %q", got)
	}
	exists, err = client.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("Exists after upload = %v, %v", exists, err)
	}
}

func TestPutValidatesInput(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())
	err := client.Put(context.Background(), objectstore.Object{Body: strings.NewReader("x")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestForbiddenIsExternal(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := client.Exists(context.Background(), "key.pdf")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error for 403, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())
	if got := client.PublicURL("a/b.pdf"); !strings.HasSuffix(got, "/archive/a/b.pdf") || !strings.HasPrefix(got, "http://") {
		t.Fatalf("unexpected endpoint url %q", got)
	}

	cfg := testsupport.NewConfig(t)
	cfg.Mirror.AccountID = "acct"
	cfg.Mirror.AccessKeyID = "a"
	cfg.Mirror.SecretAccessKey = "s"
	cfg.Mirror.Bucket = "b"
	cfg.Mirror.PublicURL = "https://pub.example.org/"
	withPublic, err := objectstore.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := withPublic.PublicURL("a/b.pdf"); got != "https://pub.example.org/a/b.pdf" {
		t.Fatalf("unexpected public url %q", got)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := objectstore.New(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
