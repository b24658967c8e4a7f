package download

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"archivist/internal/config"
	"archivist/internal/services"
)

var pdfMagic = []byte("%PDF-")

// Fetcher streams PDFs from the archive file server.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewFetcher builds a fetcher from the source config section. A nil client
// gets one with the configured timeout.
func NewFetcher(cfg config.Source, client *http.Client) *Fetcher {
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, baseURL: cfg.PDFBaseURL, userAgent: cfg.UserAgent}
}

// BaseURL returns the file server root used to build source URLs.
func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Body is an open PDF response.
type Body struct {
	io.Reader
	closer io.Closer
	// Size is the advertised length, or -1 when unknown.
	Size int64
}

// Close releases the response.
func (b *Body) Close() error {
	return b.closer.Close()
}

// Open requests url and returns its body once the status and PDF signature
// have been checked. Callers must close the body.
func (f *Fetcher) Open(ctx context.Context, url string) (*Body, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "download", "fetch", "build request", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return nil, err
		case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
			return nil, services.Wrap(services.ErrTimeout, "download", "fetch", "file server timed out", err)
		default:
			return nil, services.Wrap(services.ErrTransient, "download", "fetch", "request failed", err)
		}
	}
	if marker := services.StatusMarker(resp.StatusCode); marker != nil {
		resp.Body.Close()
		return nil, services.Wrap(marker, "download", "fetch", fmt.Sprintf("file server returned %s for %s", resp.Status, url), nil)
	}

	buffered := bufio.NewReader(resp.Body)
	head, err := buffered.Peek(len(pdfMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrTransient, "download", "fetch", "read response", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrValidation, "download", "fetch",
			fmt.Sprintf("response is not a PDF (content-type %q)", resp.Header.Get("Content-Type")), nil)
	}
	return &Body{Reader: buffered, closer: resp.Body, Size: resp.ContentLength}, nil
}

// Bytes fetches url fully into memory.
func (f *Fetcher) Bytes(ctx context.Context, url string) ([]byte, error) {
	body, err := f.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "download", "fetch", "read response", err)
	}
	return data, nil
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
