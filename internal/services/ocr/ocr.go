package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"archivist/internal/config"
	"archivist/internal/services"
)

const pagePrefix = "page"

// Executor runs a binary and returns its stdout.
type Executor interface {
	Output(ctx context.Context, binary string, args ...string) ([]byte, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client runs pdftotext, pdftoppm and tesseract.
type Client struct {
	pdftotext string
	pdftoppm  string
	tesseract string
	languages string
	dpi       int
	timeout   time.Duration
	exec      Executor
}

// New constructs a client from the ocr config section.
func New(cfg config.OCR, opts ...Option) *Client {
	c := &Client{
		pdftotext: strings.TrimSpace(cfg.PdftotextBinary),
		pdftoppm:  strings.TrimSpace(cfg.PdftoppmBinary),
		tesseract: strings.TrimSpace(cfg.TesseractBinary),
		languages: strings.TrimSpace(cfg.Languages),
		dpi:       cfg.DPI,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		exec:      commandExecutor{},
	}
	if c.dpi <= 0 {
		c.dpi = 200
	}
	if c.languages == "" {
		c.languages = "eng"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binaries lists the external tools the client depends on.
func (c *Client) Binaries() []string {
	return []string{c.pdftotext, c.pdftoppm, c.tesseract}
}

// NativeText returns the embedded text layer of pdfPath.
func (c *Client) NativeText(ctx context.Context, pdfPath string) (string, error) {
	out, err := c.run(ctx, "native text", c.pdftotext, "-layout", "-enc", "UTF-8", pdfPath, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// OCRText rasterizes every page of pdfPath and runs tesseract on each image.
// Pages are joined with a blank line in page order.
func (c *Client) OCRText(ctx context.Context, pdfPath string) (string, error) {
	workDir, err := os.MkdirTemp("", "archivist-ocr-")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "ocr", "rasterize", "create work dir", err)
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, pagePrefix)
	if _, err := c.run(ctx, "rasterize", c.pdftoppm, "-r", strconv.Itoa(c.dpi), "-png", pdfPath, prefix); err != nil {
		return "", err
	}
	pages, err := pageImages(workDir)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ocr", "rasterize", "list page images", err)
	}
	if len(pages) == 0 {
		return "", services.Wrap(services.ErrExternalTool, "ocr", "rasterize", "pdftoppm produced no pages", nil)
	}

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := c.run(ctx, "recognize", c.tesseract, page, "stdout", "-l", c.languages)
		if err != nil {
			return "", err
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

func (c *Client) run(ctx context.Context, op, binary string, args ...string) ([]byte, error) {
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ocr", op, "binary not configured", nil)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := c.exec.Output(ctx, binary, args...)
	if err == nil {
		return out, nil
	}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, services.Wrap(services.ErrTimeout, "ocr", op, fmt.Sprintf("%s exceeded %s", filepath.Base(binary), c.timeout), err)
	case errors.Is(err, context.Canceled):
		return nil, err
	case errors.Is(err, exec.ErrNotFound):
		return nil, services.Wrap(services.ErrConfiguration, "ocr", op, fmt.Sprintf("%s not found on PATH", binary), err)
	default:
		return nil, services.Wrap(services.ErrExternalTool, "ocr", op, fmt.Sprintf("%s failed", filepath.Base(binary)), err)
	}
}

// pageImages returns pdftoppm output sorted by page number. pdftoppm pads the
// number to the width of the page count, so names are parsed rather than
// sorted lexically.
func pageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pagePrefix+"-*.png"))
	if err != nil {
		return nil, err
	}
	number := func(path string) int {
		base := strings.TrimSuffix(filepath.Base(path), ".png")
		n, err := strconv.Atoi(strings.TrimPrefix(base, pagePrefix+"-"))
		if err != nil {
			return 0
		}
		return n
	}
	sort.Slice(matches, func(i, j int) bool {
		return number(matches[i]) < number(matches[j])
	})
	return matches, nil
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
