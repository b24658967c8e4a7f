package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/fileutil"
	"archivist/internal/logging"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/stage"
)

// Handler downloads PDFs into the PDF directory.
type Handler struct {
	fetcher *Fetcher
	pdfDir  string
	logger  *slog.Logger
}

// New builds the download handler.
func New(cfg *config.Config, fetcher *Fetcher, logger *slog.Logger) *Handler {
	if fetcher == nil {
		fetcher = NewFetcher(cfg.Source, nil)
	}
	h := &Handler{fetcher: fetcher, pdfDir: cfg.Paths.PDFDir}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	h.logger = logging.NewComponentLogger(logger, "download")
}

// Stage implements stage.Handler.
func (h *Handler) Stage() catalog.Stage {
	return catalog.StageDownload
}

// Process fetches one PDF. The stored path is relative to the PDF directory.
// A file already on disk that starts with the PDF signature is reused without
// a network call, except in forced runs.
func (h *Handler) Process(ctx context.Context, item *catalog.Item) (catalog.Result, error) {
	if err := stage.RequireLocator("download", item); err != nil {
		return catalog.Result{}, err
	}
	rel := item.Locator.RelativePath()
	dest := filepath.Join(h.pdfDir, filepath.FromSlash(rel))
	result := catalog.Result{LocalPDFPath: rel}

	if !services.ForcedFromContext(ctx) {
		reusable, err := h.reusable(dest)
		if err != nil {
			return catalog.Result{}, services.Wrap(services.ErrTransient, "download", "stat", dest, err)
		}
		if reusable {
			return catalog.Result{}, pipeline.Skip(result, "pdf already on disk")
		}
	}

	url := item.Locator.SourceURL(h.fetcher.BaseURL())
	body, err := h.fetcher.Open(ctx, url)
	if err != nil {
		return catalog.Result{}, err
	}
	defer body.Close()

	written, err := fileutil.WriteAtomic(dest, body, 0o644)
	if err != nil {
		return catalog.Result{}, services.Wrap(services.ErrTransient, "download", "write", "store pdf", err)
	}
	if written.Size == 0 || (body.Size > 0 && written.Size != body.Size) {
		_ = os.Remove(dest)
		return catalog.Result{}, services.Wrap(services.ErrTransient, "download", "write",
			fmt.Sprintf("short read: got %d of %d bytes", written.Size, body.Size), nil)
	}
	h.logger.Debug("pdf downloaded",
		logging.String("path", rel),
		logging.Int64("bytes", written.Size),
		logging.String("sha256", written.SHA256),
	)
	return result, nil
}

// reusable reports whether dest already holds a PDF. A file without the
// signature is left to be overwritten by the fetch.
func (h *Handler) reusable(dest string) (bool, error) {
	exists, err := fileutil.NonEmptyFile(dest)
	if err != nil || !exists {
		return false, err
	}
	valid, err := fileutil.HasPrefix(dest, pdfMagic)
	if err != nil {
		return false, err
	}
	if !valid {
		logging.WarnWithContext(h.logger, "existing file is not a pdf; fetching again", "pdf_corrupt",
			logging.String("path", dest),
			logging.String(logging.FieldErrorHint, "an earlier download was interrupted or truncated"),
			logging.String(logging.FieldImpact, "file replaced by a fresh download"),
		)
	}
	return valid, nil
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	const name = "download"
	if h.fetcher.BaseURL() == "" {
		return stage.Unhealthy(name, "source.pdf_base_url not configured")
	}
	if err := os.MkdirAll(h.pdfDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("pdf directory unavailable: %v", err))
	}
	return stage.Healthy(name)
}
