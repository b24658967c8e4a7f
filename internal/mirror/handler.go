package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/download"
	"archivist/internal/logging"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/services/objectstore"
	"archivist/internal/stage"
)

const metadataSource = "herbert-simon-papers-archive"

// Handler uploads PDFs to the mirror bucket.
type Handler struct {
	store   objectstore.Store
	fetcher *download.Fetcher
	pdfDir  string
	logger  *slog.Logger
}

// New builds the mirror handler. A nil fetcher is built from the source
// config.
func New(cfg *config.Config, store objectstore.Store, fetcher *download.Fetcher, logger *slog.Logger) *Handler {
	if fetcher == nil {
		fetcher = download.NewFetcher(cfg.Source, nil)
	}
	h := &Handler{store: store, fetcher: fetcher, pdfDir: cfg.Paths.PDFDir}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	h.logger = logging.NewComponentLogger(logger, "mirror")
}

// Stage implements stage.Handler.
func (h *Handler) Stage() catalog.Stage {
	return catalog.StageMirror
}

// Key returns the bucket key for an item.
func Key(item *catalog.Item) string {
	return item.Locator.RelativePath()
}

// Process implements stage.Handler. Objects already in the bucket are not
// uploaded again.
func (h *Handler) Process(ctx context.Context, item *catalog.Item) (catalog.Result, error) {
	if h.store == nil {
		return catalog.Result{}, services.Wrap(services.ErrConfiguration, "mirror", "upload", "mirror bucket not configured", nil)
	}
	if err := stage.RequireLocator("mirror", item); err != nil {
		return catalog.Result{}, err
	}
	key := Key(item)
	result := catalog.Result{MirrorKey: key}

	exists, err := h.store.Exists(ctx, key)
	if err != nil {
		return catalog.Result{}, err
	}
	if exists {
		return catalog.Result{}, pipeline.SkipRemote(result, "object already mirrored")
	}

	body, size, origin, err := h.open(ctx, item)
	if err != nil {
		return catalog.Result{}, err
	}
	defer body.Close()

	err = h.store.Put(ctx, objectstore.Object{
		Key:         key,
		Body:        body,
		Size:        size,
		ContentType: "application/pdf",
		Metadata:    metadata(item),
	})
	if err != nil {
		return catalog.Result{}, err
	}
	h.logger.Debug("pdf mirrored",
		logging.String("key", key),
		logging.String("origin", origin),
		logging.Int64("bytes", size),
	)
	return result, nil
}

// open prefers the local copy and falls back to the source URL.
func (h *Handler) open(ctx context.Context, item *catalog.Item) (io.ReadCloser, int64, string, error) {
	if rel := strings.TrimSpace(item.LocalPDFPath); rel != "" {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(h.pdfDir, filepath.FromSlash(rel))
		}
		file, err := os.Open(path)
		switch {
		case err == nil:
			info, statErr := file.Stat()
			if statErr != nil {
				file.Close()
				return nil, 0, "", services.Wrap(services.ErrTransient, "mirror", "open", path, statErr)
			}
			return file, info.Size(), "local", nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, 0, "", services.Wrap(services.ErrTransient, "mirror", "open", path, err)
		}
		h.logger.Debug("local pdf missing, streaming from source", logging.String("path", path))
	}
	if h.fetcher.BaseURL() == "" {
		return nil, 0, "", services.Wrap(services.ErrConfiguration, "mirror", "open", "no local pdf and source.pdf_base_url not configured", nil)
	}
	body, err := h.fetcher.Open(ctx, item.Locator.SourceURL(h.fetcher.BaseURL()))
	if err != nil {
		return nil, 0, "", err
	}
	return body, body.Size, "source", nil
}

func metadata(item *catalog.Item) map[string]string {
	loc := item.Locator
	return map[string]string{
		"source": metadataSource,
		"box":    fmt.Sprintf("box%05d", loc.Box),
		"folder": fmt.Sprintf("folder%05d", loc.Folder),
		"doc_id": loc.DocID(),
	}
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "mirror"
	if h.store == nil {
		return stage.Unhealthy(name, "mirror credentials not configured")
	}
	if err := h.store.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}

// PublicURL returns the public address of a mirrored item, or "" when the
// item has not been mirrored.
func (h *Handler) PublicURL(item *catalog.Item) string {
	if h.store == nil || item.MirrorKey == "" {
		return ""
	}
	return h.store.PublicURL(item.MirrorKey)
}
