package extract

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/download"
	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/stage"
)

// StreamHandler downloads each PDF to a temp file, extracts it and deletes
// the file. Download and extract complete together with no local path.
type StreamHandler struct {
	fetcher   *download.Fetcher
	extractor *Extractor
	ocr       config.OCR
	tempDir   string
	logger    *slog.Logger
}

// NewStream builds the stream handler. PDFs are spooled under data_dir/stream.
func NewStream(cfg *config.Config, fetcher *download.Fetcher, tools TextTools, logger *slog.Logger) *StreamHandler {
	if fetcher == nil {
		fetcher = download.NewFetcher(cfg.Source, nil)
	}
	h := &StreamHandler{
		fetcher:   fetcher,
		extractor: NewExtractor(tools, cfg.OCR.MinNativeChars),
		ocr:       cfg.OCR,
		tempDir:   filepath.Join(cfg.Paths.DataDir, "stream"),
	}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *StreamHandler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	h.logger = logging.NewComponentLogger(logger, "stream")
}

// Stage implements stage.Handler.
func (h *StreamHandler) Stage() catalog.Stage {
	return catalog.StageStream
}

// Process implements stage.Handler.
func (h *StreamHandler) Process(ctx context.Context, item *catalog.Item) (catalog.Result, error) {
	if err := stage.RequireLocator("stream", item); err != nil {
		return catalog.Result{}, err
	}
	body, err := h.fetcher.Open(ctx, item.Locator.SourceURL(h.fetcher.BaseURL()))
	if err != nil {
		return catalog.Result{}, err
	}
	defer body.Close()

	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		return catalog.Result{}, services.Wrap(services.ErrTransient, "stream", "spool", "create spool dir", err)
	}
	tmp, err := os.CreateTemp(h.tempDir, "archivist-stream-*.pdf")
	if err != nil {
		return catalog.Result{}, services.Wrap(services.ErrTransient, "stream", "spool", "create temp file", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.ReadFrom(body); err != nil {
		tmp.Close()
		return catalog.Result{}, services.Wrap(services.ErrTransient, "stream", "spool", "write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return catalog.Result{}, services.Wrap(services.ErrTransient, "stream", "spool", "close temp file", err)
	}

	text, err := h.extractor.Extract(ctx, path)
	if err != nil {
		return catalog.Result{}, err
	}
	h.logger.Debug("text streamed",
		logging.String("method", string(text.Method)),
		logging.Int("chars", len(text.Content)),
	)
	return catalog.Result{TextContent: text.Content}, nil
}

// HealthCheck implements stage.Handler.
func (h *StreamHandler) HealthCheck(context.Context) stage.Health {
	if h.fetcher.BaseURL() == "" {
		return stage.Unhealthy("stream", "source.pdf_base_url not configured")
	}
	return toolsHealth("stream", h.ocr)
}
