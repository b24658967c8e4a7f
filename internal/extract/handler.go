package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/deps"
	"archivist/internal/fileutil"
	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/stage"
)

// Handler extracts text from downloaded PDFs.
type Handler struct {
	extractor *Extractor
	pdfDir    string
	ocr       config.OCR
	logger    *slog.Logger
}

// New builds the extract handler.
func New(cfg *config.Config, tools TextTools, logger *slog.Logger) *Handler {
	h := &Handler{
		extractor: NewExtractor(tools, cfg.OCR.MinNativeChars),
		pdfDir:    cfg.Paths.PDFDir,
		ocr:       cfg.OCR,
	}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	h.logger = logging.NewComponentLogger(logger, "extract")
}

// Stage implements stage.Handler.
func (h *Handler) Stage() catalog.Stage {
	return catalog.StageExtract
}

// Process extracts the text of the item's local PDF.
func (h *Handler) Process(ctx context.Context, item *catalog.Item) (catalog.Result, error) {
	path := h.resolve(item.LocalPDFPath)
	if path == "" {
		return catalog.Result{}, services.Wrap(services.ErrValidation, "extract", "locate pdf",
			fmt.Sprintf("node %d has no local pdf", item.NodeID), nil)
	}
	ok, err := fileutil.NonEmptyFile(path)
	if err != nil {
		return catalog.Result{}, services.Wrap(services.ErrTransient, "extract", "locate pdf", path, err)
	}
	if !ok {
		return catalog.Result{}, services.Wrap(services.ErrNotFound, "extract", "locate pdf",
			fmt.Sprintf("%s is missing or empty; rerun download --force", item.LocalPDFPath), nil)
	}

	text, err := h.extractor.Extract(ctx, path)
	if err != nil {
		return catalog.Result{}, err
	}
	h.logger.Debug("text extracted",
		logging.String("method", string(text.Method)),
		logging.Int("chars", len(text.Content)),
	)
	return catalog.Result{TextContent: text.Content}, nil
}

func (h *Handler) resolve(stored string) string {
	if stored == "" {
		return ""
	}
	if filepath.IsAbs(stored) {
		return stored
	}
	return filepath.Join(h.pdfDir, filepath.FromSlash(stored))
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return toolsHealth("extract", h.ocr)
}

func toolsHealth(name string, cfg config.OCR) stage.Health {
	statuses := deps.CheckBinaries(deps.OCRRequirements(cfg))
	if missing := deps.Missing(statuses); len(missing) > 0 {
		return stage.Unhealthy(name, fmt.Sprintf("missing binaries: %v", missing))
	}
	for _, s := range statuses {
		if !s.Available {
			return stage.Health{Name: name, Ready: true, Detail: fmt.Sprintf("%s unavailable; scanned pages cannot be OCRed", s.Name)}
		}
	}
	return stage.Healthy(name)
}
