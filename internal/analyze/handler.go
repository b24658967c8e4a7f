package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/language"
	"archivist/internal/logging"
	"archivist/internal/services"
	"archivist/internal/services/anthropic"
	"archivist/internal/services/llm"
	"archivist/internal/stage"
	"archivist/internal/tagnorm"
	"archivist/internal/textutil"
)

// Handler runs the analysis chain for the analyze stage.
type Handler struct {
	chain    *Chain
	rules    *tagnorm.Rules
	maxChars int
	minChars int
	logger   *slog.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithRules normalizes tags through rules before they are stored.
func WithRules(rules *tagnorm.Rules) Option {
	return func(h *Handler) { h.rules = rules }
}

// New builds the handler around chain.
func New(cfg config.Analysis, chain *Chain, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{chain: chain, maxChars: cfg.MaxChars, minChars: cfg.MinChars}
	h.SetLogger(logger)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// DefaultChain builds the configured provider chain: the OpenAI-compatible
// primary first, the Anthropic fallback second. Providers without an API key
// are left out.
func DefaultChain(cfg config.Analysis) *Chain {
	var analyzers []Analyzer
	primary := NewProvider("deepseek", llm.NewClient(llm.ConfigFromProvider(cfg.Primary)))
	if primary.Configured() {
		analyzers = append(analyzers, primary)
	}
	fallback := NewProvider("anthropic", anthropic.NewClient(cfg.Fallback))
	if fallback.Configured() {
		analyzers = append(analyzers, fallback)
	}
	return NewChain(analyzers...)
}

// NewFromConfig wires the default chain and loads tag rules when configured.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	var opts []Option
	if path := strings.TrimSpace(cfg.Analysis.TagRulesPath); path != "" {
		rules, err := tagnorm.LoadRules(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "analyze", "load tag rules", path, err)
		}
		opts = append(opts, WithRules(rules))
	}
	return New(cfg.Analysis, DefaultChain(cfg.Analysis), logger, opts...), nil
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	h.logger = logging.NewComponentLogger(logger, "analyze")
}

// Stage implements stage.Handler.
func (h *Handler) Stage() catalog.Stage {
	return catalog.StageAnalyze
}

// Process implements stage.Handler.
func (h *Handler) Process(ctx context.Context, item *catalog.Item) (catalog.Result, error) {
	text := strings.TrimSpace(textutil.Truncate(item.TextContent, h.maxChars))
	if utf8.RuneCountInString(text) < h.minChars {
		return catalog.Result{}, services.Wrap(services.ErrValidation, "analyze", "prepare text",
			fmt.Sprintf("only %d characters of text; at least %d required", utf8.RuneCountInString(text), h.minChars), nil)
	}
	doc := Document{
		NodeID:   item.NodeID,
		Title:    item.Title,
		Series:   item.Series,
		ItemType: item.ItemType,
		Date:     item.Date,
		Text:     text,
	}
	analysis, err := h.chain.Analyze(ctx, doc)
	if err != nil {
		return catalog.Result{}, err
	}
	lang := language.Normalize(analysis.Language)
	tags := catalog.NormalizeTagSet(analysis.Tags)
	if h.rules != nil {
		tags = h.rules.Apply(tags)
	}
	h.logger.Debug("document analyzed",
		logging.String("model", analysis.Model),
		logging.Int("tags", len(tags)),
		logging.String("language", lang),
	)
	return catalog.Result{
		Summary:       analysis.Summary,
		Tags:          tags,
		Language:      lang,
		AnalysisModel: analysis.Model,
	}, nil
}

// HealthCheck implements stage.Handler. It does not spend tokens.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if h.chain == nil || h.chain.Len() == 0 {
		return stage.Unhealthy("analyze", "no analysis provider has an api key")
	}
	names := make([]string, 0, h.chain.Len())
	for _, a := range h.chain.Analyzers() {
		names = append(names, a.Name())
	}
	return stage.Health{Name: "analyze", Ready: true, Detail: "providers: " + strings.Join(names, ", ")}
}
