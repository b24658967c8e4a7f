package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"archivist/internal/services"
	"archivist/internal/services/llm"
)

// Document is the input to one analysis.
type Document struct {
	NodeID   int64
	Title    string
	Series   string
	ItemType string
	Date     string
	Text     string
}

// Analysis is a provider's answer.
type Analysis struct {
	Summary  string
	Tags     []string
	Language string
	// Model names the model that produced the answer.
	Model string
}

// Analyzer produces an Analysis for a document.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, doc Document) (Analysis, error)
}

// Completer is implemented by llm.Client and anthropic.Client.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
	Configured() bool
	HealthCheck(ctx context.Context) error
}

// Provider adapts a Completer to Analyzer.
type Provider struct {
	name   string
	client Completer
}

// NewProvider wraps client under name.
func NewProvider(name string, client Completer) *Provider {
	return &Provider{name: name, client: client}
}

// Name implements Analyzer.
func (p *Provider) Name() string {
	return p.name
}

// Configured reports whether the provider has credentials.
func (p *Provider) Configured() bool {
	return p.client != nil && p.client.Configured()
}

// HealthCheck pings the provider.
func (p *Provider) HealthCheck(ctx context.Context) error {
	return p.client.HealthCheck(ctx)
}

type payload struct {
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Language string   `json:"language"`
}

// Analyze implements Analyzer.
func (p *Provider) Analyze(ctx context.Context, doc Document) (Analysis, error) {
	raw, err := p.client.CompleteJSON(ctx, systemPrompt, userPrompt(doc))
	if err != nil {
		return Analysis{}, err
	}
	var out payload
	if err := llm.DecodeLLMJSON(raw, &out); err != nil {
		return Analysis{}, services.Wrap(services.ErrExternalTool, p.name, "decode analysis",
			"response was not the expected JSON: "+llm.SummarizePayloadSnippet(raw), err)
	}
	summary := tidySummary(out.Summary)
	if summary == "" {
		return Analysis{}, services.Wrap(services.ErrExternalTool, p.name, "decode analysis", "response has no summary", nil)
	}
	return Analysis{
		Summary:  summary,
		Tags:     out.Tags,
		Language: strings.TrimSpace(out.Language),
		Model:    p.client.Model(),
	}, nil
}

// Chain tries analyzers in order, each once.
type Chain struct {
	analyzers []Analyzer
}

// NewChain builds a chain; nil analyzers are ignored.
func NewChain(analyzers ...Analyzer) *Chain {
	c := &Chain{}
	for _, a := range analyzers {
		if a != nil {
			c.analyzers = append(c.analyzers, a)
		}
	}
	return c
}

// Len reports the number of analyzers.
func (c *Chain) Len() int {
	return len(c.analyzers)
}

// Analyzers returns the chain members in order.
func (c *Chain) Analyzers() []Analyzer {
	return append([]Analyzer(nil), c.analyzers...)
}

// Analyze returns the first successful analysis. When every provider fails
// the errors are joined in order; the last one decides the error class.
func (c *Chain) Analyze(ctx context.Context, doc Document) (Analysis, error) {
	if len(c.analyzers) == 0 {
		return Analysis{}, services.Wrap(services.ErrConfiguration, "analyze", "analyze", "no analysis provider configured", nil)
	}
	var errs []error
	for _, a := range c.analyzers {
		result, err := a.Analyze(ctx, doc)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) {
			return Analysis{}, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
	}
	last := errs[len(errs)-1]
	if len(errs) == 1 {
		return Analysis{}, last
	}
	return Analysis{}, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}
