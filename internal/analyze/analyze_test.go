package analyze_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"archivist/internal/analyze"
	"archivist/internal/catalog"
	"archivist/internal/pipeline"
	"archivist/internal/services"
	"archivist/internal/stage"
	"archivist/internal/tagnorm"
	"archivist/internal/testsupport"
)

type fakeAnalyzer struct {
	name   string
	result analyze.Analysis
	err    error
	calls  int
}

func (f *fakeAnalyzer) Name() string { return f.name }

func (f *fakeAnalyzer) Analyze(context.Context, analyze.Document) (analyze.Analysis, error) {
	f.calls++
	return f.result, f.err
}

type fakeCompleter struct {
	reply      string
	err        error
	lastUser   string
	lastSystem string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	f.lastSystem, f.lastUser = system, user
	return f.reply, f.err
}
func (f *fakeCompleter) Model() string                     { return "fake-model" }
func (f *fakeCompleter) Configured() bool                  { return true }
func (f *fakeCompleter) HealthCheck(context.Context) error { return nil }

func TestChainFallsBackInOrder(t *testing.T) {
	first := &fakeAnalyzer{name: "deepseek", err: services.Wrap(services.ErrTransient, "llm", "complete", "503", nil)}
	second := &fakeAnalyzer{name: "anthropic", result: analyze.Analysis{Summary: "ok", Model: "claude"}}
	third := &fakeAnalyzer{name: "unused"}

	got, err := analyze.NewChain(first, nil, second, third).Analyze(context.Background(), analyze.Document{Text: "x"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Model != "claude" || first.calls != 1 || second.calls != 1 || third.calls != 0 {
		t.Fatalf("unexpected chain behavior: %+v calls=%d/%d/%d", got, first.calls, second.calls, third.calls)
	}
}

func TestChainReportsEveryFailure(t *testing.T) {
	first := &fakeAnalyzer{name: "deepseek", err: services.Wrap(services.ErrExternalTool, "llm", "complete", "bad request", nil)}
	second := &fakeAnalyzer{name: "anthropic", err: services.Wrap(services.ErrTimeout, "anthropic", "complete", "slow", nil)}

	_, err := analyze.NewChain(first, second).Analyze(context.Background(), analyze.Document{})
	if !errors.Is(err, services.ErrTimeout) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected both provider errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "deepseek") || !strings.Contains(err.Error(), "anthropic") {
		t.Fatalf("expected provider names in %q", err)
	}

	if _, err := analyze.NewChain().Analyze(context.Background(), analyze.Document{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("empty chain should be a configuration error, got %v", err)
	}
}

func TestProviderDecodesFencedJSON(t *testing.T) {
	client := &fakeCompleter{reply: "```json\n{\"summary\": \"This document discusses chess programs.\", \"tags\": [\"chess\", \"Allen Newell\"], \"language\": \"English\"}\n```"}
	provider := analyze.NewProvider("fake", client)

	got, err := provider.Analyze(context.Background(), analyze.Document{Title: "Chess memo", Text: "the text"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Summary != "Discusses chess programs." {
		t.Fatalf("indirect opener not removed: %q", got.Summary)
	}
	if len(got.Tags) != 2 || got.Language != "English" || got.Model != "fake-model" {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if !strings.Contains(client.lastUser, "Title: Chess memo") || !strings.Contains(client.lastUser, "Series: Unknown") {
		t.Fatalf("metadata missing from prompt: %q", client.lastUser)
	}

	client.reply = "I could not read this one."
	if _, err := provider.Analyze(context.Background(), analyze.Document{}); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected decode failure, got %v", err)
	}
	client.reply = `{"summary": "", "tags": []}`
	if _, err := provider.Analyze(context.Background(), analyze.Document{}); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected missing summary failure, got %v", err)
	}
}

func TestHandlerFallsBackToAnthropic(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid model"}`, http.StatusBadRequest)
	}))
	defer primary.Close()

	var seenText string
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) > 0 {
			seenText = req.Messages[0].Content
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{
				"type": "text",
				"text": `{"summary": "Requests funding for the chess project.", "tags": ["Chess", "A. Newell", "Funding", "chess"], "language": "en"}`,
			}},
		})
	}))
	defer fallback.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithAnalysisKeys(primary.URL, fallback.URL))
	cfg.Analysis.MaxChars = 40
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 1)
	testsupport.MustExtract(t, store, 1, strings.Repeat("funding ", 20))

	rules, err := tagnorm.NewRules(map[string]string{"A. Newell": "Allen Newell"}, "funding")
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	handler := analyze.New(cfg.Analysis, analyze.DefaultChain(cfg.Analysis), nil, analyze.WithRules(rules))
	if h := handler.HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("expected healthy handler, got %+v", h)
	}

	exec := pipeline.NewExecutor(store, nil, []stage.Handler{handler})
	report, err := exec.Run(context.Background(), catalog.StageAnalyze, pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if strings.Contains(seenText, strings.Repeat("funding ", 6)) {
		t.Fatalf("text was not truncated before sending")
	}

	item, err := store.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.AnalysisStatus != catalog.StatusDone || item.AnalysisModel != cfg.Analysis.Fallback.Model {
		t.Fatalf("unexpected item %+v", item)
	}
	if strings.Join(item.Tags, "|") != "Chess|Allen Newell" {
		t.Fatalf("unexpected tags %v", item.Tags)
	}
	if item.Language != "English" {
		t.Fatalf("expected normalized language, got %q", item.Language)
	}
}

func TestHandlerRejectsShortText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	analyzer := &fakeAnalyzer{name: "fake", result: analyze.Analysis{Summary: "unused"}}
	handler := analyze.New(cfg.Analysis, analyze.NewChain(analyzer), nil)

	item := testsupport.NewItem(3, "Blank")
	item.TextContent = "  p. 1  "
	if _, err := handler.Process(context.Background(), &item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if analyzer.calls != 0 {
		t.Fatalf("provider should not be called for short text")
	}
}

func TestHandlerUnhealthyWithoutKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analysis.Primary.APIKey = ""
	cfg.Analysis.Fallback.APIKey = ""
	handler := analyze.New(cfg.Analysis, analyze.DefaultChain(cfg.Analysis), nil)
	if h := handler.HealthCheck(context.Background()); h.Ready {
		t.Fatalf("expected unhealthy handler without keys, got %+v", h)
	}
}
