package summaries_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"archivist/internal/catalog"
	"archivist/internal/services"
	"archivist/internal/summaries"
	"archivist/internal/testsupport"
)

type fakeCompleter struct {
	reply   string
	failOn  string
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	if f.failOn != "" && strings.Contains(user, f.failOn) {
		return "", services.Wrap(services.ErrTransient, "llm", "complete", "503", nil)
	}
	return f.reply, nil
}

func (f *fakeCompleter) Model() string { return "deepseek-chat" }

// seedBox puts four documents into box 1: folders 100, 102 (two documents) and 104.
func seedBox(t *testing.T) *catalog.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustIngest(t, store,
		testsupport.NewItem(7, "Letter to Allen Newell"),
		testsupport.NewItem(14, "Chess program notes"),
		testsupport.NewItem(35, "NSF proposal draft"),
		testsupport.NewItem(42, "Reply from Newell"),
	)
	return store
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestFoldersSummarizedOnce(t *testing.T) {
	store := seedBox(t)
	client := &fakeCompleter{reply: "\"Newell correspondence, 1956\"\n"}
	s := summaries.New(store, client, nil, summaries.WithSleeper(noSleep))

	report, err := s.Folders(context.Background(), summaries.Options{})
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if report.Selected != 3 || report.Succeeded != 3 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	saved, err := store.Summaries(context.Background())
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(saved) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(saved))
	}
	for _, sum := range saved {
		if sum.Summary != "Newell correspondence, 1956" || sum.Model != "deepseek-chat" || sum.Type != catalog.SummaryFolder {
			t.Fatalf("unexpected summary %+v", sum)
		}
	}
	var twoDocs bool
	for _, p := range client.prompts {
		if strings.Contains(p, "Folder: Box 1, Folder 102") && strings.Contains(p, "Number of documents: 2") {
			twoDocs = true
		}
	}
	if !twoDocs {
		t.Fatalf("folder 102 prompt missing its two documents")
	}

	again, err := s.Folders(context.Background(), summaries.Options{})
	if err != nil || again.Selected != 0 {
		t.Fatalf("second run should find nothing, got %+v, %v", again, err)
	}
	forced, err := s.Folders(context.Background(), summaries.Options{Force: true, Limit: 2})
	if err != nil || forced.Selected != 2 || forced.Succeeded != 2 {
		t.Fatalf("forced run: %+v, %v", forced, err)
	}
}

func TestFolderFailureDoesNotStopRun(t *testing.T) {
	store := seedBox(t)
	client := &fakeCompleter{reply: "Chess research", failOn: "Folder 102"}
	report, err := summaries.New(store, client, nil, summaries.WithSleeper(noSleep)).Folders(context.Background(), summaries.Options{})
	if err != nil {
		t.Fatalf("Folders: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBoxPromptGroupsFolders(t *testing.T) {
	store := seedBox(t)
	client := &fakeCompleter{reply: "- Cognitive science correspondence"}
	report, err := summaries.New(store, client, nil, summaries.WithSleeper(noSleep)).Boxes(context.Background(), summaries.Options{})
	if err != nil {
		t.Fatalf("Boxes: %v", err)
	}
	if report.Succeeded != 1 || len(client.prompts) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	prompt := client.prompts[0]
	for _, want := range []string{"Number of folders: 3", "Number of documents: 4", "Folder 102 (2 docs): "} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	saved, err := store.Summaries(context.Background())
	if err != nil || len(saved) != 1 {
		t.Fatalf("Summaries: %v, %v", saved, err)
	}
	if saved[0].Type != catalog.SummaryBox || saved[0].Folder != 0 || saved[0].Summary != "Cognitive science correspondence" {
		t.Fatalf("unexpected box summary %+v", saved[0])
	}
}

func TestSummarizerRequiresClient(t *testing.T) {
	store := seedBox(t)
	if _, err := summaries.New(store, nil, nil).Boxes(context.Background(), summaries.Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
