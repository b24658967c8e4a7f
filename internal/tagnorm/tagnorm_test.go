package tagnorm_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"archivist/internal/tagnorm"
	"archivist/internal/testsupport"
)

func TestKey(t *testing.T) {
	cases := map[string]string{
		"Herbert A. Simon":           "herbert simon",
		"Dr. Allen Newell":           "allen newell",
		"Carnegie-Mellon University": "carnegiemellon university",
		"  Problem   Solving ":       "problem solving",
	}
	for in, want := range cases {
		if got := tagnorm.Key(in); got != want {
			t.Fatalf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRulesApply(t *testing.T) {
	rules, err := tagnorm.NewRules(map[string]string{
		"Herbert A Simon": "Herbert Simon",
		"H. Simon":        "Herbert A Simon",
		"CMU":             "Carnegie Mellon University",
	}, "misc")
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	got := rules.Apply([]string{"h. simon", "Herbert Simon", "Misc", "cmu", "Chess"})
	want := []string{"Herbert Simon", "Carnegie Mellon University", "Chess"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}
}

func TestRulesRejectCycles(t *testing.T) {
	if _, err := tagnorm.NewRules(map[string]string{"a": "b", "b": "a"}); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestLoadRulesAndEncode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "merge:\n  Feigenbaum: Edward Feigenbaum\n  E. Feigenbaum: Edward Feigenbaum\ndrop:\n  - untitled\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	rules, err := tagnorm.LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", rules.Len())
	}
	data, err := rules.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(data), "merge:\n    E. Feigenbaum: Edward Feigenbaum\n    Feigenbaum: Edward Feigenbaum\n") {
		t.Fatalf("unexpected encoding:\n%s", data)
	}
}

func TestFindSimilarAndGenerateRules(t *testing.T) {
	counts := map[string]int{
		"Herbert Simon":              10,
		"Herbert A. Simon":           3,
		"Carnegie Mellon University": 7,
		"Carnegie-Mellon University": 2,
		"Feigenbaum":                 1,
		"Edward Feigenbaum":          4,
		"Chess":                      5,
	}
	groups := tagnorm.FindSimilar(counts, 0.8)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %+v", groups)
	}
	if groups[0].Canonical() != "Herbert Simon" || !groups[0].Exact || groups[0].Total() != 13 {
		t.Fatalf("unexpected first group %+v", groups[0])
	}
	rules := tagnorm.GenerateRules(groups)
	got := rules.Apply([]string{"Feigenbaum", "Carnegie-Mellon University", "Herbert A. Simon", "Chess"})
	want := []string{"Edward Feigenbaum", "Carnegie Mellon University", "Herbert Simon", "Chess"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Apply = %v, want %v", got, want)
	}
}

func TestApplyToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedItems(t, store, 3)
	ctx := context.Background()
	for id, tags := range map[int64][]string{
		1: {"Herbert A Simon", "Chess"},
		2: {"Chess"},
		3: {"Herbert Simon", "herbert a simon"},
	} {
		if err := store.ReplaceTags(ctx, id, tags); err != nil {
			t.Fatalf("ReplaceTags: %v", err)
		}
	}
	rules, err := tagnorm.NewRules(map[string]string{"Herbert A Simon": "Herbert Simon"})
	if err != nil {
		t.Fatalf("NewRules: %v", err)
	}
	updated, err := tagnorm.ApplyToStore(ctx, store, rules)
	if err != nil {
		t.Fatalf("ApplyToStore: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated items, got %d", updated)
	}
	item, err := store.Get(ctx, 3)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(item.Tags, []string{"Herbert Simon"}) {
		t.Fatalf("unexpected tags %v", item.Tags)
	}
}
