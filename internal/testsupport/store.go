package testsupport

import (
	"context"
	"fmt"
	"testing"

	"archivist/internal/catalog"
	"archivist/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewItem returns a catalog item with a valid locator derived from nodeID.
func NewItem(nodeID int64, title string) catalog.Item {
	return catalog.Item{
		NodeID:   nodeID,
		Title:    title,
		Date:     "1956",
		DateSort: "1956-01-01",
		Series:   "Series I: Correspondence",
		ItemType: "correspondence",
		Locator: catalog.Locator{
			Box:      int(nodeID%7) + 1,
			Folder:   int(nodeID%5) + 100,
			Bundle:   1,
			Document: int(nodeID),
		},
	}
}

// SeedItems ingests n generated items with node ids starting at 1.
func SeedItems(t testing.TB, store *catalog.Store, n int) []catalog.Item {
	t.Helper()

	items := make([]catalog.Item, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, NewItem(int64(i), fmt.Sprintf("Document %d", i)))
	}
	MustIngest(t, store, items...)
	return items
}

// MustIngest inserts items and fails the test on error.
func MustIngest(t testing.TB, store *catalog.Store, items ...catalog.Item) {
	t.Helper()

	if _, err := store.Ingest(context.Background(), items); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
}

// MustAdvance claims and completes one stage for a single item.
func MustAdvance(t testing.TB, store *catalog.Store, nodeID int64, stage catalog.Stage, result catalog.Result) {
	t.Helper()

	ctx := context.Background()
	claimed, err := store.Claim(ctx, stage, catalog.ClaimOptions{NodeIDs: []int64{nodeID}, Limit: 1})
	if err != nil {
		t.Fatalf("Claim %s for %d: %v", stage, nodeID, err)
	}
	if len(claimed) != 1 {
		t.Fatalf("Claim %s for %d: expected 1 item, got %d", stage, nodeID, len(claimed))
	}
	if err := store.Complete(ctx, nodeID, stage, result); err != nil {
		t.Fatalf("Complete %s for %d: %v", stage, nodeID, err)
	}
}

// MustExtract drives an item through download and extract with the given text.
func MustExtract(t testing.TB, store *catalog.Store, nodeID int64, text string) {
	t.Helper()

	MustAdvance(t, store, nodeID, catalog.StageDownload, catalog.Result{LocalPDFPath: fmt.Sprintf("doc-%d.pdf", nodeID)})
	MustAdvance(t, store, nodeID, catalog.StageExtract, catalog.Result{TextContent: text})
}
