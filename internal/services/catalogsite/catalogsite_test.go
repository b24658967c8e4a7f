package catalogsite_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/services"
	"archivist/internal/services/catalogsite"
)

const resultsPage = `<!doctype html>
<html><head><meta charset="utf-8"></head><body>
<div class="facets">
  <li data-drupal-facet-item-value="Herbert Simon"><span class="facet-item__count">(51)</span></li>
  <li data-drupal-facet-item-value="Other"><span class="facet-item__count">(9)</span></li>
</div>
<div class="view-content">
  <div class="views-row">
    <div class="search-image"><img src="/sites/thumbs/Simon_box00069_fld05305_bdl0001_doc0001.jpg"></div>
    <div class="search-details">
      <h2><a href="/node/338?search=1">Memo -- Notes on Chess Programs</a></h2>
      <p><strong>Date:</strong> March 3, 1956 <time datetime="1956-03-03">x</time></p>
      <p><strong>Series:</strong> Series I: Correspondence</p>
    </div>
  </div>
  <div class="views-row">
    <div class="search-details">
      <h2><a href="/node/339">Reprint #12 Administrative Behavior</a></h2>
      <p><strong>Date:</strong> circa 1947</p>
    </div>
  </div>
  <div class="views-row">
    <div class="search-details"><h2><a href="/about">Not an item</a></h2></div>
  </div>
</div>
</body></html>`

func TestParsePage(t *testing.T) {
	page, err := catalogsite.ParsePage(strings.NewReader(resultsPage), "https://example.org", "Herbert Simon")
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}
	if page.Total != 51 {
		t.Fatalf("expected total 51, got %d", page.Total)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	first := page.Items[0]
	if first.NodeID != 338 || first.Title != "Memo -- Notes on Chess Programs" {
		t.Fatalf("unexpected first item %+v", first)
	}
	if first.URL != "https://example.org/node/338" {
		t.Fatalf("unexpected url %q", first.URL)
	}
	if first.Date != "March 3, 1956" || first.DateSort != "1956-03-03" {
		t.Fatalf("unexpected dates %q %q", first.Date, first.DateSort)
	}
	if first.Series != "Series I: Correspondence" || first.ItemType != "memorandum" {
		t.Fatalf("unexpected series/type %q %q", first.Series, first.ItemType)
	}
	want := catalog.Locator{Box: 69, Folder: 5305, Bundle: 1, Document: 1}
	if first.Locator != want {
		t.Fatalf("unexpected locator %+v", first.Locator)
	}
	second := page.Items[1]
	if second.DateSort != "1947" || second.ItemType != "article" || second.Locator.Valid() {
		t.Fatalf("unexpected second item %+v", second)
	}
}

func newClient(t *testing.T, handler http.Handler) *catalogsite.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := catalogsite.New(config.Source{
		SearchURL:    server.URL + "/search",
		Collection:   "Herbert Simon",
		UserAgent:    "archivist-test",
		ItemsPerPage: 50,
	}, catalogsite.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestPageURL(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())
	if client.PerPage() != 25 {
		t.Fatalf("expected unsupported page size to fall back to 25, got %d", client.PerPage())
	}
	url := client.PageURL(2)
	if !strings.Contains(url, "search_advanced%5B0%5D=cmu_collection%3AHerbert%20Simon") {
		t.Fatalf("collection filter not encoded with %%20: %s", url)
	}
	if !strings.HasSuffix(url, "&page=2") || strings.Contains(client.PageURL(0), "page=0") {
		t.Fatalf("unexpected paging in %s", url)
	}
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "archivist-test" {
			t.Errorf("missing user agent")
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(resultsPage))
	}))
	page, err := client.FetchPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if calls.Load() != 2 || len(page.Items) != 2 {
		t.Fatalf("calls=%d items=%d", calls.Load(), len(page.Items))
	}
}

func TestFetchPageDecodesLatin1(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		page := strings.Replace(resultsPage, "Notes on Chess Programs", "Caf\xe9 Notes", 1)
		page = strings.Replace(page, `<meta charset="utf-8">`, "", 1)
		_, _ = w.Write([]byte(page))
	}))
	page, err := client.FetchPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.Items[0].Title != "Memo -- Café Notes" {
		t.Fatalf("unexpected decoded title %q", page.Items[0].Title)
	}
}

func TestFetchPageNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	_, err := client.FetchPage(context.Background(), 3)
	if !errors.Is(err, services.ErrNotFound) || calls.Load() != 1 {
		t.Fatalf("err=%v calls=%d", err, calls.Load())
	}
}
