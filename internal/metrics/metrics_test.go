package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"archivist/internal/catalog"
	"archivist/internal/facets"
	"archivist/internal/metrics"
	"archivist/internal/pipeline"
	"archivist/internal/search"
)

var (
	_ pipeline.Observer = (*metrics.Recorder)(nil)
	_ search.Observer   = (*metrics.Recorder)(nil)
	_ facets.Observer   = (*metrics.Recorder)(nil)
)

func TestRecorderCounts(t *testing.T) {
	r := metrics.NewRecorder()
	r.ItemProcessed("download", pipeline.OutcomeSucceeded, 2*time.Second)
	r.ItemProcessed("download", pipeline.OutcomeSucceeded, time.Second)
	r.ItemProcessed("download", pipeline.OutcomeFailed, time.Second)
	r.SearchServed("fts", 3*time.Millisecond, nil)
	r.SearchServed("regex", time.Millisecond, errors.New("bad pattern"))
	r.FacetLookup(true)
	r.FacetLookup(false)
	r.FacetLookup(true)

	expected := `
# HELP archivist_facet_lookups_total Facet lookups by cache result.
# TYPE archivist_facet_lookups_total counter
archivist_facet_lookups_total{cache="hit"} 2
archivist_facet_lookups_total{cache="miss"} 1
`
	if err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "archivist_facet_lookups_total"); err != nil {
		t.Fatalf("facet counters: %v", err)
	}
	if got := testutil.CollectAndCount(r.Registry(), "archivist_stage_items_total"); got != 2 {
		t.Fatalf("expected 2 outcome series, got %d", got)
	}
	if got := testutil.CollectAndCount(r.Registry(), "archivist_search_requests_total"); got != 2 {
		t.Fatalf("expected 2 search series, got %d", got)
	}
}

func TestHandlerExposesStats(t *testing.T) {
	r := metrics.NewRecorder()
	r.ObserveStats(catalog.Stats{
		Total:   12,
		Indexed: 5,
		Stages:  []catalog.StageCounts{{Stage: catalog.StageDownload, Done: 7, Failed: 1, NotStarted: 4}},
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"archivist_catalog_items 12",
		"archivist_catalog_indexed_items 5",
		`archivist_catalog_stage_items{stage="download",status="done"} 7`,
		`archivist_catalog_stage_items{stage="download",status="failed"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
