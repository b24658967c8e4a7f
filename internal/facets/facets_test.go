package facets_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archivist/internal/catalog"
	"archivist/internal/facets"
	"archivist/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingSource struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (s *countingSource) Compute(context.Context) (facets.Snapshot, error) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return facets.Snapshot{}, s.err
	}
	return facets.Snapshot{Total: int(n), Facets: map[facets.Dimension][]facets.Bucket{}}, nil
}

func TestAggregatorCountsWholeCorpus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	items := []catalog.Item{
		testsupport.NewItem(1, "a"),
		testsupport.NewItem(2, "b"),
		testsupport.NewItem(3, "c"),
	}
	items[0].DateSort = "1956-06-01"
	items[1].DateSort = "1967-01-01"
	items[2].DateSort = ""
	items[2].Series = "Series II: Writings"
	testsupport.MustIngest(t, store, items...)
	testsupport.MustExtract(t, store, 1, "text")
	testsupport.MustAdvance(t, store, 1, catalog.StageAnalyze, catalog.Result{Summary: "s", Language: "zh", AnalysisModel: "deepseek"})

	snap, err := facets.NewAggregator(store.DB()).Compute(context.Background())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if snap.Total != 3 {
		t.Fatalf("total = %d", snap.Total)
	}
	series := snap.Buckets(facets.Series)
	if len(series) != 2 || series[0].Value != "Series I: Correspondence" || series[0].Count != 2 {
		t.Fatalf("unexpected series %+v", series)
	}
	decades := snap.Buckets(facets.Decade)
	if len(decades) != 2 || decades[0] != (facets.Bucket{Value: "1950s", Count: 1}) || decades[1].Value != "1960s" {
		t.Fatalf("unexpected decades %+v", decades)
	}
	if years := snap.Buckets(facets.Year); len(years) != 2 || years[0].Value != "1956" {
		t.Fatalf("unexpected years %+v", years)
	}
	if langs := snap.Buckets(facets.Language); len(langs) != 1 || langs[0].Value != "zh" {
		t.Fatalf("unexpected languages %+v", langs)
	}
	if models := snap.Buckets(facets.Model); len(models) != 1 || models[0].Value != "deepseek" {
		t.Fatalf("unexpected models %+v", models)
	}
	boxes := snap.Buckets(facets.Box)
	if len(boxes) != 3 || boxes[0].Value != "2" {
		t.Fatalf("unexpected boxes %+v", boxes)
	}
	for _, dim := range facets.Dimensions {
		if snap.Facets[dim] == nil {
			t.Fatalf("dimension %s missing", dim)
		}
	}
}

func TestCacheServesIdenticalSnapshotWithinTTL(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedItems(t, store, 2)
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := facets.NewCache(facets.NewAggregator(store.DB()), facets.DefaultTTL, facets.WithClock(clock.Now))
	ctx := context.Background()

	first, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	testsupport.MustIngest(t, store, testsupport.NewItem(50, "late arrival"))
	clock.Advance(4 * time.Minute)
	second, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("snapshots differ within TTL: %+v vs %+v", first, second)
	}
	if second.Total != 2 {
		t.Fatalf("cached snapshot should not see the new write, total %d", second.Total)
	}

	clock.Advance(time.Minute)
	third, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if third.Total != 3 {
		t.Fatalf("expired snapshot should be recomputed, total %d", third.Total)
	}
}

func TestCacheInvalidateForcesRecompute(t *testing.T) {
	source := &countingSource{}
	clock := &fakeClock{now: time.Unix(0, 0)}
	cache := facets.NewCache(source, time.Minute, facets.WithClock(clock.Now))
	ctx := context.Background()

	if _, err := cache.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := cache.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected one compute, got %d", source.calls.Load())
	}
	cache.Invalidate()
	if !cache.Expires().IsZero() {
		t.Fatal("invalidated cache should report no expiry")
	}
	snap, err := cache.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Total != 2 {
		t.Fatalf("expected recomputed snapshot, got total %d", snap.Total)
	}
	if _, err := cache.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if source.calls.Load() != 3 {
		t.Fatalf("Refresh should always compute, got %d calls", source.calls.Load())
	}
}

func TestCacheConcurrentMissesComputeOnce(t *testing.T) {
	source := &countingSource{delay: 20 * time.Millisecond}
	cache := facets.NewCache(source, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background()); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := source.calls.Load(); n != 1 {
		t.Fatalf("expected a single compute, got %d", n)
	}
}

func TestCacheKeepsNothingOnError(t *testing.T) {
	source := &countingSource{err: errors.New("database is locked")}
	cache := facets.NewCache(source, time.Minute)
	if _, err := cache.Get(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	source.err = nil
	snap, err := cache.Get(context.Background())
	if err != nil || snap.Total != 2 {
		t.Fatalf("expected recovery after error, got %+v %v", snap, err)
	}
}

type hitCounter struct {
	hits, misses int
}

func (h *hitCounter) FacetLookup(hit bool) {
	if hit {
		h.hits++
	} else {
		h.misses++
	}
}

func TestCacheReportsHitsAndMisses(t *testing.T) {
	obs := &hitCounter{}
	cache := facets.NewCache(&countingSource{}, time.Minute, facets.WithObserver(obs))
	for i := 0; i < 3; i++ {
		if _, err := cache.Get(context.Background()); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if obs.hits != 2 || obs.misses != 1 {
		t.Fatalf("hits %d misses %d", obs.hits, obs.misses)
	}
}
