package learning

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/propstack/propquery/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "learning.db"), nil, nil, time.Minute)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func episode(input string, counties []string, status models.ValidationStatus, reason string) models.FeedbackEpisode {
	ep := models.FeedbackEpisode{
		InputText:    input,
		InitialQuery: "SELECT id FROM properties",
		FinalQuery:   "SELECT id FROM properties",
		Constraints:  models.QueryConstraints{Counties: counties, Aggregation: models.AggregationNone},
		Status:       status,
	}
	if reason != "" {
		ep.History = []models.CorrectionStep{{Iteration: 1, Reason: reason}}
		ep.IterationCount = 2
	} else {
		ep.IterationCount = 1
	}
	return ep
}

func TestPutIsIdempotentPerKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ep := episode("gas stations in walton county", []string{"walton"}, models.StatusSuccess, "")
	if err := store.Put(ctx, ep); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Same input and constraints: replaces, does not append.
	ep2 := episode("Gas  stations in  WALTON county", []string{"walton"}, models.StatusSuccess, "")
	if err := store.Put(ctx, ep2); err != nil {
		t.Fatalf("put replay: %v", err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 episode after replay, got %d", len(recent))
	}
	if recent[0].ID == "" || recent[0].Key == "" {
		t.Fatalf("identifiers not filled in: %+v", recent[0])
	}
}

func TestFindSimilarPrefersMatchingCounties(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, episode("gas stations in walton", []string{"walton"}, models.StatusCorrected, "moved walton county filter to the location column")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, episode("offices in fulton", []string{"fulton"}, models.StatusCorrected, "added fulton county filter on the location column")); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Successful episodes carry no transformation and are never returned.
	if err := store.Put(ctx, episode("retail in walton", []string{"walton"}, models.StatusSuccess, "")); err != nil {
		t.Fatalf("put: %v", err)
	}

	similar, err := store.FindSimilar(ctx, models.QueryConstraints{Counties: []string{"walton"}}, 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(similar) != 1 {
		t.Fatalf("expected only the corrected walton episode, got %d", len(similar))
	}
	if similar[0].Constraints.Counties[0] != "walton" {
		t.Fatalf("unexpected episode: %+v", similar[0])
	}
}

func TestFindSimilarNoOverlapReturnsNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, episode("offices in fulton", []string{"fulton"}, models.StatusCorrected, "x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	similar, err := store.FindSimilar(ctx, models.QueryConstraints{Counties: []string{"cobb"}}, 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(similar) != 0 {
		t.Fatalf("expected no matches, got %d", len(similar))
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "learning.db")

	store, err := Open(path, nil, nil, time.Minute)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Put(context.Background(), episode("gas stations in walton", []string{"walton"}, models.StatusCorrected, "y")); err != nil {
		t.Fatalf("put: %v", err)
	}
	store.Close()

	reopened, err := Open(path, nil, nil, time.Minute)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	similar, err := reopened.FindSimilar(context.Background(), models.QueryConstraints{Counties: []string{"walton"}}, 5)
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(similar) != 1 {
		t.Fatalf("index not rebuilt from log, got %d episodes", len(similar))
	}
}

func TestStatsAggregatesLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, episode("a in walton", []string{"walton"}, models.StatusSuccess, "")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, episode("b in fulton", []string{"fulton"}, models.StatusCorrected, "moved fulton county filter to the location column")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, episode("c in cobb", []string{"cobb"}, models.StatusFailed, "")); err != nil {
		t.Fatalf("put: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEpisodes != 3 {
		t.Fatalf("expected 3 episodes, got %d", stats.TotalEpisodes)
	}
	if stats.StatusDistribution[models.StatusCorrected] != 1 || stats.StatusDistribution[models.StatusFailed] != 1 {
		t.Fatalf("unexpected distribution: %v", stats.StatusDistribution)
	}
	if stats.AverageIterations <= 1 || stats.AverageIterations > 2 {
		t.Fatalf("unexpected average iterations: %v", stats.AverageIterations)
	}
	if len(stats.CommonCorrections) != 1 || stats.CommonCorrections[0].Count != 1 {
		t.Fatalf("unexpected corrections: %v", stats.CommonCorrections)
	}
}

func TestConcurrentWriters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	counties := []string{"walton", "fulton", "cobb", "dekalb", "gwinnett"}
	for _, county := range counties {
		wg.Add(1)
		go func(county string) {
			defer wg.Done()
			ep := episode("listings in "+county, []string{county}, models.StatusSuccess, "")
			if err := store.Put(ctx, ep); err != nil {
				t.Errorf("put %s: %v", county, err)
			}
		}(county)
	}
	wg.Wait()

	recent, err := store.Recent(ctx, 50)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != len(counties) {
		t.Fatalf("expected %d episodes, got %d", len(counties), len(recent))
	}
}
