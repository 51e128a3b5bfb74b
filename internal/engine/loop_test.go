package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/propstack/propquery/internal/correct"
	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
)

// scriptedExecutor returns canned results in sequence, repeating the last one.
type scriptedExecutor struct {
	results []models.QueryResult
	queries []string
}

func (s *scriptedExecutor) Run(ctx context.Context, sql string) models.QueryResult {
	s.queries = append(s.queries, sql)
	i := len(s.queries) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i]
}

type captureSink struct {
	episodes []models.FeedbackEpisode
	err      error
}

func (c *captureSink) Put(ctx context.Context, episode models.FeedbackEpisode) error {
	c.episodes = append(c.episodes, episode)
	return c.err
}

type stubRewriter struct {
	fn func(current string) (string, string)
}

func (s *stubRewriter) Apply(ctx context.Context, currentSQL string, cons models.QueryConstraints, verdict models.ValidationVerdict, userText string) (string, string) {
	return s.fn(currentSQL)
}

func newTestLoop(exec Executor, rewriter Rewriter, sink EpisodeSink) *Loop {
	return NewLoop(nil, schema.NewMapper(), exec, rewriter, sink)
}

func TestRunSucceedsFirstTry(t *testing.T) {
	exec := &scriptedExecutor{results: []models.QueryResult{{RowCount: 3}}}
	sink := &captureSink{}
	loop := newTestLoop(exec, nil, sink)

	result := loop.Run(context.Background(), "properties in walton county",
		"SELECT id FROM properties WHERE address_county LIKE '%walton%'")

	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.IterationCount != 1 || len(result.History) != 0 {
		t.Fatalf("success must mean one clean pass: %+v", result)
	}
	if len(sink.episodes) != 1 || sink.episodes[0].Status != models.StatusSuccess {
		t.Fatalf("episode not persisted: %+v", sink.episodes)
	}
	if len(sink.episodes[0].History) != 0 {
		t.Fatalf("success episode must have empty history")
	}
}

func TestRunCorrectsWrongCountyColumn(t *testing.T) {
	exec := &scriptedExecutor{results: []models.QueryResult{
		{RowCount: 0},
		{RowCount: 5},
	}}
	sink := &captureSink{}
	corrector := correct.NewCorrector(nil, schema.NewMapper(), nil)
	loop := newTestLoop(exec, corrector, sink)

	result := loop.Run(context.Background(), "properties in walton county",
		"SELECT id FROM properties WHERE property_type LIKE '%walton%'")

	if result.Status != models.StatusCorrected {
		t.Fatalf("expected corrected, got %s (history %v)", result.Status, result.History)
	}
	if result.IterationCount != 2 {
		t.Fatalf("expected 2 iterations, got %d", result.IterationCount)
	}
	if len(result.History) != 1 {
		t.Fatalf("expected one correction step, got %v", result.History)
	}
	step := result.History[0]
	if step.QueryBefore == step.QueryAfter {
		t.Fatalf("correction step did not change the query")
	}
	if !strings.Contains(result.FinalSQL, "address_county LIKE '%walton%'") {
		t.Fatalf("final query missing county fix: %q", result.FinalSQL)
	}
	if !strings.Contains(result.Explanation, "adjusted") {
		t.Fatalf("explanation should mention the adjustment: %q", result.Explanation)
	}
}

func TestRunStopsWhenCorrectionConverges(t *testing.T) {
	exec := &scriptedExecutor{results: []models.QueryResult{{RowCount: 0}}}
	rewriter := &stubRewriter{fn: func(current string) (string, string) {
		return current, "no applicable corrections"
	}}
	sink := &captureSink{}
	loop := newTestLoop(exec, rewriter, sink)

	result := loop.Run(context.Background(), "properties in walton county",
		"SELECT id FROM properties WHERE address_county LIKE '%walton%'")

	if result.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.IterationCount != 1 {
		t.Fatalf("unchanged correction must stop the loop, got %d iterations", result.IterationCount)
	}
	if len(result.History) != 0 {
		t.Fatalf("no effective correction should be recorded: %v", result.History)
	}
}

func TestRunHonoursIterationBudget(t *testing.T) {
	exec := &scriptedExecutor{results: []models.QueryResult{{RowCount: 0}}}
	attempt := 0
	rewriter := &stubRewriter{fn: func(current string) (string, string) {
		attempt++
		return fmt.Sprintf("SELECT id FROM properties WHERE address_county LIKE '%%walton%%' LIMIT %d", 100+attempt), "widened search"
	}}
	sink := &captureSink{}
	loop := newTestLoop(exec, rewriter, sink)

	result := loop.Run(context.Background(), "properties in walton county",
		"SELECT id FROM properties WHERE address_county LIKE '%walton%'")

	if result.IterationCount != MaxIterations {
		t.Fatalf("expected %d iterations, got %d", MaxIterations, result.IterationCount)
	}
	if len(exec.queries) != MaxIterations {
		t.Fatalf("expected %d executions, got %d", MaxIterations, len(exec.queries))
	}
	if result.Status != models.StatusCorrected {
		t.Fatalf("budget exhaustion after corrections should report corrected, got %s", result.Status)
	}
	if len(result.History) != MaxIterations-1 {
		t.Fatalf("expected %d correction steps, got %d", MaxIterations-1, len(result.History))
	}
}

func TestRunDraftsQueryWhenNoInitialSQL(t *testing.T) {
	exec := &scriptedExecutor{results: []models.QueryResult{{RowCount: 4}}}
	sink := &captureSink{}
	loop := newTestLoop(exec, nil, sink)

	result := loop.Run(context.Background(), "properties in walton county", "")

	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if !strings.Contains(result.FinalSQL, "address_county LIKE '%walton%'") {
		t.Fatalf("drafted query missing county filter: %q", result.FinalSQL)
	}
	if sink.episodes[0].InitialQuery != result.FinalSQL {
		t.Fatalf("drafted query should be recorded as the initial query")
	}
}

func TestRunIsDeterministicAcrossFreshLoops(t *testing.T) {
	input := "gas stations in walton county under $500k"
	initial := "SELECT id FROM properties WHERE property_type LIKE '%walton%'"

	run := func() models.EpisodeResult {
		exec := &scriptedExecutor{results: []models.QueryResult{
			{RowCount: 0},
			{RowCount: 5},
		}}
		corrector := correct.NewCorrector(nil, schema.NewMapper(), nil)
		loop := newTestLoop(exec, corrector, &captureSink{})
		return loop.Run(context.Background(), input, initial)
	}

	first := run()
	second := run()

	if first.FinalSQL != second.FinalSQL {
		t.Fatalf("same input must yield the same final query:\n%q\n%q", first.FinalSQL, second.FinalSQL)
	}
	if first.Status != second.Status {
		t.Fatalf("same input must yield the same status: %s vs %s", first.Status, second.Status)
	}
	if first.IterationCount != second.IterationCount {
		t.Fatalf("iteration counts diverged: %d vs %d", first.IterationCount, second.IterationCount)
	}
}

func TestRunPersistFailureIsNonFatal(t *testing.T) {
	exec := &scriptedExecutor{results: []models.QueryResult{{RowCount: 3}}}
	sink := &captureSink{err: fmt.Errorf("disk full")}
	loop := newTestLoop(exec, nil, sink)

	result := loop.Run(context.Background(), "properties in walton county",
		"SELECT id FROM properties WHERE address_county LIKE '%walton%'")

	if result.Status != models.StatusSuccess {
		t.Fatalf("persistence failure must not change the answer, got %s", result.Status)
	}
}
