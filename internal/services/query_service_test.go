package services

import (
	"context"
	"testing"

	"github.com/propstack/propquery/internal/engine"
	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
)

type stubExecutor struct{ result models.QueryResult }

func (s *stubExecutor) Run(ctx context.Context, sql string) models.QueryResult {
	return s.result
}

func newTestService() *QueryService {
	loop := engine.NewLoop(nil, schema.NewMapper(), &stubExecutor{result: models.QueryResult{RowCount: 3}}, nil, nil)
	return NewQueryService(nil, loop, nil)
}

func TestProcessRejectsEmptyMessage(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Process(context.Background(), models.QueryRequest{Message: "  "}); err == nil {
		t.Fatalf("expected error for empty message")
	}
}

func TestProcessRunsEpisode(t *testing.T) {
	svc := newTestService()
	result, err := svc.Process(context.Background(), models.QueryRequest{
		Message:    "properties in walton county",
		InitialSQL: "SELECT id FROM properties WHERE address_county LIKE '%walton%'",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if svc.LatencyP95() < 0 {
		t.Fatalf("latency tracker not recording")
	}
}

func TestLearningEndpointsRequireStore(t *testing.T) {
	svc := newTestService()
	if _, err := svc.LearningStats(context.Background()); err == nil {
		t.Fatalf("expected error when learning log absent")
	}
	if _, err := svc.RecentEpisodes(context.Background(), 5); err == nil {
		t.Fatalf("expected error when learning log absent")
	}
}
