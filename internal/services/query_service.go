package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/propstack/propquery/internal/engine"
	"github.com/propstack/propquery/internal/metrics"
	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/utils"
)

// EpisodeLog exposes the read side of the learning store.
type EpisodeLog interface {
	Recent(ctx context.Context, limit int) ([]models.FeedbackEpisode, error)
	Stats(ctx context.Context) (models.LearningStats, error)
}

// QueryService is the application facade over the feedback loop and the
// learning log.
type QueryService struct {
	logger    *slog.Logger
	loop      *engine.Loop
	log       EpisodeLog
	latencies *utils.LatencyTracker
}

// NewQueryService constructs the query service facade. log may be nil when
// the learning endpoints are not wired.
func NewQueryService(logger *slog.Logger, loop *engine.Loop, log EpisodeLog) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		logger:    logger,
		loop:      loop,
		log:       log,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Process runs one feedback episode for the given message.
func (s *QueryService) Process(ctx context.Context, req models.QueryRequest) (models.EpisodeResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return models.EpisodeResult{}, utils.NewAppError("services.Process", "message cannot be empty", nil)
	}
	if s.loop == nil {
		return models.EpisodeResult{}, utils.NewAppError("services.Process", "feedback loop not configured", nil)
	}

	start := time.Now()
	result := s.loop.Run(ctx, message, req.InitialSQL)
	duration := time.Since(start)

	s.latencies.Observe(duration)
	metrics.ObserveEpisode(duration, string(result.Status), result.IterationCount)
	for _, step := range result.History {
		metrics.CountCorrection(step.Reason)
	}

	s.logger.Info("episode finished",
		slog.String("status", string(result.Status)),
		slog.Int("iterations", result.IterationCount),
		slog.Int("rows", result.RowCount),
		slog.Duration("took", duration))

	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("episode latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	return result, nil
}

// RecentEpisodes returns the newest entries from the learning log.
func (s *QueryService) RecentEpisodes(ctx context.Context, limit int) ([]models.FeedbackEpisode, error) {
	if s.log == nil {
		return nil, utils.NewAppError("services.RecentEpisodes", "learning log not configured", nil)
	}
	return s.log.Recent(ctx, limit)
}

// LearningStats aggregates the learning log.
func (s *QueryService) LearningStats(ctx context.Context) (models.LearningStats, error) {
	if s.log == nil {
		return models.LearningStats{}, utils.NewAppError("services.LearningStats", "learning log not configured", nil)
	}
	return s.log.Stats(ctx)
}

// LatencyP95 returns the current p95 episode latency.
func (s *QueryService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
