package learning

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/propstack/propquery/internal/cache"
	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/utils"
)

// Store is the append-only episode log with an in-memory similarity index.
// Writes are serialised through a mutex; records are keyed by a content hash
// of normalized input plus constraints, so replays overwrite their own slot
// (last-writer-wins) without touching unrelated keys.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	cache  cache.Provider
	ttl    time.Duration

	mu    sync.RWMutex
	index []models.FeedbackEpisode
}

// Open initialises the learning database at path, creating the episode table
// and rebuilding the similarity index from the persisted log.
func Open(path string, logger *slog.Logger, cacheProvider cache.Provider, similarTTL time.Duration) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if path == "" {
		path = "propquery_learning.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, utils.NewAppError("learning.Open", "open learning database", err)
	}
	db.SetMaxOpenConns(1)

	const ddl = `
CREATE TABLE IF NOT EXISTS episodes (
	key TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	status TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	correction_reason TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodes_status ON episodes(status);
CREATE INDEX IF NOT EXISTS idx_episodes_created ON episodes(created_at);`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, utils.NewAppError("learning.Open", "migrate learning database", err)
	}

	s := &Store{db: db, logger: logger, cache: cacheProvider, ttl: similarTTL}
	if err := s.rebuildIndex(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// EpisodeKey derives the stable content hash for an input/constraints pair.
func EpisodeKey(inputText string, c models.QueryConstraints) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(inputText)), " ")
	sum := sha256.Sum256(append([]byte(normalized+"\n"), c.Canonical()...))
	return hex.EncodeToString(sum[:])
}

// Put persists the episode, replacing any prior record under the same key.
func (s *Store) Put(ctx context.Context, episode models.FeedbackEpisode) error {
	if episode.Key == "" {
		episode.Key = EpisodeKey(episode.InputText, episode.Constraints)
	}
	if episode.ID == "" {
		episode.ID = uuid.NewString()
	}
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(episode)
	if err != nil {
		return utils.NewAppError("learning.Put", "encode episode", err)
	}

	reasons := make([]string, 0, len(episode.History))
	for _, step := range episode.History {
		if step.Reason != "" {
			reasons = append(reasons, step.Reason)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO episodes (key, id, status, iterations, correction_reason, created_at, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		episode.Key, episode.ID, string(episode.Status), episode.IterationCount,
		strings.Join(reasons, "; "), episode.CreatedAt.Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return utils.NewAppError("learning.Put", "persist episode", err)
	}

	replaced := false
	for i := range s.index {
		if s.index[i].Key == episode.Key {
			s.index[i] = episode
			replaced = true
			break
		}
	}
	if !replaced {
		s.index = append(s.index, episode)
	}
	return nil
}

// FindSimilar returns past corrected episodes ordered by constraint
// similarity: county/type overlap first, then aggregation match, then recency.
func (s *Store) FindSimilar(ctx context.Context, c models.QueryConstraints, limit int) ([]models.FeedbackEpisode, error) {
	if limit <= 0 {
		limit = 5
	}

	cacheKey := similarCacheKey(c, limit)
	if data, err := s.cache.Get(ctx, cacheKey); err == nil {
		var cached []models.FeedbackEpisode
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	type scored struct {
		episode models.FeedbackEpisode
		score   int
	}

	s.mu.RLock()
	candidates := make([]scored, 0, len(s.index))
	for _, episode := range s.index {
		if episode.Status != models.StatusCorrected {
			continue
		}
		score := similarity(c, episode.Constraints)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{episode: episode, score: score})
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].episode.CreatedAt.After(candidates[j].episode.CreatedAt)
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.FeedbackEpisode, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, cand.episode)
	}

	if data, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, cacheKey, data, s.ttl); err != nil {
			s.logger.Debug("similar episode cache write failed", slog.Any("error", err))
		}
	}
	return out, nil
}

// Recent returns the newest episodes from the log.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.FeedbackEpisode, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM episodes ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, utils.NewAppError("learning.Recent", "query episodes", err)
	}
	defer rows.Close()

	var out []models.FeedbackEpisode
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, utils.NewAppError("learning.Recent", "scan episode", err)
		}
		var episode models.FeedbackEpisode
		if err := json.Unmarshal([]byte(payload), &episode); err != nil {
			s.logger.Warn("skipping undecodable episode", slog.Any("error", err))
			continue
		}
		out = append(out, episode)
	}
	return out, rows.Err()
}

// Stats aggregates the learning log for reporting.
func (s *Store) Stats(ctx context.Context) (models.LearningStats, error) {
	stats := models.LearningStats{StatusDistribution: make(map[models.ValidationStatus]int)}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(iterations), 0) FROM episodes`)
	if err := row.Scan(&stats.TotalEpisodes, &stats.AverageIterations); err != nil {
		return stats, utils.NewAppError("learning.Stats", "aggregate episodes", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM episodes GROUP BY status`)
	if err != nil {
		return stats, utils.NewAppError("learning.Stats", "status distribution", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, utils.NewAppError("learning.Stats", "scan status", err)
		}
		stats.StatusDistribution[models.ValidationStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	reasonRows, err := s.db.QueryContext(ctx, `
SELECT correction_reason, COUNT(*) FROM episodes
WHERE correction_reason != ''
GROUP BY correction_reason
ORDER BY COUNT(*) DESC
LIMIT 5`)
	if err != nil {
		return stats, utils.NewAppError("learning.Stats", "common corrections", err)
	}
	defer reasonRows.Close()
	for reasonRows.Next() {
		var entry models.CorrectionCount
		if err := reasonRows.Scan(&entry.Reason, &entry.Count); err != nil {
			return stats, utils.NewAppError("learning.Stats", "scan correction", err)
		}
		stats.CommonCorrections = append(stats.CommonCorrections, entry)
	}
	return stats, reasonRows.Err()
}

func (s *Store) rebuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM episodes`)
	if err != nil {
		return utils.NewAppError("learning.rebuildIndex", "scan log", err)
	}
	defer rows.Close()

	var index []models.FeedbackEpisode
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return utils.NewAppError("learning.rebuildIndex", "scan episode", err)
		}
		var episode models.FeedbackEpisode
		if err := json.Unmarshal([]byte(payload), &episode); err != nil {
			s.logger.Warn("skipping undecodable episode during index rebuild", slog.Any("error", err))
			continue
		}
		index = append(index, episode)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	s.logger.Debug("similarity index rebuilt", slog.Int("episodes", len(index)))
	return nil
}

// similarity scores constraint closeness. County overlap dominates, then
// property-type overlap, then matching aggregation shape.
func similarity(a, b models.QueryConstraints) int {
	score := 0
	countyOverlap := overlap(a.Counties, b.Counties)
	score += countyOverlap * 4
	if countyOverlap > 0 && len(a.Counties) == len(b.Counties) && countyOverlap == len(a.Counties) {
		score += 2
	}
	score += overlap(a.PropertyTypes, b.PropertyTypes) * 2
	if a.Aggregation == b.Aggregation && a.Aggregation != models.AggregationNone {
		score++
	}
	return score
}

func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[strings.ToLower(v)] = struct{}{}
	}
	count := 0
	for _, v := range b {
		if _, ok := set[strings.ToLower(v)]; ok {
			count++
		}
	}
	return count
}

func similarCacheKey(c models.QueryConstraints, limit int) string {
	sum := sha256.Sum256(c.Canonical())
	return fmt.Sprintf("propquery:similar:%s:%d", hex.EncodeToString(sum[:8]), limit)
}
