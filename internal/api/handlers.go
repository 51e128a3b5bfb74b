package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/propstack/propquery/internal/models"
)

// QueryProcessor is the application surface the handlers expose over HTTP.
type QueryProcessor interface {
	Process(ctx context.Context, req models.QueryRequest) (models.EpisodeResult, error)
	RecentEpisodes(ctx context.Context, limit int) ([]models.FeedbackEpisode, error)
	LearningStats(ctx context.Context) (models.LearningStats, error)
}

// Handlers holds the HTTP endpoint implementations.
type Handlers struct {
	logger  *slog.Logger
	service QueryProcessor
}

// NewHandlers constructs the endpoint set.
func NewHandlers(logger *slog.Logger, service QueryProcessor) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger, service: service}
}

// Query runs one feedback episode for the posted message.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.service.Process(r.Context(), req)
	if err != nil {
		h.logger.Error("query processing failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "query processing failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// LearningStats reports aggregates over the episode log.
func (h *Handlers) LearningStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.LearningStats(r.Context())
	if err != nil {
		h.logger.Error("learning stats failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "failed to aggregate learning stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// RecentEpisodes lists the newest episodes from the log.
func (h *Handlers) RecentEpisodes(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	episodes, err := h.service.RecentEpisodes(r.Context(), limit)
	if err != nil {
		h.logger.Error("recent episodes failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}
	if episodes == nil {
		episodes = []models.FeedbackEpisode{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("response encoding failed", slog.Any("error", err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
