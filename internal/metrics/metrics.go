package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	episodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "propquery",
			Name:      "episodes_total",
			Help:      "Total number of feedback episodes handled, partitioned by final status.",
		},
		[]string{"status"},
	)

	episodeDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "propquery",
			Name:      "episode_seconds",
			Help:      "End-to-end episode latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	episodeIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "propquery",
			Name:      "episode_iterations",
			Help:      "Execute/validate rounds used per episode.",
			Buckets:   []float64{1, 2, 3},
		},
	)

	correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "propquery",
			Name:      "corrections_total",
			Help:      "Query corrections applied, partitioned by rule family.",
		},
		[]string{"rule"},
	)
)

// Register attaches propquery collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		episodesTotal,
		episodeDurationSeconds,
		episodeIterations,
		correctionsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveEpisode records one finished episode.
func ObserveEpisode(duration time.Duration, status string, iterations int) {
	episodesTotal.WithLabelValues(status).Inc()
	if duration < 0 {
		duration = 0
	}
	episodeDurationSeconds.Observe(duration.Seconds())
	episodeIterations.Observe(float64(iterations))
}

// CountCorrection records one applied correction under its rule family.
func CountCorrection(reason string) {
	correctionsTotal.WithLabelValues(RuleLabel(reason)).Inc()
}

// RuleLabel buckets a free-form correction reason into a stable label.
func RuleLabel(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "county"):
		return "county_filter"
	case strings.Contains(lower, "price"):
		return "price_filter"
	case strings.Contains(lower, "aggregate"):
		return "aggregation"
	case strings.Contains(lower, "broadened") || strings.Contains(lower, "widened"):
		return "loosen"
	case strings.Contains(lower, "limit"):
		return "limit"
	case strings.Contains(lower, "regenerated"):
		return "regenerate"
	default:
		return "other"
	}
}
