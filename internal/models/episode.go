package models

import "time"

// ValidationStatus is the terminal outcome of one feedback episode.
type ValidationStatus string

const (
	StatusSuccess   ValidationStatus = "success"
	StatusCorrected ValidationStatus = "corrected"
	StatusFailed    ValidationStatus = "failed"
)

// CorrectionStep records one rewrite inside an episode. Steps are append-only;
// QueryAfter always becomes the next iteration's input query.
type CorrectionStep struct {
	Iteration   int      `json:"iteration"`
	Issues      []string `json:"issues"`
	Reason      string   `json:"correction_reason"`
	QueryBefore string   `json:"query_before"`
	QueryAfter  string   `json:"query_after"`
}

// FeedbackEpisode is the persisted record of one full feedback-loop run,
// keyed by a content hash of normalized input plus constraints.
type FeedbackEpisode struct {
	ID             string           `json:"id"`
	Key            string           `json:"key"`
	InputText      string           `json:"input_text"`
	InitialQuery   string           `json:"initial_query"`
	FinalQuery     string           `json:"final_query"`
	Constraints    QueryConstraints `json:"constraints"`
	History        []CorrectionStep `json:"history"`
	IterationCount int              `json:"iteration_count"`
	Status         ValidationStatus `json:"final_status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LearningStats aggregates the learning log for reporting.
type LearningStats struct {
	TotalEpisodes      int                      `json:"total_episodes"`
	StatusDistribution map[ValidationStatus]int `json:"status_distribution"`
	AverageIterations  float64                  `json:"average_iterations"`
	CommonCorrections  []CorrectionCount        `json:"common_corrections"`
}

// CorrectionCount pairs a correction reason with its occurrence count.
type CorrectionCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}
