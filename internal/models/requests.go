package models

import "time"

// QueryRequest is the inbound chat payload. InitialSQL is the untrusted first
// draft from the external generator; empty means the engine drafts its own.
type QueryRequest struct {
	Message    string `json:"message"`
	InitialSQL string `json:"initial_sql,omitempty"`
}

// EpisodeResult is the terminal answer handed to the presentation layer.
type EpisodeResult struct {
	FinalSQL       string           `json:"final_sql"`
	Rows           []Row            `json:"result_rows"`
	Columns        []string         `json:"result_columns"`
	RowCount       int              `json:"row_count"`
	Status         ValidationStatus `json:"validation_status"`
	IterationCount int              `json:"iteration_count"`
	History        []CorrectionStep `json:"correction_history"`
	Explanation    string           `json:"explanation"`
	ExecutionTime  time.Duration    `json:"execution_time"`
}
