package models

import "time"

// QueryResult summarises a single execution attempt against the property store.
// Built fresh per attempt; replaced, never mutated.
type QueryResult struct {
	Rows          []Row         `json:"rows"`
	RowCount      int           `json:"row_count"`
	Columns       []string      `json:"columns"`
	ExecutionTime time.Duration `json:"execution_time"`
	Errors        []string      `json:"errors"`
	Warnings      []string      `json:"warnings"`
}

// Row is one result tuple, ordered to match Columns.
type Row []any

// Failed reports whether the attempt produced any execution error.
func (r QueryResult) Failed() bool {
	return len(r.Errors) > 0
}
