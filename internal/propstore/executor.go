package propstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/propstack/propquery/internal/models"
)

// DefaultMaxRows bounds how many rows a single attempt materialises.
const DefaultMaxRows = 5000

var ilikeRe = regexp.MustCompile(`(?i)\bILIKE\b`)

// Executor runs read-only SQL against the property store. Execution faults
// never escape as errors: they land in QueryResult.Errors so the orchestrator
// always receives a well-formed result it can reason about.
type Executor struct {
	db      *sql.DB
	logger  *slog.Logger
	timeout time.Duration
	maxRows int
}

// NewExecutor wraps the property database handle.
func NewExecutor(db *sql.DB, logger *slog.Logger, timeout time.Duration, maxRows int) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{db: db, logger: logger, timeout: timeout, maxRows: maxRows}
}

// Run executes one attempt and returns its structured result.
func (e *Executor) Run(ctx context.Context, sqlText string) models.QueryResult {
	start := time.Now()
	result := models.QueryResult{
		Errors:   []string{},
		Warnings: []string{},
	}
	fail := func(format string, args ...any) models.QueryResult {
		result.ExecutionTime = time.Since(start)
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		return result
	}

	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return fail("empty query")
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return fail("only SELECT statements are allowed")
	}

	// Drafts from the upstream generator occasionally use the Postgres ILIKE
	// operator; SQLite LIKE is already case-insensitive for ASCII.
	if ilikeRe.MatchString(trimmed) {
		trimmed = ilikeRe.ReplaceAllString(trimmed, "LIKE")
		result.Warnings = append(result.Warnings, "translated ILIKE to LIKE")
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryContext(queryCtx, trimmed)
	if err != nil {
		e.logger.Debug("query attempt failed", slog.Any("error", err))
		return fail("%v", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fail("read columns: %v", err)
	}
	result.Columns = columns

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return fail("scan row: %v", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.RowCount++
		if len(result.Rows) < e.maxRows {
			result.Rows = append(result.Rows, models.Row(values))
		}
	}
	if err := rows.Err(); err != nil {
		return fail("%v", err)
	}
	if result.RowCount > e.maxRows {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("result truncated to %d of %d rows", e.maxRows, result.RowCount))
	}

	result.ExecutionTime = time.Since(start)
	return result
}
