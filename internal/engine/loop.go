package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/propstack/propquery/internal/correct"
	"github.com/propstack/propquery/internal/extract"
	"github.com/propstack/propquery/internal/models"
	"github.com/propstack/propquery/internal/schema"
	"github.com/propstack/propquery/internal/sqlquery"
	"github.com/propstack/propquery/internal/validate"
)

// MaxIterations caps how many execute/validate/correct rounds one episode runs.
const MaxIterations = 3

// loopState is the phase of the feedback loop for one episode.
type loopState int

const (
	stateExecute loopState = iota
	stateValidate
	stateCorrect
	stateDone
)

// Executor runs one SQL attempt against the property store.
type Executor interface {
	Run(ctx context.Context, sql string) models.QueryResult
}

// Rewriter turns a failing query plus its verdict into the next attempt.
type Rewriter interface {
	Apply(ctx context.Context, currentSQL string, cons models.QueryConstraints, verdict models.ValidationVerdict, userText string) (string, string)
}

// EpisodeSink persists finished episodes. Implemented by the learning store.
type EpisodeSink interface {
	Put(ctx context.Context, episode models.FeedbackEpisode) error
}

// Loop orchestrates one feedback episode: extract constraints, execute,
// validate, correct, repeat until the result validates or the iteration
// budget runs out, then persist what was learned.
type Loop struct {
	logger    *slog.Logger
	mapper    *schema.Mapper
	extractor *extract.Extractor
	executor  Executor
	validator *validate.Validator
	rewriter  Rewriter
	sink      EpisodeSink
}

// NewLoop wires the feedback loop. sink may be nil, which disables persistence.
func NewLoop(logger *slog.Logger, mapper *schema.Mapper, executor Executor, rewriter Rewriter, sink EpisodeSink) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = schema.NewMapper()
	}
	if rewriter == nil {
		rewriter = correct.NewCorrector(logger, mapper, nil)
	}
	return &Loop{
		logger:    logger,
		mapper:    mapper,
		extractor: extract.NewExtractor(mapper),
		executor:  executor,
		validator: validate.NewValidator(),
		rewriter:  rewriter,
		sink:      sink,
	}
}

// Run processes one user message. initialSQL is the draft from the upstream
// generator; when empty the loop drafts its own query from the constraints.
func (l *Loop) Run(ctx context.Context, inputText, initialSQL string) models.EpisodeResult {
	start := time.Now()
	constraints := l.extractor.Extract(inputText)

	currentSQL := initialSQL
	if currentSQL == "" {
		currentSQL = sqlquery.Build(constraints, l.mapper).Render()
		l.logger.Debug("drafted query from constraints", slog.String("sql", currentSQL))
	}

	episode := models.FeedbackEpisode{
		InputText:    inputText,
		InitialQuery: currentSQL,
		Constraints:  constraints,
		CreatedAt:    time.Now().UTC(),
	}

	var (
		lastResult  models.QueryResult
		lastVerdict models.ValidationVerdict
		iteration   int
	)

	state := stateExecute
	for state != stateDone {
		switch state {
		case stateExecute:
			if ctx.Err() != nil {
				if len(episode.History) > 0 {
					episode.Status = models.StatusCorrected
				} else {
					episode.Status = models.StatusFailed
				}
				state = stateDone
				break
			}
			iteration++
			lastResult = l.executor.Run(ctx, currentSQL)
			state = stateValidate

		case stateValidate:
			lastVerdict = l.validator.Validate(lastResult, constraints, currentSQL)
			if lastVerdict.Valid {
				if len(episode.History) == 0 {
					episode.Status = models.StatusSuccess
				} else {
					episode.Status = models.StatusCorrected
				}
				state = stateDone
				break
			}
			l.logger.Debug("validation found issues",
				slog.Int("iteration", iteration),
				slog.Any("issues", lastVerdict.IssueStrings()))
			if iteration >= MaxIterations {
				if len(episode.History) > 0 {
					episode.Status = models.StatusCorrected
				} else {
					episode.Status = models.StatusFailed
				}
				state = stateDone
				break
			}
			state = stateCorrect

		case stateCorrect:
			corrected, reason := l.rewriter.Apply(ctx, currentSQL, constraints, lastVerdict, inputText)
			if corrected == currentSQL {
				l.logger.Debug("correction did not change the query, stopping",
					slog.Int("iteration", iteration))
				episode.Status = models.StatusFailed
				state = stateDone
				break
			}
			episode.History = append(episode.History, models.CorrectionStep{
				Iteration:   iteration,
				Issues:      lastVerdict.IssueStrings(),
				Reason:      reason,
				QueryBefore: currentSQL,
				QueryAfter:  corrected,
			})
			currentSQL = corrected
			state = stateExecute
		}
	}

	episode.FinalQuery = currentSQL
	episode.IterationCount = iteration
	l.persist(ctx, episode)

	return models.EpisodeResult{
		FinalSQL:       currentSQL,
		Rows:           lastResult.Rows,
		Columns:        lastResult.Columns,
		RowCount:       lastResult.RowCount,
		Status:         episode.Status,
		IterationCount: iteration,
		History:        episode.History,
		Explanation:    Explain(constraints, episode.Status, lastResult.RowCount, episode.History),
		ExecutionTime:  time.Since(start),
	}
}

func (l *Loop) persist(ctx context.Context, episode models.FeedbackEpisode) {
	if l.sink == nil {
		return
	}
	// The episode is still worth keeping when the request was cancelled.
	if err := l.sink.Put(context.WithoutCancel(ctx), episode); err != nil {
		l.logger.Warn("episode persistence failed",
			slog.String("status", string(episode.Status)),
			slog.Any("error", err))
	}
}
