package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
)

// Depth is how many earlier periods of history and of summaries a run
// asks the model to consider.
type Depth struct {
	History int
	Summary int
}

func (d Depth) String() string {
	return fmt.Sprintf("history=%d summary=%d", d.History, d.Summary)
}

// ComposeFunc builds the initial messages for a depth.
type ComposeFunc func(ctx context.Context, depth Depth) ([]llm.Message, error)

// GenerateFunc runs one generation attempt.
type GenerateFunc func(ctx context.Context, messages []llm.Message) (Result, error)

// Outcome is the result of Controller.Run.
type Outcome struct {
	Result   Result
	Depth    Depth
	Original Depth
	Attempts int

	// Skipped is set when the model returned blank content, meaning there
	// was nothing to report. It is a success.
	Skipped bool
}

// Narrowed reports whether the run finished at a smaller depth than asked.
func (o Outcome) Narrowed() bool {
	return o.Depth != o.Original
}

// CapacityExhaustedError is returned when the provider still rejects the
// request as too large with both depths at zero.
type CapacityExhaustedError struct {
	Original Depth
	Err      error
}

func (e *CapacityExhaustedError) Error() string {
	return fmt.Sprintf("unable to generate summary even with minimum history and summary depth (started at %s): last error: %v", e.Original, e.Err)
}

func (e *CapacityExhaustedError) Unwrap() error {
	return e.Err
}

// Controller retries generation with less context after capacity errors.
// History depth shrinks first, one period per failed attempt, then summary
// depth. Every attempt composes its messages from scratch. Any other error
// ends the run immediately.
type Controller struct {
	Compose  ComposeFunc
	Generate GenerateFunc
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Run generates a report starting at depth.
func (c *Controller) Run(ctx context.Context, depth Depth) (Outcome, error) {
	logger := observability.OrNop(c.Logger)
	original := depth

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			c.Metrics.RecordRun("error")
			return Outcome{}, fmt.Errorf("run cancelled before attempt %d: %w", attempt, err)
		}

		messages, err := c.Compose(ctx, depth)
		if err != nil {
			c.Metrics.RecordRun("error")
			return Outcome{}, fmt.Errorf("compose prompt: %w", err)
		}

		result, err := c.Generate(ctx, messages)
		if err == nil {
			outcome := Outcome{Result: result, Depth: depth, Original: original, Attempts: attempt}
			if strings.TrimSpace(result.Content) == "" {
				logger.Info("summary generation skipped: model returned a blank response")
				outcome.Skipped = true
				c.Metrics.RecordRun("skipped")
				return outcome, nil
			}

			logger.Info("generated summary",
				"history", depth.History,
				"summary", depth.Summary,
				"attempts", attempt)
			if outcome.Narrowed() {
				logger.Info("depth was reduced",
					"original_history", original.History,
					"original_summary", original.Summary)
			}
			c.Metrics.RecordRun("success")
			return outcome, nil
		}

		if !IsCapacityError(err) {
			c.Metrics.RecordRun("error")
			return Outcome{}, err
		}

		limit, requested := ParseCapacity(err)
		switch {
		case depth.History > 0:
			depth.History--
			logger.Info("token limit exceeded, reducing history depth and retrying",
				"limit", limit,
				"requested", requested,
				"history", depth.History)
			c.Metrics.RecordCapacityRetry("history")
		case depth.Summary > 0:
			depth.Summary--
			logger.Info("token limit exceeded, reducing summary depth and retrying",
				"limit", limit,
				"requested", requested,
				"summary", depth.Summary)
			c.Metrics.RecordCapacityRetry("summary")
		default:
			c.Metrics.RecordRun("error")
			return Outcome{}, &CapacityExhaustedError{Original: original, Err: err}
		}
	}
}
