// Package reasoning runs model conversations, with or without tools.
//
// This is the one implementation of the tool loop. Report generation and
// every other caller go through it.
//
// Information Hiding:
// - Provider selection and capability detection hidden
// - Conversation bookkeeping between iterations hidden
// - Tool dispatch and result serialization hidden
package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
	"github.com/richinex/kronologi/tools"
)

// DefaultMaxIterations bounds a tool session when RunOptions leaves it unset.
const DefaultMaxIterations = 10

// Client wraps one provider for one report run. It keeps no state between
// calls.
type Client struct {
	config   llm.ReasoningConfig
	provider llm.Provider
	toolCtx  *tools.Context
	logger   *slog.Logger
	metrics  *observability.Metrics
	llmOpts  []llm.ClientOption
}

// Option configures a Client.
type Option func(*Client)

// WithProvider uses p instead of building a provider from the config.
func WithProvider(p llm.Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithToolContext sets the context tools execute against. Required for
// ExecuteWithTools.
func WithToolContext(tc *tools.Context) Option {
	return func(c *Client) { c.toolCtx = tc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClientOptions passes transport options to the provider constructor.
func WithClientOptions(opts ...llm.ClientOption) Option {
	return func(c *Client) { c.llmOpts = append(c.llmOpts, opts...) }
}

// New creates a client. The provider is built from cfg unless WithProvider
// supplies one; either way no network call is made.
func New(cfg llm.ReasoningConfig, opts ...Option) (*Client, error) {
	c := &Client{config: cfg}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = observability.OrNop(c.logger)

	if c.provider == nil {
		provider, err := llm.NewProvider(cfg, c.llmOpts...)
		if err != nil {
			return nil, err
		}
		c.provider = provider
	}
	return c, nil
}

// Provider returns the wrapped provider.
func (c *Client) Provider() llm.Provider {
	return c.provider
}

// Complete sends one completion request without tools.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.provider.Complete(ctx, messages)
	c.metrics.RecordLLMRequest(c.provider.Name(), c.provider.Model(), err, time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	if err != nil {
		return llm.CompletionResponse{}, err
	}
	return resp, nil
}

// RunOptions configure one ExecuteWithTools session.
type RunOptions struct {
	// MaxIterations caps model round trips. Zero or less means DefaultMaxIterations.
	MaxIterations int

	// OnToolCall observes every tool call before it executes.
	OnToolCall func(call llm.ToolCall)
}

// Result is the outcome of a tool session. The embedded response is the
// last one received; Usage is that response's usage and TotalUsage sums
// every round trip.
type Result struct {
	llm.CompletionResponse
	ToolCalls  []llm.ToolCall
	Iterations int
	TotalUsage llm.TokenUsage
	History    []llm.Message
}

// ExecuteWithTools runs the tool loop: ask the model, execute any tools it
// requests in order, append their results, and repeat until the model stops
// asking or MaxIterations round trips have happened.
//
// Running out of iterations is not an error: the last response is returned
// with StopReason max_tokens. An unknown tool name or an unexpected tool
// error aborts the session.
func (c *Client) ExecuteWithTools(ctx context.Context, initial []llm.Message, toolset []tools.Tool, opts RunOptions) (Result, error) {
	tp, ok := c.provider.(llm.ToolProvider)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolsUnsupported, c.provider.Name())
	}
	if c.toolCtx == nil {
		return Result{}, ErrNoToolContext
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	byName := make(map[string]tools.Tool, len(toolset))
	for _, t := range toolset {
		byName[t.Name()] = t
	}
	defs := tools.Definitions(toolset)

	history := slices.Clone(initial)
	toolCalls := []llm.ToolCall{}
	var (
		last  llm.CompletionResponse
		total llm.TokenUsage
	)

	for iteration := 1; iteration <= maxIterations; iteration++ {
		// Cancellation is honored between iterations only.
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("reasoning cancelled before iteration %d: %w", iteration, err)
		}

		start := time.Now()
		resp, calls, err := tp.ExecuteWithTools(ctx, history, defs)
		c.metrics.RecordLLMRequest(tp.Name(), tp.Model(), err, time.Since(start), resp.Usage.InputTokens, resp.Usage.OutputTokens)
		if err != nil {
			return Result{}, err
		}
		last = resp
		total = total.Add(resp.Usage)

		c.logger.Debug("model responded",
			"iteration", iteration,
			"tool_calls", len(calls),
			"stop_reason", resp.StopReason,
			"tokens", resp.Usage.TotalTokens)

		if len(calls) == 0 {
			c.metrics.RecordIterations(iteration)
			return Result{
				CompletionResponse: resp,
				ToolCalls:          toolCalls,
				Iterations:         iteration,
				TotalUsage:         total,
				History:            history,
			}, nil
		}

		for _, call := range calls {
			toolCalls = append(toolCalls, call)
			if opts.OnToolCall != nil {
				opts.OnToolCall(call)
			}

			tool, ok := byName[call.Name]
			if !ok {
				return Result{}, &ToolNotFoundError{Name: call.Name}
			}

			d, err := tools.Dispatch(ctx, tool, call.Input, c.toolCtx)
			if err != nil {
				c.metrics.RecordToolCall(call.Name, "error", d.Duration)
				return Result{}, &ToolExecutionError{Tool: call.Name, Err: err}
			}
			c.metrics.RecordToolCall(call.Name, toolStatus(d.Result), d.Duration)

			c.logger.Debug("tool executed",
				"tool", call.Name,
				"success", d.Result.Success,
				"duration", d.Duration)

			history = append(history,
				llm.AssistantMessage("Using tool: "+call.Name),
				llm.UserMessage("Tool result: "+d.Result.String()),
			)
		}
	}

	c.logger.Info("iteration limit reached", "max_iterations", maxIterations, "tool_calls", len(toolCalls))
	c.metrics.RecordIterations(maxIterations)

	last.StopReason = llm.StopMaxTokens
	if last.Model == "" {
		last.Model = c.provider.Model()
	}
	return Result{
		CompletionResponse: last,
		ToolCalls:          toolCalls,
		Iterations:         maxIterations,
		TotalUsage:         total,
		History:            history,
	}, nil
}

func toolStatus(r tools.Result) string {
	if r.Success {
		return "success"
	}
	return "failure"
}
