// Package report turns a composed prompt into a report.
//
// Information Hiding:
// - Provider, tool set and iteration defaults resolved here, not by callers
// - Capacity-error recognition and depth narrowing hidden in the Controller
package report

import (
	"context"
	"errors"
	"log/slog"

	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
	"github.com/richinex/kronologi/reasoning"
	"github.com/richinex/kronologi/tools"
)

// Defaults for fields the job's reasoning section leaves out.
const (
	DefaultProvider       = "anthropic"
	DefaultSimpleProvider = "openai"
	DefaultMaxIterations  = reasoning.DefaultMaxIterations
)

// DefaultTools are enabled when a job names none.
var DefaultTools = []string{"read_file", "list_files", "search_files"}

// ErrNoTools is returned when none of a job's tool names is registered.
var ErrNoTools = errors.New("no tools available for reasoning mode")

// ClientFactory builds a reasoning client. reasoning.New is the default.
type ClientFactory func(cfg llm.ReasoningConfig, opts ...reasoning.Option) (*reasoning.Client, error)

// Result is a generated report.
type Result struct {
	Content    string
	Model      string
	StopReason llm.StopReason
	Usage      llm.TokenUsage
	TotalUsage llm.TokenUsage
	ToolCalls  []llm.ToolCall
	Iterations int
	History    []llm.Message
}

// Generator runs one report generation. The zero value is usable: it
// builds clients with reasoning.New against the default tool registry.
type Generator struct {
	Registry  *tools.Registry
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	NewClient ClientFactory

	// ClientOptions are appended to every client the generator builds.
	ClientOptions []reasoning.Option
}

func (g *Generator) registry() *tools.Registry {
	if g.Registry == nil {
		return tools.NewDefaultRegistry()
	}
	return g.Registry
}

func (g *Generator) client(cfg llm.ReasoningConfig, opts ...reasoning.Option) (*reasoning.Client, error) {
	factory := g.NewClient
	if factory == nil {
		factory = reasoning.New
	}
	opts = append(opts,
		reasoning.WithLogger(observability.OrNop(g.Logger)),
		reasoning.WithMetrics(g.Metrics),
	)
	return factory(cfg, append(opts, g.ClientOptions...)...)
}

// ReasoningConfig derives the provider configuration of a job. An empty
// provider falls back to fallback.
func ReasoningConfig(job config.JobConfig, fallback string) llm.ReasoningConfig {
	provider := job.Reasoning.Provider
	if provider == "" {
		provider = fallback
	}
	return llm.ReasoningConfig{
		Provider:    provider,
		Model:       job.Model,
		Temperature: job.Temperature,
		MaxTokens:   job.MaxCompletionTokens,
	}
}

// Generate runs the job in reasoning mode: the model explores content
// through the job's enabled tools before answering.
func (g *Generator) Generate(ctx context.Context, job config.JobConfig, messages []llm.Message, tc *tools.Context) (Result, error) {
	names := job.Reasoning.Tools
	if len(names) == 0 {
		names = DefaultTools
	}
	enabled := g.registry().GetMany(names)
	if len(enabled) == 0 {
		return Result{}, ErrNoTools
	}

	maxIterations := job.Reasoning.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	client, err := g.client(ReasoningConfig(job, DefaultProvider), reasoning.WithToolContext(tc))
	if err != nil {
		return Result{}, err
	}

	logger := observability.OrNop(g.Logger)
	res, err := client.ExecuteWithTools(ctx, messages, enabled, reasoning.RunOptions{
		MaxIterations: maxIterations,
		OnToolCall: func(call llm.ToolCall) {
			logger.Info("tool called", "tool", call.Name, "input", string(call.Input))
		},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Content:    res.Content,
		Model:      res.Model,
		StopReason: res.StopReason,
		Usage:      res.Usage,
		TotalUsage: res.TotalUsage,
		ToolCalls:  res.ToolCalls,
		Iterations: res.Iterations,
		History:    res.History,
	}, nil
}

// GenerateSimple runs the job as a single completion without tools.
func (g *Generator) GenerateSimple(ctx context.Context, job config.JobConfig, messages []llm.Message) (Result, error) {
	client, err := g.client(ReasoningConfig(job, DefaultSimpleProvider))
	if err != nil {
		return Result{}, err
	}

	resp, err := client.Complete(ctx, messages)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Content:    resp.Content,
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage:      resp.Usage,
		TotalUsage: resp.Usage,
		ToolCalls:  []llm.ToolCall{},
		Iterations: 1,
		History:    messages,
	}, nil
}
