// Command execution for CLI commands.
//
// Information Hiding:
// - Job, prompt, generator and retry wiring hidden
// - Output file layout and transcript persistence hidden
// - Output formatting hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/llm"
	"github.com/richinex/kronologi/observability"
	"github.com/richinex/kronologi/output"
	"github.com/richinex/kronologi/prompt"
	"github.com/richinex/kronologi/report"
	"github.com/richinex/kronologi/storage"
	"github.com/richinex/kronologi/tools"
)

// Options holds run options.
type Options struct {
	Settings config.Settings

	// Replace allows existing output files to be overwritten.
	Replace bool
	// DryRun prints the composed messages instead of calling the model.
	DryRun bool
	// Simple generates with a single completion and no tools.
	Simple bool
	// Params are extra template parameter values.
	Params map[string]any

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Out     io.Writer
	Now     func() time.Time

	// Generator overrides the default report generator.
	Generator *report.Generator
}

// Report describes a finished run.
type Report struct {
	Job     config.Job
	Outcome report.Outcome
	Paths   []string
	RunID   string
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) out() io.Writer {
	if o.Out == nil {
		return io.Discard
	}
	return o.Out
}

// Run generates the report of one job and period and writes its output
// files.
func Run(ctx context.Context, args config.JobArgs, opts Options) (Report, error) {
	logger := observability.OrNop(opts.Logger)
	dirs := opts.Settings.Dirs

	job, err := config.NewJob(args, opts.now())
	if err != nil {
		return Report{}, err
	}

	jobDir := dirs.JobDir(job.Name)
	cfg, err := config.LoadJobConfig(jobDir)
	if errors.Is(err, config.ErrJobNotFound) {
		return Report{}, fmt.Errorf("job %q not found in %s: %w", job.Name, dirs.Config, err)
	}
	if err != nil {
		return Report{}, err
	}

	logger = logger.With("job", job.Name, "period", job.Label())
	logger.Info("starting report",
		"model", cfg.Model,
		"history", job.HistoryDepth,
		"summary", job.SummaryDepth,
		"simple", opts.Simple)

	composer := prompt.NewComposer(jobDir, cfg, opts.Params, logger)

	if opts.DryRun {
		messages, err := composer.Compose(job)
		if err != nil {
			return Report{}, err
		}
		printMessages(opts.out(), messages)
		return Report{Job: job}, nil
	}

	writer := output.NewWriter(dirs.Summary, opts.Replace, logger)
	patterns := []string{cfg.Output.Summary.Pattern, cfg.Output.Completion.Pattern, cfg.Output.Inputs.Pattern}
	for _, pattern := range patterns {
		if err := writer.Check(job, pattern); err != nil {
			return Report{}, err
		}
	}

	sandbox := tools.NewSandbox(dirs.Activity, dirs.Summary, dirs.Context)
	if size := opts.Settings.Storage.MaxFileSize; size > 0 {
		sandbox.WithMaxFileSize(size)
	}
	tc := &tools.Context{Storage: sandbox, Job: job, Logger: logger}

	generator := opts.Generator
	if generator == nil {
		generator = &report.Generator{Logger: logger, Metrics: opts.Metrics}
	}

	var composed []llm.Message
	controller := &report.Controller{
		Compose: func(ctx context.Context, d report.Depth) ([]llm.Message, error) {
			tc.Job = job.WithDepth(d.History, d.Summary)
			messages, err := composer.Compose(tc.Job)
			composed = messages
			return messages, err
		},
		Generate: func(ctx context.Context, messages []llm.Message) (report.Result, error) {
			if opts.Simple {
				return generator.GenerateSimple(ctx, cfg, messages)
			}
			return generator.Generate(ctx, cfg, messages, tc)
		},
		Logger:  logger,
		Metrics: opts.Metrics,
	}

	outcome, err := controller.Run(ctx, report.Depth{History: job.HistoryDepth, Summary: job.SummaryDepth})
	if err != nil {
		return Report{}, err
	}

	rep := Report{Job: job, Outcome: outcome}
	provider := report.ReasoningConfig(cfg, report.DefaultProvider).Provider
	if opts.Simple {
		provider = report.ReasoningConfig(cfg, report.DefaultSimpleProvider).Provider
	}

	if !outcome.Skipped {
		res := outcome.Result
		model := res.Model
		if model == "" {
			model = cfg.Model
		}
		files := []struct {
			pattern string
			content any
		}{
			{cfg.Output.Summary.Pattern, res.Content},
			{cfg.Output.Completion.Pattern, output.NewCompletion(res.Content, model, res.TotalUsage)},
			{cfg.Output.Inputs.Pattern, output.Inputs{
				Job:      job.Name,
				Period:   job.Label(),
				Model:    model,
				Provider: provider,
				Depth: output.InputsDepth{
					History:         outcome.Depth.History,
					Summary:         outcome.Depth.Summary,
					OriginalHistory: outcome.Original.History,
					OriginalSummary: outcome.Original.Summary,
				},
				Parameters: opts.Params,
				Messages:   composed,
				ToolCalls:  res.ToolCalls,
				Iterations: res.Iterations,
			}},
		}
		for _, f := range files {
			path, err := writer.Write(job, f.pattern, f.content)
			if err != nil {
				return rep, err
			}
			rep.Paths = append(rep.Paths, path)
		}
	}

	if dbPath := opts.Settings.Storage.DBPath; dbPath != "" {
		id, err := saveTranscript(ctx, dbPath, job, provider, cfg.Model, outcome)
		if err != nil {
			// The report is already written; a lost transcript is not fatal.
			logger.Warn("failed to save transcript", "db", dbPath, "error", err)
		} else {
			rep.RunID = id
			logger.Info("transcript saved", "run_id", id)
		}
	}

	return rep, nil
}

func saveTranscript(ctx context.Context, dbPath string, job config.Job, provider, model string, outcome report.Outcome) (string, error) {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	res := outcome.Result
	if res.Model != "" {
		model = res.Model
	}
	return store.Save(ctx, storage.Run{
		Job:             job.Name,
		Label:           job.Label(),
		Provider:        provider,
		Model:           model,
		History:         outcome.Depth.History,
		Summary:         outcome.Depth.Summary,
		OriginalHistory: outcome.Original.History,
		OriginalSummary: outcome.Original.Summary,
		Iterations:      res.Iterations,
		Usage:           res.TotalUsage,
		Content:         res.Content,
		Skipped:         outcome.Skipped,
		Messages:        res.History,
		ToolCalls:       res.ToolCalls,
	})
}

func printMessages(w io.Writer, messages []llm.Message) {
	for i, msg := range messages {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n%s\n", msg.Role, msg.Content)
	}
}

// PrintReport writes a short summary of a finished run.
func PrintReport(w io.Writer, rep Report) {
	o := rep.Outcome
	if o.Skipped {
		fmt.Fprintf(w, "%s %s: nothing to report, no output written\n", rep.Job.Name, rep.Job.Label())
		return
	}

	fmt.Fprintf(w, "%s %s: report generated\n", rep.Job.Name, rep.Job.Label())
	fmt.Fprintf(w, "  depth: %s", o.Depth)
	if o.Narrowed() {
		fmt.Fprintf(w, " (requested %s)", o.Original)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  iterations: %d, tool calls: %d\n", o.Result.Iterations, len(o.Result.ToolCalls))
	u := o.Result.TotalUsage
	fmt.Fprintf(w, "  tokens: %d in, %d out, %d total\n", u.InputTokens, u.OutputTokens, u.TotalTokens)
	for _, p := range rep.Paths {
		fmt.Fprintf(w, "  wrote %s\n", p)
	}
	if rep.RunID != "" {
		fmt.Fprintf(w, "  transcript: %s\n", rep.RunID)
	}
}
