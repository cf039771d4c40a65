package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/storage"
	"github.com/richinex/kronologi/tools"
)

// ListTools prints the tools reports can enable.
func ListTools(w io.Writer, verbose bool) {
	registry := tools.NewDefaultRegistry()

	if verbose {
		fmt.Fprintln(w, registry.Description())
		return
	}

	fmt.Fprintln(w, "Available tools:")
	fmt.Fprintln(w)
	for _, tool := range registry.List() {
		fmt.Fprintf(w, "  %s\n", tool.Name())
		fmt.Fprintf(w, "    %s\n", tool.Description())
	}
}

// Validate checks a job directory and prints every issue found. It returns
// an error when an error-level issue exists.
func Validate(w io.Writer, dirs config.DirConfig, job string) error {
	dir := dirs.JobDir(job)
	v := config.ValidateJobDir(dir)

	fmt.Fprintf(w, "Validating %s\n", dir)
	if v.Config != nil {
		fmt.Fprintf(w, "  model: %s\n", v.Config.Model)
		if params := v.Config.ParameterNames(); len(params) > 0 {
			fmt.Fprintf(w, "  parameters: %s\n", strings.Join(params, ", "))
		}
	}

	if len(v.Issues) == 0 {
		fmt.Fprintln(w, "No issues found.")
		return nil
	}

	fmt.Fprintln(w)
	for _, issue := range v.Issues {
		line := fmt.Sprintf("  [%s] %s", issue.Severity, issue.Message)
		if issue.Location != "" {
			line += fmt.Sprintf(" (%s)", issue.Location)
		}
		fmt.Fprintln(w, line)
	}

	if !v.Valid() {
		return fmt.Errorf("job %q has configuration errors", job)
	}
	return nil
}

// ListRuns prints stored transcripts, newest first.
func ListRuns(ctx context.Context, w io.Writer, dbPath, job string, limit int) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	runs, err := store.List(ctx, job, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}

	for _, r := range runs {
		status := "ok"
		if r.Skipped {
			status = "skipped"
		}
		fmt.Fprintf(w, "%s  %s  %-12s %-10s %s/%s  history=%d summary=%d  iterations=%d  tokens=%d  %s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Job, r.Label,
			r.Provider, r.Model, r.History, r.Summary, r.Iterations, r.Usage.TotalTokens, status)
	}
	return nil
}

// ShowRun prints one stored transcript in full.
func ShowRun(ctx context.Context, w io.Writer, dbPath, id string) error {
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  job: %s %s\n", r.Job, r.Label)
	fmt.Fprintf(w, "  model: %s/%s\n", r.Provider, r.Model)
	fmt.Fprintf(w, "  depth: history=%d summary=%d (requested history=%d summary=%d)\n",
		r.History, r.Summary, r.OriginalHistory, r.OriginalSummary)
	fmt.Fprintf(w, "  iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "  tokens: %d in, %d out\n", r.Usage.InputTokens, r.Usage.OutputTokens)

	if len(r.ToolCalls) > 0 {
		fmt.Fprintln(w, "\nTool calls:")
		for i, call := range r.ToolCalls {
			fmt.Fprintf(w, "  %d. %s %s\n", i+1, call.Name, string(call.Input))
		}
	}

	fmt.Fprintln(w)
	printMessages(w, r.Messages)
	return nil
}

// ParseJobArgs parses `<job> [year] [period] [history] [summary]`. Omitted
// numbers stay zero and are filled in by config.NewJob.
func ParseJobArgs(args []string) (config.JobArgs, error) {
	if len(args) == 0 || args[0] == "" {
		return config.JobArgs{}, fmt.Errorf("job is required")
	}

	ja := config.JobArgs{Name: args[0]}
	fields := []struct {
		name string
		dst  *int
	}{
		{"year", &ja.Year},
		{"period", &ja.Period},
		{"history periods", &ja.History},
		{"summary periods", &ja.Summary},
	}
	for i, arg := range args[1:] {
		if i >= len(fields) {
			return config.JobArgs{}, fmt.Errorf("too many arguments: %q", arg)
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return config.JobArgs{}, fmt.Errorf("%s must be a number, got %q", fields[i].name, arg)
		}
		*fields[i].dst = n
	}
	return ja, nil
}

// ParseParams converts key=value template parameters. Values stay strings;
// number parameters are converted when the job resolves them.
func ParseParams(pairs map[string]string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	params := make(map[string]any, len(pairs))
	for k, v := range pairs {
		params[k] = v
	}
	return params
}
