// Package main provides the kronologi CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/richinex/kronologi/cli"
	"github.com/richinex/kronologi/config"
	"github.com/richinex/kronologi/observability"
)

var (
	// Global flags
	configDir   string
	activityDir string
	summaryDir  string
	contextDir  string
	dbPath      string
	verbose     bool
	debug       bool
	logFormat   string
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "kronologi",
		Short: "Periodic activity summaries written by LLMs",
		Long: `Generate monthly or weekly summaries from activity files.

Each job lives in <config-dir>/jobs/<job>/ with a config.yaml, a persona.md
and an instructions.md. In reasoning mode the model explores the activity,
summary and context directories through file tools before writing.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default $KRONOLOGI_CONFIG_DIR or "+config.DefaultConfigDir+")")
	rootCmd.PersistentFlags().StringVar(&activityDir, "activity-dir", "", "Activity directory (default $KRONOLOGI_ACTIVITY_DIR or "+config.DefaultActivityDir+")")
	rootCmd.PersistentFlags().StringVar(&summaryDir, "summary-dir", "", "Summary directory (default $KRONOLOGI_SUMMARY_DIR or "+config.DefaultSummaryDir+")")
	rootCmd.PersistentFlags().StringVar(&contextDir, "context-dir", "", "Context directory (default $KRONOLOGI_CONTEXT_DIR or "+config.DefaultContextDir+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Transcript database path (default $KRONOLOGI_DB)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(showCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSettings reads settings from the environment and applies flag
// overrides.
func loadSettings() (config.Settings, error) {
	settings, err := config.New()
	if err != nil {
		return config.Settings{}, err
	}

	for _, o := range []struct {
		flag string
		dst  *string
	}{
		{configDir, &settings.Dirs.Config},
		{activityDir, &settings.Dirs.Activity},
		{summaryDir, &settings.Dirs.Summary},
		{contextDir, &settings.Dirs.Context},
		{dbPath, &settings.Storage.DBPath},
		{logFormat, &settings.Log.Format},
	} {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}

	switch {
	case debug:
		settings.Log.Level = "debug"
	case verbose && settings.Log.Level != "debug":
		settings.Log.Level = "info"
	case !verbose && settings.Log.Level == config.DefaultLogLevel:
		settings.Log.Level = "warn"
	}
	return settings, nil
}

func newLogger(settings config.Settings) (*slog.Logger, error) {
	level, err := observability.ParseLevel(settings.Log.Level)
	if err != nil {
		return nil, err
	}
	return observability.NewLogger(level, settings.Log.Format), nil
}

func runCmd() *cobra.Command {
	var (
		replace     bool
		dryRun      bool
		simple      bool
		metricsAddr string
		params      map[string]string
	)

	cmd := &cobra.Command{
		Use:   "run <job> [year] [period] [history] [summary]",
		Short: "Generate the summary of a job for one period",
		Long: `Generate the summary of a job for one month or week.

Period 1-12 is a month unless the job name contains "week"; 13-53 is
always a week. Year and period default to the current ones. History and
summary are how many earlier periods the model may consult. When the
provider rejects a request as too large, history depth is reduced first,
then summary depth, and the request is retried.`,
		Args: cobra.RangeArgs(1, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobArgs, err := cli.ParseJobArgs(args)
			if err != nil {
				return err
			}
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			logger, err := newLogger(settings)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := observability.NewMetrics(reg)
			if metricsAddr != "" {
				srv := serveMetrics(metricsAddr, reg, logger)
				defer shutdown(srv)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rep, err := cli.Run(ctx, jobArgs, cli.Options{
				Settings: settings,
				Replace:  replace,
				DryRun:   dryRun,
				Simple:   simple,
				Params:   cli.ParseParams(params),
				Logger:   logger,
				Metrics:  metrics,
				Out:      cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if !dryRun {
				cli.PrintReport(cmd.OutOrStdout(), rep)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Overwrite existing output files")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the composed prompt without calling the model")
	cmd.Flags().BoolVar(&simple, "simple", false, "Generate with a single completion and no tools")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	cmd.Flags().StringToStringVarP(&params, "param", "P", nil, "Template parameter as key=value (repeatable)")

	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools(cmd.OutOrStdout(), verboseTools)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <job>",
		Short: "Check a job's configuration and templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			return cli.Validate(cmd.OutOrStdout(), settings.Dirs, args[0])
		},
	}
}

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [job]",
		Short: "List stored run transcripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if settings.Storage.DBPath == "" {
				return errors.New("no transcript database configured (set --db or KRONOLOGI_DB)")
			}
			var job string
			if len(args) == 1 {
				job = args[0]
			}
			return cli.ListRuns(cmd.Context(), cmd.OutOrStdout(), settings.Storage.DBPath, job, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}
			if settings.Storage.DBPath == "" {
				return errors.New("no transcript database configured (set --db or KRONOLOGI_DB)")
			}
			return cli.ShowRun(cmd.Context(), cmd.OutOrStdout(), settings.Storage.DBPath, args[0])
		},
	}
}
