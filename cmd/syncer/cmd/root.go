package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notion_sync/internal/config"
	"notion_sync/internal/domain"
	"notion_sync/internal/scheduler"
	"notion_sync/internal/service"
)

var (
	configPath string
	dryRun     bool
	force      bool
	limit      int
	fromDate   string
	watch      time.Duration

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notion-sync",
	Short: "Sync a Notion database into the blog's markdown content",
	Long: `notion-sync reads every page of a Notion database, converts it to a markdown
post with frontmatter, downloads its images next to the site and writes the
result under the blog content directory. Unchanged pages are skipped.

Examples:
  notion-sync --dry-run
  notion-sync --force --limit 5
  notion-sync --from 2025-01-01
  notion-sync --watch=30m
  notion-sync --watch        (uses sync.interval from the config)`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger = setupLogger("info", "json")

		var opts []config.LoadOption
		if cmd.Annotations[annotationNotion] == "unused" {
			opts = append(opts, config.WithoutNotion())
		}

		loaded, err := config.Load(configPath, opts...)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = setupLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
	RunE: runSync,
}

// annotationNotion marks subcommands that never talk to the Notion API.
const annotationNotion = "notion"

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing files or downloading images")
	rootCmd.Flags().BoolVar(&force, "force", false, "reconvert and overwrite every document regardless of timestamps")
	rootCmd.Flags().IntVar(&limit, "limit", 0, "process at most N documents (0 means all)")
	rootCmd.Flags().StringVar(&fromDate, "from", "", "skip documents created before this date (YYYY-MM-DD)")
	rootCmd.Flags().DurationVar(&watch, "watch", 0, "keep running and sync again at this interval (bare --watch uses sync.interval)")
	rootCmd.Flags().Lookup("watch").NoOptDefVal = "0s"
}

// watchInterval resolves watch mode: an explicit --watch duration wins, a bare
// --watch or sync.watch in the config uses sync.interval, otherwise 0 (run once).
func watchInterval(cmd *cobra.Command, cfg *config.Config) time.Duration {
	if cmd.Flags().Changed("watch") {
		if watch > 0 {
			return watch
		}
		return cfg.Sync.Interval
	}
	if cfg.Sync.Watch {
		return cfg.Sync.Interval
	}
	return 0
}

func syncOptions() (service.Options, error) {
	opts := service.Options{
		DryRun: dryRun,
		Force:  force,
		Limit:  limit,
	}
	if limit < 0 {
		return opts, fmt.Errorf("--limit must not be negative, got %d", limit)
	}
	if fromDate != "" {
		from, err := time.ParseInLocation(domain.DateLayout, fromDate, time.UTC)
		if err != nil {
			return opts, fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
		}
		opts.From = &from
	}
	return opts, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	opts, err := syncOptions()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if interval := watchInterval(cmd, cfg); interval > 0 {
		logger.Info("starting notion syncer", "interval", interval, "dry_run", opts.DryRun)

		sched := scheduler.NewScheduler(a.sync, opts, interval, logger,
			scheduler.WithReportFunc(func(report *domain.SyncReport, err error) {
				if report != nil {
					_ = service.WriteReport(out, report)
				}
			}),
		)
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	}

	report, err := a.sync.Sync(ctx, opts)
	if report != nil {
		if werr := service.WriteReport(out, report); werr != nil {
			logger.Warn("failed to print report", "error", werr)
		}
	}
	return err
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	// The report goes to stdout, so logs stay on stderr.
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
