package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"notion_sync/internal/storage/postgres"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded sync runs",
	Long: `Show the sync runs stored in the database (database.enabled must be true).

Without arguments the latest runs are listed. With a run id, every document
handled by that run is printed.

Examples:
  notion-sync history
  notion-sync history --limit 50
  notion-sync history 42`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationNotion: "unused"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Database.Enabled {
			return errors.New("run history is stored in postgres; set database.enabled in the config")
		}

		ctx := cmd.Context()
		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		store := postgres.NewRunStore(db, postgres.NewTransactionManager(db))
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			items, err := store.Items(ctx, runID)
			if err != nil {
				return err
			}
			for _, i := range items {
				detail := i.Path
				if i.Error != "" {
					detail = i.Error
				} else if i.Reason != "" {
					detail = i.Reason
				}
				fmt.Fprintf(out, "%-8s %s  %s\n", i.Action, i.Title, detail)
			}
			return nil
		}

		runs, err := store.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			mode := ""
			if r.DryRun {
				mode = " (dry run)"
			}
			fmt.Fprintf(out, "#%d %s%s  created=%d updated=%d skipped=%d failed=%d images=%d  %s\n",
				r.ID,
				r.StartedAt.UTC().Format(time.RFC3339),
				mode,
				r.Created, r.Updated, r.Skipped, r.Failed, r.ImagesDownloaded,
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
}
