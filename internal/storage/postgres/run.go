package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"notion_sync/internal/domain"
)

// RunSummary is one row of sync_runs.
type RunSummary struct {
	ID               int64     `db:"id"`
	StartedAt        time.Time `db:"started_at"`
	FinishedAt       time.Time `db:"finished_at"`
	DryRun           bool      `db:"dry_run"`
	Force            bool      `db:"force"`
	Fetched          int       `db:"fetched"`
	Created          int       `db:"created"`
	Updated          int       `db:"updated"`
	Skipped          int       `db:"skipped"`
	Excluded         int       `db:"excluded"`
	Failed           int       `db:"failed"`
	ImagesDownloaded int       `db:"images_downloaded"`
	ImagesReused     int       `db:"images_reused"`
	ImagesFailed     int       `db:"images_failed"`
	Published        int       `db:"published"`
}

type runItem struct {
	RunID      int64  `db:"run_id"`
	ExternalID string `db:"external_id"`
	Title      string `db:"title"`
	Action     string `db:"action"`
	Path       string `db:"path"`
	Reason     string `db:"reason"`
	Error      string `db:"error"`
}

// RunStore keeps a history of sync runs and what happened to each document.
type RunStore struct {
	db        *sqlx.DB
	txManager *TransactionManager
}

func NewRunStore(db *sqlx.DB, txManager *TransactionManager) *RunStore {
	return &RunStore{db: db, txManager: txManager}
}

// Record stores the run and its items in one transaction and returns the run id.
func (s *RunStore) Record(ctx context.Context, report *domain.SyncReport) (int64, error) {
	var runID int64

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		query := `
			INSERT INTO sync_runs (
				started_at, finished_at, dry_run, force, fetched, created, updated, skipped,
				excluded, failed, images_downloaded, images_reused, images_failed, published
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
			)
			RETURNING id`

		err := sqlx.GetContext(txCtx, exec, &runID, query,
			report.StartedAt,
			report.StartedAt.Add(report.Duration),
			report.DryRun,
			report.Force,
			report.Fetched,
			report.Created,
			report.Updated,
			report.Skipped,
			report.Excluded,
			report.Failed,
			report.Media.Downloaded,
			report.Media.Reused,
			report.Media.Failed,
			report.Published,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		if len(report.Items) == 0 {
			return nil
		}

		items := make([]runItem, len(report.Items))
		for i, item := range report.Items {
			items[i] = runItem{
				RunID:      runID,
				ExternalID: item.ExternalID,
				Title:      item.Title,
				Action:     string(item.Action),
				Path:       item.Path,
				Reason:     item.Reason,
				Error:      item.Error,
			}
		}

		_, err = sqlx.NamedExecContext(txCtx, exec, `
			INSERT INTO sync_run_items (run_id, external_id, title, action, path, reason, error)
			VALUES (:run_id, :external_id, :title, :action, :path, :reason, :error)`,
			items,
		)
		if err != nil {
			return fmt.Errorf("insert run items: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return runID, nil
}

// Recent returns the latest runs, newest first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT id, started_at, finished_at, dry_run, force, fetched, created, updated, skipped,
		       excluded, failed, images_downloaded, images_reused, images_failed, published
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1`

	var runs []RunSummary
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return runs, nil
}

// Items returns what happened to each document during a run.
func (s *RunStore) Items(ctx context.Context, runID int64) ([]domain.ItemResult, error) {
	query := `
		SELECT external_id, title, action, path, reason, error
		FROM sync_run_items
		WHERE run_id = $1
		ORDER BY id`

	var rows []runItem
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("select run items: %w", err)
	}

	items := make([]domain.ItemResult, len(rows))
	for i, r := range rows {
		items[i] = domain.ItemResult{
			ExternalID: r.ExternalID,
			Title:      r.Title,
			Action:     domain.Action(r.Action),
			Path:       r.Path,
			Reason:     r.Reason,
			Error:      r.Error,
		}
	}
	return items, nil
}
