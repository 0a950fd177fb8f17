//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"notion_sync/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_sync_runs.up.sql"),
			filepath.Join(migrationsPath, "002_create_sync_state.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_run_items")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_runs")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func testReport(started time.Time) *domain.SyncReport {
	report := &domain.SyncReport{
		StartedAt: started,
		Fetched:   3,
		Media:     domain.MediaStats{Downloaded: 2, Reused: 1},
		Duration:  4 * time.Second,
	}
	report.Record(domain.ItemResult{ExternalID: "p1", Title: "First", Action: domain.ActionCreate, Path: "blog/tech/ai/a.md"})
	report.Record(domain.ItemResult{ExternalID: "p2", Title: "Second", Action: domain.ActionSkip, Reason: "unchanged"})
	report.Record(domain.ItemResult{ExternalID: "p3", Title: "Third", Action: domain.ActionFailed, Error: "boom"})
	return report
}

func (s *PostgresIntegrationSuite) TestRunStore_RecordAndRecent() {
	store := NewRunStore(s.db, NewTransactionManager(s.db))
	now := time.Now().UTC().Truncate(time.Microsecond)

	olderID, err := store.Record(s.ctx, testReport(now.Add(-time.Hour)))
	s.Require().NoError(err)
	newerID, err := store.Record(s.ctx, testReport(now))
	s.Require().NoError(err)
	s.Greater(newerID, olderID)

	runs, err := store.Recent(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(newerID, runs[0].ID)
	s.Equal(1, runs[0].Created)
	s.Equal(1, runs[0].Skipped)
	s.Equal(1, runs[0].Failed)
	s.Equal(2, runs[0].ImagesDownloaded)
	s.True(runs[0].FinishedAt.Equal(now.Add(4 * time.Second)))
}

func (s *PostgresIntegrationSuite) TestRunStore_Items() {
	store := NewRunStore(s.db, NewTransactionManager(s.db))

	id, err := store.Record(s.ctx, testReport(time.Now().UTC()))
	s.Require().NoError(err)

	items, err := store.Items(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal(domain.ActionCreate, items[0].Action)
	s.Equal("blog/tech/ai/a.md", items[0].Path)
	s.Equal("unchanged", items[1].Reason)
	s.Equal("boom", items[2].Error)
}

func (s *PostgresIntegrationSuite) TestRunStore_RecordWithoutItems() {
	store := NewRunStore(s.db, NewTransactionManager(s.db))

	id, err := store.Record(s.ctx, &domain.SyncReport{StartedAt: time.Now().UTC()})
	s.Require().NoError(err)

	items, err := store.Items(s.ctx, id)
	s.NoError(err)
	s.Empty(items)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_LoadNew() {
	store := NewSyncStateStore(s.db, "db-1")

	state, err := store.Load(s.ctx)
	s.NoError(err)
	s.True(state.LastSyncTimestamp.IsZero())
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_SaveAndLoad() {
	store := NewSyncStateStore(s.db, "db-1")
	first := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(store.Save(s.ctx, &domain.SyncState{LastSyncTimestamp: first, UpdatedAt: first}))

	second := first.Add(time.Hour)
	s.Require().NoError(store.Save(s.ctx, &domain.SyncState{LastSyncTimestamp: second, UpdatedAt: second}))

	state, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.True(state.LastSyncTimestamp.Equal(second))

	other, err := NewSyncStateStore(s.db, "db-2").Load(s.ctx)
	s.NoError(err)
	s.True(other.LastSyncTimestamp.IsZero())
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		_, err := exec.ExecContext(ctx, `
			INSERT INTO sync_runs (started_at, finished_at) VALUES ($1, $1)
		`, time.Now())
		if err != nil {
			return err
		}

		return context.Canceled
	})
	s.Error(err)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM sync_runs")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_NestedJoinsOuter() {
	tm := NewTransactionManager(s.db)
	store := NewRunStore(s.db, tm)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, err := store.Record(ctx, testReport(time.Now().UTC())); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM sync_runs")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		_, err := exec.ExecContext(ctx, `
			INSERT INTO sync_runs (started_at, finished_at, fetched) VALUES ($1, $1, 7)
		`, time.Now())
		return err
	})
	s.NoError(err)

	var fetched int
	err = s.db.GetContext(s.ctx, &fetched, "SELECT fetched FROM sync_runs")
	s.NoError(err)
	s.Equal(7, fetched)
}
