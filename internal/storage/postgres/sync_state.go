package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"notion_sync/internal/domain"
)

// SyncStateStore keeps the checkpoint in Postgres, one row per source database.
// It is an alternative to the JSON state file.
type SyncStateStore struct {
	db       *sqlx.DB
	sourceID string
}

func NewSyncStateStore(db *sqlx.DB, sourceID string) *SyncStateStore {
	return &SyncStateStore{db: db, sourceID: sourceID}
}

type stateRow struct {
	LastSyncedAt time.Time `db:"last_synced_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (s *SyncStateStore) Load(ctx context.Context) (*domain.SyncState, error) {
	var row stateRow
	query := `
		SELECT last_synced_at, updated_at
		FROM sync_state
		WHERE source_id = $1`

	err := s.db.GetContext(ctx, &row, query, s.sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select sync state: %w", err)
	}

	return &domain.SyncState{
		LastSyncTimestamp: row.LastSyncedAt,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

func (s *SyncStateStore) Save(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (source_id, last_synced_at, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, s.sourceID, state.LastSyncTimestamp, state.UpdatedAt); err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	return nil
}
