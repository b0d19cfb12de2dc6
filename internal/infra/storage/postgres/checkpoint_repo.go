package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/addrindex/internal/core/domain"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Get returns the last synced block, domain.NoCheckpoint if none was stored.
func (r *CheckpointRepo) Get(ctx context.Context) (int64, error) {
	var value int64
	err := r.db.GetContext(ctx, &value, `SELECT value FROM sync_status WHERE key = $1`, domain.CheckpointKey)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NoCheckpoint, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get checkpoint: %w: %w", domain.ErrPersistence, err)
	}
	return value, nil
}

// Advance stores blockNumber unless a higher checkpoint is already stored.
func (r *CheckpointRepo) Advance(ctx context.Context, blockNumber int64) error {
	query := `
		INSERT INTO sync_status (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = GREATEST(sync_status.value, EXCLUDED.value), updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, domain.CheckpointKey, blockNumber); err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}
