package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/addrindex/internal/core/domain"
)

// FailedBlockRepo implements storage.FailedBlockRepository using PostgreSQL.
type FailedBlockRepo struct {
	db *DB
}

// NewFailedBlockRepo creates a new PostgreSQL failed block repository.
func NewFailedBlockRepo(db *DB) *FailedBlockRepo {
	return &FailedBlockRepo{db: db}
}

const failedColumns = `block_number, failure_type, message, retry_count, created_at, updated_at`

// Add records a failed block. An existing entry for the block is updated in place.
func (r *FailedBlockRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	query := `
		INSERT INTO failed_blocks (block_number, failure_type, message, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (block_number) DO UPDATE
		SET failure_type = EXCLUDED.failure_type, message = EXCLUDED.message, updated_at = NOW()
	`
	failureType := fb.FailureType
	if failureType == "" {
		failureType = domain.FailureTypeUnknown
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		fb.BlockNumber,
		string(failureType),
		domain.TruncateMessage(fb.Message),
		fb.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("failed to add failed block: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Get returns the entry of one block.
func (r *FailedBlockRepo) Get(ctx context.Context, blockNumber int64) (*domain.FailedBlock, error) {
	query := `SELECT ` + failedColumns + ` FROM failed_blocks WHERE block_number = $1`

	var fb domain.FailedBlock
	err := r.db.GetContext(ctx, &fb, query, blockNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed block %d: %w", blockNumber, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get failed block: %w: %w", domain.ErrPersistence, err)
	}
	return &fb, nil
}

// GetAll returns all failed blocks ordered by block number.
func (r *FailedBlockRepo) GetAll(ctx context.Context) ([]*domain.FailedBlock, error) {
	query := `SELECT ` + failedColumns + ` FROM failed_blocks ORDER BY block_number ASC`

	blocks := []*domain.FailedBlock{}
	if err := r.db.SelectContext(ctx, &blocks, query); err != nil {
		return nil, fmt.Errorf("failed to get all failed blocks: %w: %w", domain.ErrPersistence, err)
	}
	return blocks, nil
}

// Remove deletes the entry of a block.
func (r *FailedBlockRepo) Remove(ctx context.Context, blockNumber int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM failed_blocks WHERE block_number = $1`, blockNumber); err != nil {
		return fmt.Errorf("failed to remove failed block: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// RecordAttempt stores the latest failure of a retried block and increments its retry count.
func (r *FailedBlockRepo) RecordAttempt(ctx context.Context, fb *domain.FailedBlock) error {
	query := `
		UPDATE failed_blocks
		SET failure_type = $2, message = $3, retry_count = retry_count + 1, updated_at = NOW()
		WHERE block_number = $1
	`
	res, err := r.db.ExecContext(ctx, query, fb.BlockNumber, string(fb.FailureType), domain.TruncateMessage(fb.Message))
	if err != nil {
		return fmt.Errorf("failed to record retry: %w: %w", domain.ErrPersistence, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed block %d: %w", fb.BlockNumber, domain.ErrNotFound)
	}
	return nil
}

// Count returns the number of failed blocks.
func (r *FailedBlockRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM failed_blocks`); err != nil {
		return 0, fmt.Errorf("failed to count failed blocks: %w: %w", domain.ErrPersistence, err)
	}
	return count, nil
}
