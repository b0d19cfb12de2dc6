package storage

import (
	"context"
	"strings"

	"github.com/vietddude/addrindex/internal/core/domain"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// SortDirection orders listings.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortColumn is a sortable address column.
type SortColumn string

const (
	OrderByBalance   SortColumn = "balance"
	OrderByLastBlock SortColumn = "lastBlock"
)

// ParseSortDirection returns the direction for s, falling back to DESC.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(s, string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// ParseSortColumn returns the column for s, falling back to balance.
// "blockNumber" is accepted as an alias of lastBlock.
func ParseSortColumn(s string) SortColumn {
	switch s {
	case string(OrderByLastBlock), "blockNumber", "last_block":
		return OrderByLastBlock
	}
	return OrderByBalance
}

// ListFilter restricts address listings.
type ListFilter struct {
	HasBalance bool // only addresses with a positive balance
}

// ListQuery selects one page of addresses.
type ListQuery struct {
	ListFilter
	PageNumber int // zero based
	PageSize   int
	Direction  SortDirection
	OrderBy    SortColumn
}

// Normalize fills defaults and clamps the page size.
func (q ListQuery) Normalize() ListQuery {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.PageNumber < 0 {
		q.PageNumber = 0
	}
	if q.Direction != SortAsc {
		q.Direction = SortDesc
	}
	if q.OrderBy != OrderByLastBlock {
		q.OrderBy = OrderByBalance
	}
	return q
}

// Offset returns the row offset of the page.
func (q ListQuery) Offset() int {
	return q.PageNumber * q.PageSize
}

// AddressRepository handles address records
type AddressRepository interface {
	// Get retrieves an address, domain.ErrNotFound if absent
	Get(ctx context.Context, address string) (*domain.Address, error)

	// Known reports which of addresses already have a record
	Known(ctx context.Context, addresses []string) (map[string]bool, error)

	// UpsertBlock inserts or overwrites the records of one block atomically
	UpsertBlock(ctx context.Context, blockNumber int64, balances []domain.AddressBalance) error

	// Count returns the number of records matching filter
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// List returns one page of records
	List(ctx context.Context, query ListQuery) ([]*domain.Address, error)
}

// CheckpointRepository handles the last synced block
type CheckpointRepository interface {
	// Get returns the checkpoint, domain.NoCheckpoint when none was stored
	Get(ctx context.Context) (int64, error)

	// Advance moves the checkpoint forward; lower values are ignored
	Advance(ctx context.Context, blockNumber int64) error
}

// FailedBlockRepository handles failed blocks queue
type FailedBlockRepository interface {
	// Add records a failed block, replacing the entry of the same block if any
	Add(ctx context.Context, failedBlock *domain.FailedBlock) error

	// Get retrieves the entry of a block, domain.ErrNotFound if absent
	Get(ctx context.Context, blockNumber int64) (*domain.FailedBlock, error)

	// GetAll retrieves all failed blocks ordered by block number
	GetAll(ctx context.Context) ([]*domain.FailedBlock, error)

	// Remove deletes the entry of a block (successfully retried)
	Remove(ctx context.Context, blockNumber int64) error

	// RecordAttempt stores the latest failure of a retried block and increments its retry count
	RecordAttempt(ctx context.Context, failedBlock *domain.FailedBlock) error

	// Count returns the count of failed blocks
	Count(ctx context.Context) (int64, error)
}

// Store bundles the repositories used by the sync engine.
type Store struct {
	Addresses   AddressRepository
	Checkpoints CheckpointRepository
	Failures    FailedBlockRepository
}
