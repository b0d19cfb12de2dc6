package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

// AddressRepo implements storage.AddressRepository using PostgreSQL.
type AddressRepo struct {
	db *DB
}

// NewAddressRepo creates a new PostgreSQL address repository.
func NewAddressRepo(db *DB) *AddressRepo {
	return &AddressRepo{db: db}
}

const addressColumns = `address, balance, last_block, created_at, updated_at`

// Get retrieves an address record.
func (r *AddressRepo) Get(ctx context.Context, address string) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE address = $1`

	var a domain.Address
	err := r.db.GetContext(ctx, &a, query, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("address %s: %w", address, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w: %w", domain.ErrPersistence, err)
	}
	return &a, nil
}

// Known returns the subset of addresses that already have a record.
func (r *AddressRepo) Known(ctx context.Context, addresses []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(addresses) == 0 {
		return known, nil
	}

	var rows []string
	query := `SELECT address FROM addresses WHERE address = ANY($1::text[])`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(addresses)); err != nil {
		return nil, fmt.Errorf("failed to look up addresses: %w: %w", domain.ErrPersistence, err)
	}
	for _, a := range rows {
		known[a] = true
	}
	return known, nil
}

// UpsertBlock writes all records of one block in a single transaction.
// Entries with KeepBalance only move last_block on existing rows. last_block
// never moves backwards, so replaying an older block keeps the newer sighting.
func (r *AddressRepo) UpsertBlock(ctx context.Context, blockNumber int64, balances []domain.AddressBalance) error {
	var (
		refresh []string
		bals    []int64
		keep    []string
	)
	for _, b := range balances {
		if b.Address == "" || b.Address == domain.UnknownAddress {
			continue
		}
		if b.KeepBalance {
			keep = append(keep, b.Address)
			continue
		}
		refresh = append(refresh, b.Address)
		bals = append(bals, int64(b.Balance))
	}
	if len(refresh) == 0 && len(keep) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if len(refresh) > 0 {
		query := `
			INSERT INTO addresses (address, balance, last_block, created_at, updated_at)
			SELECT a, b, $3, NOW(), NOW()
			FROM unnest($1::text[], $2::bigint[]) AS t(a, b)
			ON CONFLICT (address) DO UPDATE
			SET balance = EXCLUDED.balance,
			    last_block = GREATEST(addresses.last_block, EXCLUDED.last_block),
			    updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, query, pq.Array(refresh), pq.Array(bals), blockNumber); err != nil {
			return fmt.Errorf("failed to upsert addresses: %w: %w", domain.ErrPersistence, err)
		}
	}

	if len(keep) > 0 {
		query := `
			INSERT INTO addresses (address, balance, last_block, created_at, updated_at)
			SELECT a, 0, $2, NOW(), NOW()
			FROM unnest($1::text[]) AS t(a)
			ON CONFLICT (address) DO UPDATE
			SET last_block = GREATEST(addresses.last_block, EXCLUDED.last_block), updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, query, pq.Array(keep), blockNumber); err != nil {
			return fmt.Errorf("failed to touch addresses: %w: %w", domain.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit addresses: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Count returns the number of address records matching filter.
func (r *AddressRepo) Count(ctx context.Context, filter storage.ListFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM addresses` + whereClause(filter)

	var count int64
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w: %w", domain.ErrPersistence, err)
	}
	return count, nil
}

// List returns one page of address records.
func (r *AddressRepo) List(ctx context.Context, q storage.ListQuery) ([]*domain.Address, error) {
	q = q.Normalize()

	// column and direction come from a closed set, never from raw input
	column := "balance"
	if q.OrderBy == storage.OrderByLastBlock {
		column = "last_block"
	}
	direction := "DESC"
	if q.Direction == storage.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM addresses%s ORDER BY %s %s, address ASC LIMIT $1 OFFSET $2`,
		addressColumns, whereClause(q.ListFilter), column, direction,
	)

	rows := []*domain.Address{}
	if err := r.db.SelectContext(ctx, &rows, query, q.PageSize, q.Offset()); err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w: %w", domain.ErrPersistence, err)
	}
	return rows, nil
}

func whereClause(filter storage.ListFilter) string {
	if filter.HasBalance {
		return ` WHERE balance > 0`
	}
	return ""
}
