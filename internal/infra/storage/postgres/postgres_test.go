package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

// setupDB connects to ADDRINDEX_TEST_DATABASE_URL, applies migrations and
// empties the tables. Tests are skipped when the variable is unset.
func setupDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("ADDRINDEX_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping postgres test. Set ADDRINDEX_TEST_DATABASE_URL to run.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, Config{URL: url, MaxConns: 4})
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	for _, table := range []string{"addresses", "sync_status", "failed_blocks"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", table)); err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestAddressRepo(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewAddressRepo(db)

	if err := repo.UpsertBlock(ctx, 0, []domain.AddressBalance{
		{Address: "A", Balance: 1},
		{Address: "B", Balance: 2},
		{Address: domain.UnknownAddress, Balance: 3},
	}); err != nil {
		t.Fatalf("UpsertBlock: %v", err)
	}
	// Same block twice leaves the table unchanged
	if err := repo.UpsertBlock(ctx, 0, []domain.AddressBalance{{Address: "A", Balance: 1}, {Address: "B", Balance: 2}}); err != nil {
		t.Fatalf("UpsertBlock: %v", err)
	}
	if err := repo.UpsertBlock(ctx, 2, []domain.AddressBalance{
		{Address: "B", Balance: 5},
		{Address: "C", Balance: 9},
		{Address: "A", KeepBalance: true},
	}); err != nil {
		t.Fatalf("UpsertBlock: %v", err)
	}

	want := map[string][2]int64{"A": {1, 2}, "B": {5, 2}, "C": {9, 2}}
	for addr, w := range want {
		a, err := repo.Get(ctx, addr)
		if err != nil {
			t.Fatalf("Get %s: %v", addr, err)
		}
		if int64(a.Balance) != w[0] || a.LastBlock != w[1] {
			t.Errorf("%s: expected %d@%d, got %d@%d", addr, w[0], w[1], a.Balance, a.LastBlock)
		}
	}
	if _, err := repo.Get(ctx, domain.UnknownAddress); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Replaying block 1 refreshes balances but never lowers last_block
	if err := repo.UpsertBlock(ctx, 1, []domain.AddressBalance{
		{Address: "B", Balance: 6},
		{Address: "C", KeepBalance: true},
	}); err != nil {
		t.Fatalf("UpsertBlock: %v", err)
	}
	b, err := repo.Get(ctx, "B")
	if err != nil {
		t.Fatalf("Get B: %v", err)
	}
	if b.Balance != 6 || b.LastBlock != 2 {
		t.Errorf("B: expected 6@2 after replay, got %d@%d", b.Balance, b.LastBlock)
	}
	c, err := repo.Get(ctx, "C")
	if err != nil {
		t.Fatalf("Get C: %v", err)
	}
	if c.LastBlock != 2 {
		t.Errorf("C: expected last block 2 after replay, got %d", c.LastBlock)
	}

	known, err := repo.Known(ctx, []string{"A", "Z"})
	if err != nil {
		t.Fatalf("Known: %v", err)
	}
	if !known["A"] || known["Z"] {
		t.Errorf("unexpected known set %v", known)
	}

	rows, err := repo.List(ctx, storage.ListQuery{PageSize: 2, Direction: storage.SortDesc, OrderBy: storage.OrderByBalance})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || rows[0].Address != "C" || rows[1].Address != "B" {
		t.Errorf("unexpected page %+v", rows)
	}

	count, err := repo.Count(ctx, storage.ListFilter{HasBalance: true})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestCheckpointRepo(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewCheckpointRepo(db)

	cp, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cp != domain.NoCheckpoint {
		t.Errorf("expected %d, got %d", domain.NoCheckpoint, cp)
	}

	for _, b := range []int64{0, 7, 3} {
		if err := repo.Advance(ctx, b); err != nil {
			t.Fatalf("Advance %d: %v", b, err)
		}
	}
	if cp, _ = repo.Get(ctx); cp != 7 {
		t.Errorf("expected 7, got %d", cp)
	}
}

func TestFailedBlockRepo(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewFailedBlockRepo(db)

	_ = repo.Add(ctx, domain.NewFailedBlock(1, fmt.Errorf("boom: %w", domain.ErrFetch)))
	if err := repo.Add(ctx, domain.NewFailedBlock(1, errors.New("again"))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	count, _ := repo.Count(ctx)
	if count != 1 {
		t.Fatalf("expected one entry per block, got %d", count)
	}

	if err := repo.RecordAttempt(ctx, domain.NewFailedBlock(1, errors.New("still failing"))); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	fb, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fb.RetryCount != 1 || fb.Message != "still failing" {
		t.Errorf("unexpected entry %+v", fb)
	}

	all, _ := repo.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 entry, got %d", len(all))
	}

	_ = repo.Remove(ctx, 1)
	if _, err := repo.Get(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
