package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

type MemoryStorage struct {
	addresses  map[string]*domain.Address
	checkpoint int64
	failed     map[int64]*domain.FailedBlock
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		addresses:  make(map[string]*domain.Address),
		checkpoint: domain.NoCheckpoint,
		failed:     make(map[int64]*domain.FailedBlock),
	}
}

// Store returns the repositories backed by this storage.
func (s *MemoryStorage) Store() storage.Store {
	return storage.Store{
		Addresses:   NewAddressRepo(s),
		Checkpoints: NewCheckpointRepo(s),
		Failures:    NewFailedRepo(s),
	}
}

// -----------------------------------------------------------------------------
// Address Repository
// -----------------------------------------------------------------------------

type AddressRepo struct {
	store *MemoryStorage
}

func NewAddressRepo(store *MemoryStorage) *AddressRepo {
	return &AddressRepo{store: store}
}

func (r *AddressRepo) Get(ctx context.Context, address string) (*domain.Address, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.addresses[address]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", address, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (r *AddressRepo) Known(ctx context.Context, addresses []string) (map[string]bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	known := make(map[string]bool)
	for _, a := range addresses {
		if _, ok := r.store.addresses[a]; ok {
			known[a] = true
		}
	}
	return known, nil
}

func (r *AddressRepo) UpsertBlock(ctx context.Context, blockNumber int64, balances []domain.AddressBalance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	for _, b := range balances {
		if b.Address == "" || b.Address == domain.UnknownAddress {
			continue
		}
		if existing, ok := r.store.addresses[b.Address]; ok {
			if !b.KeepBalance {
				existing.Balance = b.Balance
			}
			existing.LastBlock = max(existing.LastBlock, blockNumber)
			existing.UpdatedAt = now
			continue
		}
		balance := b.Balance
		if b.KeepBalance {
			balance = 0
		}
		r.store.addresses[b.Address] = &domain.Address{
			Address:   b.Address,
			Balance:   balance,
			LastBlock: blockNumber,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return nil
}

func (r *AddressRepo) Count(ctx context.Context, filter storage.ListFilter) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, a := range r.store.addresses {
		if !filter.HasBalance || a.Balance > 0 {
			n++
		}
	}
	return n, nil
}

func (r *AddressRepo) List(ctx context.Context, query storage.ListQuery) ([]*domain.Address, error) {
	q := query.Normalize()

	r.store.mu.RLock()
	rows := make([]*domain.Address, 0, len(r.store.addresses))
	for _, a := range r.store.addresses {
		if q.HasBalance && a.Balance <= 0 {
			continue
		}
		cp := *a
		rows = append(rows, &cp)
	}
	r.store.mu.RUnlock()

	key := func(a *domain.Address) int64 {
		if q.OrderBy == storage.OrderByLastBlock {
			return a.LastBlock
		}
		return int64(a.Balance)
	}
	sort.Slice(rows, func(i, j int) bool {
		ki, kj := key(rows[i]), key(rows[j])
		if ki == kj {
			return rows[i].Address < rows[j].Address
		}
		if q.Direction == storage.SortAsc {
			return ki < kj
		}
		return ki > kj
	})

	start := q.Offset()
	if start >= len(rows) {
		return []*domain.Address{}, nil
	}
	end := min(start+q.PageSize, len(rows))
	return rows[start:end], nil
}

// -----------------------------------------------------------------------------
// Checkpoint Repository
// -----------------------------------------------------------------------------

type CheckpointRepo struct {
	store *MemoryStorage
}

func NewCheckpointRepo(store *MemoryStorage) *CheckpointRepo {
	return &CheckpointRepo{store: store}
}

func (r *CheckpointRepo) Get(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.checkpoint, nil
}

func (r *CheckpointRepo) Advance(ctx context.Context, blockNumber int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if blockNumber > r.store.checkpoint {
		r.store.checkpoint = blockNumber
	}
	return nil
}

// -----------------------------------------------------------------------------
// Failed Block Repository
// -----------------------------------------------------------------------------

type FailedRepo struct {
	store *MemoryStorage
}

func NewFailedRepo(store *MemoryStorage) *FailedRepo {
	return &FailedRepo{store: store}
}

func (r *FailedRepo) Add(ctx context.Context, fb *domain.FailedBlock) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := r.store.failed[fb.BlockNumber]; ok {
		existing.FailureType = fb.FailureType
		existing.Message = domain.TruncateMessage(fb.Message)
		existing.UpdatedAt = now
		return nil
	}
	cp := *fb
	cp.Message = domain.TruncateMessage(cp.Message)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.store.failed[fb.BlockNumber] = &cp
	return nil
}

func (r *FailedRepo) Get(ctx context.Context, blockNumber int64) (*domain.FailedBlock, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	fb, ok := r.store.failed[blockNumber]
	if !ok {
		return nil, fmt.Errorf("failed block %d: %w", blockNumber, domain.ErrNotFound)
	}
	cp := *fb
	return &cp, nil
}

func (r *FailedRepo) GetAll(ctx context.Context) ([]*domain.FailedBlock, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.FailedBlock, 0, len(r.store.failed))
	for _, fb := range r.store.failed {
		cp := *fb
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNumber < out[j].BlockNumber })
	return out, nil
}

func (r *FailedRepo) Remove(ctx context.Context, blockNumber int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.failed, blockNumber)
	return nil
}

func (r *FailedRepo) RecordAttempt(ctx context.Context, fb *domain.FailedBlock) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.failed[fb.BlockNumber]
	if !ok {
		return fmt.Errorf("failed block %d: %w", fb.BlockNumber, domain.ErrNotFound)
	}
	existing.FailureType = fb.FailureType
	existing.Message = domain.TruncateMessage(fb.Message)
	existing.RetryCount++
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *FailedRepo) Count(ctx context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return int64(len(r.store.failed)), nil
}
