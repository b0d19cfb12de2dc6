// Package syncer walks a block range once, resolving each block's addresses
// and balances, and records failing blocks for a later retry.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/metrics"
	"github.com/vietddude/addrindex/internal/infra/chain"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

// ErrFatal wraps errors that stop the walk: the checkpoint or the failure
// queue could not be written.
var ErrFatal = errors.New("sync aborted")

// BalanceResolver turns a block's address set into (address, balance) pairs.
type BalanceResolver interface {
	Resolve(ctx context.Context, addresses []string) ([]domain.AddressBalance, error)
}

// Config holds engine configuration
type Config struct {
	StartBlock int64
	EndBlock   int64

	// BlockTimeout bounds one block's resolution; 0 disables it.
	BlockTimeout time.Duration

	// ProgressInterval logs progress every N blocks.
	ProgressInterval int64

	// Heartbeat runs after every forward block. An error stops the walk.
	Heartbeat func(ctx context.Context, p domain.Progress) error
}

// Engine is the sequential block walker.
type Engine struct {
	cfg      Config
	source   chain.BlockSource
	resolver BalanceResolver
	store    storage.Store
	log      *slog.Logger

	// block is held for one unit of work: a forward block or a retried one
	block sync.Mutex

	mu       sync.RWMutex
	progress domain.Progress
}

// NewEngine creates a new sync engine
func NewEngine(cfg Config, source chain.BlockSource, resolver BalanceResolver, store storage.Store) *Engine {
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100
	}
	return &Engine{
		cfg:      cfg,
		source:   source,
		resolver: resolver,
		store:    store,
		log:      slog.Default().With("component", "syncer"),
	}
}

// Locker serializes callers of ProcessBlock with the forward walk.
func (e *Engine) Locker() sync.Locker {
	return &e.block
}

// Resume continues from the stored checkpoint up to the configured end block.
func (e *Engine) Resume(ctx context.Context) error {
	checkpoint, err := e.store.Checkpoints.Get(ctx)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	start := max(checkpoint+1, e.cfg.StartBlock)
	e.log.Info("Resuming sync", "checkpoint", checkpoint, "start", start, "end", e.cfg.EndBlock)
	return e.Run(ctx, start, e.cfg.EndBlock)
}

// Run walks [start, end] in ascending order. Block failures are queued and
// never stop the walk. Cancelling ctx stops the walk between blocks.
func (e *Engine) Run(ctx context.Context, start, end int64) error {
	if end <= start {
		e.log.Info("Block range already synced", "start", start, "end", end)
		return nil
	}

	total := end - start + 1
	began := time.Now()
	e.log.Info("Sync started", "start", start, "end", end, "blocks", total)

	e.setProgress(domain.Progress{Running: true, Total: total, Current: start})
	defer e.stopProgress()

	var processed, failed int64
	for n := start; n <= end; n++ {
		if ctx.Err() != nil {
			e.log.Info("Sync interrupted", "next", n, "processed", processed)
			return nil
		}

		ok, err := e.step(ctx, n)
		if err != nil {
			return err
		}
		if !ok {
			failed++
		}
		processed++

		p := e.advanceProgress(n, processed, total)
		if processed%e.cfg.ProgressInterval == 0 || n == end {
			e.log.Info("Sync progress",
				"block", n,
				"processed", processed,
				"total", total,
				"percent", fmt.Sprintf("%.4f", p.Percent),
				"failed", failed,
			)
		}

		if e.cfg.Heartbeat != nil {
			if err := e.cfg.Heartbeat(context.WithoutCancel(ctx), p); err != nil {
				return fmt.Errorf("%w: heartbeat after block %d: %w", ErrFatal, n, err)
			}
		}
	}

	e.log.Info("Sync finished", "processed", processed, "failed", failed, "elapsed", time.Since(began).Round(time.Millisecond))
	return nil
}

// step processes one forward block, queues it on failure and advances the
// checkpoint. It reports whether the block succeeded; an error is fatal.
func (e *Engine) step(ctx context.Context, n int64) (bool, error) {
	e.block.Lock()
	defer e.block.Unlock()

	start := time.Now()
	_, procErr := e.ProcessBlock(ctx, n)

	wctx, cancel := e.blockContext(ctx)
	defer cancel()

	result := "success"
	if procErr != nil {
		result = "failed"
		fb := domain.NewFailedBlock(n, procErr)
		if err := e.store.Failures.Add(wctx, fb); err != nil {
			return false, fmt.Errorf("%w: record failed block %d: %w", ErrFatal, n, err)
		}
		e.log.Warn("Block failed, queued for retry", "block", n, "type", fb.FailureType, "error", procErr)
	}

	if err := e.store.Checkpoints.Advance(wctx, n); err != nil {
		return false, fmt.Errorf("%w: advance checkpoint to %d: %w", ErrFatal, n, err)
	}

	metrics.BlocksProcessed.WithLabelValues(result).Inc()
	metrics.BlockDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	metrics.CheckpointBlock.Set(float64(n))
	return procErr == nil, nil
}

// ProcessBlock resolves block n and upserts its addresses. It leaves the
// checkpoint and the failure queue alone. The block runs to completion even if
// ctx is cancelled, bounded by the block timeout. Callers outside the forward
// walk must hold Locker.
func (e *Engine) ProcessBlock(ctx context.Context, n int64) ([]domain.AddressBalance, error) {
	bctx, cancel := e.blockContext(ctx)
	defer cancel()

	addrs, err := e.source.BlockAddresses(bctx, n)
	if err != nil {
		return nil, e.blockErr(bctx, n, "fetch addresses", err)
	}

	balances, err := e.resolver.Resolve(bctx, addrs)
	if err != nil {
		return nil, e.blockErr(bctx, n, "resolve balances", err)
	}

	if err := e.store.Addresses.UpsertBlock(bctx, n, balances); err != nil {
		return nil, e.blockErr(bctx, n, "upsert addresses", err)
	}

	metrics.AddressesUpserted.Add(float64(len(balances)))
	e.log.Debug("Block processed", "block", n, "addresses", len(balances))
	return balances, nil
}

func (e *Engine) blockErr(bctx context.Context, n int64, stage string, err error) error {
	if errors.Is(bctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrFetch) {
		return fmt.Errorf("block %d: %s: timed out after %s: %w: %w", n, stage, e.cfg.BlockTimeout, domain.ErrFetch, err)
	}
	return fmt.Errorf("block %d: %s: %w", n, stage, err)
}

func (e *Engine) blockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if e.cfg.BlockTimeout > 0 {
		return context.WithTimeout(detached, e.cfg.BlockTimeout)
	}
	return context.WithCancel(detached)
}

// Progress returns a snapshot of the forward walk progress.
func (e *Engine) Progress() domain.Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progress
}

// Status returns the checkpoint, record counts and progress.
func (e *Engine) Status(ctx context.Context) (domain.SyncStatus, error) {
	checkpoint, err := e.store.Checkpoints.Get(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	addresses, err := e.store.Addresses.Count(ctx, storage.ListFilter{})
	if err != nil {
		return domain.SyncStatus{}, err
	}
	failed, err := e.store.Failures.Count(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}
	return domain.SyncStatus{
		BlockNumber:  checkpoint,
		AddressCount: addresses,
		FailedCount:  failed,
		Progress:     e.Progress(),
	}, nil
}

func (e *Engine) setProgress(p domain.Progress) {
	e.mu.Lock()
	e.progress = p
	e.mu.Unlock()
	metrics.SyncProgress.Set(p.Percent / 100)
}

func (e *Engine) advanceProgress(n, processed, total int64) domain.Progress {
	p := domain.Progress{
		Running:   true,
		Processed: processed,
		Total:     total,
		Percent:   float64(processed) / float64(total) * 100,
		Current:   n,
	}
	e.setProgress(p)
	return p
}

func (e *Engine) stopProgress() {
	e.mu.Lock()
	e.progress.Running = false
	e.mu.Unlock()
}
