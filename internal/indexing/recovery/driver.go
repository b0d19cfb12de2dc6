// Package recovery replays the failed block queue.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/metrics"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

// ErrRetryInProgress is returned when Retry is called while another retry runs.
var ErrRetryInProgress = errors.New("retry already in progress")

// BlockProcessor re-runs the resolution and upsert of one block.
type BlockProcessor interface {
	ProcessBlock(ctx context.Context, blockNumber int64) ([]domain.AddressBalance, error)
}

// Result is the outcome of one pass over the queue.
type Result struct {
	Succeeds []domain.AddressBalance `json:"succeeds"`
	Fails    []domain.FailedBlock    `json:"fails"`
}

// Driver processes the failed block queue.
type Driver struct {
	repo      storage.FailedBlockRepository
	processor BlockProcessor
	lock      sync.Locker
	running   atomic.Bool
	log       *slog.Logger
}

// NewDriver creates a retry driver. lock is held around each retried block so
// the forward walk never interleaves with it; nil means no outside writer.
func NewDriver(repo storage.FailedBlockRepository, processor BlockProcessor, lock sync.Locker) *Driver {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Driver{
		repo:      repo,
		processor: processor,
		lock:      lock,
		log:       slog.Default().With("component", "recovery"),
	}
}

// Retry loads the queue and retries every entry once. Successful blocks leave
// the queue and contribute their addresses to Succeeds; failing ones stay
// queued with an updated message and are reported in Fails.
func (d *Driver) Retry(ctx context.Context) (Result, error) {
	if !d.running.CompareAndSwap(false, true) {
		return Result{}, ErrRetryInProgress
	}
	defer d.running.Store(false)

	queue, err := d.repo.GetAll(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load failed blocks: %w", err)
	}

	res := Result{
		Succeeds: []domain.AddressBalance{},
		Fails:    []domain.FailedBlock{},
	}
	if len(queue) == 0 {
		return res, nil
	}
	d.log.Info("Retrying failed blocks", "count", len(queue))

	for _, fb := range queue {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		balances, ok := d.retryOne(ctx, fb)
		if ok {
			res.Succeeds = append(res.Succeeds, balances...)
			metrics.RetriesTotal.WithLabelValues("success").Inc()
			continue
		}
		res.Fails = append(res.Fails, *fb)
		metrics.RetriesTotal.WithLabelValues("failed").Inc()
	}

	d.log.Info("Retry finished", "succeeded", len(queue)-len(res.Fails), "failed", len(res.Fails))
	return res, nil
}

func (d *Driver) retryOne(ctx context.Context, fb *domain.FailedBlock) ([]domain.AddressBalance, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	balances, procErr := d.processor.ProcessBlock(ctx, fb.BlockNumber)

	// queue writes must land even if the caller went away mid-block
	wctx := context.WithoutCancel(ctx)

	if procErr != nil {
		attempt := domain.NewFailedBlock(fb.BlockNumber, procErr)
		if err := d.repo.RecordAttempt(wctx, attempt); err != nil {
			d.log.Error("Failed to record retry attempt", "block", fb.BlockNumber, "error", err)
		}
		d.log.Warn("Retry failed", "block", fb.BlockNumber, "attempt", fb.RetryCount+1, "error", procErr)
		return nil, false
	}

	if err := d.repo.Remove(wctx, fb.BlockNumber); err != nil {
		d.log.Error("Failed to remove retried block", "block", fb.BlockNumber, "error", err)
		return nil, false
	}
	d.log.Info("Retry succeeded", "block", fb.BlockNumber, "addresses", len(balances))
	return balances, true
}
