// Package control wires configuration into a running indexer: storage,
// sources, the sync engine, the retry driver and the read API.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/addrindex/internal/api"
	"github.com/vietddude/addrindex/internal/core/config"
	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/metrics"
	"github.com/vietddude/addrindex/internal/indexing/recovery"
	"github.com/vietddude/addrindex/internal/indexing/resolver"
	"github.com/vietddude/addrindex/internal/indexing/syncer"
	"github.com/vietddude/addrindex/internal/infra/chain"
	"github.com/vietddude/addrindex/internal/infra/chain/bitcoin"
	"github.com/vietddude/addrindex/internal/infra/chain/explorer"
	redisclient "github.com/vietddude/addrindex/internal/infra/redis"
	"github.com/vietddude/addrindex/internal/infra/rpc/provider"
	"github.com/vietddude/addrindex/internal/infra/rpc/routing"
	"github.com/vietddude/addrindex/internal/infra/storage"
	"github.com/vietddude/addrindex/internal/infra/storage/memory"
	"github.com/vietddude/addrindex/internal/infra/storage/postgres"
)

// App is the indexer process.
type App struct {
	cfg   *config.AppConfig
	runID string
	log   *slog.Logger

	store     storage.Store
	db        *postgres.DB
	redis     *redisclient.Client
	providers []*provider.HTTPProvider

	engine *syncer.Engine
	driver *recovery.Driver
	api    *api.Server

	lockMu        sync.Mutex
	lock          *redisclient.Lock
	lockRefs      int
	stopKeepalive context.CancelFunc
}

// New builds the application from cfg. Nothing runs until Sync, Retry or Serve.
func New(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	return build(ctx, cfg, nil)
}

// build wires the application; a non-nil store replaces the configured one.
func build(ctx context.Context, cfg *config.AppConfig, store *storage.Store) (*App, error) {
	a := &App{
		cfg:   cfg,
		runID: uuid.NewString(),
	}
	a.log = slog.Default().With("component", "app", "run", a.runID)

	if store != nil {
		a.store = *store
	} else if err := a.initStorage(ctx); err != nil {
		return nil, err
	}
	if err := a.initRedis(); err != nil {
		a.Close()
		return nil, err
	}

	blocks, balances, err := a.initSources()
	if err != nil {
		a.Close()
		return nil, err
	}

	res := resolver.New(balances, a.store.Addresses, resolver.Policy{
		SyncOnly:     cfg.Sync.SyncOnly,
		RefreshKnown: cfg.Sync.RefreshKnownBalances(),
		Concurrency:  cfg.Sync.BalanceConcurrency,
	})

	engineCfg := syncer.Config{
		StartBlock:       cfg.Sync.StartBlock,
		EndBlock:         cfg.Sync.EndBlock,
		BlockTimeout:     cfg.Sync.BlockTimeout,
		ProgressInterval: cfg.Sync.ProgressInterval,
	}
	if a.redis != nil {
		engineCfg.Heartbeat = a.heartbeat
	}
	a.engine = syncer.NewEngine(engineCfg, blocks, res, a.store)
	a.driver = recovery.NewDriver(a.store.Failures, a.engine, a.engine.Locker())

	a.api = api.NewServer(api.ServerOpts{
		Logger:    slog.Default(),
		Port:      cfg.Server.Port,
		Addresses: a.store.Addresses,
		Failures:  a.store.Failures,
		Status:    a,
		Retrier:   a,
		Health:    a.Health,
	})

	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.cfg.Database.URL == "" {
		a.store = memory.NewMemoryStorage().Store()
		a.log.Info("Using Memory storage")
		return nil
	}

	db, err := postgres.NewDB(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	a.db = db
	a.store = db.Store()
	a.log.Info("Using PostgreSQL storage")
	return nil
}

func (a *App) initRedis() error {
	if !a.cfg.Redis.Enabled() {
		return nil
	}
	client, err := redisclient.NewClient(a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}
	a.redis = client
	return nil
}

// initSources returns the block source for the configured mode and the
// balance source, nil in sync-only mode.
func (a *App) initSources() (chain.BlockSource, chain.BalanceSource, error) {
	var exp *explorer.Client
	if a.cfg.Explorer.Endpoint != "" {
		p := provider.NewHTTPProvider(provider.HTTPOptions{
			Name:              "explorer",
			Endpoint:          a.cfg.Explorer.Endpoint,
			Timeout:           a.cfg.Explorer.Timeout,
			RequestsPerSecond: a.cfg.Explorer.RequestsPerSecond,
		})
		a.providers = append(a.providers, p)

		retry := routing.DefaultRetryConfig
		retry.MaxRetries = a.cfg.Explorer.MaxRetries
		exp = explorer.NewWithTransport(p, retry)
	}

	var balances chain.BalanceSource
	if !a.cfg.Sync.SyncOnly && exp != nil {
		balances = exp
	}

	switch a.cfg.Sync.Mode {
	case config.SyncModeDaemon:
		params, err := bitcoin.NetworkParams(a.cfg.Daemon.Network)
		if err != nil {
			return nil, nil, err
		}
		p := provider.NewHTTPProvider(provider.HTTPOptions{
			Name:     "daemon",
			Endpoint: a.cfg.Daemon.Endpoint,
			Timeout:  a.cfg.Daemon.Timeout,
			User:     a.cfg.Daemon.User,
			Password: a.cfg.Daemon.Password,
		})
		a.providers = append(a.providers, p)

		retry := routing.DefaultRetryConfig
		retry.MaxRetries = a.cfg.Daemon.MaxRetries
		a.log.Info("Using daemon block source", "network", params.Name)
		return bitcoin.NewBitcoinAdapter(p, params, retry, a.cfg.Daemon.Concurrency), balances, nil

	default:
		if exp == nil {
			return nil, nil, errors.New("explorer endpoint is not configured")
		}
		a.log.Info("Using explorer block source")
		return exp, balances, nil
	}
}

// Migrate applies database migrations. The memory store needs none.
func (a *App) Migrate(ctx context.Context) error {
	if a.db == nil {
		a.log.Info("Memory storage, skipping migrations")
		return nil
	}
	return a.db.Migrate(ctx)
}

// Sync resumes the forward walk from the checkpoint and returns when the
// configured end block is reached or ctx is cancelled.
func (a *App) Sync(ctx context.Context) error {
	release, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	return a.engine.Resume(ctx)
}

// Retry replays the failure queue once.
func (a *App) Retry(ctx context.Context) (recovery.Result, error) {
	release, err := a.acquire(ctx)
	if err != nil {
		return recovery.Result{}, err
	}
	defer release()

	return a.driver.Retry(ctx)
}

// Status returns the local sync state. When this process isn't walking,
// progress published by another process is reported instead.
func (a *App) Status(ctx context.Context) (domain.SyncStatus, error) {
	st, err := a.engine.Status(ctx)
	if err != nil {
		return st, err
	}
	if st.Progress.Running || a.redis == nil {
		return st, nil
	}
	p, err := a.redis.GetProgress(ctx)
	if err != nil {
		a.log.Warn("Failed to read published progress", "error", err)
		return st, nil
	}
	st.Progress = p
	return st, nil
}

// Health checks the backing services.
func (a *App) Health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.Health(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Serve runs the read API and one forward sync until ctx is cancelled.
// The API keeps serving after the walk finishes. A fatal sync error stops
// the API and is returned.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Migrate(ctx); err != nil {
		return err
	}
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	go a.runMetricsUpdater(ctx)

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- a.api.Start()
	}()

	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- a.Sync(syncCtx)
	}()

	var err error
	syncing := true
wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case err = <-apiErr:
			if err != nil {
				err = fmt.Errorf("api server: %w", err)
			}
			break wait
		case serr := <-syncErr:
			syncing = false
			if serr == nil {
				continue
			}
			if errors.Is(serr, redisclient.ErrLockHeld) {
				a.log.Warn("Another process is syncing, serving API only", "error", serr)
				continue
			}
			err = fmt.Errorf("sync: %w", serr)
			break wait
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if stopErr := a.api.Stop(shutdownCtx); stopErr != nil {
		a.log.Warn("API shutdown failed", "error", stopErr)
	}

	// the walk stops between blocks; wait so Close never runs under a block
	stopSync()
	if syncing {
		if serr := <-syncErr; serr != nil && err == nil && ctx.Err() == nil {
			err = fmt.Errorf("sync: %w", serr)
		}
	}
	return err
}

// Close releases connections.
func (a *App) Close() {
	for _, p := range a.providers {
		_ = p.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}

// acquire takes the process-level sync lock when Redis is configured. The
// lock is shared by nested holders within this process and refreshed in the
// background for as long as it is held.
func (a *App) acquire(ctx context.Context) (func(), error) {
	if a.redis == nil {
		return func() {}, nil
	}

	a.lockMu.Lock()
	defer a.lockMu.Unlock()

	if a.lock == nil {
		lock, err := a.redis.AcquireLock(ctx, a.cfg.Redis.LockTTL)
		if err != nil {
			return nil, err
		}
		keepCtx, stop := context.WithCancel(context.Background())
		a.lock = lock
		a.stopKeepalive = stop
		go a.keepalive(keepCtx, lock)
		a.log.Debug("Sync lock acquired", "token", lock.Token())
	}
	a.lockRefs++

	return func() {
		a.lockMu.Lock()
		defer a.lockMu.Unlock()

		a.lockRefs--
		if a.lockRefs > 0 || a.lock == nil {
			return
		}
		a.stopKeepalive()
		if err := a.lock.Release(context.Background()); err != nil {
			a.log.Warn("Failed to release sync lock", "error", err)
		}
		a.lock = nil
		a.stopKeepalive = nil
	}, nil
}

// keepalive refreshes lock every third of its TTL until ctx is done.
func (a *App) keepalive(ctx context.Context, lock *redisclient.Lock) {
	interval := max(a.cfg.Redis.LockTTL/3, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.log.Error("Failed to refresh sync lock", "error", err)
			}
		}
	}
}

// heartbeat keeps the lock alive and publishes progress after every block.
func (a *App) heartbeat(ctx context.Context, p domain.Progress) error {
	a.lockMu.Lock()
	lock := a.lock
	a.lockMu.Unlock()

	if lock != nil {
		if err := lock.Refresh(ctx); err != nil {
			return err
		}
	}
	if err := a.redis.SetProgress(ctx, p, a.cfg.Redis.LockTTL); err != nil {
		a.log.Warn("Failed to publish progress", "error", err)
	}
	return nil
}

func (a *App) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range a.providers {
				available := 0.0
				if p.IsAvailable() {
					available = 1
				}
				metrics.SourceAvailable.WithLabelValues(p.GetName()).Set(available)
				metrics.SourceErrorRate.WithLabelValues(p.GetName()).Set(p.GetHealth().ErrorRate)
			}
		}
	}
}
