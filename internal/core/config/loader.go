package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Sync.Mode == "" {
		c.Sync.Mode = SyncModeExplorer
	}
	if c.Sync.BlockTimeout == 0 {
		c.Sync.BlockTimeout = 5 * time.Minute
	}
	if c.Sync.BalanceConcurrency == 0 {
		c.Sync.BalanceConcurrency = 8
	}
	if c.Sync.ProgressInterval == 0 {
		c.Sync.ProgressInterval = 100
	}
	if c.Explorer.Timeout == 0 {
		c.Explorer.Timeout = 30 * time.Second
	}
	if c.Explorer.MaxRetries == 0 {
		c.Explorer.MaxRetries = 3
	}
	if c.Daemon.Timeout == 0 {
		c.Daemon.Timeout = 30 * time.Second
	}
	if c.Daemon.Network == "" {
		c.Daemon.Network = "mainnet"
	}
	if c.Daemon.Concurrency == 0 {
		c.Daemon.Concurrency = 4
	}
	if c.Daemon.MaxRetries == 0 {
		c.Daemon.MaxRetries = 3
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 2 * c.Sync.BlockTimeout
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Sync.Mode {
	case SyncModeExplorer:
		if c.Explorer.Endpoint == "" {
			errs = append(errs, errors.New("explorer.endpoint is required in explorer mode"))
		}
	case SyncModeDaemon:
		if c.Daemon.Endpoint == "" {
			errs = append(errs, errors.New("daemon.endpoint is required in daemon mode"))
		}
		if !c.Sync.SyncOnly && c.Explorer.Endpoint == "" {
			errs = append(errs, errors.New("explorer.endpoint is required for balances unless sync.sync_only is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sync.mode %q", c.Sync.Mode))
	}

	if c.Sync.StartBlock < 0 {
		errs = append(errs, fmt.Errorf("sync.start_block must be >= 0, got %d", c.Sync.StartBlock))
	}
	if c.Sync.EndBlock < c.Sync.StartBlock {
		errs = append(errs, fmt.Errorf("sync.end_block %d is below sync.start_block %d", c.Sync.EndBlock, c.Sync.StartBlock))
	}
	if c.Redis.Enabled() && c.Redis.LockTTL <= c.Sync.BlockTimeout {
		errs = append(errs, fmt.Errorf("redis.lock_ttl %v must exceed sync.block_timeout %v", c.Redis.LockTTL, c.Sync.BlockTimeout))
	}
	if c.Sync.BalanceConcurrency < 0 {
		errs = append(errs, errors.New("sync.balance_concurrency must be positive"))
	}

	return errors.Join(errs...)
}
