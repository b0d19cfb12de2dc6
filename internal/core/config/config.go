package config

import (
	"time"

	redisclient "github.com/vietddude/addrindex/internal/infra/redis"
	"github.com/vietddude/addrindex/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Sync     SyncConfig         `yaml:"sync"`
	Explorer ExplorerConfig     `yaml:"explorer"`
	Daemon   DaemonConfig       `yaml:"daemon"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SyncMode selects the ingestion strategy.
type SyncMode string

const (
	// SyncModeExplorer reads paginated block transaction listings from the explorer.
	SyncModeExplorer SyncMode = "explorer"
	// SyncModeDaemon reads raw transactions from a bitcoind-compatible daemon.
	SyncModeDaemon SyncMode = "daemon"
)

// SyncConfig holds the block walk settings.
type SyncConfig struct {
	Mode       SyncMode `yaml:"mode"`
	StartBlock int64    `yaml:"start_block"`
	EndBlock   int64    `yaml:"end_block"`

	// SyncOnly records new addresses with a zero balance and skips balance lookups.
	SyncOnly bool `yaml:"sync_only"`

	// RefreshKnown re-fetches balances of addresses already in the store.
	RefreshKnown *bool `yaml:"refresh_known"`

	BlockTimeout       time.Duration `yaml:"block_timeout"`
	BalanceConcurrency int           `yaml:"balance_concurrency"`
	ProgressInterval   int64         `yaml:"progress_interval"`
}

// ExplorerConfig holds settings for the explorer REST service.
type ExplorerConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	MaxRetries        uint64        `yaml:"max_retries"`
}

// DaemonConfig holds settings for the JSON-RPC daemon.
type DaemonConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout"`
	Network     string        `yaml:"network"`     // mainnet, testnet3, regtest, signet
	Concurrency int           `yaml:"concurrency"` // parallel getrawtransaction calls per block
	MaxRetries  uint64        `yaml:"max_retries"`
}

// RefreshKnownBalances reports whether known addresses get their balance re-fetched.
func (c SyncConfig) RefreshKnownBalances() bool {
	if c.RefreshKnown == nil {
		return true
	}
	return *c.RefreshKnown
}
