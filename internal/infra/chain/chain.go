// Package chain defines the contracts the indexer consumes from external block sources.
package chain

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
)

// BlockSource lists the addresses touched by one block's transactions.
// Implementations return the deduplicated set or an error for the whole block;
// partial results are never returned.
type BlockSource interface {
	BlockAddresses(ctx context.Context, height int64) ([]string, error)
}

// BalanceSource resolves the current balance of an address.
type BalanceSource interface {
	Balance(ctx context.Context, address string) (btcutil.Amount, error)
}
