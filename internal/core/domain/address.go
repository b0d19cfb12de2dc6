package domain

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// UnknownAddress marks an output whose script could not be turned into an address.
// It is never persisted.
const UnknownAddress = "unknown"

// Address represents the last known state of one blockchain address.
type Address struct {
	Address   string         `json:"address"   db:"address"`
	Balance   btcutil.Amount `json:"balance"   db:"balance"`
	LastBlock int64          `json:"lastBlock" db:"last_block"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at"`
}

// AddressBalance is a resolved (address, balance) pair for one block.
type AddressBalance struct {
	Address string         `json:"address"`
	Balance btcutil.Amount `json:"balance"`

	// KeepBalance leaves a known record's balance untouched and only bumps its last block.
	KeepBalance bool `json:"-"`
}
