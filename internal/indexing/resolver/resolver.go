// Package resolver turns a block's address set into (address, balance) pairs.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/infra/chain"
	"github.com/vietddude/addrindex/internal/infra/storage"
)

// Policy selects which addresses get a balance lookup.
type Policy struct {
	// SyncOnly skips every lookup: new addresses get a zero balance.
	SyncOnly bool
	// RefreshKnown re-fetches addresses already in the store.
	RefreshKnown bool
	// Concurrency bounds parallel lookups within one block.
	Concurrency int
}

// Resolver resolves balances for one block at a time.
type Resolver struct {
	balances chain.BalanceSource
	known    storage.AddressRepository
	policy   Policy
	log      *slog.Logger
}

// New creates a resolver. balances may be nil when policy.SyncOnly is set.
func New(balances chain.BalanceSource, known storage.AddressRepository, policy Policy) *Resolver {
	if policy.Concurrency <= 0 {
		policy.Concurrency = 1
	}
	return &Resolver{
		balances: balances,
		known:    known,
		policy:   policy,
		log:      slog.Default().With("component", "resolver"),
	}
}

// Resolve returns one entry per address, in input order. Any failed lookup
// fails the whole batch.
func (r *Resolver) Resolve(ctx context.Context, addresses []string) ([]domain.AddressBalance, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	known, err := r.known.Known(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("lookup known addresses: %w", err)
	}

	out := make([]domain.AddressBalance, len(addresses))
	var fetch []int
	for i, addr := range addresses {
		out[i].Address = addr
		switch {
		case r.policy.SyncOnly:
			// new records start at zero, known ones keep their balance
			out[i].KeepBalance = known[addr]
		case known[addr] && !r.policy.RefreshKnown:
			out[i].KeepBalance = true
		default:
			fetch = append(fetch, i)
		}
	}

	if len(fetch) == 0 {
		return out, nil
	}
	if r.balances == nil {
		return nil, fmt.Errorf("no balance source configured: %w", domain.ErrFetch)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.policy.Concurrency)
	for _, i := range fetch {
		g.Go(func() error {
			bal, err := r.balances.Balance(gctx, out[i].Address)
			if err != nil {
				return err
			}
			out[i].Balance = bal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.Debug("balances resolved", "addresses", len(addresses), "fetched", len(fetch), "known", len(known))
	return out, nil
}
