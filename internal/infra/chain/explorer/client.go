// Package explorer reads block transaction listings and address balances
// from an explorer REST service.
package explorer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/extract"
	"github.com/vietddude/addrindex/internal/infra/chain"
	"github.com/vietddude/addrindex/internal/infra/rpc/routing"
)

// Getter is the REST transport used by the client.
type Getter interface {
	Get(ctx context.Context, method, path string, out any) error
}

// Client implements chain.BlockSource and chain.BalanceSource against an explorer.
type Client struct {
	http  Getter
	retry routing.RetryConfig
	log   *slog.Logger
}

var (
	_ chain.BlockSource   = (*Client)(nil)
	_ chain.BalanceSource = (*Client)(nil)
)

// NewWithTransport creates a client over g, usually a *provider.HTTPProvider.
func NewWithTransport(g Getter, retry routing.RetryConfig) *Client {
	return &Client{
		http:  g,
		retry: retry,
		log:   slog.Default().With("component", "explorer"),
	}
}

// BlockAddresses walks every transaction page of a block and returns the union
// of input and output addresses. Any failing page fails the whole block.
func (c *Client) BlockAddresses(ctx context.Context, height int64) ([]string, error) {
	first, err := c.page(ctx, height, 1)
	if err != nil {
		return nil, err
	}

	set := extract.NewSet()
	set.Add(extract.FromExplorerTxs(first.Data.List)...)

	total := int64(first.Data.PageTotal)
	for n := int64(2); n <= total; n++ {
		next, err := c.page(ctx, height, n)
		if err != nil {
			return nil, err
		}
		set.Add(extract.FromExplorerTxs(next.Data.List)...)
	}

	c.log.Debug("block listing fetched", "block", height, "pages", max(total, 1), "addresses", set.Len())
	return set.Values(), nil
}

func (c *Client) page(ctx context.Context, height, n int64) (*blockTxPage, error) {
	path := fmt.Sprintf("/block/%d/tx?page=%d", height, n)

	var resp blockTxPage
	err := routing.Do(ctx, c.retry, func(ctx context.Context) error {
		resp = blockTxPage{}
		return c.http.Get(ctx, "block_tx", path, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("block %d page %d: %w", height, n, err)
	}
	if resp.Status != statusSuccess {
		return nil, fmt.Errorf("block %d page %d: status %q: %w", height, n, resp.Status, domain.ErrFetch)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("block %d page %d: missing data: %w", height, n, domain.ErrDecode)
	}
	return &resp, nil
}

// Balance returns the current balance of address.
func (c *Client) Balance(ctx context.Context, address string) (btcutil.Amount, error) {
	path := "/address/" + url.PathEscape(address)

	var resp addressResponse
	err := routing.Do(ctx, c.retry, func(ctx context.Context) error {
		resp = addressResponse{}
		return c.http.Get(ctx, "address", path, &resp)
	})
	if err != nil {
		return 0, fmt.Errorf("balance %s: %w", address, err)
	}
	if resp.Data == nil {
		return 0, fmt.Errorf("balance %s: missing data: %w", address, domain.ErrDecode)
	}
	return btcutil.Amount(resp.Data.Balance), nil
}
