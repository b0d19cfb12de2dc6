package bitcoin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/addrindex/internal/core/domain"
	"github.com/vietddude/addrindex/internal/indexing/extract"
	"github.com/vietddude/addrindex/internal/infra/chain"
	"github.com/vietddude/addrindex/internal/infra/rpc/routing"
)

// RPCClient is the JSON-RPC 1.0 transport.
type RPCClient interface {
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

type BitcoinAdapter struct {
	client      RPCClient
	params      *chaincfg.Params
	retry       routing.RetryConfig
	concurrency int
	log         *slog.Logger
}

var _ chain.BlockSource = (*BitcoinAdapter)(nil)

func NewBitcoinAdapter(
	client RPCClient,
	params *chaincfg.Params,
	retry routing.RetryConfig,
	concurrency int,
) *BitcoinAdapter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BitcoinAdapter{
		client:      client,
		params:      params,
		retry:       retry,
		concurrency: concurrency,
		log:         slog.Default().With("component", "daemon"),
	}
}

// NetworkParams maps a network name to its chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	}
	return nil, fmt.Errorf("unknown bitcoin network %q", name)
}

type blockResult struct {
	Hash   string   `json:"hash"`
	Height int64    `json:"height"`
	Tx     []string `json:"tx"`
}

type rawTxResult struct {
	Txid string `json:"txid"`
	Vout []struct {
		N            int                 `json:"n"`
		ScriptPubKey domain.ScriptPubKey `json:"scriptPubKey"`
	} `json:"vout"`
}

// BlockAddresses returns the distinct output addresses of the block at height.
// Outputs whose script cannot be decoded are skipped.
func (a *BitcoinAdapter) BlockAddresses(ctx context.Context, height int64) ([]string, error) {
	// First get block hash
	var blockHash string
	if err := a.call(ctx, &blockHash, "getblockhash", height); err != nil {
		return nil, fmt.Errorf("failed to get block hash %d: %w", height, err)
	}

	// Then get block details with verbosity 1 (includes tx hashes)
	var block blockResult
	if err := a.call(ctx, &block, "getblock", blockHash, 1); err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", blockHash, err)
	}

	perTx := make([][]string, len(block.Tx))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, txid := range block.Tx {
		g.Go(func() error {
			addrs, err := a.txOutputAddresses(gctx, txid)
			if err != nil {
				return err
			}
			perTx[i] = addrs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}

	set := extract.NewSet()
	for _, addrs := range perTx {
		set.Add(addrs...)
	}
	return set.Values(), nil
}

func (a *BitcoinAdapter) txOutputAddresses(ctx context.Context, txid string) ([]string, error) {
	var tx rawTxResult
	if err := a.call(ctx, &tx, "getrawtransaction", txid, true); err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", txid, err)
	}

	addrs := make([]string, 0, len(tx.Vout))
	for _, out := range tx.Vout {
		addr, err := extract.FromScriptPubKey(out.ScriptPubKey, a.params)
		if err != nil {
			// OP_RETURN, multisig, non-standard
			a.log.Debug("skipping output", "tx", txid, "vout", out.N, "type", out.ScriptPubKey.Type, "error", err)
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func (a *BitcoinAdapter) call(ctx context.Context, out any, method string, params ...any) error {
	var raw json.RawMessage
	err := routing.Do(ctx, a.retry, func(ctx context.Context) error {
		var err error
		raw, err = a.client.Call(ctx, method, params...)
		return err
	})
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%s: empty result: %w", method, domain.ErrDecode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %w", method, domain.ErrDecode, err)
	}
	return nil
}

