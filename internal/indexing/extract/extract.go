// Package extract derives the distinct addresses touched by a block.
package extract

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/vietddude/addrindex/internal/core/domain"
)

// FromExplorerTxs collects every non-empty input prev_address and output
// address of txs, deduplicated in first-seen order.
func FromExplorerTxs(txs []domain.ExplorerTx) []string {
	set := NewSet()
	for _, tx := range txs {
		for _, in := range tx.Inputs {
			set.Add(in.PrevAddresses...)
		}
		for _, out := range tx.Outputs {
			set.Add(out.Addresses...)
		}
	}
	return set.Values()
}

// FromScriptPubKey resolves the address paid by an output script.
//
// A resolved address reported by the daemon wins, then the legacy addresses
// list. Bare pay-to-pubkey scripts are turned into the native P2WPKH address
// of the same key. Other standard single-address scripts are encoded as is.
// Anything else yields domain.UnknownAddress and an error wrapping domain.ErrDecode.
func FromScriptPubKey(spk domain.ScriptPubKey, params *chaincfg.Params) (string, error) {
	if spk.Address != "" {
		return spk.Address, nil
	}
	if len(spk.Addresses) > 0 && spk.Addresses[0] != "" {
		return spk.Addresses[0], nil
	}
	if spk.Hex == "" {
		return domain.UnknownAddress, fmt.Errorf("script type %q without hex: %w", spk.Type, domain.ErrDecode)
	}

	script, err := hex.DecodeString(spk.Hex)
	if err != nil {
		return domain.UnknownAddress, fmt.Errorf("script hex: %w: %w", domain.ErrDecode, err)
	}

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil {
		return domain.UnknownAddress, fmt.Errorf("parse script: %w: %w", domain.ErrDecode, err)
	}

	switch class {
	case txscript.PubKeyTy:
		if len(addrs) != 1 {
			return domain.UnknownAddress, fmt.Errorf("pubkey script: %w", domain.ErrDecode)
		}
		pk, ok := addrs[0].(*btcutil.AddressPubKey)
		if !ok {
			return domain.UnknownAddress, fmt.Errorf("pubkey script: %w", domain.ErrDecode)
		}
		return pubKeyToP2WPKH(pk.ScriptAddress(), params)

	case txscript.PubKeyHashTy, txscript.ScriptHashTy,
		txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy,
		txscript.WitnessV1TaprootTy:
		if len(addrs) != 1 {
			return domain.UnknownAddress, fmt.Errorf("%s script: %w", class, domain.ErrDecode)
		}
		return addrs[0].EncodeAddress(), nil
	}

	return domain.UnknownAddress, fmt.Errorf("unsupported script type %s: %w", class, domain.ErrDecode)
}

func pubKeyToP2WPKH(pubKey []byte, params *chaincfg.Params) (string, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey), params)
	if err != nil {
		return domain.UnknownAddress, fmt.Errorf("encode p2wpkh: %w: %w", domain.ErrDecode, err)
	}
	return addr.EncodeAddress(), nil
}
