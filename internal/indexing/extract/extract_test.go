package extract

import (
	"errors"
	"reflect"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/vietddude/addrindex/internal/core/domain"
)

// Genesis coinbase output: bare pay-to-pubkey with an uncompressed key.
const genesisP2PK = "4104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f" +
	"4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac"

func TestFromExplorerTxs_Dedup(t *testing.T) {
	txs := []domain.ExplorerTx{
		{
			Hash:    "tx1",
			Inputs:  []domain.ExplorerTxInput{{PrevAddresses: []string{"X", "A"}}},
			Outputs: []domain.ExplorerTxOutput{{Addresses: []string{"X"}}, {Addresses: []string{""}}},
		},
		{
			Hash:    "tx2",
			Inputs:  []domain.ExplorerTxInput{{PrevAddresses: nil}},
			Outputs: []domain.ExplorerTxOutput{{Addresses: []string{"B", "X"}}},
		},
	}

	got := FromExplorerTxs(txs)
	want := []string{"X", "A", "B"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	count := 0
	for _, a := range got {
		if a == "X" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected X exactly once, got %d", count)
	}
}

func TestFromExplorerTxs_Empty(t *testing.T) {
	if got := FromExplorerTxs(nil); len(got) != 0 {
		t.Errorf("expected no addresses, got %v", got)
	}
}

func TestFromScriptPubKey(t *testing.T) {
	tests := []struct {
		name     string
		spk      domain.ScriptPubKey
		params   *chaincfg.Params
		expected string
		decodeOK bool
	}{
		{
			name:     "modern address field",
			spk:      domain.ScriptPubKey{Type: "witness_v0_keyhash", Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"},
			params:   &chaincfg.MainNetParams,
			expected: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
			decodeOK: true,
		},
		{
			name:     "legacy addresses array",
			spk:      domain.ScriptPubKey{Type: "pubkeyhash", Addresses: []string{"1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"}},
			params:   &chaincfg.MainNetParams,
			expected: "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
			decodeOK: true,
		},
		{
			name:     "bare pubkey to p2wpkh",
			spk:      domain.ScriptPubKey{Type: "pubkey", Hex: genesisP2PK},
			params:   &chaincfg.MainNetParams,
			expected: "bc1qvt5s0v2uhuna2sjnn84ldu8m2r4m3rcc4048ry",
			decodeOK: true,
		},
		{
			name:     "bare pubkey on regtest",
			spk:      domain.ScriptPubKey{Type: "pubkey", Hex: genesisP2PK},
			params:   &chaincfg.RegressionNetParams,
			expected: "bcrt1qvt5s0v2uhuna2sjnn84ldu8m2r4m3rccaqhe07",
			decodeOK: true,
		},
		{
			name:     "p2pkh from hex only",
			spk:      domain.ScriptPubKey{Type: "pubkeyhash", Hex: "76a914751e76e8199196d454941c45d1b3a323f1433bd688ac"},
			params:   &chaincfg.MainNetParams,
			expected: "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH",
			decodeOK: true,
		},
		{
			name:     "OP_RETURN",
			spk:      domain.ScriptPubKey{Type: "nulldata", Asm: "OP_RETURN 48656c6c6f", Hex: "6a0548656c6c6f"},
			params:   &chaincfg.MainNetParams,
			expected: domain.UnknownAddress,
		},
		{
			name:     "bad hex",
			spk:      domain.ScriptPubKey{Type: "pubkey", Hex: "zz"},
			params:   &chaincfg.MainNetParams,
			expected: domain.UnknownAddress,
		},
		{
			name:     "no data",
			spk:      domain.ScriptPubKey{Type: "nonstandard"},
			params:   &chaincfg.MainNetParams,
			expected: domain.UnknownAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromScriptPubKey(tt.spk, tt.params)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if tt.decodeOK && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.decodeOK && !errors.Is(err, domain.ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestSet_DropsUnknown(t *testing.T) {
	s := NewSet()
	s.Add("A", domain.UnknownAddress, "", "A", "B")
	s.Add("B", "C")

	want := []string{"A", "B", "C"}
	if got := s.Values(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if s.Len() != 3 {
		t.Errorf("expected len 3, got %d", s.Len())
	}
}
