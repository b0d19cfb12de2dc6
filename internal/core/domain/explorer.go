package domain

// ExplorerTx is a transaction as listed by the explorer block endpoint.
type ExplorerTx struct {
	Hash    string             `json:"hash"`
	Inputs  []ExplorerTxInput  `json:"inputs"`
	Outputs []ExplorerTxOutput `json:"outputs"`
}

type ExplorerTxInput struct {
	PrevAddresses []string `json:"prev_addresses"`
}

type ExplorerTxOutput struct {
	Addresses []string `json:"addresses"`
}

// ScriptPubKey is the output script as returned by getrawtransaction (verbose).
type ScriptPubKey struct {
	Asm       string   `json:"asm"`
	Hex       string   `json:"hex"`
	Type      string   `json:"type"`
	Address   string   `json:"address,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}
