// Package network is the ledger node client used for anchoring storage
// orders: funding lookups, broadcast and confirmation tracking over the
// node's JSON-RPC interface.
package network

import "context"

// BlockchainService is the node surface the anchoring layer depends on.
type BlockchainService interface {
	// ListUnspent returns the outputs spendable by address, mempool ones
	// included.
	ListUnspent(ctx context.Context, address string) ([]*UTXO, error)

	// BroadcastTx submits a hex transaction and returns its txid.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)

	// GetTxStatus reports where a transaction stands, or ErrTxNotFound.
	GetTxStatus(ctx context.Context, txid string) (*TxStatus, error)

	// GetChainInfo describes the chain the node follows.
	GetChainInfo(ctx context.Context) (*ChainInfo, error)

	// ImportAddress registers a watch-only address so ListUnspent sees its
	// outputs. Repeated imports are harmless.
	ImportAddress(ctx context.Context, address string) error
}

// UTXO is an unspent output as reported by the node. Amount is in satoshis.
type UTXO struct {
	TxID          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Amount        uint64 `json:"amount"`
	ScriptPubKey  string `json:"script_pubkey"`
	Address       string `json:"address"`
	Confirmations int64  `json:"confirmations"`
}

// TxStatus is the position of a known transaction. Confirmed false means
// it is still in the mempool.
type TxStatus struct {
	Confirmed     bool   `json:"confirmed"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"block_hash"`
	BlockHeight   uint64 `json:"block_height"`
}

// ChainInfo is the subset of getblockchaininfo the gateway looks at.
type ChainInfo struct {
	Chain         string `json:"chain"`
	Blocks        uint64 `json:"blocks"`
	BestBlockHash string `json:"bestblockhash"`
}

// ChainName maps a wallet network name onto the chain name nodes report.
func ChainName(network string) string {
	switch network {
	case "mainnet":
		return "main"
	case "testnet":
		return "test"
	}
	return network
}
