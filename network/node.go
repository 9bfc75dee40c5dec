package network

import (
	"context"
	"fmt"
	"math"
)

var _ BlockchainService = (*RPCClient)(nil)

// listunspent confirmation bounds. Zero admits mempool change so orders can
// be placed back to back.
const (
	minConf = 0
	maxConf = 9999999
)

// coinToSat converts a coin amount to satoshis, rounding away float error.
func coinToSat(amount float64) uint64 {
	return uint64(math.Round(amount * 1e8))
}

func (c *RPCClient) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	var entries []struct {
		TxID          string  `json:"txid"`
		Vout          uint32  `json:"vout"`
		Amount        float64 `json:"amount"`
		ScriptPubKey  string  `json:"scriptPubKey"`
		Address       string  `json:"address"`
		Confirmations int64   `json:"confirmations"`
	}
	if err := c.Call(ctx, "listunspent", []any{minConf, maxConf, []string{address}}, &entries); err != nil {
		return nil, err
	}
	utxos := make([]*UTXO, len(entries))
	for i, e := range entries {
		utxos[i] = &UTXO{
			TxID:          e.TxID,
			Vout:          e.Vout,
			Amount:        coinToSat(e.Amount),
			ScriptPubKey:  e.ScriptPubKey,
			Address:       e.Address,
			Confirmations: e.Confirmations,
		}
	}
	return utxos, nil
}

// BroadcastTx wraps every failure, transport ones included, in
// ErrBroadcastRejected.
func (c *RPCClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	var txid string
	if err := c.Call(ctx, "sendrawtransaction", []any{rawTxHex}, &txid); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	return txid, nil
}

// GetTxStatus uses verbose getrawtransaction, which needs a txindex or a
// mempool hit on the node.
func (c *RPCClient) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	var tx struct {
		Confirmations int64  `json:"confirmations"`
		BlockHash     string `json:"blockhash"`
		BlockHeight   uint64 `json:"blockheight"`
	}
	if err := c.Call(ctx, "getrawtransaction", []any{txid, true}, &tx); err != nil {
		return nil, err
	}
	return &TxStatus{
		Confirmed:     tx.Confirmations > 0,
		Confirmations: tx.Confirmations,
		BlockHash:     tx.BlockHash,
		BlockHeight:   tx.BlockHeight,
	}, nil
}

func (c *RPCClient) GetChainInfo(ctx context.Context) (*ChainInfo, error) {
	var info ChainInfo
	if err := c.Call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return nil, err
	}
	if info.Chain == "" {
		return nil, fmt.Errorf("%w: getblockchaininfo: empty chain name", ErrInvalidResponse)
	}
	return &info, nil
}

// ImportAddress runs `importaddress <addr> "" false`, skipping the rescan.
func (c *RPCClient) ImportAddress(ctx context.Context, address string) error {
	return c.Call(ctx, "importaddress", []any{address, "", false}, nil)
}
