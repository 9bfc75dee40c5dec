package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// UTXO is a spendable output owned by the anchoring account.
type UTXO struct {
	TxID         []byte         `json:"txid"` // 32 bytes, internal byte order
	Vout         uint32         `json:"vout"`
	Amount       uint64         `json:"amount"`        // satoshis
	ScriptPubKey []byte         `json:"script_pubkey"` // locking script bytes
	PrivateKey   *ec.PrivateKey `json:"-"`
}

// RemarkTx is a built storage-order transaction.
//
// Output 0 is always the OP_FALSE OP_RETURN remark. Output 1, when present,
// is change back to the account.
type RemarkTx struct {
	RawTx      []byte
	TxID       []byte // set by SignRemarkTx
	TxIDHex    string // display order, as reported by nodes
	Fee        uint64
	ChangeUTXO *UTXO // nil when change would be dust
}

// TxIDFromHex converts a node-reported txid into internal byte order.
func TxIDFromHex(txid string) ([]byte, error) {
	h, err := chainhash.NewHashFromHex(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: txid %q: %w", ErrScriptBuild, txid, err)
	}
	return h.CloneBytes(), nil
}
