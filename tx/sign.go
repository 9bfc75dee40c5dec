package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// SignRemarkTx signs every input of rtx and returns the signed hex.
//
// utxos are matched to inputs by position and each must carry its
// PrivateKey and ScriptPubKey. On success rtx.RawTx, rtx.TxID and
// rtx.TxIDHex describe the signed transaction.
func SignRemarkTx(rtx *RemarkTx, utxos []*UTXO) (string, error) {
	if rtx == nil {
		return "", fmt.Errorf("%w: RemarkTx", ErrNilParam)
	}
	if len(rtx.RawTx) == 0 {
		return "", fmt.Errorf("%w: RawTx is empty", ErrSigningFailed)
	}
	if len(utxos) == 0 {
		return "", fmt.Errorf("%w: utxos", ErrNilParam)
	}

	sdkTx, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	if err != nil {
		return "", fmt.Errorf("%w: parse raw tx: %w", ErrSigningFailed, err)
	}
	if len(utxos) != len(sdkTx.Inputs) {
		return "", fmt.Errorf("%w: have %d UTXOs but tx has %d inputs",
			ErrSigningFailed, len(utxos), len(sdkTx.Inputs))
	}

	for i, u := range utxos {
		switch {
		case u == nil:
			return "", fmt.Errorf("%w: utxo[%d]", ErrNilParam, i)
		case u.PrivateKey == nil:
			return "", fmt.Errorf("%w: utxo[%d] has no key", ErrSigningFailed, i)
		case len(u.ScriptPubKey) == 0:
			return "", fmt.Errorf("%w: utxo[%d] has no locking script", ErrSigningFailed, i)
		}

		unlocker, err := p2pkh.Unlock(u.PrivateKey, nil)
		if err != nil {
			return "", fmt.Errorf("%w: unlocker for input %d: %w", ErrSigningFailed, i, err)
		}
		sdkTx.Inputs[i].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      u.Amount,
			LockingScript: script.NewFromBytes(u.ScriptPubKey),
		})
		sdkTx.Inputs[i].UnlockingScriptTemplate = unlocker
	}

	if err := sdkTx.Sign(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	id := sdkTx.TxID()
	rtx.RawTx = sdkTx.Bytes()
	rtx.TxID = id.CloneBytes()
	rtx.TxIDHex = id.String()
	if rtx.ChangeUTXO != nil {
		rtx.ChangeUTXO.TxID = rtx.TxID
	}
	return sdkTx.Hex(), nil
}

// BuildP2PKHScript returns the P2PKH locking script for pubKey.
func BuildP2PKHScript(pubKey *ec.PublicKey) ([]byte, error) {
	if pubKey == nil {
		return nil, fmt.Errorf("%w: public key", ErrNilParam)
	}
	addr, err := script.NewAddressFromPublicKey(pubKey, true)
	if err != nil {
		return nil, fmt.Errorf("%w: address from pubkey: %w", ErrScriptBuild, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock script: %w", ErrScriptBuild, err)
	}
	return []byte(*lockScript), nil
}

// buildOPReturnScript creates an OP_FALSE OP_RETURN script from data pushes.
func buildOPReturnScript(pushes [][]byte) (*script.Script, error) {
	s := &script.Script{}
	*s = append(*s, script.Op0, script.OpRETURN)
	for _, push := range pushes {
		if err := s.AppendPushData(push); err != nil {
			return nil, fmt.Errorf("%w: OP_RETURN push data: %w", ErrScriptBuild, err)
		}
	}
	return s, nil
}
