package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// RemarkTxParams holds the inputs for BuildRemarkTx.
type RemarkTxParams struct {
	Remark Remark
	Inputs []*UTXO
	// ChangeScript is the P2PKH locking script that receives change.
	ChangeScript []byte
	// FeeRate in sat/KB. Zero means DefaultFeeRate.
	FeeRate uint64
}

// BuildRemarkTx assembles an unsigned remark transaction.
//
// Output layout:
//
//	[0] OP_FALSE OP_RETURN <remark pushes>   (0 sat)
//	[1] P2PKH -> change                      (omitted when dust)
//
// All Inputs are spent. Change at or below DustLimit is left to the miner.
func BuildRemarkTx(p *RemarkTxParams) (*RemarkTx, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: params", ErrNilParam)
	}
	if len(p.Inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrInsufficientFunds)
	}
	if len(p.ChangeScript) == 0 {
		return nil, fmt.Errorf("%w: change script", ErrNilParam)
	}

	pushes, err := BuildRemarkData(p.Remark)
	if err != nil {
		return nil, err
	}

	var total uint64
	for i, in := range p.Inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: input[%d]", ErrNilParam, i)
		}
		if len(in.TxID) != TxIDLen {
			return nil, fmt.Errorf("%w: input[%d] txid is %d bytes", ErrScriptBuild, i, len(in.TxID))
		}
		total += in.Amount
	}

	fee := EstimateFee(EstimateRemarkTxSize(len(p.Inputs), true, pushes), p.FeeRate)
	if total < fee {
		return nil, fmt.Errorf("%w: need %d sat, have %d sat", ErrInsufficientFunds, fee, total)
	}

	sdkTx := transaction.NewTransaction()
	for _, in := range p.Inputs {
		h, err := chainhash.NewHash(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("%w: input txid: %w", ErrScriptBuild, err)
		}
		sdkTx.AddInput(&transaction.TransactionInput{
			SourceTXID:       h,
			SourceTxOutIndex: in.Vout,
			SequenceNumber:   transaction.DefaultSequenceNumber,
		})
	}

	remarkScript, err := buildOPReturnScript(pushes)
	if err != nil {
		return nil, err
	}
	sdkTx.Outputs = append(sdkTx.Outputs, &transaction.TransactionOutput{
		Satoshis:      0,
		LockingScript: remarkScript,
	})

	result := &RemarkTx{Fee: fee}
	if change := total - fee; change > DustLimit {
		sdkTx.Outputs = append(sdkTx.Outputs, &transaction.TransactionOutput{
			Satoshis:      change,
			LockingScript: script.NewFromBytes(p.ChangeScript),
		})
		result.ChangeUTXO = &UTXO{
			Vout:         1,
			Amount:       change,
			ScriptPubKey: p.ChangeScript,
		}
	} else {
		result.Fee = total
	}

	result.RawTx = sdkTx.Bytes()
	return result, nil
}
