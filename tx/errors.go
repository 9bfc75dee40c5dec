package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrInsufficientFunds indicates the inputs cannot cover the fee.
	ErrInsufficientFunds = errors.New("tx: insufficient funds")

	// ErrInvalidRemark indicates a remark has missing or out-of-range fields.
	ErrInvalidRemark = errors.New("tx: invalid remark")

	// ErrSigningFailed indicates transaction signing failed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")

	// ErrInvalidOPReturn indicates the OP_RETURN data is malformed.
	ErrInvalidOPReturn = errors.New("tx: invalid OP_RETURN format")

	// ErrNotRemarkTx indicates the transaction carries no storage remark.
	ErrNotRemarkTx = errors.New("tx: not a storage remark transaction")
)
