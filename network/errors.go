package network

import "errors"

var (
	// ErrConnectionFailed covers transport failures and non-JSON HTTP errors.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrAuthFailed means the node answered 401 or 403.
	ErrAuthFailed = errors.New("network: authentication failed")

	// ErrTxNotFound means the node knows nothing about the transaction.
	ErrTxNotFound = errors.New("network: transaction not found")

	// ErrBroadcastRejected wraps every sendrawtransaction failure.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse means the reply could not be decoded or did not
	// match the request.
	ErrInvalidResponse = errors.New("network: invalid response")
)

// codeTxNotFound is the node's "No such mempool or blockchain transaction".
const codeTxNotFound = -5
