package anchor

import "errors"

var (
	// ErrTransactionInvalid indicates the ledger rejected the order transaction
	// at submission. The stored content is unaffected.
	ErrTransactionInvalid = errors.New("anchor: transaction invalid")

	// ErrTransactionFailed indicates the transaction was accepted but then
	// became invalid, was dropped, or executed unsuccessfully.
	ErrTransactionFailed = errors.New("anchor: transaction failed")

	// ErrConfirmationTimeout indicates inclusion was not observed in time.
	// The order stays Pending and may still confirm later.
	ErrConfirmationTimeout = errors.New("anchor: confirmation timeout")

	// ErrOrderNotFound indicates no order has been recorded for a content id.
	ErrOrderNotFound = errors.New("anchor: order not found")

	// ErrInvalidOrder indicates an order is missing required fields.
	ErrInvalidOrder = errors.New("anchor: invalid order")

	// ErrWatchClosed indicates a watcher stopped before a terminal event.
	ErrWatchClosed = errors.New("anchor: watch closed")

	// ErrNoAccount indicates the anchor was built without a signing key.
	ErrNoAccount = errors.New("anchor: no anchoring account")

	// ErrWrongChain indicates the node follows a different chain than the
	// configured network.
	ErrWrongChain = errors.New("anchor: node is on the wrong chain")
)
