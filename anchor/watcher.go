package anchor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/network"
)

// EventKind classifies a transaction status event.
type EventKind int

const (
	// EventPending: the transaction is known but not yet in a block.
	EventPending EventKind = iota
	// EventIncluded: the transaction is in a block. Success tells whether it
	// executed successfully.
	EventIncluded
	// EventInvalid: the ledger declared the transaction invalid.
	EventInvalid
	// EventDropped: the transaction disappeared before inclusion.
	EventDropped
)

func (k EventKind) String() string {
	switch k {
	case EventPending:
		return "pending"
	case EventIncluded:
		return "included"
	case EventInvalid:
		return "invalid"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Terminal reports whether no further events follow.
func (k EventKind) Terminal() bool { return k != EventPending }

// TxEvent is one status observation for a transaction.
type TxEvent struct {
	TxID        string
	Kind        EventKind
	Success     bool
	BlockHash   string
	BlockHeight uint64
	Err         error
}

// Watcher streams status events for a transaction. The channel is closed
// after a terminal event or when ctx is done.
type Watcher interface {
	Watch(ctx context.Context, txid string) (<-chan TxEvent, error)
}

// DefaultPollInterval is the PollWatcher default.
const DefaultPollInterval = 15 * time.Second

// PollWatcher observes a transaction by polling the ledger node.
type PollWatcher struct {
	chain    network.BlockchainService
	interval time.Duration
	log      *logrus.Entry
}

var _ Watcher = (*PollWatcher)(nil)

// NewPollWatcher polls chain every interval (DefaultPollInterval when zero).
func NewPollWatcher(chain network.BlockchainService, interval time.Duration, log *logrus.Entry) *PollWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWatcher{chain: chain, interval: interval, log: logging.OrDiscard(log)}
}

// Watch polls GetTxStatus until the transaction is included, or until it
// vanishes after having been seen, which is reported as EventDropped. A
// transaction that was never seen keeps being polled since it may still be
// propagating.
func (w *PollWatcher) Watch(ctx context.Context, txid string) (<-chan TxEvent, error) {
	events := make(chan TxEvent, 1)
	go func() {
		defer close(events)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		seen := false
		for {
			ev, ok := w.poll(ctx, txid, &seen)
			if ok {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
				if ev.Kind.Terminal() {
					return
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// poll performs one status query. ok is false when there is nothing to
// report, including repeated pending observations.
func (w *PollWatcher) poll(ctx context.Context, txid string, seen *bool) (TxEvent, bool) {
	st, err := w.chain.GetTxStatus(ctx, txid)
	switch {
	case errors.Is(err, network.ErrTxNotFound):
		if *seen {
			return TxEvent{TxID: txid, Kind: EventDropped, Err: err}, true
		}
		return TxEvent{}, false
	case err != nil:
		if ctx.Err() == nil {
			w.log.WithError(err).WithField("txid", txid).Warn("tx status poll failed")
		}
		return TxEvent{}, false
	case st.Confirmed:
		return TxEvent{
			TxID:        txid,
			Kind:        EventIncluded,
			Success:     true,
			BlockHash:   st.BlockHash,
			BlockHeight: st.BlockHeight,
		}, true
	default:
		first := !*seen
		*seen = true
		return TxEvent{TxID: txid, Kind: EventPending}, first
	}
}
