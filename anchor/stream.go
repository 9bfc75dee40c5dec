package anchor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/logging"
)

// StreamWatcher subscribes to transaction status over a websocket.
//
// After connecting it sends {"method":"subscribe","txid":...} and then reads
// status messages of the form
//
//	{"txid":"..","status":"pending|included|invalid|dropped","success":true,
//	 "blockHash":"..","blockHeight":1,"error":".."}
//
// until a terminal status arrives.
type StreamWatcher struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	log    *logrus.Entry
}

var _ Watcher = (*StreamWatcher)(nil)

// NewStreamWatcher returns a watcher for the ws:// or wss:// endpoint url.
func NewStreamWatcher(url string, header http.Header, log *logrus.Entry) *StreamWatcher {
	return &StreamWatcher{
		url:    url,
		header: header,
		dialer: websocket.DefaultDialer,
		log:    logging.OrDiscard(log),
	}
}

type subscribeMsg struct {
	Method string `json:"method"`
	TxID   string `json:"txid"`
}

type statusMsg struct {
	TxID        string `json:"txid"`
	Status      string `json:"status"`
	Success     bool   `json:"success"`
	BlockHash   string `json:"blockHash"`
	BlockHeight uint64 `json:"blockHeight"`
	Error       string `json:"error"`
}

func (m statusMsg) event(txid string) (TxEvent, bool) {
	ev := TxEvent{TxID: txid, Success: m.Success, BlockHash: m.BlockHash, BlockHeight: m.BlockHeight}
	switch m.Status {
	case "pending", "ready", "broadcast":
		ev.Kind = EventPending
	case "included", "inBlock", "finalized":
		ev.Kind = EventIncluded
	case "invalid":
		ev.Kind = EventInvalid
	case "dropped", "usurped":
		ev.Kind = EventDropped
	default:
		return TxEvent{}, false
	}
	if m.Error != "" {
		ev.Err = errors.New(m.Error)
	}
	return ev, true
}

// Watch dials the endpoint and subscribes to txid. Dial and subscribe
// failures are returned directly; later connection loss closes the channel.
func (w *StreamWatcher) Watch(ctx context.Context, txid string) (<-chan TxEvent, error) {
	conn, _, err := w.dialer.DialContext(ctx, w.url, w.header)
	if err != nil {
		return nil, fmt.Errorf("anchor: dial %s: %w", w.url, err)
	}
	if err := conn.WriteJSON(subscribeMsg{Method: "subscribe", TxID: txid}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("anchor: subscribe %s: %w", txid, err)
	}

	events := make(chan TxEvent, 1)
	stop := make(chan struct{})

	// Closing the connection unblocks ReadJSON on cancellation.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	go func() {
		defer close(events)
		defer close(stop)
		defer conn.Close()

		for {
			var m statusMsg
			if err := conn.ReadJSON(&m); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					w.log.WithError(err).WithField("txid", txid).Warn("status stream closed")
				}
				return
			}
			if m.TxID != "" && m.TxID != txid {
				continue
			}
			ev, ok := m.event(txid)
			if !ok {
				w.log.WithField("status", m.Status).Debug("ignoring unknown tx status")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Kind.Terminal() {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}()
	return events, nil
}
