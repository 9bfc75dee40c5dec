package anchor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/network"
	"github.com/bitfsorg/anchorgate-go/storage"
	"github.com/bitfsorg/anchorgate-go/tx"
)

// Defaults applied by New when Config fields are zero.
const (
	DefaultUnit           = "CRU"
	DefaultOrderDuration  = 180 * 24 * time.Hour
	DefaultConfirmTimeout = 10 * time.Minute
)

// Metrics receives order observations. metrics.Prom implements it.
type Metrics interface {
	IncOrder(status string)
}

type nopMetrics struct{}

func (nopMetrics) IncOrder(string) {}

// placeholderLabel is the metrics label for unfunded orders.
const placeholderLabel = "placeholder"

// Config holds the order terms.
type Config struct {
	Unit           string
	PricePerMiB    uint64
	OrderDuration  time.Duration
	ConfirmTimeout time.Duration
	FeeRate        uint64 // sat/KB
}

// Account is the anchoring identity: the key that signs order transactions
// and the address that holds its funds.
type Account struct {
	Key     *ec.PrivateKey
	Address string
}

// Anchor places storage orders on the ledger and tracks them to completion.
type Anchor struct {
	chain    network.BlockchainService
	account  Account
	store    OrderStore
	cfg      Config
	watcher  Watcher
	replicas storage.ReplicaReporter
	log      *logrus.Entry
	metrics  Metrics
	now      func() time.Time

	mu       sync.Mutex
	tracking map[storage.ContentID]bool
}

// Option configures an Anchor.
type Option func(*Anchor)

// WithWatcher replaces the default PollWatcher.
func WithWatcher(w Watcher) Option {
	return func(a *Anchor) {
		if w != nil {
			a.watcher = w
		}
	}
}

// WithReplicaReporter sets where replica counts come from. Without one,
// block inclusion counts as a single replica.
func WithReplicaReporter(r storage.ReplicaReporter) Option {
	return func(a *Anchor) { a.replicas = r }
}

// WithLogger sets the logger; nil discards.
func WithLogger(l *logrus.Entry) Option {
	return func(a *Anchor) { a.log = logging.OrDiscard(l) }
}

// WithMetrics sets the metrics sink; nil disables.
func WithMetrics(m Metrics) Option {
	return func(a *Anchor) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Anchor) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Anchor that pays from account and records orders in store.
func New(chain network.BlockchainService, account Account, store OrderStore, cfg Config, opts ...Option) (*Anchor, error) {
	if chain == nil {
		return nil, errors.New("anchor: nil blockchain service")
	}
	if store == nil {
		return nil, errors.New("anchor: nil order store")
	}
	if account.Key == nil || account.Address == "" {
		return nil, ErrNoAccount
	}
	if cfg.Unit == "" {
		cfg.Unit = DefaultUnit
	}
	if cfg.OrderDuration <= 0 {
		cfg.OrderDuration = DefaultOrderDuration
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = DefaultConfirmTimeout
	}
	a := &Anchor{
		chain:    chain,
		account:  account,
		store:    store,
		cfg:      cfg,
		log:      logging.Discard(),
		metrics:  nopMetrics{},
		now:      time.Now,
		tracking: make(map[storage.ContentID]bool),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.watcher == nil {
		a.watcher = NewPollWatcher(chain, 0, a.log)
	}
	return a, nil
}

// Address returns the anchoring account address.
func (a *Anchor) Address() string { return a.account.Address }

// Balance returns the spendable balance of the anchoring account in satoshis.
func (a *Anchor) Balance(ctx context.Context) (uint64, error) {
	utxos, err := a.chain.ListUnspent(ctx, a.account.Address)
	if err != nil {
		return 0, fmt.Errorf("anchor: list unspent: %w", err)
	}
	var total uint64
	for _, u := range utxos {
		total += u.Amount
	}
	return total, nil
}

// ImportAccount asks the node to index the account address so ListUnspent
// reports its funds. Nodes without a wallet reject it.
func (a *Anchor) ImportAccount(ctx context.Context) error {
	if err := a.chain.ImportAddress(ctx, a.account.Address); err != nil {
		return fmt.Errorf("anchor: import address: %w", err)
	}
	return nil
}

// CheckChain fails with ErrWrongChain unless the node follows the chain of
// the named wallet network.
func (a *Anchor) CheckChain(ctx context.Context, networkName string) error {
	info, err := a.chain.GetChainInfo(ctx)
	if err != nil {
		return fmt.Errorf("anchor: chain info: %w", err)
	}
	if want := network.ChainName(networkName); info.Chain != want {
		return fmt.Errorf("%w: node reports %q, %s expects %q", ErrWrongChain, info.Chain, networkName, want)
	}
	a.log.WithFields(logrus.Fields{"chain": info.Chain, "height": info.Blocks}).Debug("node chain checked")
	return nil
}

// Submission is an order whose confirmation may still be outstanding.
type Submission struct {
	// Order is the revision recorded at submission.
	Order *StorageOrder

	done   chan struct{}
	result *StorageOrder
	err    error
}

func resolvedSubmission(o *StorageOrder, err error) *Submission {
	s := &Submission{Order: o, done: make(chan struct{})}
	s.resolve(o, err)
	return s
}

func (s *Submission) resolve(o *StorageOrder, err error) {
	s.result, s.err = o, err
	close(s.done)
}

// Done is closed once the submission is resolved.
func (s *Submission) Done() <-chan struct{} { return s.done }

// Wait blocks until the order is resolved or ctx is done. Cancelling ctx
// stops the wait only; tracking continues in the background.
func (s *Submission) Wait(ctx context.Context) (*StorageOrder, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		return s.Order, ctx.Err()
	}
}

// PlaceOrder records a storage order for id and size bytes.
//
// With an empty account no transaction is attempted: a Pending placeholder
// order with amount "0 <unit>" and no replicas is recorded instead. Otherwise
// a remark transaction is built, signed and broadcast. A rejected broadcast
// records a Failed order and returns ErrTransactionInvalid; an accepted one
// records a Pending order and tracks it until inclusion.
func (a *Anchor) PlaceOrder(ctx context.Context, id storage.ContentID, size int64) (*Submission, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty content id", ErrInvalidOrder)
	}
	log := a.log.WithField("content_id", id)

	utxos, err := a.chain.ListUnspent(ctx, a.account.Address)
	if err != nil {
		return nil, fmt.Errorf("anchor: list unspent: %w", err)
	}
	var balance uint64
	for _, u := range utxos {
		balance += u.Amount
	}

	now := a.now()
	order := StorageOrder{
		ContentID: id,
		FileSize:  size,
		Status:    StatusPending,
		ExpiresAt: now.Add(a.cfg.OrderDuration),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if balance == 0 {
		order.Amount = FormatAmount(0, a.cfg.Unit)
		order.Placeholder = true
		if err := a.store.Append(order); err != nil {
			return nil, err
		}
		a.metrics.IncOrder(placeholderLabel)
		log.Info("anchoring account is empty; recorded placeholder order")
		return resolvedSubmission(&order, nil), nil
	}

	price := Price(size, a.cfg.PricePerMiB)
	order.Amount = FormatAmount(price, a.cfg.Unit)

	rawHex, rtx, err := a.buildOrderTx(utxos, tx.Remark{
		ContentID: string(id),
		Size:      uint64(max(size, 0)),
		ExpiresAt: uint64(order.ExpiresAt.Unix()),
		Price:     price,
	})
	if err != nil {
		return nil, err
	}
	order.TxID = rtx.TxIDHex

	if _, err := a.chain.BroadcastTx(ctx, rawHex); err != nil {
		failed := order.revise(StatusFailed, a.now())
		if aerr := a.store.Append(failed); aerr != nil {
			log.WithError(aerr).Error("record failed order")
		}
		a.metrics.IncOrder(failed.Status.String())
		log.WithError(err).WithField("txid", order.TxID).Warn("order transaction rejected")
		return nil, fmt.Errorf("%w: %w", ErrTransactionInvalid, err)
	}

	if err := a.store.Append(order); err != nil {
		return nil, err
	}
	a.metrics.IncOrder(order.Status.String())
	log.WithField("txid", order.TxID).WithField("amount", order.Amount).Info("order submitted")

	sub := &Submission{Order: &order, done: make(chan struct{})}
	a.setTracking(id, true)
	trackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ConfirmTimeout)
	go func() {
		o, err := a.track(trackCtx, order)
		cancel()
		a.setTracking(id, false)
		sub.resolve(o, err)
	}()
	return sub, nil
}

// buildOrderTx spends every account UTXO into a signed remark transaction.
func (a *Anchor) buildOrderTx(utxos []*network.UTXO, remark tx.Remark) (string, *tx.RemarkTx, error) {
	lock, err := tx.BuildP2PKHScript(a.account.Key.PubKey())
	if err != nil {
		return "", nil, err
	}
	inputs := make([]*tx.UTXO, 0, len(utxos))
	for _, u := range utxos {
		txid, err := tx.TxIDFromHex(u.TxID)
		if err != nil {
			return "", nil, err
		}
		script := lock
		if u.ScriptPubKey != "" {
			if script, err = hex.DecodeString(u.ScriptPubKey); err != nil {
				return "", nil, fmt.Errorf("anchor: utxo %s:%d script: %w", u.TxID, u.Vout, err)
			}
		}
		inputs = append(inputs, &tx.UTXO{
			TxID:         txid,
			Vout:         u.Vout,
			Amount:       u.Amount,
			ScriptPubKey: script,
			PrivateKey:   a.account.Key,
		})
	}

	rtx, err := tx.BuildRemarkTx(&tx.RemarkTxParams{
		Remark:       remark,
		Inputs:       inputs,
		ChangeScript: lock,
		FeeRate:      a.cfg.FeeRate,
	})
	if err != nil {
		return "", nil, fmt.Errorf("anchor: build order tx: %w", err)
	}
	rawHex, err := tx.SignRemarkTx(rtx, inputs)
	if err != nil {
		return "", nil, fmt.Errorf("anchor: sign order tx: %w", err)
	}
	if err := checkRemark(rawHex, remark); err != nil {
		return "", nil, err
	}
	return rawHex, rtx, nil
}

// checkRemark decodes the remark carried by a signed transaction and
// requires it to match want.
func checkRemark(rawHex string, want tx.Remark) error {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return fmt.Errorf("anchor: order tx hex: %w", err)
	}
	got, err := tx.ExtractRemark(raw)
	if err != nil {
		return fmt.Errorf("anchor: order tx: %w", err)
	}
	if *got != want {
		return fmt.Errorf("%w: remark for %s, want %s", ErrInvalidOrder, got.ContentID, want.ContentID)
	}
	return nil
}

// track follows order.TxID until a terminal event and records the outcome.
func (a *Anchor) track(ctx context.Context, order StorageOrder) (*StorageOrder, error) {
	log := a.log.WithField("content_id", order.ContentID).WithField("txid", order.TxID)

	events, err := a.watcher.Watch(ctx, order.TxID)
	if err != nil {
		log.WithError(err).Warn("cannot watch order transaction")
		return &order, fmt.Errorf("anchor: watch %s: %w", order.TxID, err)
	}

	for ev := range events {
		switch ev.Kind {
		case EventPending:
			log.Debug("order transaction pending")
			continue
		case EventIncluded:
			if !ev.Success {
				return a.fail(order, ev, log)
			}
			o := a.included(order, ev.BlockHash, ev.BlockHeight, a.replicaCount(ctx, order.ContentID))
			log.WithField("status", o.Status).WithField("replicas", o.ReplicaCount).Info("order transaction included")
			return &o, nil
		case EventInvalid, EventDropped:
			return a.fail(order, ev, log)
		}
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn("order confirmation timed out; order stays pending")
		return &order, ErrConfirmationTimeout
	}
	return &order, ErrWatchClosed
}

func (a *Anchor) fail(order StorageOrder, ev TxEvent, log *logrus.Entry) (*StorageOrder, error) {
	o := order.revise(StatusFailed, a.now())
	o.BlockHash, o.BlockHeight = ev.BlockHash, ev.BlockHeight
	if err := a.store.Append(o); err != nil {
		log.WithError(err).Error("record failed order")
	}
	a.metrics.IncOrder(o.Status.String())
	log.WithField("event", ev.Kind).Warn("order transaction failed")
	if ev.Err != nil {
		return &o, fmt.Errorf("%w: %s: %w", ErrTransactionFailed, ev.Kind, ev.Err)
	}
	return &o, fmt.Errorf("%w: %s", ErrTransactionFailed, ev.Kind)
}

// included records block inclusion. The order becomes Success once at least
// one replica is reported; otherwise it stays Pending with the block noted.
func (a *Anchor) included(order StorageOrder, blockHash string, height uint64, n int) StorageOrder {
	status := StatusPending
	if n > 0 {
		status = StatusSuccess
	}
	o := order.revise(status, a.now())
	o.BlockHash, o.BlockHeight, o.ReplicaCount = blockHash, height, n
	if err := a.store.Append(o); err != nil {
		a.log.WithError(err).WithField("content_id", o.ContentID).Error("record included order")
	}
	a.metrics.IncOrder(o.Status.String())
	return o
}

func (a *Anchor) replicaCount(ctx context.Context, id storage.ContentID) int {
	if a.replicas == nil {
		return 1
	}
	n, err := a.replicas.Replicas(ctx, id)
	if err != nil {
		a.log.WithError(err).WithField("content_id", id).Warn("replica query failed")
		return 0
	}
	return n
}

func (a *Anchor) setTracking(id storage.ContentID, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		a.tracking[id] = true
	} else {
		delete(a.tracking, id)
	}
}

func (a *Anchor) isTracking(id storage.ContentID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracking[id]
}

// GetOrderStatus returns the current order for id, or nil when none was
// ever placed.
//
// A Pending or Success order past its expiry is moved to Expired. A real
// Pending order that is not being tracked is refreshed from the ledger
// once; ledger errors leave the recorded state in place.
func (a *Anchor) GetOrderStatus(ctx context.Context, id storage.ContentID) (*StorageOrder, error) {
	o, err := a.store.Latest(id)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := a.now()
	if !o.Status.Terminal() && o.Expired(now) {
		exp := o.revise(StatusExpired, now)
		if err := a.store.Append(exp); err != nil {
			return nil, err
		}
		a.metrics.IncOrder(exp.Status.String())
		return &exp, nil
	}

	if o.Status != StatusPending || o.Placeholder || o.TxID == "" || a.isTracking(id) {
		return o, nil
	}
	return a.refresh(ctx, *o), nil
}

func (a *Anchor) refresh(ctx context.Context, order StorageOrder) *StorageOrder {
	log := a.log.WithField("content_id", order.ContentID).WithField("txid", order.TxID)

	if order.Included() {
		n := a.replicaCount(ctx, order.ContentID)
		if n == 0 {
			return &order
		}
		o := a.included(order, order.BlockHash, order.BlockHeight, n)
		return &o
	}

	st, err := a.chain.GetTxStatus(ctx, order.TxID)
	if err != nil {
		if !errors.Is(err, network.ErrTxNotFound) {
			log.WithError(err).Warn("order status refresh failed")
		}
		return &order
	}
	if !st.Confirmed {
		return &order
	}
	o := a.included(order, st.BlockHash, st.BlockHeight, a.replicaCount(ctx, order.ContentID))
	return &o
}
