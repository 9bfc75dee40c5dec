package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitfsorg/anchorgate-go/logging"
	"github.com/bitfsorg/anchorgate-go/metrics"
)

// DefaultAttemptTimeout bounds a single backend attempt.
const DefaultAttemptTimeout = 10 * time.Second

// pinTimeout bounds the background pin after a successful store.
const pinTimeout = 30 * time.Second

// Metrics receives gateway observations. metrics.Prom implements it.
type Metrics interface {
	ObserveAttempt(op, backend, outcome string, seconds float64)
	IncCacheHit()
}

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, string, string, float64) {}
func (nopMetrics) IncCacheHit()                                   {}

// StoreResult describes a successful store.
type StoreResult struct {
	ID      ContentID
	Source  Source
	Backend string
}

// RetrieveResult describes a successful retrieval.
type RetrieveResult struct {
	ID      ContentID
	Data    []byte
	Source  Source
	Backend string
}

// Gateway stores and retrieves content across an ordered list of backends.
// The list is fixed at construction: earlier backends are always tried first
// and the first success wins.
type Gateway struct {
	backends []Backend
	cache    *Cache
	meta     MetadataStore
	timeout  time.Duration
	log      *logrus.Entry
	metrics  Metrics
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCache shares c instead of a private cache.
func WithCache(c *Cache) Option {
	return func(g *Gateway) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithMetadataStore enables partial results when every backend fails.
func WithMetadataStore(s MetadataStore) Option {
	return func(g *Gateway) { g.meta = s }
}

// WithAttemptTimeout sets the per-attempt deadline.
func WithAttemptTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger; nil discards.
func WithLogger(l *logrus.Entry) Option {
	return func(g *Gateway) { g.log = logging.OrDiscard(l) }
}

// WithMetrics sets the metrics sink; nil disables.
func WithMetrics(m Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGateway creates a gateway over backends, in priority order.
func NewGateway(backends []Backend, opts ...Option) (*Gateway, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	g := &Gateway{
		backends: append([]Backend(nil), backends...),
		cache:    NewCache(),
		timeout:  DefaultAttemptTimeout,
		log:      logging.Discard(),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Backends returns the backend names in priority order.
func (g *Gateway) Backends() []string {
	names := make([]string, len(g.backends))
	for i, b := range g.backends {
		names[i] = b.Name()
	}
	return names
}

// Cache returns the gateway's retrieval cache.
func (g *Gateway) Cache() *Cache { return g.cache }

type attemptResult struct {
	id   ContentID
	data []byte
	err  error
}

// Store tries each backend in order, one at a time, and returns the id from
// the first that succeeds.
//
// Attempts are detached from ctx: if ctx is cancelled Store returns ctx.Err()
// at once, while the in-flight attempt runs to its own deadline and its
// outcome is only logged. The stored bytes are cached, and pinned in the
// background.
func (g *Gateway) Store(ctx context.Context, data []byte) (*StoreResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyContent
	}

	failed := &AllBackendsFailedError{Op: "store"}
	for _, b := range g.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		done := g.launch("store", b, func() attemptResult {
			id, err := b.Store(actx, data)
			return attemptResult{id: id, err: err}
		})

		var r attemptResult
		select {
		case r = <-done:
			cancel()
		case <-actx.Done():
			r = attemptResult{err: fmt.Errorf("%w: %s: attempt deadline exceeded", ErrNetworkTimeout, b.Name())}
			go g.drainStore(b, done, cancel)
		case <-ctx.Done():
			go g.drainStore(b, done, cancel)
			return nil, ctx.Err()
		}

		if r.err != nil {
			g.warn("store", b, "", r.err)
			failed.Attempts = append(failed.Attempts, BackendError{Backend: b.Name(), Err: normalize(r.err)})
			continue
		}

		g.cache.Put(r.id, data)
		g.pinAsync(b, r.id)
		g.log.WithFields(logrus.Fields{"backend": b.Name(), "content_id": r.id}).Debug("stored")
		return &StoreResult{ID: r.id, Source: b.Source(), Backend: b.Name()}, nil
	}
	return nil, failed
}

// Retrieve returns the bytes for id: from the cache when present, otherwise
// from the first backend, in order, that returns them. Successful reads
// are cached.
//
// When every backend fails and metadata for id is recorded, the error is a
// *PartialNotFoundError carrying it; otherwise *AllBackendsFailedError.
func (g *Gateway) Retrieve(ctx context.Context, id ContentID) (*RetrieveResult, error) {
	if id == "" {
		return nil, ErrInvalidContentID
	}
	if data, ok := g.cache.Get(id); ok {
		g.metrics.IncCacheHit()
		return &RetrieveResult{ID: id, Data: data, Source: SourceCache, Backend: "cache"}, nil
	}

	failed := &AllBackendsFailedError{Op: "retrieve"}
	for _, b := range g.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		actx, cancel := context.WithTimeout(ctx, g.timeout)
		done := g.launch("retrieve", b, func() attemptResult {
			data, err := b.Retrieve(actx, id)
			return attemptResult{data: data, err: err}
		})

		var r attemptResult
		select {
		case r = <-done:
		case <-actx.Done():
			if ctx.Err() != nil {
				cancel()
				return nil, ctx.Err()
			}
			r = attemptResult{err: fmt.Errorf("%w: %s: attempt deadline exceeded", ErrNetworkTimeout, b.Name())}
		}
		cancel()

		if r.err != nil {
			g.warn("retrieve", b, id, r.err)
			failed.Attempts = append(failed.Attempts, BackendError{Backend: b.Name(), Err: normalize(r.err)})
			continue
		}

		g.cache.Put(id, r.data)
		return &RetrieveResult{ID: id, Data: r.data, Source: b.Source(), Backend: b.Name()}, nil
	}

	if g.meta != nil {
		if meta, err := g.meta.Get(id); err == nil {
			return nil, &PartialNotFoundError{ID: id, Meta: *meta, Cause: failed}
		}
	}
	return nil, failed
}

// PutMetadata records descriptive metadata for id. It is a no-op without a
// metadata store.
func (g *Gateway) PutMetadata(meta ObjectMeta) error {
	if g.meta == nil {
		return nil
	}
	return g.meta.Put(meta)
}

// launch runs fn in a goroutine, records its duration and outcome, and
// delivers the result on a buffered channel so a late result never blocks.
func (g *Gateway) launch(op string, b Backend, fn func() attemptResult) <-chan attemptResult {
	done := make(chan attemptResult, 1)
	go func() {
		start := time.Now()
		r := fn()
		outcome := metrics.OutcomeOK
		if r.err != nil {
			outcome = metrics.OutcomeError
		}
		g.metrics.ObserveAttempt(op, b.Name(), outcome, time.Since(start).Seconds())
		done <- r
	}()
	return done
}

// drainStore waits for an abandoned store attempt and logs what happened to
// it. A late success leaves an orphaned copy on that backend.
func (g *Gateway) drainStore(b Backend, done <-chan attemptResult, cancel context.CancelFunc) {
	defer cancel()
	r := <-done
	entry := g.log.WithField("backend", b.Name())
	if r.err != nil {
		entry.WithError(r.err).Info("abandoned store attempt failed")
		return
	}
	entry.WithField("content_id", r.id).Info("abandoned store attempt succeeded")
}

func (g *Gateway) pinAsync(b Backend, id ContentID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pinTimeout)
		defer cancel()
		if err := b.Pin(ctx, id); err != nil {
			g.warn("pin", b, id, err)
		}
	}()
}

func (g *Gateway) warn(op string, b Backend, id ContentID, err error) {
	fields := logrus.Fields{"op": op, "backend": b.Name(), "error": err}
	if id != "" {
		fields["content_id"] = id
	}
	g.log.WithFields(fields).Warn("backend attempt failed")
}

// normalize folds raw context deadline errors into ErrNetworkTimeout so
// every recorded attempt error belongs to the storage taxonomy.
func normalize(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNetworkTimeout), errors.Is(err, ErrBackendUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrNetworkTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
}
