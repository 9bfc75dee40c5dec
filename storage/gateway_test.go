package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/anchorgate-go/metrics"
)

// mockBackend is a function-field Backend double.
type mockBackend struct {
	name       string
	source     Source
	StoreFn    func(ctx context.Context, data []byte) (ContentID, error)
	RetrieveFn func(ctx context.Context, id ContentID) ([]byte, error)
	PinFn      func(ctx context.Context, id ContentID) error

	stores    atomic.Int32
	retrieves atomic.Int32
}

func (m *mockBackend) Name() string   { return m.name }
func (m *mockBackend) Source() Source { return m.source }

func (m *mockBackend) Store(ctx context.Context, data []byte) (ContentID, error) {
	m.stores.Add(1)
	if m.StoreFn == nil {
		return "", ErrBackendUnavailable
	}
	return m.StoreFn(ctx, data)
}

func (m *mockBackend) Retrieve(ctx context.Context, id ContentID) ([]byte, error) {
	m.retrieves.Add(1)
	if m.RetrieveFn == nil {
		return nil, ErrNotFound
	}
	return m.RetrieveFn(ctx, id)
}

func (m *mockBackend) Pin(ctx context.Context, id ContentID) error {
	if m.PinFn == nil {
		return nil
	}
	return m.PinFn(ctx, id)
}

func failing(name string, source Source, err error) *mockBackend {
	return &mockBackend{
		name:       name,
		source:     source,
		StoreFn:    func(context.Context, []byte) (ContentID, error) { return "", err },
		RetrieveFn: func(context.Context, ContentID) ([]byte, error) { return nil, err },
	}
}

// recordingMetrics counts observations.
type recordingMetrics struct {
	mu       sync.Mutex
	attempts map[string]int
	hits     int
}

func (r *recordingMetrics) ObserveAttempt(op, backend, outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts == nil {
		r.attempts = make(map[string]int)
	}
	r.attempts[op+"/"+backend+"/"+outcome]++
}

func (r *recordingMetrics) IncCacheHit() {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

// --- Construction ---

func TestNewGateway_NoBackends(t *testing.T) {
	_, err := NewGateway(nil)
	assert.ErrorIs(t, err, ErrNoBackends)
}

func TestGateway_Backends(t *testing.T) {
	g, err := NewGateway([]Backend{failing("a", SourceNetwork, ErrNotFound), newTestStore(t)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "local"}, g.Backends())
}

// --- Store ---

func TestGateway_StoreEmpty(t *testing.T) {
	g, err := NewGateway([]Backend{newTestStore(t)})
	require.NoError(t, err)

	_, err = g.Store(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestGateway_StoreFirstSuccessWins(t *testing.T) {
	first := failing("network", SourceNetwork, ErrBackendUnavailable)
	second := &mockBackend{name: "mirror:b", source: SourceMirror,
		StoreFn: func(context.Context, []byte) (ContentID, error) { return "bafyB", nil }}
	third := &mockBackend{name: "local", source: SourceLocal,
		StoreFn: func(context.Context, []byte) (ContentID, error) { return "local_x", nil }}

	m := &recordingMetrics{}
	g, err := NewGateway([]Backend{first, second, third}, WithMetrics(m))
	require.NoError(t, err)

	res, err := g.Store(context.Background(), []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, ContentID("bafyB"), res.ID)
	assert.Equal(t, SourceMirror, res.Source)
	assert.Equal(t, "mirror:b", res.Backend)

	assert.EqualValues(t, 1, first.stores.Load())
	assert.EqualValues(t, 1, second.stores.Load())
	assert.Zero(t, third.stores.Load(), "later backends must not be tried after a success")

	m.mu.Lock()
	assert.Equal(t, 1, m.attempts["store/network/"+metrics.OutcomeError])
	assert.Equal(t, 1, m.attempts["store/mirror:b/"+metrics.OutcomeOK])
	m.mu.Unlock()

	cached, ok := g.Cache().Get("bafyB")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), cached)
}

func TestGateway_StoreAllNetworkFailFallsBackToLocal(t *testing.T) {
	node := newFakeNode(t)
	node.failAll = true
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mirror.Close()
	local := newTestStore(t)

	backends := []Backend{
		NewNetworkBackend(node.srv.URL, Auth{}),
		NewMirrorBackend(mirror.URL, Auth{}, false),
		local,
	}
	g, err := NewGateway(backends)
	require.NoError(t, err)

	res, err := g.Store(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.True(t, res.ID.IsLocal())
	assert.Equal(t, SourceLocal, res.Source)

	// Same instance: served from cache.
	got, err := g.Retrieve(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Data)
	assert.Equal(t, SourceCache, got.Source)

	// Fresh cache over the same backends: served by the local fallback.
	g2, err := NewGateway(backends)
	require.NoError(t, err)
	got, err = g2.Retrieve(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Data)
	assert.Equal(t, SourceLocal, got.Source)
	assert.Zero(t, node.callCount("/api/v0/cat"), "local ids never reach the network")
}

func TestGateway_StoreAllFail(t *testing.T) {
	g, err := NewGateway([]Backend{
		failing("network", SourceNetwork, ErrBackendUnavailable),
		failing("local", SourceLocal, ErrEmptyContent),
	})
	require.NoError(t, err)

	_, err = g.Store(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrAllBackendsFailed)

	var all *AllBackendsFailedError
	require.True(t, errors.As(err, &all))
	assert.Equal(t, "store", all.Op)
	require.Len(t, all.Attempts, 2)
	assert.Equal(t, "network", all.Attempts[0].Backend)
	assert.ErrorIs(t, all.Last(), ErrEmptyContent)
	assert.ErrorIs(t, all.Last(), ErrBackendUnavailable, "unknown errors are normalized")
	assert.False(t, all.NotFound())
}

func TestGateway_StoreAttemptTimeout(t *testing.T) {
	slow := &mockBackend{name: "network", source: SourceNetwork,
		StoreFn: func(ctx context.Context, _ []byte) (ContentID, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}}
	local := newTestStore(t)

	g, err := NewGateway([]Backend{slow, local}, WithAttemptTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	res, err := g.Store(context.Background(), []byte("data"))
	require.NoError(t, err)
	assert.True(t, res.ID.IsLocal())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGateway_StoreIgnoresStuckBackend(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := &mockBackend{name: "stuck", source: SourceNetwork,
		StoreFn: func(context.Context, []byte) (ContentID, error) {
			<-release
			return "", ErrBackendUnavailable
		}}

	g, err := NewGateway([]Backend{stuck, newTestStore(t)}, WithAttemptTimeout(50*time.Millisecond))
	require.NoError(t, err)

	res, err := g.Store(context.Background(), []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, res.Source)
}

func TestGateway_StoreCallerCancelDetachesAttempt(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)
	b := &mockBackend{name: "network", source: SourceNetwork,
		StoreFn: func(ctx context.Context, _ []byte) (ContentID, error) {
			close(started)
			<-release
			finished <- ctx.Err()
			return "bafyLate", nil
		}}

	g, err := NewGateway([]Backend{b}, WithAttemptTimeout(5*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := g.Store(ctx, []byte("data"))
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Store did not return after caller cancellation")
	}

	close(release)
	select {
	case err := <-finished:
		assert.NoError(t, err, "attempt context must not inherit caller cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned attempt never finished")
	}
}

func TestGateway_StorePinsInBackground(t *testing.T) {
	pinned := make(chan ContentID, 1)
	b := &mockBackend{name: "network", source: SourceNetwork,
		StoreFn: func(context.Context, []byte) (ContentID, error) { return "bafyP", nil },
		PinFn: func(_ context.Context, id ContentID) error {
			pinned <- id
			return errors.New("pin service down")
		}}

	g, err := NewGateway([]Backend{b})
	require.NoError(t, err)

	res, err := g.Store(context.Background(), []byte("data"))
	require.NoError(t, err, "pin failures never fail the store")

	select {
	case id := <-pinned:
		assert.Equal(t, res.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("pin was not attempted")
	}
}

// --- Retrieve ---

func TestGateway_RetrieveMirrorOrder(t *testing.T) {
	content := []byte("from mirror B")
	id, err := rawCID(content)
	require.NoError(t, err)

	var aHits, bHits atomic.Int32
	mirrorA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		aHits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer mirrorA.Close()
	mirrorB := newMirrorServer(t, map[ContentID][]byte{id: content}, &bHits)

	node := newFakeNode(t)
	g, err := NewGateway([]Backend{
		NewNetworkBackend(node.srv.URL, Auth{}),
		NewMirrorBackend(mirrorA.URL, Auth{}, true),
		NewMirrorBackend(mirrorB.URL, Auth{}, true),
		newTestStore(t),
	})
	require.NoError(t, err)

	res, err := g.Retrieve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, SourceMirror, res.Source)
	assert.Equal(t, content, res.Data)
	assert.EqualValues(t, 1, aHits.Load())
	assert.EqualValues(t, 1, bHits.Load())
	assert.Equal(t, 1, node.callCount("/api/v0/cat"))
}

func TestGateway_RetrieveFirstSuccessIsAuthoritative(t *testing.T) {
	a := &mockBackend{name: "a", source: SourceMirror,
		RetrieveFn: func(context.Context, ContentID) ([]byte, error) { return []byte("A"), nil }}
	b := &mockBackend{name: "b", source: SourceMirror,
		RetrieveFn: func(context.Context, ContentID) ([]byte, error) { return []byte("B"), nil }}

	g, err := NewGateway([]Backend{a, b})
	require.NoError(t, err)

	res, err := g.Retrieve(context.Background(), "local_shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), res.Data)
	assert.Zero(t, b.retrieves.Load())
}

func TestGateway_RetrieveCacheHitSkipsBackends(t *testing.T) {
	b := &mockBackend{name: "network", source: SourceNetwork,
		RetrieveFn: func(context.Context, ContentID) ([]byte, error) { return []byte("payload"), nil }}
	m := &recordingMetrics{}

	g, err := NewGateway([]Backend{b}, WithMetrics(m))
	require.NoError(t, err)

	first, err := g.Retrieve(context.Background(), "bafyC")
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, first.Source)
	require.EqualValues(t, 1, b.retrieves.Load())

	second, err := g.Retrieve(context.Background(), "bafyC")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, []byte("payload"), second.Data)
	assert.EqualValues(t, 1, b.retrieves.Load(), "cache hit must not call any backend")
	assert.Equal(t, 1, m.hits)
}

func TestGateway_SharedCache(t *testing.T) {
	c := NewCache()
	c.Put("bafyS", []byte("shared"))
	b := failing("network", SourceNetwork, ErrBackendUnavailable)

	g, err := NewGateway([]Backend{b}, WithCache(c))
	require.NoError(t, err)

	res, err := g.Retrieve(context.Background(), "bafyS")
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), res.Data)
	assert.Zero(t, b.retrieves.Load())
}

func TestGateway_RetrieveAllNotFound(t *testing.T) {
	g, err := NewGateway([]Backend{
		failing("network", SourceNetwork, ErrNotFound),
		newTestStore(t),
	})
	require.NoError(t, err)

	_, err = g.Retrieve(context.Background(), "bafyMissing")
	require.ErrorIs(t, err, ErrAllBackendsFailed)
	assert.ErrorIs(t, err, ErrNotFound)

	var all *AllBackendsFailedError
	require.True(t, errors.As(err, &all))
	assert.True(t, all.NotFound())
}

func TestGateway_RetrievePartialNotFound(t *testing.T) {
	meta := NewMemMetaStore()
	require.NoError(t, meta.Put(ObjectMeta{ID: "bafyGone", Filename: "cv.pdf", MimeType: "application/pdf", Signature: "3045"}))

	g, err := NewGateway([]Backend{failing("network", SourceNetwork, ErrBackendUnavailable)}, WithMetadataStore(meta))
	require.NoError(t, err)

	_, err = g.Retrieve(context.Background(), "bafyGone")
	require.ErrorIs(t, err, ErrPartialNotFound)
	assert.ErrorIs(t, err, ErrAllBackendsFailed)

	var partial *PartialNotFoundError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, "cv.pdf", partial.Meta.Filename)
	assert.Equal(t, "3045", partial.Meta.Signature)

	// Unknown ids still report a plain failure.
	_, err = g.Retrieve(context.Background(), "bafyUnknown")
	assert.ErrorIs(t, err, ErrAllBackendsFailed)
	assert.NotErrorIs(t, err, ErrPartialNotFound)
}

func TestGateway_RetrieveAttemptTimeout(t *testing.T) {
	slow := &mockBackend{name: "slow", source: SourceNetwork,
		RetrieveFn: func(ctx context.Context, _ ContentID) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}
	fast := &mockBackend{name: "fast", source: SourceMirror,
		RetrieveFn: func(context.Context, ContentID) ([]byte, error) { return []byte("ok"), nil }}

	g, err := NewGateway([]Backend{slow, fast}, WithAttemptTimeout(50*time.Millisecond))
	require.NoError(t, err)

	res, err := g.Retrieve(context.Background(), "bafyT")
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Backend)
}

func TestGateway_RetrieveCallerCancel(t *testing.T) {
	slow := &mockBackend{name: "slow", source: SourceNetwork,
		RetrieveFn: func(ctx context.Context, _ ContentID) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}

	g, err := NewGateway([]Backend{slow}, WithAttemptTimeout(5*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = g.Retrieve(ctx, "bafyT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateway_PutMetadata(t *testing.T) {
	g, err := NewGateway([]Backend{newTestStore(t)})
	require.NoError(t, err)
	assert.NoError(t, g.PutMetadata(ObjectMeta{ID: "x"}), "no store configured is a no-op")

	meta := NewMemMetaStore()
	g, err = NewGateway([]Backend{newTestStore(t)}, WithMetadataStore(meta))
	require.NoError(t, err)
	require.NoError(t, g.PutMetadata(ObjectMeta{ID: "x", Filename: "f"}))

	got, err := meta.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "f", got.Filename)
}
