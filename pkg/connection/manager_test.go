package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/backend/backendtest"
	"github.com/marmos91/dittovec/pkg/registry"
	"github.com/marmos91/dittovec/pkg/store"
)

func newManager(t *testing.T, fake *backendtest.Fake, opts Options, descs ...store.Descriptor) *Manager {
	t.Helper()
	reg := registry.NewRegistry()
	for _, d := range descs {
		require.NoError(t, reg.Register(d))
	}
	m, err := NewManager(reg, backend.NewAdapters(fake), opts)
	require.NoError(t, err)
	return m
}

func vec(name string) store.Descriptor {
	return store.Descriptor{Name: name, Category: store.CategoryVector, Kind: "fake", Enabled: true}
}

type recordingMetrics struct {
	mu     sync.Mutex
	inits  int
	states map[string][]State
}

func (r *recordingMetrics) RecordInit(string, string, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inits++
}

func (r *recordingMetrics) SetState(name string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states == nil {
		r.states = map[string][]State{}
	}
	r.states[name] = append(r.states[name], s)
}

func TestConcurrentAcquireOpensOnce(t *testing.T) {
	fake := backendtest.NewFake("fake")
	fake.OpenDelay = 20 * time.Millisecond
	m := newManager(t, fake, Options{}, vec("v1"))

	const n = 32
	var wg sync.WaitGroup
	conns := make([]*Connection, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conns[i], errs[i] = m.Acquire(context.Background(), "v1")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), fake.Opens())
	for i := range n {
		require.NoError(t, errs[i])
		assert.Same(t, conns[0], conns[i])
	}
	assert.Equal(t, StateConnected, conns[0].State())
}

func TestAcquireIsIdempotent(t *testing.T) {
	fake := backendtest.NewFake("fake")
	m := newManager(t, fake, Options{}, vec("v1"))

	c1, err := m.Acquire(t.Context(), "v1")
	require.NoError(t, err)
	c2, err := m.Acquire(t.Context(), "V1")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, int64(1), fake.Opens())
}

func TestAcquireAfterReleaseReopens(t *testing.T) {
	fake := backendtest.NewFake("fake")
	m := newManager(t, fake, Options{}, vec("v1"))

	c1, err := m.Acquire(t.Context(), "v1")
	require.NoError(t, err)
	require.NoError(t, m.Release(t.Context(), "v1"))
	assert.Equal(t, StateUninitialized, c1.State())

	c2, err := m.Acquire(t.Context(), "v1")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, StateConnected, c2.State())
	assert.Equal(t, int64(2), fake.Opens())
}

func TestAcquireUnknownAndDisabled(t *testing.T) {
	fake := backendtest.NewFake("fake")
	off := vec("off")
	off.Enabled = false
	m := newManager(t, fake, Options{}, vec("v1"), off)

	_, err := m.Acquire(t.Context(), "nope")
	assert.True(t, store.IsCode(err, store.ErrStoreUnavailable))

	_, err = m.Acquire(t.Context(), "off")
	assert.True(t, store.IsCode(err, store.ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "disabled")

	assert.Equal(t, []string{"v1"}, m.Names())
}

func TestFailedStaysFailedUntilReinit(t *testing.T) {
	boom := errors.New("connection refused")
	fake := backendtest.NewFake("fake").FailOpen("v1", boom)
	m := newManager(t, fake, Options{}, vec("v1"))

	_, err := m.Acquire(t.Context(), "v1")
	require.Error(t, err)
	assert.Equal(t, store.ErrInitialization, store.CodeOf(err))
	assert.ErrorIs(t, err, boom)

	// no automatic retry
	for range 3 {
		_, err = m.Acquire(t.Context(), "v1")
		assert.Equal(t, store.ErrStoreUnavailable, store.CodeOf(err))
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int64(1), fake.Opens())

	infos := m.Connections()
	require.Len(t, infos, 1)
	assert.Equal(t, "Failed", infos[0].State)
	assert.Contains(t, infos[0].LastError, "connection refused")

	fake.ClearOpenFailure("v1")
	c, err := m.Reinit(t.Context(), "v1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, int64(2), fake.Opens())
}

func TestWaitersShareFailedAttempt(t *testing.T) {
	fake := backendtest.NewFake("fake").FailOpen("v1", errors.New("down"))
	fake.OpenDelay = 20 * time.Millisecond
	m := newManager(t, fake, Options{}, vec("v1"))

	var wg sync.WaitGroup
	codes := make([]store.ErrorCode, 8)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Acquire(context.Background(), "v1")
			codes[i] = store.CodeOf(err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), fake.Opens())
	for _, c := range codes {
		// waiters on the failing attempt see the init error; a late joiner
		// may already see the Failed state
		assert.Contains(t, []store.ErrorCode{store.ErrInitialization, store.ErrStoreUnavailable}, c)
	}
}

func TestWaiterCancellationDoesNotPoisonAttempt(t *testing.T) {
	fake := backendtest.NewFake("fake")
	fake.OpenDelay = 50 * time.Millisecond
	m := newManager(t, fake, Options{}, vec("v1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx, "v1")
	assert.Equal(t, store.ErrTimeout, store.CodeOf(err))

	c, err := m.Acquire(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, int64(1), fake.Opens())
}

func TestInitTimeout(t *testing.T) {
	fake := backendtest.NewFake("fake")
	fake.OpenDelay = time.Second
	m := newManager(t, fake, Options{InitTimeout: 10 * time.Millisecond}, vec("v1"))

	_, err := m.Acquire(t.Context(), "v1")
	assert.Equal(t, store.ErrInitialization, store.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReleaseIsIdempotent(t *testing.T) {
	fake := backendtest.NewFake("fake")
	m := newManager(t, fake, Options{}, vec("v1"))

	require.NoError(t, m.Release(t.Context(), "v1"), "release before open")

	_, err := m.Acquire(t.Context(), "v1")
	require.NoError(t, err)
	require.NoError(t, m.Release(t.Context(), "v1"))
	require.NoError(t, m.Release(t.Context(), "v1"))
	assert.Equal(t, 1, fake.Closed("v1"))

	// released stores reopen lazily
	c, err := m.Acquire(t.Context(), "v1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, int64(2), fake.Opens())

	assert.Error(t, m.Release(t.Context(), "ghost"))
}

func TestReleaseWaitsForInFlightCall(t *testing.T) {
	fake := backendtest.NewFake("fake").SlowCalls("v1", 50*time.Millisecond)
	m := newManager(t, fake, Options{}, vec("v1"))

	c, err := m.Acquire(t.Context(), "v1")
	require.NoError(t, err)

	started := make(chan struct{})
	var finished atomic.Bool
	go func() {
		_ = c.Do(func(b store.Backend) error {
			close(started)
			_, err := b.GetStatus(context.Background())
			finished.Store(true)
			return err
		})
	}()
	<-started

	require.NoError(t, m.Release(t.Context(), "v1"))
	assert.True(t, finished.Load(), "release returned while a call was in flight")
	assert.Equal(t, 1, fake.Closed("v1"))

	err = c.Do(func(store.Backend) error { return nil })
	assert.Equal(t, store.ErrStoreUnavailable, store.CodeOf(err))
}

func TestInitAllIsolatesFailures(t *testing.T) {
	fake := backendtest.NewFake("fake").FailOpen("bad", errors.New("nope"))
	m := newManager(t, fake, Options{}, vec("a"), vec("bad"), vec("c"))

	res := m.InitAll(t.Context())
	require.Len(t, res, 3)
	assert.NoError(t, res["a"])
	assert.NoError(t, res["c"])
	assert.Equal(t, store.ErrInitialization, store.CodeOf(res["bad"]))
}

type drainer struct {
	called bool
	err    error
}

func (d *drainer) Drain(context.Context) error {
	d.called = true
	return d.err
}

func TestShutdownAllReport(t *testing.T) {
	closeErr := errors.New("flush failed")
	fake := backendtest.NewFake("fake").FailClose("b", closeErr)
	metrics := &recordingMetrics{}
	m := newManager(t, fake, Options{Metrics: metrics}, vec("a"), vec("b"), vec("c"))

	m.InitAll(t.Context())
	d := &drainer{}
	report := m.ShutdownAll(t.Context(), d)

	assert.True(t, d.called)
	assert.Equal(t, []string{"a", "c"}, report.Released)
	require.Contains(t, report.Errors, "b")
	assert.ErrorIs(t, report.Errors["b"], closeErr)
	assert.False(t, report.OK())
	assert.ErrorIs(t, report.Err(), closeErr)

	_, err := m.Acquire(t.Context(), "a")
	assert.Equal(t, store.ErrStoreUnavailable, store.CodeOf(err))

	assert.Equal(t, 3, metrics.inits)
	assert.Equal(t, []State{StateUninitialized, StateConnecting, StateConnected, StateUninitialized}, metrics.states["a"])
}

func TestShutdownAllCleanAndIdle(t *testing.T) {
	fake := backendtest.NewFake("fake")
	m := newManager(t, fake, Options{}, vec("a"), vec("b"))

	report := m.ShutdownAll(t.Context(), nil)
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Equal(t, []string{"a", "b"}, report.Released)
	assert.Zero(t, fake.Opens())
}

func TestNewManagerRejectsUnservableStore(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(store.Descriptor{Name: "x", Category: store.CategoryVector, Kind: "other", Enabled: true}))

	_, err := NewManager(reg, backend.NewAdapters(backendtest.NewFake("fake")), Options{})
	assert.True(t, store.IsCode(err, store.ErrConfig))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Uninitialized", StateUninitialized.String())
	assert.Equal(t, "Connecting", StateConnecting.String())
	assert.Equal(t, "Connected", StateConnected.String())
	assert.Equal(t, "Failed", StateFailed.String())
}
