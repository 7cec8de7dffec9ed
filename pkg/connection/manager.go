package connection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/internal/telemetry"
	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/registry"
	"github.com/marmos91/dittovec/pkg/store"
)

// DefaultInitTimeout bounds a single backend open.
const DefaultInitTimeout = 30 * time.Second

// Metrics receives connection lifecycle events. Implementations must be safe
// for concurrent use.
type Metrics interface {
	RecordInit(storeName, kind string, duration time.Duration, err error)
	SetState(storeName string, state State)
}

// Options configures a Manager.
type Options struct {
	// InitTimeout bounds each backend open. Zero means DefaultInitTimeout.
	InitTimeout time.Duration

	Metrics Metrics
}

// Drainer is the worker pool drained by ShutdownAll after every connection is
// released.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Manager owns the Connection of every enabled store.
type Manager struct {
	reg         *registry.Registry
	conns       map[string]*Connection
	names       []string
	initTimeout time.Duration
	metrics     Metrics

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a Connection for each enabled descriptor in reg. Every
// enabled descriptor must be servable by adapters; the first one that is not
// is returned as a ConfigError.
func NewManager(reg *registry.Registry, adapters *backend.Adapters, opts Options) (*Manager, error) {
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}

	m := &Manager{
		reg:         reg,
		conns:       make(map[string]*Connection),
		initTimeout: opts.InitTimeout,
		metrics:     opts.Metrics,
	}
	for desc := range reg.ListEnabled() {
		ad, err := adapters.Check(desc)
		if err != nil {
			return nil, err
		}
		m.conns[desc.Name] = newConnection(desc, ad)
		m.names = append(m.names, desc.Name)
		m.setState(desc.Name, StateUninitialized)
	}
	return m, nil
}

// Get returns the Connection for name without opening it. Unknown, disabled
// or shut down stores return StoreUnavailable.
func (m *Manager) Get(name string) (*Connection, error) {
	name = store.NormalizeName(name)

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, store.NewStoreUnavailableError(name, "connection manager is shut down", nil)
	}

	if c, ok := m.conns[name]; ok {
		return c, nil
	}
	if _, ok := m.reg.Get(name); ok {
		return nil, store.NewStoreUnavailableError(name, "store is disabled", nil)
	}
	return nil, store.NewStoreUnavailableError(name, "unknown store", nil)
}

// Acquire returns the open Connection for name, opening it on first use.
//
// Concurrent callers for an uninitialized store share one open attempt. If that
// attempt fails every caller waiting on it gets the InitializationError; later
// callers get StoreUnavailable until Reinit. A caller whose ctx ends while
// waiting gets Timeout, and the attempt carries on for the others.
func (m *Manager) Acquire(ctx context.Context, name string) (*Connection, error) {
	c, err := m.Get(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return c, nil

	case StateFailed:
		lastErr := c.lastErr
		c.mu.Unlock()
		return nil, store.NewStoreUnavailableError(c.desc.Name, "store failed to initialize", lastErr)

	case StateUninitialized:
		a := &attempt{done: make(chan struct{})}
		c.pending = a
		c.state = StateConnecting
		c.since = time.Now()
		c.opens++
		c.mu.Unlock()
		m.setState(c.desc.Name, StateConnecting)

		go m.open(ctx, c, a)
		return m.await(ctx, c, a)

	default: // StateConnecting
		a := c.pending
		c.mu.Unlock()
		return m.await(ctx, c, a)
	}
}

func (m *Manager) await(ctx context.Context, c *Connection, a *attempt) (*Connection, error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		return nil, store.NewTimeoutError(c.desc.Name, ctx.Err())
	}
	if a.err != nil {
		return nil, a.err
	}
	// Released between the open and this read: the caller sees the store as
	// unavailable rather than silently reopening it.
	if c.State() != StateConnected {
		return nil, store.NewStoreUnavailableError(c.desc.Name, "connection released", nil)
	}
	return c, nil
}

// open runs the adapter outside the caller's cancellation so a waiter giving
// up does not fail the shared attempt.
func (m *Manager) open(parent context.Context, c *Connection, a *attempt) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.initTimeout)
	defer cancel()
	ctx, span := telemetry.StartInitSpan(ctx, c.desc.Name, c.desc.Kind,
		telemetry.StoreCategory(string(c.desc.Category)))
	defer span.End()

	start := time.Now()
	b, err := openBackend(ctx, c)
	elapsed := time.Since(start)

	var initErr error
	if err != nil {
		initErr = store.NewInitializationError(c.desc.Name, c.desc.Kind, err)
		telemetry.RecordError(ctx, initErr)
	}

	c.mu.Lock()
	if initErr != nil {
		c.state = StateFailed
		c.lastErr = initErr
	} else {
		c.state = StateConnected
		c.backend = b
		c.lastErr = nil
	}
	c.since = time.Now()
	c.pending = nil
	a.err = initErr
	state := c.state
	close(a.done)
	c.mu.Unlock()

	m.setState(c.desc.Name, state)
	if m.metrics != nil {
		m.metrics.RecordInit(c.desc.Name, c.desc.Kind, elapsed, err)
	}

	if initErr != nil {
		logger.Warn("Store initialization failed",
			logger.KeyStore, c.desc.Name,
			logger.KeyKind, c.desc.Kind,
			logger.KeyDurationMs, float64(elapsed.Microseconds())/1000,
			logger.KeyError, err)
		return
	}
	logger.Info("Store connected",
		logger.KeyStore, c.desc.Name,
		logger.KeyKind, c.desc.Kind,
		logger.KeyCategory, string(c.desc.Category),
		logger.KeyDurationMs, float64(elapsed.Microseconds())/1000)
}

func openBackend(ctx context.Context, c *Connection) (b store.Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("panic during open: %v", r)
		}
	}()
	b, err = c.adapter.Open(ctx, c.desc)
	if err == nil && b == nil {
		err = errors.New("adapter returned no backend")
	}
	return b, err
}

// Release closes the backend of name and resets it to Uninitialized. It waits
// for an in-flight open and for the call currently holding the handle.
// Releasing an idle or already released store is a no-op.
func (m *Manager) Release(ctx context.Context, name string) error {
	c, ok := m.conns[store.NormalizeName(name)]
	if !ok {
		return store.NewStoreUnavailableError(store.NormalizeName(name), "unknown store", nil)
	}
	return m.release(ctx, c)
}

func (m *Manager) release(ctx context.Context, c *Connection) error {
	for {
		c.mu.Lock()
		if c.state == StateConnecting {
			a := c.pending
			c.mu.Unlock()
			select {
			case <-a.done:
				continue
			case <-ctx.Done():
				return store.NewTimeoutError(c.desc.Name, ctx.Err())
			}
		}
		c.mu.Unlock()

		c.callMu.Lock()
		c.mu.Lock()
		if c.state == StateConnecting {
			// a new open started while we waited for the call lock
			c.mu.Unlock()
			c.callMu.Unlock()
			continue
		}
		prev := c.state
		b := c.backend
		c.backend = nil
		c.state = StateUninitialized
		c.lastErr = nil
		c.since = time.Now()
		c.mu.Unlock()

		var err error
		if b != nil {
			err = b.Close(ctx)
		}
		c.callMu.Unlock()

		if prev != StateUninitialized {
			m.setState(c.desc.Name, StateUninitialized)
			logger.Debug("Store released", logger.KeyStore, c.desc.Name, logger.KeyState, prev.String())
		}
		if err != nil {
			return fmt.Errorf("close %s: %w", c.desc.Name, err)
		}
		return nil
	}
}

// Reinit releases name and opens it again. It is the only way out of Failed.
func (m *Manager) Reinit(ctx context.Context, name string) (*Connection, error) {
	if err := m.Release(ctx, name); err != nil {
		logger.Warn("Release before reinit failed", logger.KeyStore, name, logger.KeyError, err)
	}
	return m.Acquire(ctx, name)
}

// InitAll opens every enabled store in parallel. The result maps each store
// to its open error, nil on success. One failure never stops the others.
func (m *Manager) InitAll(ctx context.Context) map[string]error {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]error, len(m.names))
	)
	for _, name := range m.names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Acquire(ctx, name)
			mu.Lock()
			out[name] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// ShutdownReport describes a ShutdownAll. Release errors are recorded here and
// logged; they never fail the shutdown.
type ShutdownReport struct {
	Released []string
	Errors   map[string]error
	DrainErr error
	Duration time.Duration
}

// OK reports whether every store closed cleanly and the pool drained.
func (r *ShutdownReport) OK() bool {
	return len(r.Errors) == 0 && r.DrainErr == nil
}

// Err joins every recorded error, or returns nil.
func (r *ShutdownReport) Err() error {
	var errs []error
	for _, name := range sortedKeys(r.Errors) {
		errs = append(errs, r.Errors[name])
	}
	if r.DrainErr != nil {
		errs = append(errs, fmt.Errorf("drain: %w", r.DrainErr))
	}
	return errors.Join(errs...)
}

// ShutdownAll stops new acquires, releases every connection, then waits for
// drainer (which may be nil) to finish queued work.
func (m *Manager) ShutdownAll(ctx context.Context, drainer Drainer) *ShutdownReport {
	start := time.Now()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	report := &ShutdownReport{Errors: make(map[string]error)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range m.names {
		c := m.conns[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.release(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors[name] = err
				logger.Error("Failed to release store", logger.KeyStore, name, logger.KeyError, err)
				return
			}
			report.Released = append(report.Released, name)
		}()
	}
	wg.Wait()
	slices.Sort(report.Released)

	if drainer != nil {
		report.DrainErr = drainer.Drain(ctx)
		if report.DrainErr != nil {
			logger.Error("Worker pool did not drain", logger.KeyError, report.DrainErr)
		}
	}

	report.Duration = time.Since(start)
	logger.Info("Connections shut down",
		logger.KeyCount, len(report.Released),
		"errors", len(report.Errors),
		logger.KeyDurationMs, float64(report.Duration.Microseconds())/1000)
	return report
}

// Connections returns a snapshot of every connection, ordered by name.
func (m *Manager) Connections() []Info {
	out := make([]Info, 0, len(m.names))
	for _, name := range m.names {
		out = append(out, m.conns[name].info())
	}
	return out
}

// Names returns the enabled store names, sorted.
func (m *Manager) Names() []string {
	return slices.Clone(m.names)
}

func (m *Manager) setState(name string, s State) {
	if m.metrics != nil {
		m.metrics.SetState(name, s)
	}
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
