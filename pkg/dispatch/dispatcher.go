// Package dispatch fans a request out to stores and gathers one Outcome per
// store.
//
// Every store has a lane: a FIFO queue drained by at most one goroutine, so
// calls on one store run one at a time in submission order while different
// stores proceed in parallel. A channel semaphore bounds how many lanes run a
// backend call at once.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/internal/telemetry"
	"github.com/marmos91/dittovec/pkg/connection"
	"github.com/marmos91/dittovec/pkg/store"
)

// DefaultMaxWorkers caps the pool when Options.MaxWorkers is unset.
const DefaultMaxWorkers = 16

// Metrics receives per-call observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveCall(storeName, kind, op string, duration time.Duration, code string)
	InFlight(storeName string, delta int)
}

// Options configures a Dispatcher.
type Options struct {
	MaxWorkers int

	// DefaultTimeout applies when the caller's context has no deadline.
	// Zero means no deadline.
	DefaultTimeout time.Duration

	Metrics Metrics
}

// Dispatcher executes requests against the stores of a connection.Manager.
type Dispatcher struct {
	conns          *connection.Manager
	sem            chan struct{}
	defaultTimeout time.Duration
	metrics        Metrics

	mu       sync.Mutex
	lanes    map[string]*lane
	draining bool
	pending  sync.WaitGroup
}

// New creates a Dispatcher. The pool size is min(enabled stores, MaxWorkers),
// and at least one.
func New(conns *connection.Manager, opts Options) *Dispatcher {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	size := max(min(len(conns.Names()), opts.MaxWorkers), 1)

	return &Dispatcher{
		conns:          conns,
		sem:            make(chan struct{}, size),
		defaultTimeout: opts.DefaultTimeout,
		metrics:        opts.Metrics,
		lanes:          make(map[string]*lane),
	}
}

// PoolSize returns the number of backend calls that may run at once.
func (d *Dispatcher) PoolSize() int { return cap(d.sem) }

// unit is one store's share of a request.
type unit struct {
	ctx     context.Context
	req     *Request
	conn    *connection.Connection
	results chan<- Outcome
}

type lane struct {
	mu      sync.Mutex
	queue   []*unit
	running bool
}

// Execute runs req on every target store and returns one Outcome per store.
// The error is non-nil only when req itself is invalid; store failures,
// unavailable stores and timeouts are reported in their outcomes.
//
// When ctx ends before every store has answered, the unfinished stores get a
// Timeout outcome and the finished ones are kept.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (map[string]Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if _, ok := ctx.Deadline(); !ok && d.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.defaultTimeout)
		defer cancel()
	}

	runnable, outcomes := d.resolve(req)

	ctx, span := telemetry.StartExecuteSpan(ctx, req.Op.String(), req.ID,
		telemetry.Targets(slices.Sorted(maps.Keys(runnable))),
		telemetry.StoreCount(len(runnable)))
	defer span.End()

	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext(req.ID)
	}
	ctx = logger.WithContext(ctx, lc.WithOperation(req.Op.String()).WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	results := make(chan Outcome, len(runnable))
	for _, name := range slices.Sorted(maps.Keys(runnable)) {
		u := &unit{ctx: ctx, req: &req, conn: runnable[name], results: results}
		if !d.submit(u) {
			outcomes[name] = Outcome{
				Store: name, Kind: u.conn.Descriptor().Kind, Op: req.Op,
				Err: store.NewStoreUnavailableError(name, "dispatcher is draining", nil),
			}
			delete(runnable, name)
		}
	}

	for len(runnable) > 0 {
		select {
		case o := <-results:
			outcomes[o.Store] = o
			delete(runnable, o.Store)
		case <-ctx.Done():
			for name, conn := range runnable {
				outcomes[name] = Outcome{
					Store: name, Kind: conn.Descriptor().Kind, Op: req.Op,
					Err: store.NewTimeoutError(name, ctx.Err()),
				}
			}
			clear(runnable)
		}
	}

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
			if d.metrics != nil && o.Duration == 0 {
				// never reached a backend; count it so error rates include it
				d.metrics.ObserveCall(o.Store, o.Kind, req.Op.String(), 0, o.Code())
			}
		}
	}
	span.SetAttributes(telemetry.Results(len(outcomes) - failed))
	logger.DebugCtx(ctx, "Request dispatched",
		logger.Count(len(outcomes)),
		"failed", failed)
	return outcomes, nil
}

// resolve splits the request's targets into stores to run and stores whose
// outcome is already known.
func (d *Dispatcher) resolve(req Request) (map[string]*connection.Connection, map[string]Outcome) {
	runnable := make(map[string]*connection.Connection)
	outcomes := make(map[string]Outcome)
	capability := req.Op.Capability()

	excluded := make(map[string]bool, len(req.Exclude))
	for _, n := range req.Exclude {
		excluded[store.NormalizeName(n)] = true
	}

	names := req.Targets
	explicit := len(names) > 0
	if !explicit {
		names = d.conns.Names()
	}

	for _, raw := range names {
		name := store.NormalizeName(raw)
		if excluded[name] {
			continue
		}
		if _, seen := runnable[name]; seen {
			continue
		}
		if _, seen := outcomes[name]; seen {
			continue
		}

		conn, err := d.conns.Get(name)
		if err != nil {
			outcomes[name] = Outcome{Store: name, Op: req.Op, Err: err}
			continue
		}
		ad := conn.Adapter()
		if req.ExcludeFullScan && ad.FullScan() {
			continue
		}
		if !store.Supports(ad, capability) {
			if explicit {
				outcomes[name] = Outcome{
					Store: name, Kind: ad.Kind(), Op: req.Op,
					Err: store.NewUnsupportedError(name, ad.Kind(), string(capability)),
				}
			}
			continue
		}
		runnable[name] = conn
	}
	return runnable, outcomes
}

// submit appends u to its store's lane, starting the lane if idle. It returns
// false once Drain has begun.
func (d *Dispatcher) submit(u *unit) bool {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return false
	}
	name := u.conn.Name()
	l, ok := d.lanes[name]
	if !ok {
		l = &lane{}
		d.lanes[name] = l
	}
	d.pending.Add(1)
	d.mu.Unlock()

	l.mu.Lock()
	l.queue = append(l.queue, u)
	start := !l.running
	l.running = true
	l.mu.Unlock()

	if start {
		go d.runLane(l)
	}
	return true
}

func (d *Dispatcher) runLane(l *lane) {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		u := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		d.sem <- struct{}{}
		o := d.run(u)
		<-d.sem

		u.results <- o
		d.pending.Done()
	}
}

// run executes one unit. A unit whose deadline has already passed skips the
// backend call.
func (d *Dispatcher) run(u *unit) (o Outcome) {
	desc := u.conn.Descriptor()
	o = Outcome{Store: desc.Name, Kind: desc.Kind, Op: u.req.Op}

	if err := u.ctx.Err(); err != nil {
		o.Err = store.NewTimeoutError(desc.Name, err)
		return o
	}

	ctx, span := telemetry.StartStoreSpan(u.ctx, u.req.Op.String(), desc.Name, desc.Kind,
		telemetry.StoreCategory(string(desc.Category)),
		telemetry.FullScan(u.conn.Adapter().FullScan()))
	defer span.End()
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithStore(desc.Name))

	start := time.Now()
	defer func() {
		o.Duration = time.Since(start)
		if o.Err != nil {
			telemetry.RecordError(ctx, o.Err)
			span.SetAttributes(telemetry.ErrorCode(o.Code()))
			logger.WarnCtx(ctx, "Store call failed",
				logger.KeyKind, desc.Kind,
				logger.KeyError, o.Err)
		}
		if d.metrics != nil {
			d.metrics.ObserveCall(desc.Name, desc.Kind, u.req.Op.String(), o.Duration, o.Code())
		}
	}()

	conn, err := d.conns.Acquire(ctx, desc.Name)
	if err != nil {
		o.Err = err
		return o
	}

	if d.metrics != nil {
		d.metrics.InFlight(desc.Name, 1)
		defer d.metrics.InFlight(desc.Name, -1)
	}
	err = conn.Do(func(b store.Backend) error {
		return call(ctx, u.req, b, &o)
	})
	if err != nil {
		o.Candidates, o.Status = nil, nil
		if errors.Is(err, context.DeadlineExceeded) && store.CodeOf(err) == 0 {
			o.Err = store.NewTimeoutError(desc.Name, err)
		} else {
			o.Err = store.NewAdapterError(desc.Name, desc.Kind, err)
		}
	}
	return o
}

// call invokes the capability on b. A panic in the backend becomes an error.
func call(ctx context.Context, req *Request, b store.Backend, o *Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	switch req.Op {
	case OpAdd:
		w, ok := b.(store.VectorWriter)
		if !ok {
			return store.NewUnsupportedError(o.Store, o.Kind, string(store.CapAddVector))
		}
		return w.AddVector(ctx, req.Record)

	case OpSearch:
		s, ok := b.(store.VectorSearcher)
		if !ok {
			return store.NewUnsupportedError(o.Store, o.Kind, string(store.CapSearchVector))
		}
		cands, err := s.SearchVector(ctx, req.Query, req.K)
		if err != nil {
			return err
		}
		store.SortCandidates(cands)
		if len(cands) > req.K {
			cands = cands[:req.K]
		}
		o.Candidates = cands
		return nil

	default:
		st, err := b.GetStatus(ctx)
		if err != nil {
			return err
		}
		o.Status = st
		return nil
	}
}

// Drain stops accepting units and waits for queued ones to finish.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain: %w", ctx.Err())
	}
}
