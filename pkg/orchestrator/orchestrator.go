// Package orchestrator ties the store catalog, the connection manager, the
// dispatcher and the health probe together behind one value.
//
// There is no package-level instance. Callers build an Orchestrator from
// descriptors (New) or from a loaded configuration (NewFromConfig), call
// Start, and finally Shutdown.
package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/internal/telemetry"
	"github.com/marmos91/dittovec/pkg/aggregate"
	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/backend/builtin"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/marmos91/dittovec/pkg/connection"
	"github.com/marmos91/dittovec/pkg/dispatch"
	"github.com/marmos91/dittovec/pkg/metrics"
	promMetrics "github.com/marmos91/dittovec/pkg/metrics/prometheus"
	"github.com/marmos91/dittovec/pkg/probe"
	"github.com/marmos91/dittovec/pkg/registry"
	"github.com/marmos91/dittovec/pkg/store"
)

// Options tunes an Orchestrator. Zero values take the package defaults of
// the components they configure.
type Options struct {
	MaxWorkers     int
	DefaultTimeout time.Duration
	InitTimeout    time.Duration

	// EagerInit opens every enabled store in Start instead of on first use.
	EagerInit bool

	ProbeEnabled  bool
	ProbeSchedule string
	ProbeTimeout  time.Duration

	// Registerer receives the orchestrator's collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// Orchestrator owns every store connection of the process.
type Orchestrator struct {
	reg      *registry.Registry
	adapters *backend.Adapters
	conns    *connection.Manager
	disp     *dispatch.Dispatcher
	probe    *probe.Probe
	opts     Options

	shutdownOnce sync.Once
	report       *connection.ShutdownReport
}

// New validates descs against adapters and builds the orchestrator. Every
// descriptor is checked, disabled ones included; the first problem is
// returned as a ConfigError or DuplicateStore error and nothing is opened.
func New(descs []store.Descriptor, adapters *backend.Adapters, opts Options) (*Orchestrator, error) {
	reg := registry.NewRegistry()
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	for d := range reg.All() {
		if _, err := adapters.Check(d); err != nil {
			return nil, err
		}
	}

	conns, err := connection.NewManager(reg, adapters, connection.Options{
		InitTimeout: opts.InitTimeout,
		Metrics:     connectionMetrics(opts.Registerer),
	})
	if err != nil {
		return nil, err
	}

	disp := dispatch.New(conns, dispatch.Options{
		MaxWorkers:     opts.MaxWorkers,
		DefaultTimeout: opts.DefaultTimeout,
		Metrics:        dispatchMetrics(opts.Registerer),
	})

	o := &Orchestrator{reg: reg, adapters: adapters, conns: conns, disp: disp, opts: opts}
	if opts.ProbeEnabled {
		o.probe, err = probe.New(disp, probe.Options{
			Schedule: opts.ProbeSchedule,
			Timeout:  opts.ProbeTimeout,
			Metrics:  probeMetrics(opts.Registerer),
		})
		if err != nil {
			return nil, store.NewConfigError("", "invalid probe configuration", err)
		}
	}

	logger.Info("Orchestrator created",
		logger.KeyCount, reg.Len(),
		"enabled", len(conns.Names()),
		"workers", disp.PoolSize())
	return o, nil
}

// NewFromConfig builds an orchestrator from a loaded configuration using the
// built-in adapters. Metrics are registered on the global registry when it
// has been initialised.
func NewFromConfig(cfg *config.Config) (*Orchestrator, error) {
	descs, err := cfg.Descriptors()
	if err != nil {
		return nil, err
	}

	opts := Options{
		MaxWorkers:     cfg.Orchestrator.MaxWorkers,
		DefaultTimeout: cfg.Orchestrator.DefaultTimeout,
		InitTimeout:    cfg.Orchestrator.InitTimeout,
		EagerInit:      cfg.Orchestrator.EagerInit,
		ProbeEnabled:   cfg.Probe.Enabled,
		ProbeSchedule:  cfg.Probe.Schedule,
		ProbeTimeout:   cfg.Probe.Timeout,
	}
	// a nil *prometheus.Registry must not become a non-nil interface
	if reg := metrics.GetRegistry(); reg != nil {
		opts.Registerer = reg
	}
	return New(descs, builtin.Adapters(), opts)
}

func connectionMetrics(reg prometheus.Registerer) connection.Metrics {
	if reg == nil {
		return nil
	}
	return promMetrics.NewConnectionMetrics(reg)
}

func dispatchMetrics(reg prometheus.Registerer) dispatch.Metrics {
	if reg == nil {
		return nil
	}
	return promMetrics.NewDispatchMetrics(reg)
}

func probeMetrics(reg prometheus.Registerer) probe.Metrics {
	if reg == nil {
		return nil
	}
	return promMetrics.NewProbeMetrics(reg)
}

// Start opens every enabled store when eager init is configured and starts
// the probe. Open failures are logged and left for Reinit; they do not fail
// Start.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.opts.EagerInit {
		start := time.Now()
		results := o.conns.InitAll(ctx)
		failed := 0
		for _, name := range o.conns.Names() {
			if err := results[name]; err != nil {
				failed++
				logger.Warn("Eager store init failed", logger.KeyStore, name, logger.KeyError, err)
			}
		}
		logger.Info("Eager init complete",
			logger.KeyCount, len(results),
			"failed", failed,
			logger.KeyDurationMs, float64(time.Since(start).Microseconds())/1000)
	}

	if o.probe != nil {
		o.probe.Start()
	}
	return nil
}

// Execute fans req out through the dispatcher.
func (o *Orchestrator) Execute(ctx context.Context, req dispatch.Request) (map[string]dispatch.Outcome, error) {
	return o.disp.Execute(ctx, req)
}

// Add writes rec to targets, or to every enabled store that can add vectors.
func (o *Orchestrator) Add(ctx context.Context, rec store.Record, targets ...string) (map[string]dispatch.Outcome, error) {
	return o.disp.Execute(ctx, dispatch.Request{Op: dispatch.OpAdd, Targets: targets, Record: rec})
}

// Search runs a per-store search. Each outcome carries its own top-k.
func (o *Orchestrator) Search(ctx context.Context, query []float64, k int, targets ...string) (map[string]dispatch.Outcome, error) {
	return o.disp.Execute(ctx, dispatch.Request{Op: dispatch.OpSearch, Targets: targets, Query: query, K: k})
}

// Status collects the status of targets, or of every enabled store.
func (o *Orchestrator) Status(ctx context.Context, targets ...string) (map[string]dispatch.Outcome, error) {
	return o.disp.Execute(ctx, dispatch.Request{Op: dispatch.OpStatus, Targets: targets})
}

// SearchOptions selects the stores of a federated search.
type SearchOptions struct {
	Query           []float64
	K               int
	Stores          []string
	Exclude         []string
	ExcludeFullScan bool
}

// FederatedResult is the merged top-k plus what each store returned.
type FederatedResult struct {
	Hits     []aggregate.Hit
	Outcomes map[string]dispatch.Outcome
}

// Failed returns the outcomes that did not succeed, ordered by store.
func (r *FederatedResult) Failed() []dispatch.Outcome {
	var out []dispatch.Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b dispatch.Outcome) int { return cmp.Compare(a.Store, b.Store) })
	return out
}

// FederatedSearch searches every selected store and merges the answers into
// one list of min(K, total) hits ordered by distance, store name and id.
// Stores that fail or time out contribute nothing and are reported in
// Outcomes.
func (o *Orchestrator) FederatedSearch(ctx context.Context, opts SearchOptions) (*FederatedResult, error) {
	req := dispatch.Request{
		ID:              uuid.NewString(),
		Op:              dispatch.OpSearch,
		Targets:         opts.Stores,
		Exclude:         opts.Exclude,
		ExcludeFullScan: opts.ExcludeFullScan,
		Query:           opts.Query,
		K:               opts.K,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanFederated)
	defer span.End()
	telemetry.SetAttributes(ctx,
		telemetry.RequestID(req.ID),
		telemetry.K(req.K),
		telemetry.Dimension(len(req.Query)),
		telemetry.Federated(true))

	outcomes, err := o.disp.Execute(ctx, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	res := &FederatedResult{Hits: aggregate.FromOutcomes(outcomes, req.K), Outcomes: outcomes}
	telemetry.SetAttributes(ctx, telemetry.Results(len(res.Hits)), telemetry.StoreCount(len(outcomes)))
	if failed := len(res.Failed()); failed > 0 {
		logger.DebugCtx(ctx, "Federated search partial",
			logger.KeyCount, len(res.Hits), "failed", failed, "stores", len(outcomes))
	}
	return res, nil
}

// StoreInfo describes one configured store, enabled or not.
type StoreInfo struct {
	Name         string             `json:"name" yaml:"name"`
	Category     store.Category     `json:"category" yaml:"category"`
	Kind         string             `json:"kind" yaml:"kind"`
	Enabled      bool               `json:"enabled" yaml:"enabled"`
	State        string             `json:"state" yaml:"state"`
	FullScan     bool               `json:"full_scan" yaml:"full_scan"`
	Capabilities []store.Capability `json:"capabilities" yaml:"capabilities"`
	LastError    string             `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// stateDisabled is reported for stores that have no connection.
const stateDisabled = "disabled"

// Stores lists the configured stores, optionally restricted to categories,
// ordered by name.
func (o *Orchestrator) Stores(categories ...store.Category) []StoreInfo {
	states := make(map[string]connection.Info)
	for _, inf := range o.conns.Connections() {
		states[inf.Name] = inf
	}

	var out []StoreInfo
	for d := range o.reg.All() {
		if len(categories) > 0 && !slices.Contains(categories, d.Category) {
			continue
		}
		info := StoreInfo{
			Name:     d.Name,
			Category: d.Category,
			Kind:     d.Kind,
			Enabled:  d.Enabled,
			State:    stateDisabled,
		}
		if ad, err := o.adapters.Lookup(d.Kind); err == nil {
			info.FullScan = ad.FullScan()
			info.Capabilities = slices.Clone(ad.Capabilities())
		}
		if inf, ok := states[d.Name]; ok {
			info.State = inf.State
			info.LastError = inf.LastError
		}
		out = append(out, info)
	}
	return out
}

// Connections returns the state of every enabled store.
func (o *Orchestrator) Connections() []connection.Info {
	return o.conns.Connections()
}

// Reinit closes and reopens one store.
func (o *Orchestrator) Reinit(ctx context.Context, name string) (connection.Info, error) {
	c, err := o.conns.Reinit(ctx, name)
	if err != nil {
		return connection.Info{}, err
	}
	for _, inf := range o.conns.Connections() {
		if inf.Name == c.Name() {
			return inf, nil
		}
	}
	return connection.Info{}, fmt.Errorf("store %s vanished after reinit", c.Name())
}

// Ready reports whether no enabled store is in the Failed state.
func (o *Orchestrator) Ready() bool {
	for _, inf := range o.conns.Connections() {
		if inf.State == connection.StateFailed.String() {
			return false
		}
	}
	return true
}

// Probe returns the health probe, or nil when it is disabled.
func (o *Orchestrator) Probe() *probe.Probe { return o.probe }

// Adapters returns the adapter table the orchestrator was built with.
func (o *Orchestrator) Adapters() *backend.Adapters { return o.adapters }

// Shutdown stops the probe, closes every connection and drains queued work.
// Later calls return the first report.
func (o *Orchestrator) Shutdown(ctx context.Context) *connection.ShutdownReport {
	o.shutdownOnce.Do(func() {
		if o.probe != nil {
			if err := o.probe.Stop(ctx); err != nil {
				logger.Warn("Probe did not stop", logger.KeyError, err)
			}
		}
		o.report = o.conns.ShutdownAll(ctx, o.disp)
		if err := o.report.Err(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Shutdown finished with errors", logger.KeyError, err)
		}
	})
	return o.report
}
