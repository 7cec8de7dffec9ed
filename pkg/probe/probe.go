// Package probe periodically fans a status request out to every store and
// keeps the latest health of each one.
package probe

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/internal/telemetry"
	"github.com/marmos91/dittovec/pkg/dispatch"
)

// DefaultSchedule runs a probe every thirty seconds.
const DefaultSchedule = "@every 30s"

// Runner executes a fan-out. *dispatch.Dispatcher satisfies it.
type Runner interface {
	Execute(ctx context.Context, req dispatch.Request) (map[string]dispatch.Outcome, error)
}

// Metrics receives one observation per store per round.
type Metrics interface {
	RecordProbe(storeName string, healthy bool, latency time.Duration)
}

// Options configures a Probe.
type Options struct {
	// Schedule is a standard cron spec or a descriptor such as "@every 30s".
	Schedule string

	// Timeout bounds one round. Zero means 10s.
	Timeout time.Duration

	Metrics Metrics
}

// Health is the last probe result for one store.
type Health struct {
	Store     string    `json:"store" yaml:"store"`
	Kind      string    `json:"kind" yaml:"kind"`
	Healthy   bool      `json:"healthy" yaml:"healthy"`
	Code      string    `json:"code,omitempty" yaml:"code,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	LatencyMs float64   `json:"latency_ms" yaml:"latency_ms"`
	CheckedAt time.Time `json:"checked_at" yaml:"checked_at"`
}

// Snapshot is the probe state exposed to the API.
type Snapshot struct {
	LastRun time.Time `json:"last_run" yaml:"last_run"`
	Rounds  int       `json:"rounds" yaml:"rounds"`
	Stores  []Health  `json:"stores" yaml:"stores"`
}

// Probe runs status rounds on a cron schedule.
type Probe struct {
	runner  Runner
	timeout time.Duration
	metrics Metrics
	cron    *cron.Cron

	mu      sync.RWMutex
	health  map[string]Health
	lastRun time.Time
	rounds  int
}

// New validates the schedule and returns a stopped Probe.
func New(runner Runner, opts Options) (*Probe, error) {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	p := &Probe{
		runner:  runner,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		health:  make(map[string]Health),
	}

	log := cronLogger{}
	p.cron = cron.New(cron.WithLogger(log), cron.WithChain(
		cron.Recover(log),
		cron.SkipIfStillRunning(log),
	))
	if _, err := p.cron.AddFunc(opts.Schedule, func() { p.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid probe schedule %q: %w", opts.Schedule, err)
	}
	return p, nil
}

// Start begins scheduling rounds in the background.
func (p *Probe) Start() {
	p.cron.Start()
	logger.Info("Store probe started", "next_run", p.cron.Entries()[0].Next)
}

// Stop stops scheduling and waits for a running round, or for ctx.
func (p *Probe) Stop(ctx context.Context) error {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("probe stop: %w", ctx.Err())
	}
}

// RunOnce performs one status round and returns the per-store health.
func (p *Probe) RunOnce(ctx context.Context) map[string]Health {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanProbe)
	defer span.End()
	ctx = logger.WithContext(ctx, logger.NewLogContext("").WithOperation("probe").WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	outcomes, err := p.runner.Execute(ctx, dispatch.Request{Op: dispatch.OpStatus})
	if err != nil {
		// status requests are always valid; anything else is a wiring bug
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Probe round failed", logger.KeyError, err)
		return nil
	}

	now := time.Now()
	round := make(map[string]Health, len(outcomes))
	for name, o := range outcomes {
		h := Health{
			Store:     name,
			Kind:      o.Kind,
			Healthy:   o.OK(),
			LatencyMs: float64(o.Duration.Microseconds()) / 1000,
			CheckedAt: now,
		}
		if o.Err != nil {
			h.Code = o.Code()
			h.Error = o.Err.Error()
		}
		round[name] = h
		if p.metrics != nil {
			p.metrics.RecordProbe(name, h.Healthy, o.Duration)
		}
	}

	p.mu.Lock()
	prev := p.health
	p.health = round
	p.lastRun = now
	p.rounds++
	p.mu.Unlock()

	for _, name := range slices.Sorted(maps.Keys(round)) {
		logTransition(ctx, prev[name], round[name])
	}
	logger.DebugCtx(ctx, "Probe round complete", logger.Count(len(round)))
	return round
}

func logTransition(ctx context.Context, before, after Health) {
	switch {
	case before.Store == "" && !after.Healthy:
		logger.WarnCtx(ctx, "Store unhealthy",
			logger.KeyStore, after.Store, logger.KeyErrorCode, after.Code, logger.KeyError, after.Error)
	case before.Store == "":
	case before.Healthy && !after.Healthy:
		logger.WarnCtx(ctx, "Store became unhealthy",
			logger.KeyStore, after.Store, logger.KeyErrorCode, after.Code, logger.KeyError, after.Error)
	case !before.Healthy && after.Healthy:
		logger.InfoCtx(ctx, "Store recovered", logger.KeyStore, after.Store)
	}
}

// Snapshot returns the latest round, ordered by store name.
func (p *Probe) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{LastRun: p.lastRun, Rounds: p.rounds, Stores: make([]Health, 0, len(p.health))}
	for _, name := range slices.Sorted(maps.Keys(p.health)) {
		s.Stores = append(s.Stores, p.health[name])
	}
	return s
}

// cronLogger routes cron's own messages into the logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append(keysAndValues, logger.KeyError, err)...)
}
