package backendtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
	"github.com/marmos91/dittovec/pkg/store/scan"
)

// Fake is a fault-injecting in-memory adapter for orchestration tests.
// Faults are keyed by store name so one adapter can serve a healthy store and
// a broken one side by side.
type Fake struct {
	KindName  string
	Cats      []store.Category
	Caps      []store.Capability
	Scan      bool
	OpenDelay time.Duration

	opens atomic.Int64

	mu        sync.Mutex
	openErr   map[string]error
	callErr   map[string]error
	callDelay map[string]time.Duration
	callPanic map[string]bool
	closeErr  map[string]error
	calls     map[string][]string
	closed    map[string]int
}

// NewFake returns a vector-capable fake of the given kind serving every category.
func NewFake(kind string) *Fake {
	return &Fake{
		KindName: kind,
		Cats:     store.Categories,
		Caps:     []store.Capability{store.CapAddVector, store.CapSearchVector, store.CapGetStatus},
	}
}

func (f *Fake) init() {
	if f.calls == nil {
		f.openErr = map[string]error{}
		f.callErr = map[string]error{}
		f.callDelay = map[string]time.Duration{}
		f.callPanic = map[string]bool{}
		f.closeErr = map[string]error{}
		f.calls = map[string][]string{}
		f.closed = map[string]int{}
	}
}

// FailOpen makes every open of storeName fail with err.
func (f *Fake) FailOpen(storeName string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.openErr[storeName] = err
	return f
}

// ClearOpenFailure lets storeName open again.
func (f *Fake) ClearOpenFailure(storeName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	delete(f.openErr, storeName)
}

// FailCalls makes every backend call on storeName fail with err.
func (f *Fake) FailCalls(storeName string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.callErr[storeName] = err
	return f
}

// SlowCalls delays every backend call on storeName by d, or until the call's
// context ends.
func (f *Fake) SlowCalls(storeName string, d time.Duration) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.callDelay[storeName] = d
	return f
}

// PanicCalls makes every backend call on storeName panic.
func (f *Fake) PanicCalls(storeName string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.callPanic[storeName] = true
	return f
}

// FailClose makes Close on storeName return err.
func (f *Fake) FailClose(storeName string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	f.closeErr[storeName] = err
	return f
}

// Opens returns how many times Open ran.
func (f *Fake) Opens() int64 { return f.opens.Load() }

// Calls returns the calls made on storeName in execution order, formatted as
// "op" or "op:id".
func (f *Fake) Calls(storeName string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	return append([]string(nil), f.calls[storeName]...)
}

// Closed returns how many times a backend of storeName was closed.
func (f *Fake) Closed(storeName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.init()
	return f.closed[storeName]
}

func (f *Fake) Kind() string                     { return f.KindName }
func (f *Fake) Categories() []store.Category     { return f.Cats }
func (f *Fake) Capabilities() []store.Capability { return f.Caps }
func (f *Fake) FullScan() bool                   { return f.Scan }

func (f *Fake) ValidateConfig(raw map[string]any) error {
	if _, ok := raw["invalid"]; ok {
		return store.NewConfigError("", "fake config rejected", nil)
	}
	return nil
}

func (f *Fake) Open(ctx context.Context, desc store.Descriptor) (store.Backend, error) {
	f.opens.Add(1)
	if f.OpenDelay > 0 {
		select {
		case <-time.After(f.OpenDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.init()
	err := f.openErr[desc.Name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &FakeBackend{fake: f, desc: desc, vectors: map[string][]float32{}, scanner: scan.New(scan.Euclidean)}, nil
}

// FakeBackend is the handle opened by Fake. It is safe only under the
// caller's serialisation, like a real backend behind a Connection.
type FakeBackend struct {
	fake    *Fake
	desc    store.Descriptor
	vectors map[string][]float32
	scanner *scan.Scanner
	closed  bool
}

func (b *FakeBackend) before(ctx context.Context, call string) error {
	f := b.fake
	f.mu.Lock()
	f.calls[b.desc.Name] = append(f.calls[b.desc.Name], call)
	err, delay, panics := f.callErr[b.desc.Name], f.callDelay[b.desc.Name], f.callPanic[b.desc.Name]
	f.mu.Unlock()

	if panics {
		panic(fmt.Sprintf("fake %s exploded", b.desc.Name))
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.closed {
		return errors.New("fake backend closed")
	}
	return err
}

func (b *FakeBackend) AddVector(ctx context.Context, rec store.Record) error {
	if err := b.before(ctx, "add:"+rec.ID); err != nil {
		return err
	}
	b.vectors[rec.ID] = store.ToFloat32(rec.Vector)
	return nil
}

func (b *FakeBackend) SearchVector(ctx context.Context, query []float64, k int) ([]store.Candidate, error) {
	if err := b.before(ctx, "search"); err != nil {
		return nil, err
	}
	c := b.scanner.Begin(query, k)
	for id, v := range b.vectors {
		c.Offer(id, v)
	}
	return c.Results(), nil
}

func (b *FakeBackend) GetStatus(ctx context.Context) (store.Status, error) {
	if err := b.before(ctx, "status"); err != nil {
		return nil, err
	}
	st := backend.BaseStatus(b.desc, b.fake.Scan)
	st["vector_count"] = len(b.vectors)
	return st, nil
}

func (b *FakeBackend) Close(context.Context) error {
	f := b.fake
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed[b.desc.Name]++
	b.closed = true
	return f.closeErr[b.desc.Name]
}
