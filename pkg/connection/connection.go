// Package connection manages one lazily opened backend handle per enabled
// store.
//
// A Connection moves through Uninitialized -> Connecting -> Connected | Failed.
// Concurrent first acquires share a single open attempt. A Failed connection
// stays failed until an explicit Reinit; nothing retries on its own.
package connection

import (
	"sync"
	"time"

	"github.com/marmos91/dittovec/pkg/store"
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// attempt is a single-assignment result shared by every caller waiting on
// one open. err is written before done is closed.
type attempt struct {
	done chan struct{}
	err  error
}

// Connection pairs a descriptor with its backend handle.
type Connection struct {
	desc    store.Descriptor
	adapter store.Adapter

	// callMu serialises use of the backend handle. Lock order: callMu, then mu.
	callMu sync.Mutex

	mu      sync.Mutex
	state   State
	backend store.Backend
	lastErr error
	since   time.Time
	pending *attempt
	opens   int
}

func newConnection(desc store.Descriptor, adapter store.Adapter) *Connection {
	return &Connection{desc: desc, adapter: adapter, since: time.Now()}
}

// Name returns the store name.
func (c *Connection) Name() string { return c.desc.Name }

// Descriptor returns the store descriptor.
func (c *Connection) Descriptor() store.Descriptor { return c.desc }

// Adapter returns the adapter serving this store's kind.
func (c *Connection) Adapter() store.Adapter { return c.adapter }

// State returns the current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Do runs fn with exclusive use of the backend handle. The handle must not be
// retained after fn returns.
func (c *Connection) Do(fn func(store.Backend) error) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.mu.Lock()
	b := c.backend
	c.mu.Unlock()
	if b == nil {
		return store.NewStoreUnavailableError(c.desc.Name, "connection not open", nil)
	}
	return fn(b)
}

// Info is a point-in-time view of a Connection.
type Info struct {
	Name      string         `json:"name" yaml:"name"`
	Kind      string         `json:"kind" yaml:"kind"`
	Category  store.Category `json:"category" yaml:"category"`
	State     string         `json:"state" yaml:"state"`
	LastError string         `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Since     time.Time      `json:"since" yaml:"since"`
	Opens     int            `json:"opens" yaml:"opens"`
}

func (c *Connection) info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	inf := Info{
		Name:     c.desc.Name,
		Kind:     c.desc.Kind,
		Category: c.desc.Category,
		State:    c.state.String(),
		Since:    c.since,
		Opens:    c.opens,
	}
	if c.lastErr != nil {
		inf.LastError = c.lastErr.Error()
	}
	return inf
}
