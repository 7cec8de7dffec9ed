// Package gremlin connects graph stores served by a Gremlin Server (JanusGraph,
// TinkerGraph, Neptune) over its WebSocket protocol.
//
// Graph stores take part in status fan-out only; they hold no vectors. Status
// measures a ping round trip and, when configured, evaluates a cheap script.
package gremlin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marmos91/dittovec/pkg/backend"
	"github.com/marmos91/dittovec/pkg/store"
)

// Kind is the config name of this backend.
const Kind = "gremlin"

// mimeType prefixes every binary request frame.
const mimeType = "application/vnd.gremlin-v3.0+json"

var errClosed = errors.New("gremlin connection closed")

// Config holds the gremlin kind tunables.
type Config struct {
	Host             string        `mapstructure:"host" validate:"required"`
	Port             int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Path             string        `mapstructure:"path"`
	TLS              bool          `mapstructure:"tls"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout"`

	// StatusQuery is evaluated by GetStatus when set, e.g. "g.V().limit(1).count()".
	StatusQuery string `mapstructure:"status_query"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8182
	}
	if c.Path == "" {
		c.Path = "/gremlin"
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 5 * time.Second
	}
}

// URL returns the WebSocket endpoint.
func (c *Config) URL() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: c.Host + ":" + strconv.Itoa(c.Port), Path: c.Path}
	return u.String()
}

// Adapter opens gremlin stores.
type Adapter struct{}

func (Adapter) Kind() string                     { return Kind }
func (Adapter) Categories() []store.Category     { return []store.Category{store.CategoryGraph} }
func (Adapter) Capabilities() []store.Capability { return []store.Capability{store.CapGetStatus} }
func (Adapter) FullScan() bool                   { return false }

func (Adapter) ValidateConfig(raw map[string]any) error {
	_, err := store.LoadConfig[Config](raw)
	return err
}

func (Adapter) Open(ctx context.Context, desc store.Descriptor) (store.Backend, error) {
	cfg, err := store.LoadConfig[Config](desc.Config)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gremlin server %s: %w", cfg.URL(), err)
	}

	s := &Store{
		desc:    desc,
		cfg:     cfg,
		conn:    conn,
		pongs:   make(chan struct{}, 1),
		pending: make(map[string]*waiter),
		done:    make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		select {
		case s.pongs <- struct{}{}:
		default:
		}
		return nil
	})
	go s.readLoop()
	return s, nil
}

// Store is an open gremlin backend.
type Store struct {
	desc store.Descriptor
	cfg  *Config
	conn *websocket.Conn

	writeMu sync.Mutex
	pongs   chan struct{}

	mu      sync.Mutex
	pending map[string]*waiter
	readErr error
	done    chan struct{}
}

// waiter is one in-flight request. gone closes when the caller stops reading.
type waiter struct {
	ch   chan response
	gone chan struct{}
}

type request struct {
	RequestID string         `json:"requestId"`
	Op        string         `json:"op"`
	Processor string         `json:"processor"`
	Args      map[string]any `json:"args"`
}

type response struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Result struct {
		Data json.RawMessage `json:"data"`
	} `json:"result"`
}

// readLoop routes responses to waiting requests. Reading also drives the
// pong handler.
func (s *Store) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			for id, w := range s.pending {
				close(w.ch)
				delete(s.pending, id)
			}
			s.mu.Unlock()
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		s.route(resp)
	}
}

// route hands resp to its waiter. A final frame retires the request. Frames for
// a caller that already returned are dropped.
func (s *Store) route(resp response) {
	s.mu.Lock()
	w, ok := s.pending[resp.RequestID]
	if ok && resp.Status.Code != 206 {
		delete(s.pending, resp.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case w.ch <- resp:
	case <-w.gone:
	}
}

// Ping sends a WebSocket ping and waits for the pong.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	// drop a stale pong from an earlier timed-out ping
	select {
	case <-s.pongs:
	default:
	}

	start := time.Now()
	s.writeMu.Lock()
	err := s.conn.WriteControl(websocket.PingMessage, nil, start.Add(s.cfg.PingTimeout))
	s.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("gremlin ping: %w", err)
	}

	timer := time.NewTimer(s.cfg.PingTimeout)
	defer timer.Stop()
	select {
	case <-s.pongs:
		return time.Since(start), nil
	case <-s.done:
		return 0, errClosed
	case <-timer.C:
		return 0, fmt.Errorf("gremlin ping: no pong within %s", s.cfg.PingTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Eval submits a script and returns the raw result data of the final frame.
func (s *Store) Eval(ctx context.Context, script string) (json.RawMessage, error) {
	req := request{
		RequestID: uuid.NewString(),
		Op:        "eval",
		Args:      map[string]any{"gremlin": script, "language": "gremlin-groovy"},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	frame := append([]byte{byte(len(mimeType))}, mimeType...)
	frame = append(frame, body...)

	w := &waiter{ch: make(chan response, 4), gone: make(chan struct{})}
	s.mu.Lock()
	if s.readErr != nil {
		s.mu.Unlock()
		return nil, errClosed
	}
	s.pending[req.RequestID] = w
	s.mu.Unlock()
	defer close(w.gone)

	s.writeMu.Lock()
	err = s.conn.WriteMessage(websocket.BinaryMessage, frame)
	s.writeMu.Unlock()
	if err != nil {
		s.forget(req.RequestID)
		return nil, fmt.Errorf("gremlin submit: %w", err)
	}

	for {
		select {
		case resp, ok := <-w.ch:
			if !ok {
				return nil, errClosed
			}
			switch {
			case resp.Status.Code == 206:
				continue
			case resp.Status.Code >= 200 && resp.Status.Code < 300:
				return resp.Result.Data, nil
			default:
				return nil, fmt.Errorf("gremlin error %d: %s", resp.Status.Code, resp.Status.Message)
			}
		case <-ctx.Done():
			s.forget(req.RequestID)
			return nil, ctx.Err()
		}
	}
}

func (s *Store) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// GetStatus reports the ping latency and, if configured, the status query result.
func (s *Store) GetStatus(ctx context.Context) (store.Status, error) {
	rtt, err := s.Ping(ctx)
	if err != nil {
		return nil, err
	}

	st := backend.BaseStatus(s.desc, false)
	st["host"] = s.cfg.Host
	st["port"] = s.cfg.Port
	st["url"] = s.cfg.URL()
	st["ping_ms"] = float64(rtt.Microseconds()) / 1000

	if s.cfg.StatusQuery != "" {
		data, err := s.Eval(ctx, s.cfg.StatusQuery)
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			v = string(data)
		}
		st["status_query"] = s.cfg.StatusQuery
		st["status_result"] = v
	}
	return st, nil
}

// Close sends a close frame and waits for the read loop to exit.
func (s *Store) Close(ctx context.Context) error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	err := s.conn.Close()
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}
