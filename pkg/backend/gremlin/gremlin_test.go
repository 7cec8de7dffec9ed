package gremlin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovec/pkg/backend/backendtest"
	"github.com/marmos91/dittovec/pkg/store"
)

// fakeServer answers eval requests the way a Gremlin Server does: a 206
// partial frame followed by a final 200 frame. Scripts named "fail" get a 597
// and "stream" gets 500 partial frames before the final one.
func fakeServer(t *testing.T) (host string, port int) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gremlin" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage || len(data) == 0 {
				continue
			}
			n := int(data[0])
			if len(data) < 1+n || string(data[1:1+n]) != mimeType {
				continue
			}
			var req request
			if err := json.Unmarshal(data[1+n:], &req); err != nil {
				continue
			}

			script, _ := req.Args["gremlin"].(string)
			if script == "fail" {
				_ = conn.WriteJSON(map[string]any{
					"requestId": req.RequestID,
					"status":    map[string]any{"code": 597, "message": "script evaluation error"},
					"result":    map[string]any{"data": nil},
				})
				continue
			}
			partials := 1
			if script == "stream" {
				partials = 500
			}
			for range partials {
				_ = conn.WriteJSON(map[string]any{
					"requestId": req.RequestID,
					"status":    map[string]any{"code": 206},
					"result":    map[string]any{"data": []int{1}},
				})
			}
			_ = conn.WriteJSON(map[string]any{
				"requestId": req.RequestID,
				"status":    map[string]any{"code": 200},
				"result":    map[string]any{"data": []int{42}},
			})
		}
	}))
	t.Cleanup(srv.Close)

	h, p, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port
}

func openStore(t *testing.T, extra map[string]any) *Store {
	t.Helper()
	host, port := fakeServer(t)
	cfg := map[string]any{"host": host, "port": port, "ping_timeout": "2s"}
	for k, v := range extra {
		cfg[k] = v
	}
	b := backendtest.Open(t, Adapter{}, store.Descriptor{
		Name: "g1", Category: store.CategoryGraph, Kind: Kind, Config: cfg, Enabled: true,
	})
	return b.(*Store)
}

func TestURL(t *testing.T) {
	cfg, err := store.LoadConfig[Config](map[string]any{"host": "janus"})
	require.NoError(t, err)
	assert.Equal(t, "ws://janus:8182/gremlin", cfg.URL())

	cfg.TLS = true
	assert.Equal(t, "wss://janus:8182/gremlin", cfg.URL())
}

func TestStatusOnly(t *testing.T) {
	a := Adapter{}
	assert.Equal(t, []store.Capability{store.CapGetStatus}, a.Capabilities())
	assert.False(t, store.Supports(a, store.CapSearchVector))

	s := openStore(t, nil)
	_, isWriter := any(s).(store.VectorWriter)
	assert.False(t, isWriter)
}

func TestPing(t *testing.T) {
	s := openStore(t, nil)
	rtt, err := s.Ping(t.Context())
	require.NoError(t, err)
	assert.Less(t, rtt, 2*time.Second)
}

func TestEval(t *testing.T) {
	s := openStore(t, nil)

	data, err := s.Eval(t.Context(), "g.V().count()")
	require.NoError(t, err)
	assert.JSONEq(t, "[42]", string(data))

	_, err = s.Eval(t.Context(), "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "597")
}

func TestRouteDropsFramesForAbandonedRequest(t *testing.T) {
	s := openStore(t, nil)

	w := &waiter{ch: make(chan response, 4), gone: make(chan struct{})}
	s.mu.Lock()
	s.pending["r1"] = w
	s.mu.Unlock()

	partial := response{RequestID: "r1"}
	partial.Status.Code = 206
	for range cap(w.ch) {
		s.route(partial)
	}
	close(w.gone)

	routed := make(chan struct{})
	go func() {
		s.route(partial)
		close(routed)
	}()
	select {
	case <-routed:
	case <-time.After(2 * time.Second):
		t.Fatal("route blocked on a request whose caller returned")
	}
}

func TestCancelledStreamDoesNotStallConnection(t *testing.T) {
	s := openStore(t, nil)

	for range 5 {
		ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
		_, _ = s.Eval(ctx, "stream")
		cancel()
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	data, err := s.Eval(ctx, "g.V().count()")
	require.NoError(t, err)
	assert.JSONEq(t, "[42]", string(data))
}

func TestGetStatus(t *testing.T) {
	s := openStore(t, map[string]any{"status_query": "g.V().limit(1).count()"})

	st, err := s.GetStatus(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Kind, st["type"])
	assert.Equal(t, "graph", st["category"])
	assert.Equal(t, "Connected", st["status"])
	assert.Contains(t, st, "ping_ms")
	assert.Equal(t, []any{float64(42)}, st["status_result"])
}

func TestClosedConnection(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, s.Close(t.Context()))

	_, err := s.Eval(t.Context(), "g.V()")
	assert.Error(t, err)
}

func TestOpenUnreachable(t *testing.T) {
	_, err := Adapter{}.Open(t.Context(), store.Descriptor{
		Name: "g2", Category: store.CategoryGraph, Kind: Kind,
		Config: map[string]any{"host": "127.0.0.1", "port": 1, "handshake_timeout": "200ms"},
	})
	assert.Error(t, err)
}
