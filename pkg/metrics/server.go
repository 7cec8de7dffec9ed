package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittovec/internal/httpserver"
)

// Server exposes a registry on /metrics.
type Server struct {
	*httpserver.Server
	port int
}

// NewServer builds a stopped metrics server for reg.
func NewServer(port int, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{Server: httpserver.New("Metrics", srv), port: port}
}

func (s *Server) Port() int { return s.port }
