package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/marmos91/dittovec/internal/httpserver"
	"github.com/marmos91/dittovec/pkg/config"
	"github.com/marmos91/dittovec/pkg/orchestrator"
)

// Server serves the REST API. Routes are listed on NewRouter.
type Server struct {
	*httpserver.Server
	port int
}

// NewServer builds a stopped server. Defaults are applied again so a
// hand-built APIConfig behaves like a loaded one.
func NewServer(cfg config.APIConfig, orch *orchestrator.Orchestrator) *Server {
	cfg.ApplyDefaults()
	srv := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:      NewRouter(orch, cfg.RequestTimeout),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return &Server{Server: httpserver.New("API", srv), port: cfg.Port}
}

// Port returns the configured TCP port.
func (s *Server) Port() int { return s.port }
