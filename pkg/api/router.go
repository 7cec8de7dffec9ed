package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/marmos91/dittovec/internal/logger"
	"github.com/marmos91/dittovec/pkg/api/handlers"
	"github.com/marmos91/dittovec/pkg/orchestrator"
)

// NewRouter creates the chi router with its middleware and routes.
//
// Middleware: request id, real IP, incoming W3C trace context, request
// logging, panic recovery and a per-request timeout.
//
// Routes:
//   - GET  /health                        liveness
//   - GET  /health/ready                  readiness (no store Failed)
//   - GET  /health/stores                 probe snapshot and connection states
//   - GET  /api/v1/stores?category=       configured stores
//   - POST /api/v1/stores/{name}/reinit   reopen one store
//   - GET  /api/v1/status?stores=         status fan-out
//   - POST /api/v1/vectors                add fan-out
//   - POST /api/v1/search                 per-store or federated search
//   - POST /api/v1/distance               distance between two vectors
func NewRouter(orch *orchestrator.Orchestrator, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceContext)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	healthHandler := handlers.NewHealthHandler(orch)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/distance", handlers.Distance)
		if orch == nil {
			return
		}

		storeHandler := handlers.NewStoreHandler(orch)
		r.Get("/stores", storeHandler.List)
		r.Post("/stores/{name}/reinit", storeHandler.Reinit)

		vectorHandler := handlers.NewVectorHandler(orch)
		r.Get("/status", vectorHandler.Status)
		r.Post("/vectors", vectorHandler.Add)
		r.Post("/search", vectorHandler.Search)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// traceContext continues a trace started by the caller, so execute and
// store spans become children of the caller's span.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger attaches a log context carrying the chi request id and the
// caller address, then logs the completed request. Server errors log at WARN.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lc := logger.NewLogContext(middleware.GetReqID(r.Context())).WithRemoteAddr(r.RemoteAddr)
		ctx := logger.WithContext(r.Context(), lc)
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		}
		if ww.Status() >= http.StatusInternalServerError {
			logger.WarnCtx(ctx, "API request failed", args...)
			return
		}
		logger.InfoCtx(ctx, "API request completed", args...)
	})
}
