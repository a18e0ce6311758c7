package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hookdeploy/events"
	"hookdeploy/runner"
	"hookdeploy/runner/storage"
	"hookdeploy/signature"
)

// Server holds the dependencies of the HTTP surface.
type Server struct {
	Service  *runner.Service
	Resolver runner.Resolver
	Verifier *signature.Verifier
	Sink     *runner.LogSink
	Store    *storage.Storage // optional; history endpoints are disabled without it
	Broker   *events.EventBroker
	Metrics  *Metrics
	Logger   *slog.Logger

	// PublicURL prefixes log URLs. When empty the request host is used.
	PublicURL string
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, s.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"live_jobs": s.Service.Registry.LiveCount(),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Post("/webhook", Webhook(s, logger))
	r.Get("/logs/*", GetLog(s.Sink, logger))

	r.Route("/api", func(r chi.Router) {
		r.Use(cors)
		if s.Store != nil {
			r.Get("/deployments", GetDeployments(s.Store))
			r.Get("/deployments/{id}", GetDeployment(s.Store))
			r.Get("/projects/{name}/deployments", GetProjectDeployments(s.Store))
		}
		r.Get("/projects", GetProjects(s.Resolver.Projects, s.Service.Registry, s.Store))
		r.Get("/jobs", GetLiveJobs(s.Service.Registry))
		if s.Broker != nil {
			r.Get("/events", SSEHandler(s.Broker))
		}
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request and feeds the HTTP metrics.
func requestLogger(logger *slog.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			metrics.recordRequest(r.Method, route, status, elapsed)
			logger.Info("http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", elapsed.String(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		})
	}
}
