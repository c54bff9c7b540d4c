// Package server exposes the task engine over HTTP: command submission,
// agent status, health, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/voxctl/voxctl/internal/agent"
	"github.com/voxctl/voxctl/internal/config"
	"github.com/voxctl/voxctl/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TaskEngine is the slice of the orchestrator the HTTP layer needs.
type TaskEngine interface {
	ProcessCommand(ctx context.Context, rawInput string) (agent.TaskResult, error)
	Busy() (string, bool)
}

type commandRequest struct {
	Text string `json:"text"`
}

type statusResponse struct {
	Busy   bool   `json:"busy"`
	TaskID string `json:"task_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter assembles the HTTP handler.
func NewRouter(engine TaskEngine, registry *prometheus.Registry, log *zap.Logger) http.Handler {
	if log == nil {
		log = observability.GetLogger().Named("server")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			taskID, busy := engine.Busy()
			writeJSON(w, http.StatusOK, statusResponse{Busy: busy, TaskID: taskID})
		})

		r.Post("/command", func(w http.ResponseWriter, req *http.Request) {
			var body commandRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Text == "" {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"text\": \"...\"}"})
				return
			}

			result, err := engine.ProcessCommand(req.Context(), body.Text)
			if err != nil {
				if errors.Is(err, agent.ErrAgentBusy) {
					writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
					return
				}
				log.Error("command failed", zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
				return
			}
			writeJSON(w, http.StatusOK, result)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server runs the HTTP front end with graceful shutdown.
type Server struct {
	cfg  config.ServerConfig
	log  *zap.Logger
	http *http.Server
}

// New builds the server around a prepared handler.
func New(cfg config.ServerConfig, handler http.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = observability.GetLogger().Named("server")
	}
	return &Server{
		cfg: cfg,
		log: log,
		http: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
