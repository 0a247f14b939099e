package monitoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ModuleStats is one module's state-map sizes as reported by /stats.
type ModuleStats struct {
	Module           string `json:"module"`
	RatelimitEntries int    `json:"ratelimitEntries"`
	BlocklistEntries int    `json:"blocklistEntries"`
}

// StatsSource is implemented by the push registry.
type StatsSource interface {
	ModuleStats() []ModuleStats
}

// Server is the operational HTTP listener: /health, /stats, /metrics.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, source StatsSource, gatherer prometheus.Gatherer) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := source.ModuleStats()
		modules := make([]string, 0, len(stats))
		for _, s := range stats {
			modules = append(modules, s.Module)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"modules": modules,
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(source.ModuleStats())
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Start runs the listener in the background.
func (s *Server) Start() {
	go func() {
		slog.Info("ops server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server failed", "error", err)
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
