package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/devzero-inc/cephfs-exporter/internal/scrape"
)

// Scraper refreshes gauge state before it is exposed.
type Scraper interface {
	Scrape(ctx context.Context) scrape.Report
}

// Server serves the metrics endpoint and the kubelet probes.
type Server struct {
	scraper  Scraper
	gatherer prometheus.Gatherer
	ready    func() bool
	logger   logr.Logger
	format   expfmt.Format
}

// New creates a Server. ready gates /startup; nil means always ready.
func New(scraper Scraper, gatherer prometheus.Gatherer, ready func() bool, logger logr.Logger) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{
		scraper:  scraper,
		gatherer: gatherer,
		ready:    ready,
		logger:   logger.WithName("http"),
		format:   expfmt.NewFormat(expfmt.TypeOpenMetrics),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/metrics", http.StatusFound)
	})
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /liveness", s.handleHealth)
	mux.HandleFunc("GET /startup", s.handleStartup)
	return mux
}

// handleMetrics runs one scrape and writes the gathered families as
// OpenMetrics text. Partial failures still produce a 200.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	report := s.scraper.Scrape(r.Context())
	if failed := report.Failed(); failed > 0 {
		s.logger.V(1).Info("Scrape completed with failed targets", "failed", failed, "targets", len(report.Results))
	}

	families, err := s.gatherer.Gather()
	if err != nil {
		// Gather still returns every family it could collect.
		s.logger.Error(err, "Error gathering metrics")
	}

	w.Header().Set("Content-Type", string(s.format))
	enc := expfmt.NewEncoder(w, s.format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			s.logger.Error(err, "Failed to encode metric family", "family", mf.GetName())
			return
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error(err, "Failed to finalize metrics response")
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeState(w, http.StatusOK, "OK")
}

func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		writeState(w, http.StatusServiceUnavailable, "STARTING")
		return
	}
	writeState(w, http.StatusOK, "OK")
}

func writeState(w http.ResponseWriter, code int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"state": state})
}
