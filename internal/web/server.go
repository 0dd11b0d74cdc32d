package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/metrics"
	"github.com/vadiminshakov/arbiter/internal/services/arbitrage"
)

const (
	recordPollInterval = 2 * time.Second
	heartbeatInterval  = 30 * time.Second
)

type profitReader interface {
	RecordsAfter(index uint64) ([]domain.ProfitRecordEntry, error)
}

type statusSource interface {
	Status() arbitrage.Status
}

type statusFeed interface {
	Subscribe() chan arbitrage.Status
	Unsubscribe(ch chan arbitrage.Status)
}

// Server exposes health, engine status, a profit SSE stream and Prometheus metrics.
type Server struct {
	Addr     string
	Ledger   profitReader
	Engine   statusSource
	Updates  statusFeed
	Gatherer prometheus.Gatherer

	l            *zap.Logger
	pollInterval time.Duration
}

// NewServer creates a new status server instance.
func NewServer(l *zap.Logger, addr string, ledger profitReader, engine statusSource) *Server {
	return &Server{
		Addr:         addr,
		Ledger:       ledger,
		Engine:       engine,
		Gatherer:     prometheus.DefaultGatherer,
		l:            l,
		pollInterval: recordPollInterval,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/status/stream", s.handleStatusStream)
	mux.HandleFunc("/profits/stream", s.handleProfitStream)
	mux.Handle("/metrics", metrics.Handler(s.Gatherer))
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("status server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.Engine == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Engine.Status()); err != nil {
		s.l.Warn("failed to encode status", zap.Error(err))
	}
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	if s.Updates == nil {
		http.Error(w, "status updates not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.Updates.Subscribe()
	defer s.Updates.Unsubscribe(ch)

	setStreamHeaders(w)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	if s.Engine != nil {
		writeEvent(w, "status", s.Engine.Status(), s.l)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case st, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, "status", st, s.l)
			flusher.Flush()
		}
	}
}

func (s *Server) handleProfitStream(w http.ResponseWriter, r *http.Request) {
	if s.Ledger == nil {
		http.Error(w, "profit ledger not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	setStreamHeaders(w)

	// comment heartbeat keeps proxies from closing the connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendRecords := func() error {
		entries, err := s.Ledger.RecordsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry.Record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", entry.Index)
			fmt.Fprintf(w, "event: profit\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			lastIndex = entry.Index
		}
		flusher.Flush()
		return nil
	}

	if err := sendRecords(); err != nil {
		http.Error(w, "failed to load profit records", http.StatusInternalServerError)
		s.l.Error("profit stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendRecords(); err != nil {
				s.l.Warn("profit stream poll", zap.Error(err))
			}
		}
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeEvent(w http.ResponseWriter, event string, v any, l *zap.Logger) {
	payload, err := json.Marshal(v)
	if err != nil {
		l.Warn("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Arbiter</title>
  <style>
    body { font-family:'Space Mono',monospace; margin:2rem; color:#111; }
    pre { background:#f6f6f6; border:2px solid #111; padding:1rem; }
    table { border-collapse:collapse; width:100%; }
    td, th { border-bottom:1px dashed #9c9c9c; padding:.3rem .6rem; text-align:left; font-size:.8rem; }
  </style>
</head>
<body>
  <h1>Arbiter</h1>
  <pre id="status">loading...</pre>
  <table>
    <thead><tr><th>cycle</th><th>time</th><th>side</th><th>kind</th><th>profit</th></tr></thead>
    <tbody id="profits"></tbody>
  </table>
  <script>
    const status = new EventSource('/status/stream');
    status.addEventListener('status', (e) => {
      document.getElementById('status').textContent = JSON.stringify(JSON.parse(e.data), null, 2);
    });

    const source = new EventSource('/profits/stream');
    source.addEventListener('profit', (e) => {
      const r = JSON.parse(e.data);
      const row = document.createElement('tr');
      row.innerHTML = '<td>' + r.seq + '</td><td>' + r.ts + '</td><td>' + r.side + '</td><td>' + r.kind +
        '</td><td>' + r.profit + ' ' + r.currency + (r.simulated ? ' (sim)' : '') + '</td>';
      document.getElementById('profits').prepend(row);
    });
  </script>
</body>
</html>`
