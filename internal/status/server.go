package status

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"laminar/internal/filter"
)

// Server is the read-only HTTP status endpoint the supervisor polls, plus
// Prometheus's /metrics. On the puller it additionally exposes a write
// route, /filter, so an operator can hot-swap the membership filter without
// a restart.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	cell       *Cell
	filter     *filter.Filter // nil on tx-iterator
}

// NewServer builds a status server bound to addr. filt may be nil: the
// /filter reload route is only registered when set (tx-puller only).
func NewServer(addr string, cell *Cell, filt *filter.Filter) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:    mux,
		cell:   cell,
		filter: filt,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/leader", s.handleLeader)
	s.mux.HandleFunc("/seqnum", s.handleSeqnum)
	s.mux.Handle("/metrics", promhttp.Handler())

	if s.filter != nil {
		s.mux.HandleFunc("/filter", s.handleFilterReload)
	}
}

func (s *Server) handleLeader(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%t", s.cell.IsLeader())
}

func (s *Server) handleSeqnum(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "%s", strconv.FormatUint(uint64(s.cell.NextFetchFromSeqnum()), 10))
}

// handleFilterReload accepts a serialized bloom filter (bloom.BloomFilter's
// own binary encoding) as the request body and swaps it in wholesale,
// atomically, without pausing the puller's in-flight classification.
func (s *Server) handleFilterReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bf := &bloom.BloomFilter{}
	n, err := bf.ReadFrom(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		http.Error(w, "failed to decode bloom filter body", http.StatusBadRequest)
		return
	}

	s.filter.Replace(bf)
	slog.Info("filter reload applied", "bytes_read", n)
	w.WriteHeader(http.StatusNoContent)
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() error {
	go func() {
		slog.Info("status server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("status server shutting down")
	return s.httpServer.Shutdown(ctx)
}
