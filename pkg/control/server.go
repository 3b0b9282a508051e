package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/small-frappuccino/activityboard/pkg/log"
)

// StatusSource reports live counters for the status endpoint.
type StatusSource interface {
	TrackedGuilds() int
	OpenVoiceSessions() int
}

// Server exposes a liveness endpoint for uptime monitors plus a small
// status report. All endpoints are read-only.
type Server struct {
	addr       string
	source     StatusSource
	httpServer *http.Server
	listener   net.Listener
	startedAt  time.Time
}

// NewServer returns nil if addr is empty, which disables the server.
func NewServer(addr string, source StatusSource) *Server {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	s := &Server{
		addr:   addr,
		source: source,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/v1/status", s.handleStatus)

	return s
}

// Start opens the listening socket.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("bind control server: %w", err)
	}
	s.listener = ln
	s.startedAt = time.Now()

	log.ApplicationLogger().Info("Control server listening", "addr", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ApplicationLogger().Error("Control server stopped unexpectedly", "err", err)
		}
	}()

	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound address, useful when addr was ":0".
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

type statusReport struct {
	UptimeSeconds     int64 `json:"uptime_seconds"`
	TrackedGuilds     int   `json:"tracked_guilds"`
	OpenVoiceSessions int   `json:"open_voice_sessions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report := statusReport{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if s.source != nil {
		report.TrackedGuilds = s.source.TrackedGuilds()
		report.OpenVoiceSessions = s.source.OpenVoiceSessions()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.ApplicationLogger().Error("Could not encode status report", "err", err)
	}
}
