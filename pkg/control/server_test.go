package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type fakeSource struct {
	guilds   int
	sessions int
}

func (f *fakeSource) TrackedGuilds() int     { return f.guilds }
func (f *fakeSource) OpenVoiceSessions() int { return f.sessions }

func startTestServer(t *testing.T, source StatusSource) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", source)
	if s == nil {
		t.Fatal("NewServer returned nil for a valid addr")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestNewServerDisabledWithoutAddr(t *testing.T) {
	if s := NewServer("  ", nil); s != nil {
		t.Fatal("expected nil server for blank addr")
	}
	// Nil receivers must be safe so callers can skip the nil check.
	var s *Server
	if err := s.Start(); err != nil {
		t.Fatalf("nil Start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("nil Stop: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	s := startTestServer(t, nil)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("body = %q", body)
	}
}

func TestStatusReport(t *testing.T) {
	s := startTestServer(t, &fakeSource{guilds: 3, sessions: 7})

	resp, err := http.Get("http://" + s.Addr() + "/v1/status")
	if err != nil {
		t.Fatalf("GET /v1/status: %v", err)
	}
	defer resp.Body.Close()

	var report struct {
		UptimeSeconds     int64 `json:"uptime_seconds"`
		TrackedGuilds     int   `json:"tracked_guilds"`
		OpenVoiceSessions int   `json:"open_voice_sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.TrackedGuilds != 3 || report.OpenVoiceSessions != 7 {
		t.Fatalf("report = %+v", report)
	}
}

func TestStatusRejectsPost(t *testing.T) {
	s := startTestServer(t, nil)

	resp, err := http.Post("http://"+s.Addr()+"/v1/status", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /v1/status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
