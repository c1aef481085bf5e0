package server

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/config"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/display"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/metrics"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/session"
)

// syncBuffer is a mutex-guarded output sink so tests can read it while the
// server is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T) (*WSServer, *syncBuffer) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.BindAddress = "127.0.0.1"
	cfg.Server.Port = 0 // pick a free port

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	out := &syncBuffer{}
	renderer := display.NewRenderer(out, display.Options{})
	sessions := session.NewManager(logger)
	m := metrics.NewMetrics(prometheus.NewRegistry())

	srv := NewWSServer(&cfg.Server, logger, renderer, sessions, m)
	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	return srv, out
}

func dial(t *testing.T, srv *WSServer) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/", nil)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor polls the output sink until the expected substring shows up.
func waitFor(t *testing.T, out *syncBuffer, substr string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for output to contain %q, got:\n%s", substr, out.String())
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

func TestServerMessageFlow(t *testing.T) {
	srv, out := newTestServer(t)
	conn := dial(t, srv)

	waitFor(t, out, "Extension connected from")

	send(t, conn, `{"type":"connected","version":"1.2.3","timestamp":1700000000000}`)
	waitFor(t, out, "Extension version: 1.2.3")
	waitFor(t, out, "Waiting for subtitles...")

	send(t, conn, `{"type":"subtitle","subtitle":{"lines":[{"text":"a","track":0},{"text":"b","track":1}]},"video":{"currentTime":65}}`)
	waitFor(t, out, "[01:05] 2 subtitle track(s):")
	waitFor(t, out, "Track 0: a")
	waitFor(t, out, "Track 1: b")

	send(t, conn, `{"type":"subtitle","subtitle":{"text":"hello"},"video":{"currentTime":5}}`)
	waitFor(t, out, "[00:05] hello")

	send(t, conn, `{"type":"disconnected","timestamp":1700000000000}`)
	waitFor(t, out, "Extension disconnected at:")
}

func TestServerSurvivesMalformedFrame(t *testing.T) {
	srv, out := newTestServer(t)
	conn := dial(t, srv)

	waitFor(t, out, "Extension connected from")

	// Malformed frame must not terminate the connection.
	send(t, conn, `this is not json`)

	// A valid frame afterwards proves the connection is still being read.
	send(t, conn, `{"type":"subtitle","subtitle":{"text":"still alive"},"video":{"currentTime":0}}`)
	waitFor(t, out, "[00:00] still alive")

	stats := srv.GetStatistics()
	if stats.DecodeErrors != 1 {
		t.Errorf("Expected 1 decode error, got %d", stats.DecodeErrors)
	}
}

func TestServerUnknownType(t *testing.T) {
	srv, out := newTestServer(t)
	conn := dial(t, srv)

	waitFor(t, out, "Extension connected from")

	send(t, conn, `{"type":"telemetry"}`)
	waitFor(t, out, "Unknown message type: telemetry")

	send(t, conn, `{"version":"no type tag"}`)
	waitFor(t, out, "Unknown message type: unknown")

	stats := srv.GetStatistics()
	if stats.UnknownTypes != 2 {
		t.Errorf("Expected 2 unknown types, got %d", stats.UnknownTypes)
	}
}

func TestServerHeartbeatIsSilent(t *testing.T) {
	srv, out := newTestServer(t)
	conn := dial(t, srv)

	waitFor(t, out, "Extension connected from")

	send(t, conn, `{"type":"heartbeat"}`)
	// Follow with a visible message so we know the heartbeat was consumed.
	send(t, conn, `{"type":"subtitle","subtitle":{"text":"after heartbeat"},"video":{"currentTime":0}}`)
	waitFor(t, out, "after heartbeat")

	if strings.Contains(out.String(), "Heartbeat") {
		t.Errorf("Expected heartbeat to be silent, got:\n%s", out.String())
	}
	if srv.GetStatistics().MessagesProcessed < 2 {
		t.Errorf("Expected heartbeat to count as processed, stats: %+v", srv.GetStatistics())
	}
}

func TestServerSequentialReconnect(t *testing.T) {
	srv, out := newTestServer(t)

	first := dial(t, srv)
	waitFor(t, out, "Extension connected from")
	first.Close()
	waitFor(t, out, "Extension disconnected from")

	second := dial(t, srv)
	defer second.Close()
	send(t, second, `{"type":"subtitle","subtitle":{"text":"second life"},"video":{"currentTime":0}}`)
	waitFor(t, out, "second life")

	if got := strings.Count(out.String(), "Extension connected from"); got != 2 {
		t.Errorf("Expected 2 connection banners, got %d", got)
	}
}

func TestServerBindFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	// A second server on the same port must fail to bind, synchronously.
	cfg := config.Default()
	cfg.Server.BindAddress = "127.0.0.1"

	addr := srv.Addr()
	port, err := strconv.Atoi(addr[strings.LastIndex(addr, ":")+1:])
	if err != nil {
		t.Fatalf("Failed to parse port from %q: %v", addr, err)
	}
	cfg.Server.Port = port

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	dup := NewWSServer(&cfg.Server, logger,
		display.NewRenderer(&syncBuffer{}, display.Options{}),
		session.NewManager(logger),
		metrics.NewMetrics(prometheus.NewRegistry()))

	if err := dup.Start(); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dup.Stop(ctx)
		t.Fatal("Expected bind failure on occupied port")
	}
}
