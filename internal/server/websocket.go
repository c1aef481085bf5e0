package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/config"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/display"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/metrics"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/protocol"
	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/session"
)

// WSServer accepts extension connections and feeds every received frame
// through decode, classification and rendering.
type WSServer struct {
	config   *config.ServerConfig
	logger   *slog.Logger
	renderer *display.Renderer
	sessions *session.Manager
	metrics  *metrics.Metrics

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Connection tracking and counters
	mu                sync.RWMutex
	conns             map[*websocket.Conn]struct{}
	messagesReceived  uint64
	messagesProcessed uint64
	decodeErrors      uint64
	unknownTypes      uint64
}

// NewWSServer creates a new WebSocket server instance.
func NewWSServer(cfg *config.ServerConfig, logger *slog.Logger, renderer *display.Renderer,
	sessions *session.Manager, m *metrics.Metrics) *WSServer {

	ctx, cancel := context.WithCancel(context.Background())

	return &WSServer{
		config:   cfg,
		logger:   logger,
		renderer: renderer,
		sessions: sessions,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize: cfg.ReadBufferSize,
			// The extension connects from a browser origin, not from this host.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Start binds the listen address and begins accepting connections. Bind
// failures are returned synchronously so startup can abort with a clear
// error; everything after a successful bind runs in the background.
func (s *WSServer) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr(), err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	s.httpSrv = &http.Server{Handler: mux}

	s.logger.Info("WebSocket server started",
		slog.String("address", ln.Addr().String()),
		slog.String("path", s.config.Path),
	)
	s.renderer.ServerReady(ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the server: the listener is closed first, then all
// open connections are told to close and the handlers are waited for.
func (s *WSServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping WebSocket server...")

	s.cancel()

	s.mu.Lock()
	for conn := range s.conns {
		// Best effort close frame; the read loop unblocks either way when
		// the connection is closed underneath it.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.mu.Unlock()

	err := s.httpSrv.Shutdown(ctx)
	s.wg.Wait()

	stats := s.GetStatistics()
	s.logger.Info("WebSocket server stopped",
		slog.Uint64("messages_received", stats.MessagesReceived),
		slog.Uint64("messages_processed", stats.MessagesProcessed),
		slog.Uint64("decode_errors", stats.DecodeErrors),
		slog.Uint64("unknown_types", stats.UnknownTypes),
	)

	return err
}

// Addr returns the bound listen address, useful when the configured port is 0.
func (s *WSServer) Addr() string {
	if s.listener == nil {
		return s.config.ListenAddr()
	}
	return s.listener.Addr().String()
}

// handleUpgrade upgrades one HTTP request to a WebSocket connection and runs
// its read loop. Each connection gets its own handler goroutine with no
// shared mutable state; the renderer serializes writes to the output sink.
func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	// Upgraded connections are hijacked from the HTTP server, so Shutdown
	// will not wait for them; the WaitGroup does.
	s.wg.Add(1)
	defer s.wg.Done()

	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}
	// No server-initiated pings and no read deadline: the extension sends
	// an application-level heartbeat message every ~30s, so transport-level
	// idle probing would be redundant and could conflict with its timing.

	remote := conn.RemoteAddr().String()
	sess := s.sessions.Add(remote)
	s.metrics.RecordConnectionOpened()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("Client connected", slog.String("remote_addr", remote))
	s.renderer.ClientConnected(remote)

	s.readLoop(conn, sess, remote)

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	duration, _ := s.sessions.Remove(sess.ID)
	s.metrics.RecordConnectionClosed(duration.Seconds())

	s.logger.Info("Client disconnected",
		slog.String("remote_addr", remote),
		slog.Duration("duration", duration),
	)
	s.renderer.ClientDisconnected(remote)
}

// readLoop reads frames in arrival order until the connection closes. Each
// frame is fully handled before the next read, so output order always
// matches arrival order.
func (s *WSServer) readLoop(conn *websocket.Conn, sess *session.Session, remote string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Warn("Connection closed unexpectedly",
					slog.String("remote_addr", remote),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		s.handleFrame(data, sess, remote)
	}
}

// handleFrame decodes one frame, classifies it and renders the result.
// Per-message failures never terminate the connection: malformed frames and
// unknown type tags are logged and the loop continues with the next frame.
func (s *WSServer) handleFrame(data []byte, sess *session.Session, remote string) {
	s.mu.Lock()
	s.messagesReceived++
	s.mu.Unlock()

	msg, err := protocol.Decode(data)
	if err != nil {
		s.mu.Lock()
		s.decodeErrors++
		s.mu.Unlock()
		s.metrics.RecordDecodeError()

		s.logger.Warn("Failed to decode frame",
			slog.String("remote_addr", remote),
			slog.Int("frame_size", len(data)),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.messagesProcessed++
	s.mu.Unlock()
	s.metrics.RecordMessage(msg.Type)
	sess.Record(msg)

	switch msg.Type {
	case protocol.TypeConnected:
		s.logger.Debug("Extension handshake",
			slog.String("remote_addr", remote),
			slog.String("version", msg.Connected.Version),
		)
		s.renderer.Connected(msg.Connected)

	case protocol.TypeSubtitle:
		lines := len(msg.Subtitle.Lines)
		if lines == 0 {
			lines = 1 // legacy single-text form renders one line
		}
		s.metrics.RecordSubtitleLines(lines)
		s.renderer.Subtitle(msg.Subtitle)

	case protocol.TypeHeartbeat:
		s.metrics.RecordHeartbeat()
		s.renderer.Heartbeat()

	case protocol.TypeDisconnected:
		s.renderer.Disconnected(msg.Disconnected)

	default:
		s.mu.Lock()
		s.unknownTypes++
		s.mu.Unlock()
		s.metrics.RecordUnknownType()

		s.logger.Warn("Unknown message type",
			slog.String("remote_addr", remote),
			slog.String("type", msg.Type),
		)
		s.renderer.UnknownType(msg.Type)
	}
}

// GetStatistics returns current server statistics.
func (s *WSServer) GetStatistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Statistics{
		MessagesReceived:  s.messagesReceived,
		MessagesProcessed: s.messagesProcessed,
		DecodeErrors:      s.decodeErrors,
		UnknownTypes:      s.unknownTypes,
		ActiveConnections: uint64(len(s.conns)),
	}
}

// Statistics represents server counters exposed over the monitoring API.
type Statistics struct {
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesProcessed uint64 `json:"messages_processed"`
	DecodeErrors      uint64 `json:"decode_errors"`
	UnknownTypes      uint64 `json:"unknown_types"`
	ActiveConnections uint64 `json:"active_connections"`
}
