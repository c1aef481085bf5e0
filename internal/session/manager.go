package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/protocol"
)

// Session represents one live client connection.
type Session struct {
	ID          uint64
	RemoteAddr  string
	ConnectedAt time.Time

	mu               sync.RWMutex
	lastActivity     time.Time
	extensionVersion string
	messagesReceived uint64
	countsByType     map[string]uint64
}

// Manager tracks all live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64
	logger   *slog.Logger
}

// NewManager creates an empty session registry.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[uint64]*Session),
		logger:   logger,
	}
}

// Add registers a new connection and returns its session.
func (m *Manager) Add(remoteAddr string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s := &Session{
		ID:           m.nextID,
		RemoteAddr:   remoteAddr,
		ConnectedAt:  time.Now(),
		lastActivity: time.Now(),
		countsByType: make(map[string]uint64),
	}
	m.sessions[s.ID] = s

	m.logger.Debug("Session created",
		slog.Uint64("session_id", s.ID),
		slog.String("remote_addr", remoteAddr),
	)
	return s
}

// Remove deregisters a session and returns how long it was connected.
func (m *Manager) Remove(id uint64) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[id]
	if !exists {
		return 0, false
	}
	delete(m.sessions, id)

	duration := time.Since(s.ConnectedAt)
	m.logger.Debug("Session removed",
		slog.Uint64("session_id", id),
		slog.Duration("duration", duration),
	)
	return duration, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// GetAll returns a snapshot of all live sessions.
func (m *Manager) GetAll() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Record updates a session's counters for one decoded message. Connected
// messages additionally pin the extension version for monitoring.
func (s *Session) Record(msg *protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()
	s.messagesReceived++
	s.countsByType[msg.Type]++

	if msg.Connected != nil {
		s.extensionVersion = msg.Connected.Version
	}
}

// Info returns a point-in-time view of the session for the monitoring API.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]uint64, len(s.countsByType))
	for k, v := range s.countsByType {
		counts[k] = v
	}

	return Info{
		ID:               s.ID,
		RemoteAddr:       s.RemoteAddr,
		ConnectedAt:      s.ConnectedAt,
		LastActivity:     s.lastActivity,
		Uptime:           time.Since(s.ConnectedAt).String(),
		ExtensionVersion: s.extensionVersion,
		MessagesReceived: s.messagesReceived,
		MessagesByType:   counts,
	}
}

// Info is the JSON shape of a session exposed by the monitoring API.
type Info struct {
	ID               uint64            `json:"id"`
	RemoteAddr       string            `json:"remote_addr"`
	ConnectedAt      time.Time         `json:"connected_at"`
	LastActivity     time.Time         `json:"last_activity"`
	Uptime           string            `json:"uptime"`
	ExtensionVersion string            `json:"extension_version,omitempty"`
	MessagesReceived uint64            `json:"messages_received"`
	MessagesByType   map[string]uint64 `json:"messages_by_type"`
}
