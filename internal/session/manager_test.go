package session

import (
	"log/slog"
	"os"
	"testing"

	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestManagerAddRemove(t *testing.T) {
	mgr := NewManager(testLogger())

	s1 := mgr.Add("127.0.0.1:50001")
	s2 := mgr.Add("127.0.0.1:50002")

	if s1.ID == s2.ID {
		t.Errorf("Expected distinct session IDs, both got %d", s1.ID)
	}
	if mgr.Count() != 2 {
		t.Errorf("Expected 2 sessions, got %d", mgr.Count())
	}

	if _, ok := mgr.Remove(s1.ID); !ok {
		t.Error("Expected Remove to find the session")
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected 1 session after removal, got %d", mgr.Count())
	}

	if _, ok := mgr.Remove(s1.ID); ok {
		t.Error("Expected second Remove of same session to report missing")
	}
}

func TestSessionRecord(t *testing.T) {
	mgr := NewManager(testLogger())
	s := mgr.Add("127.0.0.1:50001")

	s.Record(&protocol.Message{
		Type:      protocol.TypeConnected,
		Connected: &protocol.ConnectedInfo{Version: "1.2.3"},
	})
	s.Record(&protocol.Message{Type: protocol.TypeSubtitle, Subtitle: &protocol.SubtitleEvent{}})
	s.Record(&protocol.Message{Type: protocol.TypeSubtitle, Subtitle: &protocol.SubtitleEvent{}})
	s.Record(&protocol.Message{Type: protocol.TypeHeartbeat})

	info := s.Info()
	if info.MessagesReceived != 4 {
		t.Errorf("Expected 4 messages recorded, got %d", info.MessagesReceived)
	}
	if info.MessagesByType[protocol.TypeSubtitle] != 2 {
		t.Errorf("Expected 2 subtitle messages, got %d", info.MessagesByType[protocol.TypeSubtitle])
	}
	if info.ExtensionVersion != "1.2.3" {
		t.Errorf("Expected extension version from connected message, got %q", info.ExtensionVersion)
	}
	if info.RemoteAddr != "127.0.0.1:50001" {
		t.Errorf("Unexpected remote addr %q", info.RemoteAddr)
	}
}

func TestManagerGetAll(t *testing.T) {
	mgr := NewManager(testLogger())
	mgr.Add("127.0.0.1:50001")
	mgr.Add("127.0.0.1:50002")

	all := mgr.GetAll()
	if len(all) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(all))
	}
}
