package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type tags carried in the "type" field of every frame.
const (
	TypeConnected    = "connected"
	TypeSubtitle     = "subtitle"
	TypeHeartbeat    = "heartbeat"
	TypeDisconnected = "disconnected"

	// TypeUnknown is the sentinel used when a frame carries no type tag.
	TypeUnknown = "unknown"

	// DefaultVersion is displayed when a connected message omits its version.
	DefaultVersion = "unknown"
)

// ConnectedInfo is the payload of a "connected" message, sent once by the
// extension right after the connection is established.
type ConnectedInfo struct {
	Version   string // extension version, DefaultVersion if absent
	Timestamp int64  // milliseconds since epoch, 0 if absent
}

// Line is one subtitle line together with the track it belongs to. Track
// numbers are not guaranteed sorted or unique across the lines of one event.
type Line struct {
	Text  string
	Track int
}

// SubtitleEvent is the payload of a "subtitle" message.
type SubtitleEvent struct {
	// Text is the legacy single-line representation, used for display when
	// Lines is empty (older extension versions only send this field).
	Text string

	// Lines holds one entry per subtitle track, in display order.
	Lines []Line

	// CurrentTime is the playback position in seconds, never negative.
	CurrentTime float64

	// Extended video details, informational only.
	VideoURL string
	Duration float64
	Paused   bool
}

// DisconnectedInfo is the payload of a "disconnected" message, sent by the
// extension before it closes the connection.
type DisconnectedInfo struct {
	Timestamp int64 // milliseconds since epoch, 0 if absent
}

// Message is a fully decoded frame. Type always holds the classified tag and
// exactly one payload pointer is set for the known types; heartbeat and
// unknown messages carry no payload. For unrecognized frames Type holds the
// original tag value so it can be reported verbatim.
type Message struct {
	Type         string
	Connected    *ConnectedInfo
	Subtitle     *SubtitleEvent
	Disconnected *DisconnectedInfo
}

// IsKnown reports whether the message matched one of the protocol types.
func (m *Message) IsKnown() bool {
	switch m.Type {
	case TypeConnected, TypeSubtitle, TypeHeartbeat, TypeDisconnected:
		return true
	}
	return false
}

// envelope mirrors the wire layout of a frame. Every field except the type
// tag is optional; pointer fields distinguish absent from zero-valued.
type envelope struct {
	Type      string        `json:"type"`
	Version   string        `json:"version"`
	Timestamp int64         `json:"timestamp"`
	Subtitle  *wireSubtitle `json:"subtitle"`
	Video     *wireVideo    `json:"video"`
}

type wireSubtitle struct {
	Text  string     `json:"text"`
	Lines []wireLine `json:"lines"`
}

type wireLine struct {
	Text  string `json:"text"`
	Track int    `json:"track"`
}

type wireVideo struct {
	CurrentTime float64 `json:"currentTime"`
	URL         string  `json:"url"`
	Duration    float64 `json:"duration"`
	Paused      bool    `json:"paused"`
}

// Decode parses one raw text frame into a Message. Defaults are applied here
// so the formatter always operates on fully resolved data: a missing type tag
// classifies as unknown, a missing version becomes DefaultVersion, a missing
// or negative playback position becomes 0. Only malformed JSON is an error.
func Decode(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	msg := &Message{Type: env.Type}
	if msg.Type == "" {
		msg.Type = TypeUnknown
	}

	switch msg.Type {
	case TypeConnected:
		info := &ConnectedInfo{
			Version:   env.Version,
			Timestamp: env.Timestamp,
		}
		if info.Version == "" {
			info.Version = DefaultVersion
		}
		msg.Connected = info

	case TypeSubtitle:
		msg.Subtitle = decodeSubtitle(env.Subtitle, env.Video)

	case TypeDisconnected:
		msg.Disconnected = &DisconnectedInfo{Timestamp: env.Timestamp}

	case TypeHeartbeat:
		// No payload; exists so the dispatcher stays silent instead of
		// reporting an unknown type every ~30 seconds.
	}

	return msg, nil
}

// decodeSubtitle resolves the subtitle and video objects of a frame. Either
// object may be absent entirely; every field then takes its default.
func decodeSubtitle(sub *wireSubtitle, video *wireVideo) *SubtitleEvent {
	event := &SubtitleEvent{}

	if sub != nil {
		event.Text = sub.Text
		if len(sub.Lines) > 0 {
			event.Lines = make([]Line, len(sub.Lines))
			for i, l := range sub.Lines {
				event.Lines[i] = Line{Text: l.Text, Track: l.Track}
			}
		}
	}

	if video != nil {
		event.CurrentTime = video.CurrentTime
		event.VideoURL = video.URL
		event.Duration = video.Duration
		event.Paused = video.Paused
	}
	if event.CurrentTime < 0 {
		event.CurrentTime = 0
	}

	return event
}
