package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/SanzharKuandyk/asbplayer-subtitle-streamer/internal/protocol"
)

const bannerWidth = 60

// Options controls optional output beyond the core protocol rendering.
type Options struct {
	// ShowHeartbeats prints a line for each heartbeat instead of staying silent.
	ShowHeartbeats bool

	// ShowVideoDetails prints video URL, duration and paused state after each
	// subtitle event.
	ShowVideoDetails bool
}

// Renderer formats decoded messages and writes them to a single sink. One
// logical event produces one write call, guarded by a mutex, so output from
// concurrent connections stays line-atomic and in dispatch order.
type Renderer struct {
	mu   sync.Mutex
	w    io.Writer
	opts Options
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, opts Options) *Renderer {
	return &Renderer{w: w, opts: opts}
}

func (r *Renderer) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.w, s)
}

// ServerReady announces that the listener is bound and accepting connections.
func (r *Renderer) ServerReady(addr string) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", strings.Repeat("=", bannerWidth))
	fmt.Fprintf(&b, "  asbplayer Subtitle Streamer - Receiver\n")
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", bannerWidth))
	fmt.Fprintf(&b, "Listening on: ws://%s\n", addr)
	fmt.Fprintf(&b, "Server is ready and waiting for connections...\n\n")
	r.write(b.String())
}

// ClientConnected announces a new connection from the given peer address.
func (r *Renderer) ClientConnected(addr string) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", strings.Repeat("=", bannerWidth))
	fmt.Fprintf(&b, "Extension connected from %s\n", addr)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", bannerWidth))
	r.write(b.String())
}

// ClientDisconnected announces that the peer connection was closed.
func (r *Renderer) ClientDisconnected(addr string) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", strings.Repeat("=", bannerWidth))
	fmt.Fprintf(&b, "Extension disconnected from %s\n", addr)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", bannerWidth))
	r.write(b.String())
}

// Connected renders the extension handshake: version, connect time and the
// waiting banner.
func (r *Renderer) Connected(info *protocol.ConnectedInfo) {
	var b strings.Builder
	fmt.Fprintf(&b, "Extension version: %s\n", info.Version)
	fmt.Fprintf(&b, "Connected at: %s\n", FormatTimestamp(info.Timestamp))
	fmt.Fprintf(&b, "\n%s\n", strings.Repeat("-", bannerWidth))
	fmt.Fprintf(&b, "Waiting for subtitles... (play a video with asbplayer)\n")
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("-", bannerWidth))
	r.write(b.String())
}

// Subtitle renders one subtitle event. Multi-track events print a header with
// the playback clock and track count followed by one line per track in wire
// order; events without lines fall back to the legacy single-text form.
func (r *Renderer) Subtitle(event *protocol.SubtitleEvent) {
	clock := FormatClock(event.CurrentTime)

	var b strings.Builder
	if len(event.Lines) > 0 {
		fmt.Fprintf(&b, "[%s] %d subtitle track(s):\n", clock, len(event.Lines))
		for _, line := range event.Lines {
			fmt.Fprintf(&b, "  Track %d: %s\n", line.Track, line.Text)
		}
	} else {
		fmt.Fprintf(&b, "[%s] %s\n", clock, event.Text)
	}

	if r.opts.ShowVideoDetails {
		fmt.Fprintf(&b, "    Video: %s\n", event.VideoURL)
		fmt.Fprintf(&b, "    Duration: %.1fs\n", event.Duration)
		fmt.Fprintf(&b, "    Paused: %t\n", event.Paused)
	}

	r.write(b.String())
}

// Heartbeat is silent unless ShowHeartbeats is set; the extension sends one
// roughly every 30 seconds.
func (r *Renderer) Heartbeat() {
	if !r.opts.ShowHeartbeats {
		return
	}
	r.write("Heartbeat received\n")
}

// Disconnected renders the extension's farewell message.
func (r *Renderer) Disconnected(info *protocol.DisconnectedInfo) {
	r.write(fmt.Sprintf("\nExtension disconnected at: %s\n", FormatTimestamp(info.Timestamp)))
}

// UnknownType reports a frame whose type tag matched no known message kind.
func (r *Renderer) UnknownType(tag string) {
	r.write(fmt.Sprintf("Unknown message type: %s\n", tag))
}

// Goodbye is printed when the operator stops the server.
func (r *Renderer) Goodbye() {
	r.write("\nServer stopped. Goodbye!\n")
}

// FormatClock renders a playback position in seconds as zero-padded MM:SS.
// Negative positions render as 00:00.
func FormatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FormatTimestamp renders a millisecond epoch timestamp as a local calendar
// date-time. A zero or absent timestamp renders as the literal "unknown". The
// local-zone rendering matches what the extension's peers expect; no offset is
// transmitted on the wire.
func FormatTimestamp(ms int64) string {
	if ms == 0 {
		return "unknown"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
