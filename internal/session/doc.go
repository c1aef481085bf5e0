// Package session tracks the lifecycle of connected extension clients.
// It records per-connection metadata and message counters for the
// monitoring API; nothing here influences how messages are rendered.
package session
