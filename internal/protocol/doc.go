// Package protocol implements decoding of the JSON messages sent by the
// asbplayer browser extension. It classifies each frame by its type tag and
// produces a typed message with all optional fields resolved to their defaults.
package protocol
