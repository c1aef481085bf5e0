// Package server implements the WebSocket endpoint that receives subtitle
// and playback events from the asbplayer extension, plus the optional HTTP
// monitoring API. Each connection is read strictly in arrival order; one
// message is fully decoded and rendered before the next is read.
package server
