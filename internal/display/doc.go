// Package display renders decoded extension messages as human-readable lines
// on a single sequential sink. Writes are serialized so lines from concurrent
// connections never interleave.
package display
