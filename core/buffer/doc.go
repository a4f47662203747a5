// Package buffer implements the bounded, monotonic, per-stream queue that
// sits in front of the matcher: one Buffer per stream key, holding messages
// in arrival order until the matcher can align them into a group or the
// staleness detector expires them.
package buffer
