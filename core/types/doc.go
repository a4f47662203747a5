// Package types defines the shared vocabulary of the synchronization
// engine: stream keys, timestamped messages, the group and feedback records
// the engine produces, and the configuration it is built from.
//
// None of the types here know how to move bytes over a wire or to disk —
// they are pure, comparable, copyable values passed between the buffer,
// staleness, and state packages.
package types
