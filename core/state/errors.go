package state

import "errors"

// ErrUnknownKey is returned by Push/PushBlocking when the key was not part
// of the set the State was constructed with.
var ErrUnknownKey = errors.New("conflux: unknown key")

// ErrShutdown is returned by Push/PushBlocking once Shutdown has been
// called.
var ErrShutdown = errors.New("conflux: state is shut down")

// ErrEmptyKeys is returned by New when constructed with no keys.
var ErrEmptyKeys = errors.New("conflux: keys must be non-empty")

// ErrDuplicateKey is returned by New when the same key appears twice.
var ErrDuplicateKey = errors.New("conflux: duplicate key")
