package types

// Group is an ordered mapping from each stream key to exactly one message,
// all of whose timestamps lie within one window. Keys preserve the order
// supplied to State's constructor. A Group is produced atomically by the
// matcher; it is never partial.
type Group[K comparable, T Message] struct {
	// Timestamp is the group's timestamp: the minimum timestamp across its
	// members (inf at the matching attempt that produced it).
	Timestamp Timestamp
	Keys      []K
	Values    []T
}

// Get returns the message stored for key, and whether it was present.
func (g Group[K, T]) Get(key K) (T, bool) {
	for i, k := range g.Keys {
		if k == key {
			return g.Values[i], true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of members in the group.
func (g Group[K, T]) Len() int {
	return len(g.Keys)
}
