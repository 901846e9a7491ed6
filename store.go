package oms

import "context"

// Store is the contract to the external persistent key/value plane. One object
// is a mapping from small integer field indices to opaque byte payloads; the
// payloads produced by the field codecs are opaque to the Store.
//
// All operations may fail with a transport/store error; such failures are
// surfaced to the caller of the triggering engine operation wrapped with the
// StoreFailure code.
type Store interface {
	// Get fetches one field of the object. The bool result reports presence;
	// a missing object or missing field yields (nil, false, nil).
	Get(ctx context.Context, id Identity, index int) ([]byte, bool, error)
	// GetAll fetches the object's complete field map. The bool result reports
	// whether the object exists at all.
	GetAll(ctx context.Context, id Identity) (map[int][]byte, bool, error)
	// SetAll writes the given field entries as one per-object write, merging
	// them into the object's record and creating the record if absent. Field
	// indices not present in entries are left untouched, so a partially
	// loaded object never clobbers fields it has not seen.
	SetAll(ctx context.Context, id Identity, entries map[int][]byte) error
	// Delete removes the object and all its fields.
	Delete(ctx context.Context, id Identity) error
}

// IDGenerator produces globally unique, monotonically increasing 64-bit object
// IDs. Implementations must be safe for concurrent use; no ordering guarantee
// beyond monotonicity is required by this engine.
type IDGenerator interface {
	NewID() int64
}
