package oms

import (
	"context"
	"fmt"
	"maps"
)

// Handle is the in-memory representative of one persistent object within one
// session. It owns the object's field state cache: a mapping from field index
// to raw bytes, a dirty flag covering the whole object, and a fully-loaded
// flag marking that the one-time bulk fetch already happened.
//
// A handle is not safe for concurrent mutation from multiple goroutines;
// callers must not share one handle across goroutines without external
// synchronization.
type Handle struct {
	id      Identity
	class   *Class
	session *Session

	state       map[int][]byte
	decoded     map[int]any
	dirty       bool
	fullyLoaded bool

	// onWrite schedules the handle for auto-commit on every field write. It
	// comes from the owning session at registration time.
	onWrite func(*Handle)
}

func newHandle(id Identity, class *Class, session *Session) *Handle {
	return &Handle{
		id:      id,
		class:   class,
		session: session,
		state:   make(map[int][]byte),
		decoded: make(map[int]any),
		onWrite: session.onWrite,
	}
}

// ID returns the handle's object identity.
func (h *Handle) ID() Identity { return h.id }

// Class returns the class schema this handle was created with.
func (h *Handle) Class() *Class { return h.class }

// Dirty reports whether the handle has been written since its last successful
// commit. Dirty tracking is object-level: any field write dirties the whole
// object.
func (h *Handle) Dirty() bool {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	return h.dirty
}

// FullyLoaded reports whether the one-time bulk fetch already happened, in
// which case a cache miss means the field was genuinely never set.
func (h *Handle) FullyLoaded() bool {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	return h.fullyLoaded
}

// GetData returns the raw payload of the field at index. On a cache miss
// before the bulk fetch, it performs exactly one Store.GetAll, merges the
// fetched fields under the locally written ones, marks the handle fully
// loaded, and re-checks. A miss after that reports genuine absence without
// touching the store.
func (h *Handle) GetData(ctx context.Context, index int) ([]byte, bool, error) {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	if data, ok := h.state[index]; ok {
		return data, true, nil
	}
	if h.fullyLoaded {
		return nil, false, nil
	}
	entries, found, err := h.session.store.GetAll(ctx, h.id)
	if err != nil {
		return nil, false, Error{Code: StoreFailure, Err: fmt.Errorf("loading %v: %w", h.id, err)}
	}
	if found {
		// Locally written entries win over fetched ones.
		for k, v := range entries {
			if _, exists := h.state[k]; !exists {
				h.state[k] = v
			}
		}
	}
	h.fullyLoaded = true
	data, ok := h.state[index]
	return data, ok, nil
}

// SetData unconditionally overwrites the raw payload of the field at index and
// marks the whole object dirty. Any decoded value cached for the field is
// invalidated.
func (h *Handle) SetData(index int, data []byte) {
	h.session.mu.Lock()
	h.state[index] = data
	h.dirty = true
	delete(h.decoded, index)
	h.session.mu.Unlock()
	if h.onWrite != nil {
		h.onWrite(h)
	}
}

// Snapshot returns a copy of the current field state for commit.
func (h *Handle) Snapshot() map[int][]byte {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	return h.snapshotLocked()
}

// snapshotLocked requires the session mutex to be held.
func (h *Handle) snapshotLocked() map[int][]byte {
	return maps.Clone(h.state)
}

// GetField reads a field through its typed codec. A field that was never set,
// or whose stored payload fails to decode, yields the declared default; decode
// failures are logged, never raised. Once decoded, the value is cached so
// repeated reads do not re-decode.
func GetField[T any](ctx context.Context, h *Handle, f *Field[T]) (T, error) {
	fc := fieldCodec4Handle(h, f.class, f.codec)
	if v, ok := h.decoded[fc.index]; ok {
		// Comma-ok so a cached nil (possible when T is an interface) comes
		// back as the zero value instead of panicking.
		typed, _ := v.(T)
		return typed, nil
	}
	data, ok, err := h.GetData(ctx, fc.index)
	if err != nil {
		var zero T
		return zero, err
	}
	var v any
	if !ok {
		v = fc.def
	} else {
		v = fc.decodeData(data)
	}
	h.decoded[fc.index] = v
	typed, _ := v.(T)
	return typed, nil
}

// SetField writes a field through its typed codec: the value is converted to
// the declared type (ValidationError on mismatch), encoded (SerializationError
// on failure), and written through to the state cache. On failure the field's
// previously cached value stays untouched.
func SetField[T any](h *Handle, f *Field[T], v T) error {
	fc := fieldCodec4Handle(h, f.class, f.codec)
	converted, data, err := fc.encodeValue(v)
	if err != nil {
		return err
	}
	h.SetData(fc.index, data)
	if fc.normalizeOnDecode {
		h.decoded[fc.index] = converted
	} else {
		h.decoded[fc.index] = v
	}
	return nil
}

// fieldCodec4Handle guards against a field token of one class being used with
// a handle of another; that is a programmer error.
func fieldCodec4Handle(h *Handle, class *Class, fc *fieldCodec) *fieldCodec {
	if h.class != class {
		panic(fmt.Sprintf("field %s belongs to class %s, not %s", fc.name, class.name, h.class.name))
	}
	return fc
}
