package oms

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"sync"
)

// SessionOptions tune a single session's behavior.
type SessionOptions struct {
	// RemoteOnly registers even freshly created objects as remote references.
	RemoteOnly bool `json:"remote_only"`
	// SkipRemoteCommit leaves remote-but-locally-dirtied handles out of the
	// commit; by default dirty remote handles are written back like local
	// ones.
	SkipRemoteCommit bool `json:"skip_remote_commit"`
}

// Session is a short-lived transactional register of object handles sharing
// one commit boundary. Handles created fresh are local and always committed
// when dirty; handles loaded by reference are remote and committed per the
// SkipRemoteCommit policy. A session is destroyed after commit or on pool
// cleanup.
//
// The session mutex also covers its handles' state caches, so the background
// auto-commit loop can snapshot handles while a caller keeps writing through
// the same session.
type Session struct {
	id          UUID
	partitionID int
	store       Store
	idgen       IDGenerator
	opts        SessionOptions

	// onWrite is installed on every handle this session registers. The pool
	// sets it before publishing the session, so handle registration never
	// races on it.
	onWrite func(*Handle)

	mu     sync.Mutex
	local  map[identityKey]*Handle
	remote map[identityKey]*Handle
	closed bool
}

// NewSession creates a session bound to a partition, a store, and an ID
// generator. Sessions are usually obtained from a SessionPool; construct one
// directly for manual lifecycle control.
func NewSession(store Store, idgen IDGenerator, partitionID int, opts SessionOptions) *Session {
	return &Session{
		id:          NewUUID(),
		partitionID: partitionID,
		store:       store,
		idgen:       idgen,
		opts:        opts,
		local:       make(map[identityKey]*Handle),
		remote:      make(map[identityKey]*Handle),
	}
}

// GetID returns the session ID.
func (s *Session) GetID() UUID { return s.id }

// PartitionID returns the partition this session creates objects in.
func (s *Session) PartitionID() int { return s.partitionID }

// Create allocates a new object of the given class with a generated object ID
// and registers its handle as local. No store access happens until commit.
func (s *Session) Create(class *Class) (*Handle, error) {
	return s.CreateWithID(class, s.idgen.NewID())
}

// CreateWithID is Create with a caller-supplied object ID. Creating an ID that
// is already registered in this session is an error.
func (s *Session) CreateWithID(class *Class, objectID int64) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, Error{Code: SessionClosed, Err: fmt.Errorf("create on closed session %v", s.id)}
	}
	id := Identity{
		ClassID:     class.Name(),
		PartitionID: s.partitionID,
		ObjectID:    objectID,
		Remote:      s.opts.RemoteOnly,
	}
	key := id.key()
	if _, ok := s.local[key]; ok {
		return nil, fmt.Errorf("object %v is already registered in session %v", id, s.id)
	}
	if _, ok := s.remote[key]; ok {
		return nil, fmt.Errorf("object %v is already registered in session %v", id, s.id)
	}
	h := newHandle(id, class, s)
	// A freshly created object has no remote state to fetch.
	h.fullyLoaded = true
	if s.opts.RemoteOnly {
		s.remote[key] = h
	} else {
		s.local[key] = h
	}
	return h, nil
}

// Load registers a remote reference to an existing object and returns its
// unfetched handle. No store access happens until a field is first read.
// Loading an identity already registered in this session returns the existing
// handle, so all reads within the session share one cache view.
func (s *Session) Load(class *Class, objectID int64) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, Error{Code: SessionClosed, Err: fmt.Errorf("load on closed session %v", s.id)}
	}
	id := Identity{
		ClassID:     class.Name(),
		PartitionID: s.partitionID,
		ObjectID:    objectID,
		Remote:      true,
	}
	key := id.key()
	if h, ok := s.local[key]; ok {
		return h, nil
	}
	if h, ok := s.remote[key]; ok {
		return h, nil
	}
	h := newHandle(id, class, s)
	s.remote[key] = h
	return h, nil
}

// Delete removes the object from the store and deregisters its handle from
// the session.
func (s *Session) Delete(ctx context.Context, h *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Error{Code: SessionClosed, Err: fmt.Errorf("delete on closed session %v", s.id)}
	}
	if err := s.store.Delete(ctx, h.id); err != nil {
		return Error{Code: StoreFailure, Err: fmt.Errorf("deleting %v: %w", h.id, err)}
	}
	key := h.id.key()
	delete(s.local, key)
	delete(s.remote, key)
	h.dirty = false
	return nil
}

// Commit pushes every dirty handle's full field snapshot to the store as one
// atomic per-object write and clears its dirty flag on success. Handles are
// visited in a deterministic order: locals first, then remotes, each sorted by
// identity. A failing object is recorded and the commit moves on; objects
// already written are not rolled back. When any object failed, the returned
// error is a *CommitError listing each failure.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Error{Code: SessionClosed, Err: fmt.Errorf("commit on closed session %v", s.id)}
	}
	var failures []ObjectCommitFailure
	for _, h := range s.commitOrder() {
		log.Debug("commit check", "object", h.id.String(), "dirty", h.dirty)
		if !h.dirty {
			continue
		}
		if err := s.store.SetAll(ctx, h.id, h.snapshotLocked()); err != nil {
			failures = append(failures, ObjectCommitFailure{
				ID:  h.id,
				Err: Error{Code: StoreFailure, Err: err},
			})
			continue
		}
		h.dirty = false
	}
	if len(failures) > 0 {
		return &CommitError{Failures: failures}
	}
	return nil
}

// commitOrder returns the handles eligible for write-back in deterministic
// order.
func (s *Session) commitOrder() []*Handle {
	handles := sortedHandles(s.local)
	if !s.opts.SkipRemoteCommit {
		handles = append(handles, sortedHandles(s.remote)...)
	}
	return handles
}

func sortedHandles(m map[identityKey]*Handle) []*Handle {
	handles := make([]*Handle, 0, len(m))
	for _, h := range m {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		a, b := handles[i].id, handles[j].id
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.PartitionID != b.PartitionID {
			return a.PartitionID < b.PartitionID
		}
		return a.ObjectID < b.ObjectID
	})
	return handles
}

// Close marks the session unusable. It does not commit; callers wanting a
// final write-back should commit first (or use SessionPool.Cleanup, which
// does both).
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.local = make(map[identityKey]*Handle)
	s.remote = make(map[identityKey]*Handle)
}

// HandleCount returns how many handles are registered, local plus remote.
func (s *Session) HandleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.local) + len(s.remote)
}
