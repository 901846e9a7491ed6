package oms

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
)

// SessionPool binds sessions to caller-supplied context keys, tracks handles
// pending write-back, and runs the background auto-commit loop that flushes
// them without caller intervention. It is explicitly constructed and owned by
// the application's composition root; call Shutdown to stop the loop and get
// the final flush.
//
// The session registry and the pending set are safe for concurrent use from
// arbitrary goroutines.
type SessionPool struct {
	store Store
	idgen IDGenerator
	opts  PoolOptions

	mu       sync.RWMutex
	sessions map[string]*Session

	pendingMu sync.Mutex
	pending   map[*Handle]struct{}

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	shutdown bool
}

// NewSessionPool creates the pool and, unless auto-commit is disabled, starts
// the background flush loop.
func NewSessionPool(store Store, idgen IDGenerator, opts PoolOptions) *SessionPool {
	p := &SessionPool{
		store:    store,
		idgen:    idgen,
		opts:     opts,
		sessions: make(map[string]*Session),
		pending:  make(map[*Handle]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if opts.DisableAutoCommit {
		close(p.doneCh)
	} else {
		go p.autoCommitLoop()
	}
	return p
}

// Session returns the session bound to the given context key, creating it on
// first use. One session exists per key for the life of the pool.
func (p *SessionPool) Session(contextKey string) *Session {
	return p.SessionInPartition(contextKey, p.opts.DefaultPartition)
}

// SessionInPartition is Session with an explicit partition for newly created
// sessions; an existing session keeps the partition it was created with.
func (p *SessionPool) SessionInPartition(contextKey string, partitionID int) *Session {
	p.mu.RLock()
	s := p.sessions[contextKey]
	p.mu.RUnlock()
	if s != nil {
		return s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s = p.sessions[contextKey]; s != nil {
		return s
	}
	s = NewSession(p.store, p.idgen, partitionID, p.opts.Session)
	// Arm the session before it becomes visible so every handle it registers
	// carries the auto-commit hook.
	s.onWrite = p.Schedule
	p.sessions[contextKey] = s
	return s
}

// Create makes a new object through the keyed session. Pool sessions arm every
// handle for auto-commit: each field write schedules it for the next
// background flush.
func (p *SessionPool) Create(contextKey string, class *Class) (*Handle, error) {
	return p.Session(contextKey).Create(class)
}

// Load references an existing object through the keyed session.
func (p *SessionPool) Load(contextKey string, class *Class, objectID int64) (*Handle, error) {
	return p.Session(contextKey).Load(class, objectID)
}

// Schedule adds a handle to the pending write-back set. It is a no-op when
// auto-commit is disabled. Safe for concurrent use; concurrent schedules never
// lose entries.
func (p *SessionPool) Schedule(h *Handle) {
	if p.opts.DisableAutoCommit {
		return
	}
	p.pendingMu.Lock()
	p.pending[h] = struct{}{}
	p.pendingMu.Unlock()
}

// PendingCount returns the number of handles awaiting the next flush.
func (p *SessionPool) PendingCount() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// FlushAll commits every registered session one by one. A failing session is
// logged and reported but does not block the others; the pending set is
// cleared afterward regardless of individual outcomes.
func (p *SessionPool) FlushAll(ctx context.Context) error {
	sessions := p.snapshotSessions()
	var errs []error
	for key, s := range sessions {
		if err := s.Commit(ctx); err != nil {
			log.Error("session flush failed", "contextKey", key, "session", s.GetID().String(), "error", err)
			errs = append(errs, fmt.Errorf("session %s: %w", key, err))
		}
	}
	p.clearPending()
	return errors.Join(errs...)
}

// FlushAllWait commits every registered session concurrently, bounded by
// MaxFlushParallelism, and waits for all of them. Failure semantics match
// FlushAll.
func (p *SessionPool) FlushAllWait(ctx context.Context) error {
	sessions := p.snapshotSessions()
	tr := NewTaskRunner(ctx, p.opts.maxFlushParallelism())

	var errsMu sync.Mutex
	var errs []error
	for key, s := range sessions {
		key, s := key, s
		tr.Go(func() error {
			if err := s.Commit(tr.GetContext()); err != nil {
				log.Error("session flush failed", "contextKey", key, "session", s.GetID().String(), "error", err)
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("session %s: %w", key, err))
				errsMu.Unlock()
			}
			// Commit failures were collected; don't cancel sibling flushes.
			return nil
		})
	}
	err := tr.Wait()
	p.clearPending()
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Cleanup commits and then discards the session bound to the context key.
func (p *SessionPool) Cleanup(ctx context.Context, contextKey string) error {
	p.mu.Lock()
	s := p.sessions[contextKey]
	delete(p.sessions, contextKey)
	p.mu.Unlock()
	if s == nil {
		return nil
	}
	err := s.Commit(ctx)
	s.Close()
	if err != nil {
		return fmt.Errorf("cleanup of session %s: %w", contextKey, err)
	}
	return nil
}

// Shutdown stops the auto-commit loop, waits for it to exit, performs one
// final best-effort flush, and discards all sessions. The pool is unusable
// afterwards.
func (p *SessionPool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	// Join the loop so an in-flight flush completes before the final one.
	<-p.doneCh

	err := p.FlushAll(ctx)

	p.mu.Lock()
	p.shutdown = true
	for _, s := range p.sessions {
		s.Close()
	}
	p.sessions = make(map[string]*Session)
	p.mu.Unlock()
	p.clearPending()
	return err
}

// autoCommitLoop is the background scheduler: it sleeps one interval, flushes
// all sessions if any handle is pending, and repeats. It exits when Shutdown
// closes the stop channel, which also cuts an in-progress sleep short.
func (p *SessionPool) autoCommitLoop() {
	defer close(p.doneCh)
	interval := p.opts.autoCommitInterval()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-p.stopCh
		cancel()
	}()
	for {
		Sleep(ctx, interval)
		if ctx.Err() != nil {
			return
		}
		if p.PendingCount() == 0 {
			continue
		}
		flushCtx, flushCancel := context.WithTimeout(ctx, interval)
		if err := p.FlushAll(flushCtx); err != nil {
			log.Error("background auto-commit failed", "error", err)
		}
		flushCancel()
	}
}

func (p *SessionPool) snapshotSessions() map[string]*Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	sessions := make(map[string]*Session, len(p.sessions))
	for k, s := range p.sessions {
		sessions[k] = s
	}
	return sessions
}

func (p *SessionPool) clearPending() {
	p.pendingMu.Lock()
	p.pending = make(map[*Handle]struct{})
	p.pendingMu.Unlock()
}

// WithSession runs fn against the session bound to the context key and commits
// on the way out, joining fn's error with the commit outcome.
func WithSession(ctx context.Context, p *SessionPool, contextKey string, fn func(s *Session) error) error {
	s := p.Session(contextKey)
	err := fn(s)
	if cerr := s.Commit(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
