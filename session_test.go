package oms_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/objectrun/oms"
	"github.com/objectrun/oms/mocks"
)

func TestCommitCleanSessionWritesNothing(t *testing.T) {
	class, count, _ := counterClass("clean")
	store := mocks.NewMockStore()
	s := newTestSession(store)
	h, _ := s.Create(class)

	// Reads alone don't dirty anything.
	oms.GetField(ctx, h, count)
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.SetAllCalls) != 0 {
		t.Errorf("SetAll called %d times on a clean session", len(store.SetAllCalls))
	}
}

func TestCommitWritesDirtySnapshotOnce(t *testing.T) {
	class, _, label := counterClass("commit1")
	store := mocks.NewMockStore()
	s := newTestSession(store)
	h, _ := s.Create(class)

	if err := oms.SetField(h, label, "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if len(store.SetAllCalls) != 1 {
		t.Fatalf("SetAll called %d times", len(store.SetAllCalls))
	}
	call := store.SetAllCalls[0]
	if !call.ID.Equal(h.ID()) {
		t.Errorf("SetAll for %v, want %v", call.ID, h.ID())
	}
	if len(call.Entries) != 1 || !bytes.Equal(call.Entries[1], []byte(`"alpha"`)) {
		t.Errorf("SetAll entries = %v", call.Entries)
	}
	if h.Dirty() {
		t.Error("dirty flag survived a successful commit")
	}

	// Nothing changed, so a second commit is a no-op.
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.SetAllCalls) != 1 {
		t.Errorf("SetAll called %d times after idle commit", len(store.SetAllCalls))
	}
}

func TestReloadInFreshSession(t *testing.T) {
	class, _, label := counterClass("reload")
	store := mocks.NewMockStore()

	s := newTestSession(store)
	h, _ := s.Create(class)
	oms.SetField(h, label, "alpha")
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	s2 := newTestSession(store)
	h2, _ := s2.Load(class, h.ID().ObjectID)
	v, err := oms.GetField(ctx, h2, label)
	if err != nil || v != "alpha" {
		t.Fatalf("label = %q, err = %v", v, err)
	}
	if store.GetAllCount != 1 {
		t.Errorf("GetAll called %d times", store.GetAllCount)
	}
}

func TestCommitContinuesPastFailedObject(t *testing.T) {
	class, count, _ := counterClass("partial")
	store := mocks.NewMockStore()
	s := newTestSession(store)

	bad, _ := s.CreateWithID(class, 1)
	good, _ := s.CreateWithID(class, 2)
	oms.SetField(bad, count, 1)
	oms.SetField(good, count, 2)
	store.FailSetAll = map[string]error{bad.ID().String(): fmt.Errorf("disk full")}

	err := s.Commit(ctx)
	if err == nil {
		t.Fatal("expected a commit error")
	}
	var cerr *oms.CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("error %T is not a CommitError", err)
	}
	if len(cerr.Failures) != 1 || !cerr.Failures[0].ID.Equal(bad.ID()) {
		t.Errorf("failures = %+v", cerr.Failures)
	}

	// The good object went through; the bad one stays dirty for a retry.
	if good.Dirty() {
		t.Error("good handle still dirty")
	}
	if !bad.Dirty() {
		t.Error("failed handle lost its dirty flag")
	}
	if store.Record(good.ID()) == nil {
		t.Error("good object not persisted")
	}

	// Retry succeeds once the store recovers.
	store.FailSetAll = nil
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if bad.Dirty() {
		t.Error("failed handle still dirty after successful retry")
	}
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	class, _, _ := counterClass("closed")
	s := newTestSession(mocks.NewMockStore())
	s.Close()

	assertClosed := func(err error) {
		t.Helper()
		var engineErr oms.Error
		if !errors.As(err, &engineErr) || engineErr.Code != oms.SessionClosed {
			t.Errorf("error = %v, want SessionClosed", err)
		}
	}
	_, err := s.Create(class)
	assertClosed(err)
	_, err = s.Load(class, 1)
	assertClosed(err)
	assertClosed(s.Commit(ctx))
}

func TestCreateDuplicateIDFails(t *testing.T) {
	class, _, _ := counterClass("dupid")
	s := newTestSession(mocks.NewMockStore())

	if _, err := s.CreateWithID(class, 7); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWithID(class, 7); err == nil {
		t.Error("duplicate create succeeded")
	}
}

func TestLoadIsIdempotentPerIdentity(t *testing.T) {
	class, _, _ := counterClass("samehandle")
	s := newTestSession(mocks.NewMockStore())

	h1, _ := s.Load(class, 5)
	h2, _ := s.Load(class, 5)
	if h1 != h2 {
		t.Error("two loads of one identity returned distinct handles")
	}
	// Loading an identity created in this session returns the local handle.
	h3, _ := s.CreateWithID(class, 6)
	h4, _ := s.Load(class, 6)
	if h3 != h4 {
		t.Error("load did not return the session's local handle")
	}
	if s.HandleCount() != 2 {
		t.Errorf("HandleCount = %d", s.HandleCount())
	}
}

func TestDeleteRemovesObjectAndHandle(t *testing.T) {
	class, count, _ := counterClass("delete")
	store := mocks.NewMockStore()
	s := newTestSession(store)

	h, _ := s.Create(class)
	oms.SetField(h, count, 1)
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, h); err != nil {
		t.Fatal(err)
	}
	if store.Record(h.ID()) != nil {
		t.Error("record survived delete")
	}
	if s.HandleCount() != 0 {
		t.Errorf("HandleCount = %d after delete", s.HandleCount())
	}
	// A deleted handle is no longer committed.
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if store.Record(h.ID()) != nil {
		t.Error("delete was undone by commit")
	}
}

func TestSkipRemoteCommitLeavesRemotesOut(t *testing.T) {
	class, count, _ := counterClass("skipremote")
	store := mocks.NewMockStore()
	s := oms.NewSession(store, &mocks.MockIDGenerator{}, 0, oms.SessionOptions{SkipRemoteCommit: true})

	remote, _ := s.Load(class, 8)
	oms.SetField(remote, count, 3)
	local, _ := s.Create(class)
	oms.SetField(local, count, 4)

	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.SetAllCalls) != 1 || !store.SetAllCalls[0].ID.Equal(local.ID()) {
		t.Errorf("SetAll calls = %+v", store.SetAllCalls)
	}
	if !remote.Dirty() {
		t.Error("skipped remote handle lost its dirty flag")
	}
}

func TestRemoteOnlySessionCommitsCreatedObjects(t *testing.T) {
	class, count, _ := counterClass("remoteonly")
	store := mocks.NewMockStore()
	s := oms.NewSession(store, &mocks.MockIDGenerator{}, 0, oms.SessionOptions{RemoteOnly: true})

	h, _ := s.Create(class)
	if !h.ID().Remote {
		t.Error("remote-only session created a local identity")
	}
	oms.SetField(h, count, 1)
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.SetAllCalls) != 1 {
		t.Errorf("SetAll called %d times", len(store.SetAllCalls))
	}
}

func TestCommitOrderIsDeterministic(t *testing.T) {
	class, count, _ := counterClass("order")
	store := mocks.NewMockStore()
	s := newTestSession(store)

	for _, oid := range []int64{30, 10, 20} {
		h, err := s.CreateWithID(class, oid)
		if err != nil {
			t.Fatal(err)
		}
		oms.SetField(h, count, oid)
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	var got []int64
	for _, call := range store.SetAllCalls {
		got = append(got, call.ID.ObjectID)
	}
	want := []int64{10, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commit order = %v, want %v", got, want)
		}
	}
}
