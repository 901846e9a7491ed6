package bolt

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/objectrun/oms"
)

var ctx = context.Background()

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	id := oms.Identity{ClassID: "greeter", PartitionID: 3, ObjectID: 7}

	if _, found, err := s.GetAll(ctx, id); err != nil || found {
		t.Fatalf("GetAll on missing object got found=%v, err=%v", found, err)
	}

	if err := s.SetAll(ctx, id, map[int][]byte{0: []byte(`"hi"`), 1: []byte("5")}); err != nil {
		t.Fatal(err)
	}

	data, found, err := s.Get(ctx, id, 0)
	if err != nil || !found || !bytes.Equal(data, []byte(`"hi"`)) {
		t.Fatalf("Get(0) = %q, found=%v, err=%v", data, found, err)
	}
	if _, found, _ := s.Get(ctx, id, 2); found {
		t.Error("Get(2) found an unset field")
	}

	entries, found, err := s.GetAll(ctx, id)
	if err != nil || !found || len(entries) != 2 {
		t.Fatalf("GetAll = %v, found=%v, err=%v", entries, found, err)
	}
}

func TestStoreSetAllMerges(t *testing.T) {
	s := openTestStore(t)
	id := oms.Identity{ClassID: "greeter", PartitionID: 0, ObjectID: 1}

	if err := s.SetAll(ctx, id, map[int][]byte{0: []byte("1"), 1: []byte("2")}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAll(ctx, id, map[int][]byte{1: []byte("9")}); err != nil {
		t.Fatal(err)
	}

	entries, _, err := s.GetAll(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(entries[0], []byte("1")) || !bytes.Equal(entries[1], []byte("9")) {
		t.Errorf("GetAll = %v", entries)
	}
}

func TestStoreClassesAreIsolated(t *testing.T) {
	s := openTestStore(t)
	a := oms.Identity{ClassID: "a", PartitionID: 0, ObjectID: 1}
	b := oms.Identity{ClassID: "b", PartitionID: 0, ObjectID: 1}

	s.SetAll(ctx, a, map[int][]byte{0: []byte("1")})
	if _, found, _ := s.GetAll(ctx, b); found {
		t.Error("object from class a visible under class b")
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	id := oms.Identity{ClassID: "greeter", PartitionID: 0, ObjectID: 2}

	s.SetAll(ctx, id, map[int][]byte{0: []byte("1")})
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.GetAll(ctx, id); found {
		t.Error("object still present after Delete")
	}
	// Deleting again, and deleting from a class never written, are no-ops.
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, oms.Identity{ClassID: "nope"}); err != nil {
		t.Fatal(err)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	id := oms.Identity{ClassID: "greeter", PartitionID: 1, ObjectID: 9}

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetAll(ctx, id, map[int][]byte{4: []byte(`"kept"`)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	data, found, err := s.Get(ctx, id, 4)
	if err != nil || !found || !bytes.Equal(data, []byte(`"kept"`)) {
		t.Fatalf("Get after reopen = %q, found=%v, err=%v", data, found, err)
	}
}
