package in_memory

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/objectrun/oms"
)

var ctx = context.Background()

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	id := oms.Identity{ClassID: "counter", PartitionID: 0, ObjectID: 1}

	if _, found, err := s.GetAll(ctx, id); err != nil || found {
		t.Fatalf("GetAll on missing object got found=%v, err=%v", found, err)
	}
	if _, found, err := s.Get(ctx, id, 0); err != nil || found {
		t.Fatalf("Get on missing object got found=%v, err=%v", found, err)
	}

	if err := s.SetAll(ctx, id, map[int][]byte{0: []byte("1"), 1: []byte(`"a"`)}); err != nil {
		t.Fatal(err)
	}
	data, found, err := s.Get(ctx, id, 1)
	if err != nil || !found || !bytes.Equal(data, []byte(`"a"`)) {
		t.Fatalf("Get(1) = %q, found=%v, err=%v", data, found, err)
	}
	if _, found, _ := s.Get(ctx, id, 2); found {
		t.Error("Get(2) found an unset field")
	}
}

func TestStoreSetAllMerges(t *testing.T) {
	s := NewStore()
	id := oms.Identity{ClassID: "counter", PartitionID: 0, ObjectID: 2}

	s.SetAll(ctx, id, map[int][]byte{0: []byte("1"), 1: []byte("2")})
	s.SetAll(ctx, id, map[int][]byte{1: []byte("3")})

	entries, found, err := s.GetAll(ctx, id)
	if err != nil || !found {
		t.Fatalf("GetAll got found=%v, err=%v", found, err)
	}
	if len(entries) != 2 || !bytes.Equal(entries[0], []byte("1")) || !bytes.Equal(entries[1], []byte("3")) {
		t.Errorf("GetAll = %v", entries)
	}

	// Mutating the returned map must not affect the stored record.
	entries[0] = []byte("junk")
	data, _, _ := s.Get(ctx, id, 0)
	if !bytes.Equal(data, []byte("1")) {
		t.Errorf("stored record was mutated through GetAll result, Get(0) = %q", data)
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	id := oms.Identity{ClassID: "counter", PartitionID: 0, ObjectID: 3}

	s.SetAll(ctx, id, map[int][]byte{0: []byte("1")})
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.GetAll(ctx, id); found {
		t.Error("object still present after Delete")
	}
	// Deleting a missing object is a no-op.
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := NewStore()
	id := oms.Identity{ClassID: "counter", PartitionID: 0, ObjectID: 4}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetAll(ctx, id, map[int][]byte{i: []byte{byte(i)}})
		}(i)
	}
	wg.Wait()

	entries, found, err := s.GetAll(ctx, id)
	if err != nil || !found {
		t.Fatalf("GetAll got found=%v, err=%v", found, err)
	}
	if len(entries) != 16 {
		t.Errorf("expected 16 fields, got %d", len(entries))
	}
}
