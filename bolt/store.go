// Package bolt implements the object state Store on a local bbolt database
// file. One bucket per class, one record per object keyed by the packed
// (partition, object) key, with the field map packed via msgpack. Suited to
// single-node deployments that want durability without an external server.
package bolt

import (
	"context"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/objectrun/oms"
	"github.com/objectrun/oms/encoding"
)

// Options control how the database file is opened.
type Options struct {
	// FileMode for a newly created database file. Defaults to 0600.
	FileMode os.FileMode
	// Timeout to obtain the file lock. Defaults to 10 seconds.
	Timeout time.Duration
	// NoSync trades durability for write throughput. Only use for bulk loads.
	NoSync bool
}

// Store is an oms.Store over a bbolt database file.
type Store struct {
	bdb       *bbolt.DB
	marshaler encoding.Marshaler
}

// Open opens or creates the database file at path.
func Open(path string, options Options) (*Store, error) {
	if options.FileMode == 0 {
		options.FileMode = 0600
	}
	if options.Timeout == 0 {
		options.Timeout = 10 * time.Second
	}
	bdb, err := bbolt.Open(path, options.FileMode, &bbolt.Options{Timeout: options.Timeout})
	if err != nil {
		return nil, err
	}
	bdb.NoSync = options.NoSync
	return &Store{
		bdb:       bdb,
		marshaler: encoding.NewMsgPackMarshaler(),
	}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.bdb.Close()
}

func (s *Store) Get(ctx context.Context, id oms.Identity, index int) ([]byte, bool, error) {
	entries, found, err := s.GetAll(ctx, id)
	if err != nil || !found {
		return nil, false, err
	}
	data, ok := entries[index]
	return data, ok, nil
}

func (s *Store) GetAll(ctx context.Context, id oms.Identity) (map[int][]byte, bool, error) {
	var entries map[int][]byte
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(id.ClassID))
		if b == nil {
			return nil
		}
		record := b.Get(encoding.PackObjectKey(id.PartitionID, id.ObjectID))
		if record == nil {
			return nil
		}
		return s.marshaler.Unmarshal(record, &entries)
	})
	if err != nil {
		return nil, false, storeError(err)
	}
	return entries, entries != nil, nil
}

func (s *Store) SetAll(ctx context.Context, id oms.Identity, entries map[int][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(id.ClassID))
		if err != nil {
			return err
		}
		key := encoding.PackObjectKey(id.PartitionID, id.ObjectID)

		merged := entries
		if record := b.Get(key); record != nil {
			var existing map[int][]byte
			if err := s.marshaler.Unmarshal(record, &existing); err != nil {
				return err
			}
			for index, data := range entries {
				existing[index] = data
			}
			merged = existing
		}

		record, err := s.marshaler.Marshal(merged)
		if err != nil {
			return err
		}
		return b.Put(key, record)
	})
	if err != nil {
		return storeError(err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id oms.Identity) error {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(id.ClassID))
		if b == nil {
			return nil
		}
		return b.Delete(encoding.PackObjectKey(id.PartitionID, id.ObjectID))
	})
	if err != nil {
		return storeError(err)
	}
	return nil
}

func storeError(err error) error {
	return oms.Error{
		Code: oms.StoreFailure,
		Err:  err,
	}
}
