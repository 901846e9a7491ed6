// Package redis implements the object state Store on a Redis server or
// cluster. Each object is kept as one Redis hash whose fields are the decimal
// field indices, so single-field reads stay O(1) on the server side.
package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/objectrun/oms"
	"github.com/objectrun/oms/encoding"
)

type store struct {
	conn    *Connection
	isOwner bool
}

// NewStore returns a Store backed by the package's singleton connection.
// OpenConnection must have been called beforehand.
func NewStore() oms.Store {
	return &store{
		conn: connection,
	}
}

// NewConnectionStore opens a dedicated connection and returns a Store that
// owns it. Call Close on the returned store when done with it.
func NewConnectionStore(options Options) (oms.Store, error) {
	c := openConnection(options)
	return &store{
		conn:    c,
		isOwner: true,
	}, nil
}

// Close this store's connection if it owns one.
func (s *store) Close() error {
	if !s.isOwner || s.conn == nil {
		return nil
	}
	err := closeConnection(s.conn)
	s.conn = nil
	return err
}

// keyNotFound will detect whether error signifies key not found by Redis.
func (s *store) keyNotFound(err error) bool {
	return err == goredis.Nil
}

// Ping tests connectivity with the Redis server.
func (s *store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("Redis connection is not open, 'can't create new store")
	}
	return s.conn.Client.Ping(ctx).Err()
}

func (s *store) Get(ctx context.Context, id oms.Identity, index int) ([]byte, bool, error) {
	if s.conn == nil {
		return nil, false, storeError(fmt.Errorf("Redis connection is not open, 'can't create new store"))
	}
	var data []byte
	var found bool
	err := oms.Retry(ctx, func(ctx context.Context) error {
		ba, err := s.conn.Client.HGet(ctx, objectKey(id), strconv.Itoa(index)).Bytes()
		if s.keyNotFound(err) {
			data, found = nil, false
			return nil
		}
		if err != nil {
			return retryable(err)
		}
		data, found = ba, true
		return nil
	}, nil)
	if err != nil {
		return nil, false, storeError(err)
	}
	return data, found, nil
}

func (s *store) GetAll(ctx context.Context, id oms.Identity) (map[int][]byte, bool, error) {
	if s.conn == nil {
		return nil, false, storeError(fmt.Errorf("Redis connection is not open, 'can't create new store"))
	}
	var entries map[int][]byte
	err := oms.Retry(ctx, func(ctx context.Context) error {
		m, err := s.conn.Client.HGetAll(ctx, objectKey(id)).Result()
		if err != nil {
			return retryable(err)
		}
		if len(m) == 0 {
			// HGetAll returns an empty map for a missing key.
			entries = nil
			return nil
		}
		entries = make(map[int][]byte, len(m))
		for field, value := range m {
			index, err := strconv.Atoi(field)
			if err != nil {
				return fmt.Errorf("object %s has a non-numeric hash field %q: %w", id.String(), field, err)
			}
			entries[index] = []byte(value)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, false, storeError(err)
	}
	return entries, entries != nil, nil
}

func (s *store) SetAll(ctx context.Context, id oms.Identity, entries map[int][]byte) error {
	if s.conn == nil {
		return storeError(fmt.Errorf("Redis connection is not open, 'can't create new store"))
	}
	if len(entries) == 0 {
		return nil
	}
	pairs := make([]any, 0, len(entries)*2)
	for index, data := range entries {
		pairs = append(pairs, strconv.Itoa(index), data)
	}
	err := oms.Retry(ctx, func(ctx context.Context) error {
		return retryable(s.conn.Client.HSet(ctx, objectKey(id), pairs...).Err())
	}, nil)
	if err != nil {
		return storeError(err)
	}
	return nil
}

func (s *store) Delete(ctx context.Context, id oms.Identity) error {
	if s.conn == nil {
		return storeError(fmt.Errorf("Redis connection is not open, 'can't create new store"))
	}
	err := oms.Retry(ctx, func(ctx context.Context) error {
		return retryable(s.conn.Client.Del(ctx, objectKey(id)).Err())
	}, nil)
	if err != nil {
		return storeError(err)
	}
	return nil
}

func objectKey(id oms.Identity) string {
	return encoding.ObjectKeyString(id.ClassID, id.PartitionID, id.ObjectID)
}

func storeError(err error) error {
	return oms.Error{
		Code: oms.StoreFailure,
		Err:  err,
	}
}

// retryable marks transient errors so Retry backs off and tries again.
func retryable(err error) error {
	if !oms.ShouldRetry(err) {
		return err
	}
	return retry.RetryableError(err)
}
