package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ObjectKeyLen is the length of a packed object key: 4 bytes of partition ID
// followed by 8 bytes of object ID, both big-endian so keys sort in
// (partition, object) order under lexicographic byte comparison.
const ObjectKeyLen = 12

// PackObjectKey packs a partition/object ID pair into a sortable byte key.
// Backends that key records by bytes (bolt) use this as the record key.
func PackObjectKey(partitionID int, objectID int64) []byte {
	var key [ObjectKeyLen]byte
	binary.BigEndian.PutUint32(key[:4], uint32(partitionID))
	binary.BigEndian.PutUint64(key[4:], uint64(objectID))
	return key[:]
}

// UnpackObjectKey is the inverse of PackObjectKey.
func UnpackObjectKey(key []byte) (partitionID int, objectID int64, err error) {
	if len(key) != ObjectKeyLen {
		return 0, 0, fmt.Errorf("object key must be %d bytes, got %d", ObjectKeyLen, len(key))
	}
	r := bytes.NewBuffer(key)
	partitionID = int(binary.BigEndian.Uint32(r.Next(4)))
	objectID = int64(binary.BigEndian.Uint64(r.Next(8)))
	return partitionID, objectID, nil
}

// ObjectKeyString formats a class/partition/object triple the way string-keyed
// backends (redis) name their per-object records.
func ObjectKeyString(classID string, partitionID int, objectID int64) string {
	return fmt.Sprintf("oms:%s:%d:%d", classID, partitionID, objectID)
}
