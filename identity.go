package oms

import "fmt"

// Identity is the immutable descriptor of one persistent object: its class,
// partition, and unique numeric ID, plus a flag telling whether the object is
// a remote reference or was created locally in this process.
type Identity struct {
	// ClassID names the object's class as registered in the class schema.
	ClassID string
	// PartitionID selects the partition the object lives in.
	PartitionID int
	// ObjectID is the globally unique, time-ordered 64-bit object ID.
	ObjectID int64
	// Remote is true when the object is a reference to state owned elsewhere,
	// false when it was created fresh in this process.
	Remote bool
}

// identityKey is the comparable registry key for an Identity. Equality is
// structural over (ClassID, PartitionID, ObjectID); Remote is deliberately
// excluded so a local handle and a remote reference to the same object collide.
type identityKey struct {
	classID     string
	partitionID int
	objectID    int64
}

func (id Identity) key() identityKey {
	return identityKey{classID: id.ClassID, partitionID: id.PartitionID, objectID: id.ObjectID}
}

// Equal reports whether two identities refer to the same object, ignoring the
// Remote flag.
func (id Identity) Equal(other Identity) bool {
	return id.key() == other.key()
}

// String returns a compact form suitable for logs, e.g. "account/0/12345".
func (id Identity) String() string {
	return fmt.Sprintf("%s/%d/%d", id.ClassID, id.PartitionID, id.ObjectID)
}
