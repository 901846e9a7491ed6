// Package encoding contains the marshalers used to pack values and store
// records to byte arrays and back. The default marshaler uses JSON; a msgpack
// marshaler is provided for compact non-portable payloads such as the opaque
// codec fallback and the bolt backend's record format.
package encoding

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshaler interface specifies encoding to byte array and back to the object.
type Marshaler interface {
	// Encodes any object to byte array.
	Marshal(v any) ([]byte, error)
	// Decodes byte array back to its Object type.
	Unmarshal(data []byte, v any) error
}

// Global Default marshaler.
var DefaultMarshaler = NewMarshaler()

// Global BlobMarshaler takes care of packing and unpacking to/from blob object & byte array.
// You can replace with your desired Marshaler implementation if needed. Defaults to use JSON Marshal.
var BlobMarshaler = DefaultMarshaler

type defaultMarshaler struct{}

// Returns the default marshaler which uses the golang's json package.
// Json encoding was chosen as default because field payloads stay readable by
// any consumer of the store, and scalar fields round-trip as self-describing
// JSON scalars.
func NewMarshaler() Marshaler {
	return &defaultMarshaler{}
}

// Encodes any object to a byte array.
func (m defaultMarshaler) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decodes a byte array back to its Object type.
func (m defaultMarshaler) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgPackMarshaler struct{}

// NewMsgPackMarshaler returns a marshaler that uses msgpack. The output is
// compact but only this engine is expected to decode it; it backs the opaque
// codec fallback and the bolt backend's on-disk records.
func NewMsgPackMarshaler() Marshaler {
	return &msgPackMarshaler{}
}

func (m msgPackMarshaler) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (m msgPackMarshaler) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
