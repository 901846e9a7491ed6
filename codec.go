package oms

import (
	"bytes"
	"fmt"
	log "log/slog"
	"reflect"
	"sort"
	"sync/atomic"
	"time"

	"github.com/objectrun/oms/encoding"
)

// Opaque payloads carry a one-byte format marker so the decoder knows which
// escape hatch produced them. Nothing outside this engine is expected to read
// either format.
const (
	opaqueJSONMarker   = byte('j')
	opaqueBinaryMarker = byte('m')
)

var opaqueMarshaler = encoding.NewMsgPackMarshaler()

// fieldCodec converts between one declared field's semantic type and the raw
// byte payload kept in the handle's field state cache. It is stateless across
// objects apart from call counters and is shared by every handle of its class.
type fieldCodec struct {
	name  string
	index int
	spec  *TypeSpec
	def   any

	goType            reflect.Type
	normalizeOnDecode bool
	decodeRaw         func(data []byte) (any, error)

	metrics codecMetrics
}

// CodecMetrics is a point-in-time snapshot of one field codec's counters.
type CodecMetrics struct {
	Calls    uint64
	Failures uint64
}

type codecMetrics struct {
	calls    atomic.Uint64
	failures atomic.Uint64
}

func (m *codecMetrics) record(success bool) {
	m.calls.Add(1)
	if !success {
		m.failures.Add(1)
	}
}

func (m *codecMetrics) snapshot() CodecMetrics {
	return CodecMetrics{Calls: m.calls.Load(), Failures: m.failures.Load()}
}

// encodeValue converts v to the field's canonical form and encodes it to a
// wire-ready payload. Conversion failures surface as ValidationError and
// encode failures as SerializationError; both abort the write with the
// handle's cached state untouched.
func (fc *fieldCodec) encodeValue(v any) (converted any, data []byte, err error) {
	converted, err = convertValue(fc.spec, fc.name, v, true)
	if err != nil {
		fc.metrics.record(false)
		return nil, nil, &ValidationError{
			Field:        fc.name,
			DeclaredType: fc.spec.String(),
			Value:        v,
			Err:          err,
		}
	}
	data, err = fc.encode(converted)
	if err != nil {
		fc.metrics.record(false)
		return nil, nil, &SerializationError{
			Field:        fc.name,
			Index:        fc.index,
			DeclaredType: fc.spec.String(),
			ActualType:   fmt.Sprintf("%T", v),
			Err:          err,
		}
	}
	fc.metrics.record(true)
	return converted, data, nil
}

func (fc *fieldCodec) encode(v any) ([]byte, error) {
	if v == nil {
		// Absent value; reads of an empty payload yield the declared default.
		return []byte{}, nil
	}
	switch fc.spec.Kind {
	case KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("expected time.Time, got %T", v)
		}
		return []byte(t.Format(time.RFC3339Nano)), nil
	case KindUUID:
		u, ok := v.(UUID)
		if !ok {
			return nil, fmt.Errorf("expected UUID, got %T", v)
		}
		return []byte(u.String()), nil
	case KindSet:
		elems, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected sequence, got %T", v)
		}
		return encodeSortedSet(elems)
	case KindOpaque:
		return encodeOpaque(v)
	default:
		return encoding.BlobMarshaler.Marshal(v)
	}
}

// decodeData is the total decode function: it never fails. Empty payloads and
// any internal decode failure yield the declared default, the latter with a
// logged diagnostic.
func (fc *fieldCodec) decodeData(data []byte) any {
	if len(data) == 0 {
		fc.metrics.record(true)
		return fc.def
	}
	v, err := fc.decodeRaw(data)
	if err != nil {
		log.Warn("field decode degraded to default",
			"field", fc.name, "index", fc.index, "declared", fc.spec.String(), "error", err)
		fc.metrics.record(false)
		return fc.def
	}
	if fc.normalizeOnDecode {
		if normalized, nerr := convertValue(fc.spec, fc.name, v, false); nerr == nil {
			v = normalized
		}
	}
	fc.metrics.record(true)
	return v
}

// makeDecoder builds the kind-dispatched raw decoder for a field declared with
// Go type T.
func makeDecoder[T any](fc *fieldCodec) func(data []byte) (any, error) {
	switch fc.spec.Kind {
	case KindTime:
		return func(data []byte) (any, error) {
			t, err := time.Parse(time.RFC3339Nano, string(data))
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	case KindUUID:
		return func(data []byte) (any, error) {
			u, err := ParseUUID(string(data))
			if err != nil {
				return nil, err
			}
			return u, nil
		}
	case KindOpaque:
		return func(data []byte) (any, error) {
			var v T
			switch data[0] {
			case opaqueJSONMarker:
				if err := encoding.BlobMarshaler.Unmarshal(data[1:], &v); err != nil {
					return nil, err
				}
			case opaqueBinaryMarker:
				if err := opaqueMarshaler.Unmarshal(data[1:], &v); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("unknown opaque format marker %q", data[0])
			}
			return v, nil
		}
	default:
		return func(data []byte) (any, error) {
			var v T
			if err := encoding.BlobMarshaler.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			return v, nil
		}
	}
}

// encodeSortedSet renders a set as a JSON array with elements in sorted
// (deterministic) order, so equal sets always produce equal payloads.
func encodeSortedSet(elems []any) ([]byte, error) {
	encoded := make([][]byte, len(elems))
	for i, elem := range elems {
		data, err := encoding.BlobMarshaler.Marshal(elem)
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}
	sort.Slice(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	})
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, data := range encoded {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// encodeOpaque tries the generic structured encoding first and falls back to
// the compact binary escape hatch for values JSON cannot represent.
func encodeOpaque(v any) ([]byte, error) {
	if data, err := encoding.BlobMarshaler.Marshal(v); err == nil {
		return append([]byte{opaqueJSONMarker}, data...), nil
	}
	data, err := opaqueMarshaler.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{opaqueBinaryMarker}, data...), nil
}
