package oms

import (
	"fmt"
	log "log/slog"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/objectrun/oms/encoding"
)

// convertValue coerces v into the canonical form of the declared type spec.
// In strict mode a value that cannot be coerced is an error (the write path's
// ValidationError); in lenient mode the original value is retained and a
// diagnostic is logged (the container-element and decode-normalization paths).
//
// Canonical forms: int64, float64, string, bool, []any (list/set),
// map[string]any, time.Time, UUID, the declared struct type, or nil.
func convertValue(spec *TypeSpec, fieldName string, v any, strict bool) (any, error) {
	if spec == nil {
		return v, nil
	}
	if v == nil {
		return nil, nil
	}

	switch spec.Kind {
	case KindInt:
		return convertInt(v)
	case KindFloat:
		return convertFloat(v)
	case KindString:
		return convertString(v)
	case KindBool:
		return convertBool(v)
	case KindList, KindSet:
		return convertSequence(spec, fieldName, v)
	case KindMap:
		return convertMap(spec, fieldName, v, strict)
	case KindOptional:
		return convertOptional(spec, fieldName, v, strict)
	case KindUnion:
		return convertUnion(spec, fieldName, v)
	case KindStruct:
		return convertStruct(spec, v)
	case KindTime:
		return convertTime(v)
	case KindUUID:
		return convertUUID(v)
	case KindOpaque:
		return v, nil
	default:
		return nil, fmt.Errorf("unknown type category %d", spec.Kind)
	}
}

func convertInt(v any) (any, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float32:
		// Fractions truncate, same as integer construction from a float.
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as int: %w", n, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", v)
	}
}

func convertFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as float: %w", n, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", v)
	}
}

func convertString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case bool:
		return strconv.FormatBool(s), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", s), nil
	case float32, float64:
		return fmt.Sprintf("%v", s), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string", v)
	}
}

func convertBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as bool: %w", b, err)
		}
		return parsed, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		rv := reflect.ValueOf(b)
		if rv.CanInt() {
			return rv.Int() != 0, nil
		}
		return rv.Uint() != 0, nil
	case float32:
		return b != 0, nil
	case float64:
		return b != 0, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", v)
	}
}

// convertSequence converts list and set values element by element. Element
// conversion is best-effort: an element that cannot be coerced to the declared
// element type is retained unchanged with a logged diagnostic.
func convertSequence(spec *TypeSpec, fieldName string, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		// A bare value becomes a one-element sequence.
		v = []any{v}
		rv = reflect.ValueOf(v)
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		converted, err := convertValue(spec.Elem, fieldName, elem, true)
		if err != nil {
			log.Warn("sequence element retained unconverted",
				"field", fieldName, "index", i, "declared", spec.Elem.String(), "error", err)
			out[i] = elem
			continue
		}
		out[i] = converted
	}
	return out, nil
}

func convertMap(spec *TypeSpec, fieldName string, v any, strict bool) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("cannot convert %T to map", v)
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := mapKeyString(spec.Key, iter.Key().Interface())
		if err != nil {
			if strict {
				return nil, fmt.Errorf("map key: %w", err)
			}
			log.Warn("map entry retained unconverted", "field", fieldName, "error", err)
			key = fmt.Sprintf("%v", iter.Key().Interface())
		}
		val := iter.Value().Interface()
		converted, err := convertValue(spec.Value, fieldName, val, true)
		if err != nil {
			log.Warn("map value retained unconverted",
				"field", fieldName, "key", key, "declared", spec.Value.String(), "error", err)
			out[key] = val
			continue
		}
		out[key] = converted
	}
	return out, nil
}

// mapKeyString converts a map key through its declared scalar spec into the
// string form used as a JSON object key.
func mapKeyString(keySpec *TypeSpec, key any) (string, error) {
	if keySpec == nil {
		if s, ok := key.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", key), nil
	}
	converted, err := convertValue(keySpec, "", key, true)
	if err != nil {
		return "", err
	}
	switch k := converted.(type) {
	case string:
		return k, nil
	case int64:
		return strconv.FormatInt(k, 10), nil
	case float64:
		return strconv.FormatFloat(k, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(k), nil
	default:
		return "", fmt.Errorf("map key %T is not a scalar", converted)
	}
}

func convertOptional(spec *TypeSpec, fieldName string, v any, strict bool) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		v = rv.Elem().Interface()
	}
	return convertValue(spec.Elem, fieldName, v, strict)
}

// convertUnion tries each alternative in declaration order and accepts the
// first that converts without error; a value that matches no alternative
// passes through unmodified.
func convertUnion(spec *TypeSpec, fieldName string, v any) (any, error) {
	for _, alt := range spec.Alts {
		converted, err := convertValue(alt, fieldName, v, true)
		if err == nil {
			return converted, nil
		}
	}
	return v, nil
}

func convertStruct(spec *TypeSpec, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type() == spec.structType {
		return validateStruct(rv.Elem().Interface())
	}
	if rv.IsValid() && rv.Type() == spec.structType {
		return validateStruct(v)
	}
	// Anything else (typically a generic map) goes through a structured
	// round-trip into the declared type.
	data, err := encoding.BlobMarshaler.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", spec.structType.Name(), err)
	}
	target := spec.newStruct()
	if err := encoding.BlobMarshaler.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("building %s: %w", spec.structType.Name(), err)
	}
	return validateStruct(reflect.ValueOf(target).Elem().Interface())
}

func validateStruct(v any) (any, error) {
	if validatable, ok := v.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func convertTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as time: %w", t, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to time", v)
	}
}

func convertUUID(v any) (any, error) {
	switch u := v.(type) {
	case UUID:
		return u, nil
	case uuid.UUID:
		return UUID(u), nil
	case string:
		parsed, err := ParseUUID(u)
		if err != nil {
			return nil, fmt.Errorf("parsing %q as uuid: %w", u, err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to uuid", v)
	}
}
