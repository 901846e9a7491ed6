package oms

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind enumerates the closed set of semantic type categories a field can
// declare. Codec dispatch is an explicit switch over this tag; new application
// types are added through the Struct category, never by extending runtime
// introspection.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindBool
	KindList
	KindMap
	KindSet
	KindOptional
	KindUnion
	KindStruct
	KindTime
	KindUUID
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindOptional:
		return "optional"
	case KindUnion:
		return "union"
	case KindStruct:
		return "struct"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TypeSpec is the tagged descriptor of a field's declared semantic type.
// Parameterized categories carry their element descriptors; Struct carries the
// Go type it validates into.
type TypeSpec struct {
	Kind Kind
	// Elem is the element type of List, Set, and Optional.
	Elem *TypeSpec
	// Key and Value are the key/value types of Map.
	Key   *TypeSpec
	Value *TypeSpec
	// Alts are the Union alternatives in declaration order.
	Alts []*TypeSpec

	structType reflect.Type
	newStruct  func() any
}

// Int declares a 64-bit integer scalar.
func Int() *TypeSpec { return &TypeSpec{Kind: KindInt} }

// Float declares a 64-bit floating point scalar.
func Float() *TypeSpec { return &TypeSpec{Kind: KindFloat} }

// String declares a text scalar.
func String() *TypeSpec { return &TypeSpec{Kind: KindString} }

// Bool declares a boolean scalar.
func Bool() *TypeSpec { return &TypeSpec{Kind: KindBool} }

// List declares an ordered sequence. A nil elem leaves elements unconverted.
func List(elem *TypeSpec) *TypeSpec { return &TypeSpec{Kind: KindList, Elem: elem} }

// MapOf declares a mapping. Keys encode as JSON object keys, so the key type
// must be a scalar category. Nil key/value leave entries unconverted.
func MapOf(key, value *TypeSpec) *TypeSpec {
	if key != nil && !key.isScalar() {
		panic(fmt.Sprintf("map key type must be a scalar category, got %s", key))
	}
	return &TypeSpec{Kind: KindMap, Key: key, Value: value}
}

// SetOf declares an unordered collection encoded with deterministic (sorted)
// element order.
func SetOf(elem *TypeSpec) *TypeSpec { return &TypeSpec{Kind: KindSet, Elem: elem} }

// Optional declares a two-way optional of elem; absent encodes to an empty
// payload.
func Optional(elem *TypeSpec) *TypeSpec { return &TypeSpec{Kind: KindOptional, Elem: elem} }

// Union declares a union over the alternatives in declaration order; value
// conversion accepts the first alternative that converts without error.
func Union(alts ...*TypeSpec) *TypeSpec {
	if len(alts) == 0 {
		panic("union requires at least one alternative")
	}
	return &TypeSpec{Kind: KindUnion, Alts: alts}
}

// StructOf declares a structured record validated into the Go type T. If T (or
// *T) implements Validatable, conversion runs its Validate method.
func StructOf[T any]() *TypeSpec {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return &TypeSpec{
		Kind:       KindStruct,
		structType: t,
		newStruct:  func() any { return new(T) },
	}
}

// Time declares a date-time converted through its canonical textual form
// (RFC 3339 with nanoseconds).
func Time() *TypeSpec { return &TypeSpec{Kind: KindTime} }

// UUIDType declares a unique identifier converted through its canonical string
// form.
func UUIDType() *TypeSpec { return &TypeSpec{Kind: KindUUID} }

// Opaque declares the fallback category: generic structured encoding when
// possible, otherwise a compact binary escape hatch that only this engine can
// decode.
func Opaque() *TypeSpec { return &TypeSpec{Kind: KindOpaque} }

// Validatable is implemented by Struct category types that want schema
// validation on assignment.
type Validatable interface {
	Validate() error
}

func (ts *TypeSpec) isScalar() bool {
	switch ts.Kind {
	case KindInt, KindFloat, KindString, KindBool:
		return true
	}
	return false
}

// String renders the declared type for diagnostics, e.g. "list[int]" or
// "union[int|string]".
func (ts *TypeSpec) String() string {
	if ts == nil {
		return "any"
	}
	switch ts.Kind {
	case KindList, KindSet, KindOptional:
		return fmt.Sprintf("%s[%s]", ts.Kind, ts.Elem)
	case KindMap:
		return fmt.Sprintf("map[%s]%s", ts.Key, ts.Value)
	case KindUnion:
		names := make([]string, len(ts.Alts))
		for i, alt := range ts.Alts {
			names[i] = alt.String()
		}
		return fmt.Sprintf("union[%s]", strings.Join(names, "|"))
	case KindStruct:
		if ts.structType != nil {
			return fmt.Sprintf("struct[%s]", ts.structType.Name())
		}
		return "struct"
	default:
		return ts.Kind.String()
	}
}
