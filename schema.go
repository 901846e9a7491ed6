package oms

import (
	"fmt"
	"reflect"
)

// Class is the schema of one object class: a name plus a fixed table of field
// definitions built once at registration time. Field indices are small
// integers, stable per declared field in class definition order. A Class and
// its codecs are shared by every handle of that class and hold no
// object-specific state.
type Class struct {
	name   string
	codecs []*fieldCodec
	byName map[string]*fieldCodec
}

// NewClass starts a class definition. Fields are added with DefineField;
// definition mistakes (duplicate index or name) are programmer errors and
// panic.
func NewClass(name string) *Class {
	if name == "" {
		panic("class name missing")
	}
	return &Class{
		name:   name,
		byName: make(map[string]*fieldCodec),
	}
}

// Name returns the class ID used in object identities.
func (c *Class) Name() string { return c.name }

// FieldCount returns the size of the field-index table.
func (c *Class) FieldCount() int { return len(c.codecs) }

// codec returns the codec at the given field index, or nil if the index is not
// declared.
func (c *Class) codec(index int) *fieldCodec {
	if index < 0 || index >= len(c.codecs) {
		return nil
	}
	return c.codecs[index]
}

func (c *Class) addCodec(fc *fieldCodec) {
	if fc.index < 0 {
		panic(fmt.Sprintf("class %s: field %s has negative index %d", c.name, fc.name, fc.index))
	}
	if fc.name == "" {
		panic(fmt.Sprintf("class %s: field %d has no name", c.name, fc.index))
	}
	if prev := c.byName[fc.name]; prev != nil {
		panic(fmt.Sprintf("class %s: field %s already defined at index %d", c.name, fc.name, prev.index))
	}
	for len(c.codecs) <= fc.index {
		c.codecs = append(c.codecs, nil)
	}
	if prev := c.codecs[fc.index]; prev != nil {
		panic(fmt.Sprintf("class %s: field index %d is already assigned to %s, cannot use it for %s",
			c.name, fc.index, prev.name, fc.name))
	}
	c.codecs[fc.index] = fc
	c.byName[fc.name] = fc
}

// Field is the typed accessor token for one declared field. It carries no
// object state; pass it to GetField/SetField together with a handle.
type Field[T any] struct {
	class *Class
	codec *fieldCodec
}

// DefineField declares a field on the class with the given index, name,
// semantic type, and default value, and returns its typed accessor token. The
// default is returned by reads of fields that were never set and by reads
// whose decode degrades.
func DefineField[T any](class *Class, index int, name string, spec *TypeSpec, defaultValue T) *Field[T] {
	if spec == nil {
		panic(fmt.Sprintf("class %s: field %s has no type spec", class.name, name))
	}
	goType := reflect.TypeOf((*T)(nil)).Elem()
	fc := &fieldCodec{
		name:   name,
		index:  index,
		spec:   spec,
		def:    defaultValue,
		goType: goType,
		// Decoding into interface-typed fields goes through spec
		// normalization so unions and loosely typed containers come back in
		// canonical form.
		normalizeOnDecode: needsDecodeNormalization(goType),
	}
	fc.decodeRaw = makeDecoder[T](fc)
	class.addCodec(fc)
	return &Field[T]{class: class, codec: fc}
}

// Name returns the declared field name.
func (f *Field[T]) Name() string { return f.codec.name }

// Index returns the field's index in the class definition.
func (f *Field[T]) Index() int { return f.codec.index }

// Spec returns the field's declared semantic type.
func (f *Field[T]) Spec() *TypeSpec { return f.codec.spec }

// Default returns the field's declared default value.
func (f *Field[T]) Default() T {
	d, _ := f.codec.def.(T)
	return d
}

// Metrics returns a snapshot of the field codec's call counters.
func (f *Field[T]) Metrics() CodecMetrics { return f.codec.metrics.snapshot() }

func needsDecodeNormalization(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Interface
	case reflect.Map:
		return t.Elem().Kind() == reflect.Interface
	}
	return false
}
