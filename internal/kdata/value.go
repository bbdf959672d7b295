// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kdata

import (
	"bytes"
	"math/cmplx"
	"reflect"
)

// ByteArray is a blob of opaque bytes. Shared marks it as a borrowed
// leaf: the BinarySerializer will hand it to the BufferSet as a
// borrowed segment instead of copying it inline (spec §3, §4.1).
type ByteArray struct {
	Data   []byte
	Shared bool
}

// Value is a single tagged leaf of a Container: one of the Type
// Registry's scalar, container, byte-array, schema or vector
// variants. Large payloads (string, vector, nested container) are
// kept behind the native Go reference types they already are, so the
// struct itself stays small (design note: "store large variants
// behind owning handles").
type Value struct {
	typ  Type
	data any
}

func NewNone() Value                       { return Value{typ: TypeNone} }
func NewBool(v bool) Value                 { return Value{typ: TypeBool, data: v} }
func NewChar(v Char) Value                 { return Value{typ: TypeChar, data: v} }
func NewInt8(v int8) Value                 { return Value{typ: TypeInt8, data: v} }
func NewInt16(v int16) Value               { return Value{typ: TypeInt16, data: v} }
func NewInt32(v int32) Value               { return Value{typ: TypeInt32, data: v} }
func NewInt64(v int64) Value               { return Value{typ: TypeInt64, data: v} }
func NewUint8(v uint8) Value               { return Value{typ: TypeUint8, data: v} }
func NewUint16(v uint16) Value             { return Value{typ: TypeUint16, data: v} }
func NewUint32(v uint32) Value             { return Value{typ: TypeUint32, data: v} }
func NewUint64(v uint64) Value             { return Value{typ: TypeUint64, data: v} }
func NewFloat(v float32) Value             { return Value{typ: TypeFloat, data: v} }
func NewDouble(v float64) Value            { return Value{typ: TypeDouble, data: v} }
func NewComplexFloat(v complex64) Value    { return Value{typ: TypeComplexFloat, data: v} }
func NewComplexDouble(v complex128) Value  { return Value{typ: TypeComplexDouble, data: v} }
func NewString(v string) Value             { return Value{typ: TypeString, data: v} }
func NewByteArray(v []byte) Value          { return Value{typ: TypeByteArray, data: &ByteArray{Data: v}} }
func NewSharedByteArray(v []byte) Value    { return Value{typ: TypeByteArray, data: &ByteArray{Data: v, Shared: true}} }
func ContainerValue(c *Container) Value        { return Value{typ: TypeContainer, data: c} }
func ContainerPointerValue(c *Container) Value { return Value{typ: TypeContainerPointer, data: c} }
func SchemaValue(s *Schema) Value           { return Value{typ: TypeSchema, data: s} }

func NewVectorBool(v []bool) Value         { return Value{typ: TypeVectorBool, data: v} }
func NewVectorChar(v []Char) Value         { return Value{typ: TypeVectorChar, data: v} }
func NewVectorInt8(v []int8) Value         { return Value{typ: TypeVectorInt8, data: v} }
func NewVectorInt16(v []int16) Value       { return Value{typ: TypeVectorInt16, data: v} }
func NewVectorInt32(v []int32) Value       { return Value{typ: TypeVectorInt32, data: v} }
func NewVectorInt64(v []int64) Value       { return Value{typ: TypeVectorInt64, data: v} }
func NewVectorUint8(v []uint8) Value       { return Value{typ: TypeVectorUint8, data: v} }
func NewVectorUint16(v []uint16) Value     { return Value{typ: TypeVectorUint16, data: v} }
func NewVectorUint32(v []uint32) Value     { return Value{typ: TypeVectorUint32, data: v} }
func NewVectorUint64(v []uint64) Value     { return Value{typ: TypeVectorUint64, data: v} }
func NewVectorFloat(v []float32) Value     { return Value{typ: TypeVectorFloat, data: v} }
func NewVectorDouble(v []float64) Value    { return Value{typ: TypeVectorDouble, data: v} }
func NewVectorComplexFloat(v []complex64) Value   { return Value{typ: TypeVectorComplexFloat, data: v} }
func NewVectorComplexDouble(v []complex128) Value { return Value{typ: TypeVectorComplexDouble, data: v} }
func NewVectorString(v []string) Value     { return Value{typ: TypeVectorString, data: v} }
func NewVectorNone(n int) Value            { return Value{typ: TypeVectorNone, data: n} }
func NewVectorContainer(v []*Container) Value { return Value{typ: TypeVectorContainer, data: v} }
func NewVectorContainerPointer(v []*Container) Value {
	return Value{typ: TypeVectorContainerPointer, data: v}
}

func (v Value) Type() Type { return v.typ }
func (v Value) IsNone() bool { return v.typ == TypeNone }

func (v Value) AsBool() (bool, bool)               { b, ok := v.data.(bool); return b, ok }
func (v Value) AsChar() (Char, bool)                { c, ok := v.data.(Char); return c, ok }
func (v Value) AsInt8() (int8, bool)                { x, ok := v.data.(int8); return x, ok }
func (v Value) AsInt16() (int16, bool)              { x, ok := v.data.(int16); return x, ok }
func (v Value) AsInt32() (int32, bool)              { x, ok := v.data.(int32); return x, ok }
func (v Value) AsInt64() (int64, bool)              { x, ok := v.data.(int64); return x, ok }
func (v Value) AsUint8() (uint8, bool)              { x, ok := v.data.(uint8); return x, ok }
func (v Value) AsUint16() (uint16, bool)            { x, ok := v.data.(uint16); return x, ok }
func (v Value) AsUint32() (uint32, bool)            { x, ok := v.data.(uint32); return x, ok }
func (v Value) AsUint64() (uint64, bool)            { x, ok := v.data.(uint64); return x, ok }
func (v Value) AsFloat() (float32, bool)            { x, ok := v.data.(float32); return x, ok }
func (v Value) AsDouble() (float64, bool)           { x, ok := v.data.(float64); return x, ok }
func (v Value) AsComplexFloat() (complex64, bool)   { x, ok := v.data.(complex64); return x, ok }
func (v Value) AsComplexDouble() (complex128, bool) { x, ok := v.data.(complex128); return x, ok }
func (v Value) AsString() (string, bool)            { x, ok := v.data.(string); return x, ok }
func (v Value) AsByteArray() (*ByteArray, bool)     { x, ok := v.data.(*ByteArray); return x, ok }
func (v Value) AsContainer() (*Container, bool)     { x, ok := v.data.(*Container); return x, ok }
func (v Value) AsSchema() (*Schema, bool)           { x, ok := v.data.(*Schema); return x, ok }
func (v Value) AsVectorBool() ([]bool, bool)        { x, ok := v.data.([]bool); return x, ok }
func (v Value) AsVectorInt32() ([]int32, bool)      { x, ok := v.data.([]int32); return x, ok }
func (v Value) AsVectorDouble() ([]float64, bool)   { x, ok := v.data.([]float64); return x, ok }
func (v Value) AsVectorString() ([]string, bool)    { x, ok := v.data.([]string); return x, ok }
func (v Value) AsVectorContainer() ([]*Container, bool) {
	x, ok := v.data.([]*Container)
	return x, ok
}

// Raw exposes the underlying native Go value for generic code paths
// (the binary serializer's type-dispatch table, argument packing).
func (v Value) Raw() any { return v.data }

// Equal implements the round-trip equality law from spec §8: value
// and attribute equality, with container vs container-pointer
// compared strictly by tag.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNone:
		return true
	case TypeFloat:
		a, _ := v.AsFloat()
		b, _ := other.AsFloat()
		return a == b
	case TypeDouble:
		a, _ := v.AsDouble()
		b, _ := other.AsDouble()
		return a == b
	case TypeComplexFloat:
		a, _ := v.AsComplexFloat()
		b, _ := other.AsComplexFloat()
		return cmplx.Abs(complex128(a)-complex128(b)) == 0
	case TypeComplexDouble:
		a, _ := v.AsComplexDouble()
		b, _ := other.AsComplexDouble()
		return a == b
	case TypeByteArray:
		a, aok := v.AsByteArray()
		b, bok := other.AsByteArray()
		if !aok || !bok {
			return false
		}
		return bytes.Equal(a.Data, b.Data)
	case TypeContainer, TypeContainerPointer:
		a, aok := v.AsContainer()
		b, bok := other.AsContainer()
		if !aok || !bok {
			return false
		}
		return a.Equal(b)
	case TypeSchema:
		a, aok := v.AsSchema()
		b, bok := other.AsSchema()
		if !aok || !bok {
			return false
		}
		return a.Equal(b)
	case TypeVectorContainer, TypeVectorContainerPointer:
		a, _ := v.data.([]*Container)
		b, _ := other.data.([]*Container)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(v.data, other.data)
	}
}
