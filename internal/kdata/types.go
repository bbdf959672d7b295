// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package kdata implements the Container — the self-describing
// recursive key/value map that is the universal payload of the
// signal/slot RPC runtime — and its Type Registry, attribute maps and
// Schema (spec §3).
package kdata

// Type is the wire tag identifying a Value's variant. Values are
// serialized with a 4-byte little-endian Type per spec §4.2.
type Type uint32

const (
	TypeBool Type = iota
	TypeChar
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat
	TypeDouble
	TypeComplexFloat
	TypeComplexDouble
	TypeString
	TypeNone
	TypeContainer
	TypeContainerPointer
	TypeByteArray
	TypeSchema

	TypeVectorBool
	TypeVectorChar
	TypeVectorInt8
	TypeVectorInt16
	TypeVectorInt32
	TypeVectorInt64
	TypeVectorUint8
	TypeVectorUint16
	TypeVectorUint32
	TypeVectorUint64
	TypeVectorFloat
	TypeVectorDouble
	TypeVectorComplexFloat
	TypeVectorComplexDouble
	TypeVectorString
	TypeVectorNone
	TypeVectorContainer
	TypeVectorContainerPointer
)

// Char is a distinct scalar type from uint8/int8 in the registry,
// matching the original's separate `CHAR` tag.
type Char byte

// fixedWidth returns the encoded byte width of a scalar Type, or 0 if
// the type is not fixed-width (string, byte-array, vectors,
// container, schema, none all carry an explicit length prefix
// instead).
func fixedWidth(t Type) int {
	switch t {
	case TypeBool, TypeChar, TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat:
		return 4
	case TypeInt64, TypeUint64, TypeDouble, TypeComplexFloat:
		return 8
	case TypeComplexDouble:
		return 16
	default:
		return 0
	}
}

// IsVector reports whether t is one of the vector-of-scalar tags.
func (t Type) IsVector() bool {
	return t >= TypeVectorBool && t <= TypeVectorContainerPointer
}

// scalarOf returns the element Type of a vector Type.
func scalarOf(t Type) Type {
	switch t {
	case TypeVectorBool:
		return TypeBool
	case TypeVectorChar:
		return TypeChar
	case TypeVectorInt8:
		return TypeInt8
	case TypeVectorInt16:
		return TypeInt16
	case TypeVectorInt32:
		return TypeInt32
	case TypeVectorInt64:
		return TypeInt64
	case TypeVectorUint8:
		return TypeUint8
	case TypeVectorUint16:
		return TypeUint16
	case TypeVectorUint32:
		return TypeUint32
	case TypeVectorUint64:
		return TypeUint64
	case TypeVectorFloat:
		return TypeFloat
	case TypeVectorDouble:
		return TypeDouble
	case TypeVectorComplexFloat:
		return TypeComplexFloat
	case TypeVectorComplexDouble:
		return TypeComplexDouble
	case TypeVectorString:
		return TypeString
	case TypeVectorNone:
		return TypeNone
	case TypeVectorContainer:
		return TypeContainer
	case TypeVectorContainerPointer:
		return TypeContainerPointer
	default:
		return TypeNone
	}
}

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "BOOL"
	case TypeChar:
		return "CHAR"
	case TypeInt8:
		return "INT8"
	case TypeInt16:
		return "INT16"
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeUint8:
		return "UINT8"
	case TypeUint16:
		return "UINT16"
	case TypeUint32:
		return "UINT32"
	case TypeUint64:
		return "UINT64"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeComplexFloat:
		return "COMPLEX_FLOAT"
	case TypeComplexDouble:
		return "COMPLEX_DOUBLE"
	case TypeString:
		return "STRING"
	case TypeNone:
		return "NONE"
	case TypeContainer:
		return "CONTAINER"
	case TypeContainerPointer:
		return "CONTAINER_POINTER"
	case TypeByteArray:
		return "BYTE_ARRAY"
	case TypeSchema:
		return "SCHEMA"
	default:
		if t.IsVector() {
			return "VECTOR_" + scalarOf(t).String()
		}
		return "UNKNOWN"
	}
}
