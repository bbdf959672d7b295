// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"fmt"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// argKey builds the conventional positional key "a1", "a2", ... used
// by request/reply bodies (spec §4.4.3; grounded on
// karabo::util::PackParameters.hh's compile-time tuple packing,
// reworked here as a runtime loop over []any since Go has no
// variadic-template equivalent).
func argKey(i int) string { return fmt.Sprintf("a%d", i+1) }

// packArgs writes args into a fresh Container under a1..aN, converting
// each native Go value to a kdata.Value via toValue.
func packArgs(args ...any) (*kdata.Container, error) {
	c := kdata.NewContainer()
	for i, a := range args {
		v, err := toValue(a)
		if err != nil {
			return nil, kerrors.NewSignalSlotError("argument %d: %v", i+1, err)
		}
		if err := c.Set(argKey(i), v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// unpackArgs reads back a1..aN from body, type-asserting each into the
// type of the corresponding element of out (which callers pass as
// pointers). A missing or short body is a SignalSlotError (arity
// mismatch, spec §4.4.2); a present-but-wrong-typed element is a
// CastError (spec §4.4.3 "type mismatch raises CastError").
func unpackArgs(body *kdata.Container, out ...any) error {
	if body.Len() < len(out) {
		return kerrors.NewSignalSlotError("arity mismatch: body has %d args, want %d", body.Len(), len(out))
	}
	for i, dst := range out {
		v, ok := body.Get(argKey(i))
		if !ok {
			return kerrors.NewSignalSlotError("missing argument %d", i+1)
		}
		if err := assignValue(dst, v); err != nil {
			return kerrors.NewCastError("argument %d: %v", i+1, err)
		}
	}
	return nil
}

// rawArgs returns the positional a1..aN values as native Go values, in
// order, for callers (like reply-forwarding) that do not know the
// target types ahead of time.
func rawArgs(body *kdata.Container) []any {
	out := make([]any, 0, body.Len())
	for i := 0; ; i++ {
		v, ok := body.Get(argKey(i))
		if !ok {
			break
		}
		out = append(out, v.Raw())
	}
	return out
}

// toValue converts a native Go value into the matching kdata.Value
// variant. Reflection is deliberately avoided here: the type switch
// mirrors the concrete set PackParameters.hh enumerates for its
// template specializations.
func toValue(a any) (kdata.Value, error) {
	switch x := a.(type) {
	case nil:
		return kdata.NewNone(), nil
	case bool:
		return kdata.NewBool(x), nil
	case int8:
		return kdata.NewInt8(x), nil
	case int16:
		return kdata.NewInt16(x), nil
	case int:
		return kdata.NewInt32(int32(x)), nil
	case int32:
		return kdata.NewInt32(x), nil
	case int64:
		return kdata.NewInt64(x), nil
	case uint8:
		return kdata.NewUint8(x), nil
	case uint16:
		return kdata.NewUint16(x), nil
	case uint32:
		return kdata.NewUint32(x), nil
	case uint64:
		return kdata.NewUint64(x), nil
	case float32:
		return kdata.NewFloat(x), nil
	case float64:
		return kdata.NewDouble(x), nil
	case complex64:
		return kdata.NewComplexFloat(x), nil
	case complex128:
		return kdata.NewComplexDouble(x), nil
	case string:
		return kdata.NewString(x), nil
	case []byte:
		return kdata.NewByteArray(x), nil
	case []bool:
		return kdata.NewVectorBool(x), nil
	case []int32:
		return kdata.NewVectorInt32(x), nil
	case []float64:
		return kdata.NewVectorDouble(x), nil
	case []string:
		return kdata.NewVectorString(x), nil
	case *kdata.Container:
		return kdata.ContainerValue(x), nil
	case *kdata.Schema:
		return kdata.SchemaValue(x), nil
	case kdata.Value:
		return x, nil
	default:
		return kdata.Value{}, fmt.Errorf("unsupported argument type %T", a)
	}
}

// assignValue writes v's native payload into dst, which must be a
// pointer to the matching Go type.
func assignValue(dst any, v kdata.Value) error {
	switch p := dst.(type) {
	case *bool:
		x, ok := v.AsBool()
		if !ok {
			return fmt.Errorf("expected bool, got %v", v.Type())
		}
		*p = x
	case *int8:
		x, ok := v.AsInt8()
		if !ok {
			return fmt.Errorf("expected int8, got %v", v.Type())
		}
		*p = x
	case *int16:
		x, ok := v.AsInt16()
		if !ok {
			return fmt.Errorf("expected int16, got %v", v.Type())
		}
		*p = x
	case *int32:
		x, ok := v.AsInt32()
		if !ok {
			return fmt.Errorf("expected int32, got %v", v.Type())
		}
		*p = x
	case *int64:
		x, ok := v.AsInt64()
		if !ok {
			return fmt.Errorf("expected int64, got %v", v.Type())
		}
		*p = x
	case *int:
		x, ok := v.AsInt32()
		if !ok {
			return fmt.Errorf("expected int32, got %v", v.Type())
		}
		*p = int(x)
	case *uint8:
		x, ok := v.AsUint8()
		if !ok {
			return fmt.Errorf("expected uint8, got %v", v.Type())
		}
		*p = x
	case *uint32:
		x, ok := v.AsUint32()
		if !ok {
			return fmt.Errorf("expected uint32, got %v", v.Type())
		}
		*p = x
	case *uint64:
		x, ok := v.AsUint64()
		if !ok {
			return fmt.Errorf("expected uint64, got %v", v.Type())
		}
		*p = x
	case *float32:
		x, ok := v.AsFloat()
		if !ok {
			return fmt.Errorf("expected float32, got %v", v.Type())
		}
		*p = x
	case *float64:
		x, ok := v.AsDouble()
		if !ok {
			return fmt.Errorf("expected float64, got %v", v.Type())
		}
		*p = x
	case *string:
		x, ok := v.AsString()
		if !ok {
			return fmt.Errorf("expected string, got %v", v.Type())
		}
		*p = x
	case *[]byte:
		x, ok := v.AsByteArray()
		if !ok {
			return fmt.Errorf("expected byte array, got %v", v.Type())
		}
		*p = x.Data
	case *[]bool:
		x, ok := v.AsVectorBool()
		if !ok {
			return fmt.Errorf("expected vector<bool>, got %v", v.Type())
		}
		*p = x
	case *[]int32:
		x, ok := v.AsVectorInt32()
		if !ok {
			return fmt.Errorf("expected vector<int32>, got %v", v.Type())
		}
		*p = x
	case *[]float64:
		x, ok := v.AsVectorDouble()
		if !ok {
			return fmt.Errorf("expected vector<double>, got %v", v.Type())
		}
		*p = x
	case *[]string:
		x, ok := v.AsVectorString()
		if !ok {
			return fmt.Errorf("expected vector<string>, got %v", v.Type())
		}
		*p = x
	case **kdata.Container:
		x, ok := v.AsContainer()
		if !ok {
			return fmt.Errorf("expected container, got %v", v.Type())
		}
		*p = x
	case *kdata.Value:
		*p = v
	default:
		return fmt.Errorf("unsupported destination type %T", dst)
	}
	return nil
}
