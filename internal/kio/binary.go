// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kio

import (
	"encoding/binary"
	"math"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// Encode serializes a Container into a fresh BufferSet following the
// wire format of spec §4.2: byte-array leaves become borrowed
// segments so publishing can avoid copying them.
func Encode(c *kdata.Container) (*BufferSet, error) {
	bs := New()
	if err := encodeContainer(bs, c); err != nil {
		return nil, err
	}
	return bs, nil
}

// Decode parses a Container from a BufferSet, returning the Container
// and the number of bytes consumed across all segments.
func Decode(bs *BufferSet) (*kdata.Container, int, error) {
	d, err := newDecoder(bs)
	if err != nil {
		return nil, 0, err
	}
	c, err := decodeContainer(d)
	if err != nil {
		return nil, 0, err
	}
	return c, d.consumed(), nil
}

// EncodeSchema serializes a Schema: u32 payloadLen, u8 rootLen,
// rootBytes, containerEncoding (spec §4.2).
func EncodeSchema(s *kdata.Schema) (*BufferSet, error) {
	bs := New()
	if err := encodeSchemaValue(bs, s); err != nil {
		return nil, err
	}
	return bs, nil
}

// DecodeSchema parses a Schema from a BufferSet.
func DecodeSchema(bs *BufferSet) (*kdata.Schema, error) {
	d, err := newDecoder(bs)
	if err != nil {
		return nil, err
	}
	return decodeSchemaValue(d)
}

// --- encoding ---

func encodeContainer(bs *BufferSet, c *kdata.Container) error {
	keys := c.Keys()
	bs.AppendCopy(encodeUint32(uint32(len(keys))))
	for _, key := range keys {
		if len(key) > kdata.MaxKeyLen {
			return kerrors.NewEncodingError("key %q exceeds %d bytes", key, kdata.MaxKeyLen)
		}
		bs.AppendCopy([]byte{byte(len(key))})
		bs.AppendCopy([]byte(key))

		val, _ := c.Get(key)
		bs.AppendCopy(encodeUint32(uint32(val.Type())))

		if err := encodeAttributes(bs, c.Attributes(key)); err != nil {
			return err
		}
		if err := encodeValue(bs, val); err != nil {
			return err
		}
	}
	return nil
}

func encodeAttributes(bs *BufferSet, attrs *kdata.AttributeMap) error {
	keys := attrs.Keys()
	bs.AppendCopy(encodeUint32(uint32(len(keys))))
	for _, key := range keys {
		if len(key) > kdata.MaxKeyLen {
			return kerrors.NewEncodingError("attribute key %q exceeds %d bytes", key, kdata.MaxKeyLen)
		}
		bs.AppendCopy([]byte{byte(len(key))})
		bs.AppendCopy([]byte(key))
		v, _ := attrs.Get(key)
		bs.AppendCopy(encodeUint32(uint32(v.Type())))
		if err := encodeValue(bs, v); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(bs *BufferSet, v kdata.Value) error {
	t := v.Type()
	switch t {
	case kdata.TypeBool:
		x, _ := v.AsBool()
		b := byte(0)
		if x {
			b = 1
		}
		bs.AppendCopy([]byte{b})
	case kdata.TypeChar:
		x, _ := v.AsChar()
		bs.AppendCopy([]byte{byte(x)})
	case kdata.TypeInt8:
		x, _ := v.AsInt8()
		bs.AppendCopy([]byte{byte(x)})
	case kdata.TypeUint8:
		x, _ := v.AsUint8()
		bs.AppendCopy([]byte{x})
	case kdata.TypeInt16:
		x, _ := v.AsInt16()
		bs.AppendCopy(encodeUint16(uint16(x)))
	case kdata.TypeUint16:
		x, _ := v.AsUint16()
		bs.AppendCopy(encodeUint16(x))
	case kdata.TypeInt32:
		x, _ := v.AsInt32()
		bs.AppendCopy(encodeUint32(uint32(x)))
	case kdata.TypeUint32:
		x, _ := v.AsUint32()
		bs.AppendCopy(encodeUint32(x))
	case kdata.TypeInt64:
		x, _ := v.AsInt64()
		bs.AppendCopy(encodeUint64(uint64(x)))
	case kdata.TypeUint64:
		x, _ := v.AsUint64()
		bs.AppendCopy(encodeUint64(x))
	case kdata.TypeFloat:
		x, _ := v.AsFloat()
		bs.AppendCopy(encodeUint32(math.Float32bits(x)))
	case kdata.TypeDouble:
		x, _ := v.AsDouble()
		bs.AppendCopy(encodeUint64(math.Float64bits(x)))
	case kdata.TypeComplexFloat:
		x, _ := v.AsComplexFloat()
		bs.AppendCopy(encodeUint32(math.Float32bits(real(x))))
		bs.AppendCopy(encodeUint32(math.Float32bits(imag(x))))
	case kdata.TypeComplexDouble:
		x, _ := v.AsComplexDouble()
		bs.AppendCopy(encodeUint64(math.Float64bits(real(x))))
		bs.AppendCopy(encodeUint64(math.Float64bits(imag(x))))
	case kdata.TypeString:
		s, _ := v.AsString()
		bs.AppendCopy(encodeUint32(uint32(len(s))))
		bs.AppendCopy([]byte(s))
	case kdata.TypeNone:
		bs.AppendCopy(encodeUint32(0))
	case kdata.TypeByteArray:
		ba, _ := v.AsByteArray()
		bs.AppendCopy(encodeUint32(uint32(len(ba.Data))))
		if len(ba.Data) > 0 {
			bs.EmplaceByteArray(ba.Data, false)
		}
	case kdata.TypeContainer, kdata.TypeContainerPointer:
		c, _ := v.AsContainer()
		return encodeContainer(bs, c)
	case kdata.TypeSchema:
		s, _ := v.AsSchema()
		return encodeSchemaValue(bs, s)
	default:
		if t.IsVector() {
			return encodeVector(bs, v)
		}
		return kerrors.NewEncodingError("unknown type tag %v", t)
	}
	return nil
}

func encodeVector(bs *BufferSet, v kdata.Value) error {
	switch t := v.Type(); t {
	case kdata.TypeVectorBool:
		xs, _ := v.Raw().([]bool)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			b := byte(0)
			if x {
				b = 1
			}
			bs.AppendCopy([]byte{b})
		}
	case kdata.TypeVectorChar:
		xs, _ := v.Raw().([]kdata.Char)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy([]byte{byte(x)})
		}
	case kdata.TypeVectorInt8:
		xs, _ := v.Raw().([]int8)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy([]byte{byte(x)})
		}
	case kdata.TypeVectorUint8:
		xs, _ := v.Raw().([]uint8)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		bs.AppendCopy(xs)
	case kdata.TypeVectorInt16:
		xs, _ := v.Raw().([]int16)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint16(uint16(x)))
		}
	case kdata.TypeVectorUint16:
		xs, _ := v.Raw().([]uint16)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint16(x))
		}
	case kdata.TypeVectorInt32:
		xs, _ := v.Raw().([]int32)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint32(uint32(x)))
		}
	case kdata.TypeVectorUint32:
		xs, _ := v.Raw().([]uint32)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint32(x))
		}
	case kdata.TypeVectorInt64:
		xs, _ := v.Raw().([]int64)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint64(uint64(x)))
		}
	case kdata.TypeVectorUint64:
		xs, _ := v.Raw().([]uint64)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint64(x))
		}
	case kdata.TypeVectorFloat:
		xs, _ := v.Raw().([]float32)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint32(math.Float32bits(x)))
		}
	case kdata.TypeVectorDouble:
		xs, _ := v.Raw().([]float64)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint64(math.Float64bits(x)))
		}
	case kdata.TypeVectorComplexFloat:
		xs, _ := v.Raw().([]complex64)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint32(math.Float32bits(real(x))))
			bs.AppendCopy(encodeUint32(math.Float32bits(imag(x))))
		}
	case kdata.TypeVectorComplexDouble:
		xs, _ := v.Raw().([]complex128)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, x := range xs {
			bs.AppendCopy(encodeUint64(math.Float64bits(real(x))))
			bs.AppendCopy(encodeUint64(math.Float64bits(imag(x))))
		}
	case kdata.TypeVectorString:
		xs, _ := v.Raw().([]string)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, s := range xs {
			bs.AppendCopy(encodeUint32(uint32(len(s))))
			bs.AppendCopy([]byte(s))
		}
	case kdata.TypeVectorNone:
		n, _ := v.Raw().(int)
		bs.AppendCopy(encodeUint32(uint32(n)))
	case kdata.TypeVectorContainer, kdata.TypeVectorContainerPointer:
		xs, _ := v.Raw().([]*kdata.Container)
		bs.AppendCopy(encodeUint32(uint32(len(xs))))
		for _, c := range xs {
			if err := encodeContainer(bs, c); err != nil {
				return err
			}
		}
	default:
		return kerrors.NewEncodingError("unknown vector type tag %v", t)
	}
	return nil
}

func encodeSchemaValue(bs *BufferSet, s *kdata.Schema) error {
	payload := New()
	if len(s.RootName) > 255 {
		return kerrors.NewEncodingError("schema root name %q exceeds 255 bytes", s.RootName)
	}
	payload.AppendCopy([]byte{byte(len(s.RootName))})
	payload.AppendCopy([]byte(s.RootName))
	if err := encodeContainer(payload, s.Params); err != nil {
		return err
	}
	bs.AppendCopy(encodeUint32(uint32(payload.TotalSize())))
	payload.AppendTo(bs, false)
	return nil
}

func encodeUint16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// --- decoding ---

// decoder walks a BufferSet's shape (copied) segments linearly,
// transparently crossing into and back out of borrowed byte-array
// segments when a byte-array value is encountered.
type decoder struct {
	bs       *BufferSet
	data     []byte
	off      int
	consumedBytes int
}

func newDecoder(bs *BufferSet) (*decoder, error) {
	bs.Rewind()
	seg, ok := bs.Current()
	if !ok || seg.Kind != SegmentCopied {
		return nil, kerrors.NewDecodingError("buffer set does not start with a copied segment")
	}
	return &decoder{bs: bs, data: seg.Data}, nil
}

func (d *decoder) consumed() int { return d.consumedBytes }

func (d *decoder) readBytes(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.data) {
		return nil, kerrors.NewDecodingError("unexpected end of segment reading %d bytes", n)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	d.consumedBytes += n
	return b, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) readUint16() (uint16, error) {
	b, err := d.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *decoder) readUint32() (uint32, error) {
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) readUint64() (uint64, error) {
	b, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readByteArrayPayload crosses the segment boundary to fetch a
// borrowed byte-array segment of exactly n bytes, then resumes
// reading shape bytes from the copied segment that follows it.
func (d *decoder) readByteArrayPayload(n int) ([]byte, error) {
	if !d.bs.Next() {
		return nil, kerrors.NewDecodingError("expected borrowed byte-array segment, found end of buffer set")
	}
	seg, _ := d.bs.Current()
	if seg.Kind != SegmentBorrowed {
		return nil, kerrors.NewDecodingError("expected borrowed byte-array segment, found copied segment")
	}
	if err := checkSegmentLen(n, len(seg.Data)); err != nil {
		return nil, err
	}
	d.consumedBytes += len(seg.Data)
	payload := seg.Data
	if !d.bs.Next() {
		return nil, kerrors.NewDecodingError("expected trailing copied segment after byte-array")
	}
	next, _ := d.bs.Current()
	if next.Kind != SegmentCopied {
		return nil, kerrors.NewDecodingError("expected copied segment after byte-array borrow")
	}
	d.data = next.Data
	d.off = 0
	return payload, nil
}

func decodeContainer(d *decoder) (*kdata.Container, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	c := kdata.NewContainer()
	type attrPair struct {
		key string
		val kdata.Value
	}
	for i := uint32(0); i < n; i++ {
		keyLen, err := d.readByte()
		if err != nil {
			return nil, err
		}
		keyBytes, err := d.readBytes(int(keyLen))
		if err != nil {
			return nil, err
		}
		key := string(keyBytes)

		typeTag, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		typ := kdata.Type(typeTag)

		nAttrs, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		pairs := make([]attrPair, 0, nAttrs)
		for a := uint32(0); a < nAttrs; a++ {
			akLen, err := d.readByte()
			if err != nil {
				return nil, err
			}
			akBytes, err := d.readBytes(int(akLen))
			if err != nil {
				return nil, err
			}
			atTag, err := d.readUint32()
			if err != nil {
				return nil, err
			}
			av, err := decodeValue(d, kdata.Type(atTag))
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, attrPair{key: string(akBytes), val: av})
		}

		val, err := decodeValue(d, typ)
		if err != nil {
			return nil, err
		}
		if err := c.Set(key, val); err != nil {
			return nil, err
		}
		for _, p := range pairs {
			if err := c.SetAttribute(key, p.key, p.val); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func decodeValue(d *decoder, t kdata.Type) (kdata.Value, error) {
	switch t {
	case kdata.TypeBool:
		b, err := d.readByte()
		return kdata.NewBool(b != 0), err
	case kdata.TypeChar:
		b, err := d.readByte()
		return kdata.NewChar(kdata.Char(b)), err
	case kdata.TypeInt8:
		b, err := d.readByte()
		return kdata.NewInt8(int8(b)), err
	case kdata.TypeUint8:
		b, err := d.readByte()
		return kdata.NewUint8(b), err
	case kdata.TypeInt16:
		v, err := d.readUint16()
		return kdata.NewInt16(int16(v)), err
	case kdata.TypeUint16:
		v, err := d.readUint16()
		return kdata.NewUint16(v), err
	case kdata.TypeInt32:
		v, err := d.readUint32()
		return kdata.NewInt32(int32(v)), err
	case kdata.TypeUint32:
		v, err := d.readUint32()
		return kdata.NewUint32(v), err
	case kdata.TypeInt64:
		v, err := d.readUint64()
		return kdata.NewInt64(int64(v)), err
	case kdata.TypeUint64:
		v, err := d.readUint64()
		return kdata.NewUint64(v), err
	case kdata.TypeFloat:
		v, err := d.readUint32()
		return kdata.NewFloat(math.Float32frombits(v)), err
	case kdata.TypeDouble:
		v, err := d.readUint64()
		return kdata.NewDouble(math.Float64frombits(v)), err
	case kdata.TypeComplexFloat:
		re, err := d.readUint32()
		if err != nil {
			return kdata.Value{}, err
		}
		im, err := d.readUint32()
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.NewComplexFloat(complex(math.Float32frombits(re), math.Float32frombits(im))), nil
	case kdata.TypeComplexDouble:
		re, err := d.readUint64()
		if err != nil {
			return kdata.Value{}, err
		}
		im, err := d.readUint64()
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.NewComplexDouble(complex(math.Float64frombits(re), math.Float64frombits(im))), nil
	case kdata.TypeString:
		n, err := d.readUint32()
		if err != nil {
			return kdata.Value{}, err
		}
		b, err := d.readBytes(int(n))
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.NewString(string(b)), nil
	case kdata.TypeNone:
		if _, err := d.readUint32(); err != nil {
			return kdata.Value{}, err
		}
		return kdata.NewNone(), nil
	case kdata.TypeByteArray:
		n, err := d.readUint32()
		if err != nil {
			return kdata.Value{}, err
		}
		if n == 0 {
			// The encoder emits no borrowed segment for an empty blob.
			return kdata.NewByteArray(nil), nil
		}
		payload, err := d.readByteArrayPayload(int(n))
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.NewSharedByteArray(payload), nil
	case kdata.TypeContainer:
		c, err := decodeContainer(d)
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.ContainerValue(c), nil
	case kdata.TypeContainerPointer:
		c, err := decodeContainer(d)
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.ContainerPointerValue(c), nil
	case kdata.TypeSchema:
		s, err := decodeSchemaValue(d)
		if err != nil {
			return kdata.Value{}, err
		}
		return kdata.SchemaValue(s), nil
	default:
		if t.IsVector() {
			return decodeVector(d, t)
		}
		return kdata.Value{}, kerrors.NewDecodingError("unknown type tag %d", t)
	}
}

func decodeVector(d *decoder, t kdata.Type) (kdata.Value, error) {
	n, err := d.readUint32()
	if err != nil {
		return kdata.Value{}, err
	}
	count := int(n)
	switch t {
	case kdata.TypeVectorBool:
		out := make([]bool, count)
		for i := range out {
			b, err := d.readByte()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = b != 0
		}
		return kdata.NewVectorBool(out), nil
	case kdata.TypeVectorChar:
		out := make([]kdata.Char, count)
		for i := range out {
			b, err := d.readByte()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = kdata.Char(b)
		}
		return kdata.NewVectorChar(out), nil
	case kdata.TypeVectorInt8:
		out := make([]int8, count)
		for i := range out {
			b, err := d.readByte()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = int8(b)
		}
		return kdata.NewVectorInt8(out), nil
	case kdata.TypeVectorUint8:
		b, err := d.readBytes(count)
		if err != nil {
			return kdata.Value{}, err
		}
		out := make([]uint8, count)
		copy(out, b)
		return kdata.NewVectorUint8(out), nil
	case kdata.TypeVectorInt16:
		out := make([]int16, count)
		for i := range out {
			v, err := d.readUint16()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = int16(v)
		}
		return kdata.NewVectorInt16(out), nil
	case kdata.TypeVectorUint16:
		out := make([]uint16, count)
		for i := range out {
			v, err := d.readUint16()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = v
		}
		return kdata.NewVectorUint16(out), nil
	case kdata.TypeVectorInt32:
		out := make([]int32, count)
		for i := range out {
			v, err := d.readUint32()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = int32(v)
		}
		return kdata.NewVectorInt32(out), nil
	case kdata.TypeVectorUint32:
		out := make([]uint32, count)
		for i := range out {
			v, err := d.readUint32()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = v
		}
		return kdata.NewVectorUint32(out), nil
	case kdata.TypeVectorInt64:
		out := make([]int64, count)
		for i := range out {
			v, err := d.readUint64()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = int64(v)
		}
		return kdata.NewVectorInt64(out), nil
	case kdata.TypeVectorUint64:
		out := make([]uint64, count)
		for i := range out {
			v, err := d.readUint64()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = v
		}
		return kdata.NewVectorUint64(out), nil
	case kdata.TypeVectorFloat:
		out := make([]float32, count)
		for i := range out {
			v, err := d.readUint32()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = math.Float32frombits(v)
		}
		return kdata.NewVectorFloat(out), nil
	case kdata.TypeVectorDouble:
		out := make([]float64, count)
		for i := range out {
			v, err := d.readUint64()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = math.Float64frombits(v)
		}
		return kdata.NewVectorDouble(out), nil
	case kdata.TypeVectorComplexFloat:
		out := make([]complex64, count)
		for i := range out {
			re, err := d.readUint32()
			if err != nil {
				return kdata.Value{}, err
			}
			im, err := d.readUint32()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = complex(math.Float32frombits(re), math.Float32frombits(im))
		}
		return kdata.NewVectorComplexFloat(out), nil
	case kdata.TypeVectorComplexDouble:
		out := make([]complex128, count)
		for i := range out {
			re, err := d.readUint64()
			if err != nil {
				return kdata.Value{}, err
			}
			im, err := d.readUint64()
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = complex(math.Float64frombits(re), math.Float64frombits(im))
		}
		return kdata.NewVectorComplexDouble(out), nil
	case kdata.TypeVectorString:
		out := make([]string, count)
		for i := range out {
			l, err := d.readUint32()
			if err != nil {
				return kdata.Value{}, err
			}
			b, err := d.readBytes(int(l))
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = string(b)
		}
		return kdata.NewVectorString(out), nil
	case kdata.TypeVectorNone:
		return kdata.NewVectorNone(count), nil
	case kdata.TypeVectorContainer, kdata.TypeVectorContainerPointer:
		out := make([]*kdata.Container, count)
		for i := range out {
			c, err := decodeContainer(d)
			if err != nil {
				return kdata.Value{}, err
			}
			out[i] = c
		}
		if t == kdata.TypeVectorContainer {
			return kdata.NewVectorContainer(out), nil
		}
		return kdata.NewVectorContainerPointer(out), nil
	default:
		return kdata.Value{}, kerrors.NewDecodingError("unknown vector type tag %d", t)
	}
}

func decodeSchemaValue(d *decoder) (*kdata.Schema, error) {
	if _, err := d.readUint32(); err != nil { // payloadLen, used only as a wire hint
		return nil, err
	}
	rootLen, err := d.readByte()
	if err != nil {
		return nil, err
	}
	rootBytes, err := d.readBytes(int(rootLen))
	if err != nil {
		return nil, err
	}
	params, err := decodeContainer(d)
	if err != nil {
		return nil, err
	}
	return &kdata.Schema{RootName: string(rootBytes), Params: params}, nil
}
