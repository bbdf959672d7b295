// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kio

import (
	"strings"
	"testing"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
)

// TestRoundTripMixedContainer is scenario S1: a Container mixing a
// scalar, a string, a vector and a nested container must decode back
// to something value- and attribute-equal to the original.
func TestRoundTripMixedContainer(t *testing.T) {
	nested := kdata.NewContainer()
	nested.MustSet("b", kdata.NewBool(true))

	c := kdata.NewContainer()
	c.MustSet("n", kdata.NewInt32(42))
	c.MustSet("s", kdata.NewString("hi"))
	c.MustSet("v", kdata.NewVectorDouble([]float64{1.5, -2.5}))
	c.MustSet("nested", kdata.ContainerValue(nested))

	bs, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, consumed, err := Decode(bs)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != bs.TotalSize() {
		t.Fatalf("consumed %d bytes, want %d (whole buffer)", consumed, bs.TotalSize())
	}
	if !got.Equal(c) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, c)
	}
}

// TestByteArrayScatterGather is scenario S2: a byte-array leaf must
// land in its own borrowed segment surrounded by copied shape
// segments, and total size must equal container overhead plus payload
// plus the length prefix.
func TestByteArrayScatterGather(t *testing.T) {
	blob := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	c := kdata.NewContainer()
	c.MustSet("blob", kdata.NewByteArray(blob))
	c.MustSet("tag", kdata.NewInt32(7))

	bs, err := Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var borrowed int
	for _, seg := range bs.Segments() {
		if seg.Kind == SegmentBorrowed {
			borrowed++
			if len(seg.Data) != len(blob) {
				t.Fatalf("borrowed segment length = %d, want %d", len(seg.Data), len(blob))
			}
		}
	}
	if borrowed != 1 {
		t.Fatalf("expected exactly one borrowed segment, got %d", borrowed)
	}
	// u32 nKeys (4) + "blob" node (1+4+4+4 shape, 4 length, 8 payload)
	// + "tag" node (1+3+4+4 shape, 4 int32) = 45.
	if got := bs.TotalSize(); got != 45 {
		t.Fatalf("TotalSize() = %d, want 45", got)
	}

	got, _, err := Decode(bs)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Equal(c) {
		t.Fatal("round trip mismatch for byte-array container")
	}
}

func TestKeyLengthBoundary(t *testing.T) {
	c := kdata.NewContainer()
	c.Strict = false
	ok255 := strings.Repeat("k", 255)
	if err := c.Set(ok255, kdata.NewInt32(1)); err != nil {
		t.Fatalf("255-byte key should be settable on the container: %v", err)
	}
	if _, err := Encode(c); err != nil {
		t.Fatalf("255-byte key should encode: %v", err)
	}

	// A 256-byte key is rejected by Container.Set itself (both the
	// container and the wire format share the 255-byte limit), so the
	// encoder never even sees it; this exercises the same EncodingError
	// surfaced one layer up.
	bad := strings.Repeat("k", 256)
	if err := c.Set(bad, kdata.NewInt32(1)); err == nil {
		t.Fatal("expected 256-byte key to be rejected")
	}
}

func TestEmptyStringRoundTrip(t *testing.T) {
	c := kdata.NewContainer()
	c.MustSet("s", kdata.NewString(""))
	bs, err := Encode(c)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(bs)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := got.Get("s")
	if s, _ := v.AsString(); s != "" {
		t.Fatalf("got %q, want empty string", s)
	}
}

func TestZeroLengthByteArrayNoBorrowedSegment(t *testing.T) {
	c := kdata.NewContainer()
	c.MustSet("blob", kdata.NewByteArray(nil))
	bs, err := Encode(c)
	if err != nil {
		t.Fatal(err)
	}
	for _, seg := range bs.Segments() {
		if seg.Kind == SegmentBorrowed {
			t.Fatalf("unexpected borrowed segment for a zero-length byte array: %+v", seg)
		}
	}
	got, _, err := Decode(bs)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(c) {
		t.Fatal("zero-length byte-array did not round trip")
	}
}

func TestContainerPointerVariantPreserved(t *testing.T) {
	inner := kdata.NewContainer()
	inner.MustSet("x", kdata.NewInt32(1))
	c := kdata.NewContainer()
	c.MustSet("ptr", kdata.ContainerPointerValue(inner))

	bs, err := Encode(c)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(bs)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := got.Get("ptr")
	if v.Type() != kdata.TypeContainerPointer {
		t.Fatalf("expected container-pointer tag preserved, got %v", v.Type())
	}
}

func TestSchemaRoundTrip(t *testing.T) {
	s := kdata.NewSchema("motor")
	s.Params.MustSet("speed", kdata.NewNone())
	_ = s.Params.SetAttribute("speed", kdata.AttrDefaultValue, kdata.NewDouble(3.5))

	bs, err := EncodeSchema(s)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSchema(bs)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(s) {
		t.Fatal("schema round trip mismatch")
	}
}

func TestSequenceEncodingRoundTrip(t *testing.T) {
	c1 := kdata.NewContainer()
	c1.MustSet("i", kdata.NewInt32(1))
	c2 := kdata.NewContainer()
	c2.MustSet("i", kdata.NewInt32(2))

	wrapped := kdata.SaveSequence([]*kdata.Container{c1, c2})
	bs, err := Encode(wrapped)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := Decode(bs)
	if err != nil {
		t.Fatal(err)
	}
	seq := kdata.LoadSequence(got)
	if len(seq) != 2 {
		t.Fatalf("expected 2-element sequence, got %d", len(seq))
	}
}
