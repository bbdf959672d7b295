// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kio

import "testing"

func TestBufferSetAppendCopyMerges(t *testing.T) {
	bs := New()
	bs.AppendCopy([]byte("ab"))
	bs.AppendCopy([]byte("cd"))
	if bs.NumSegments() != 1 {
		t.Fatalf("expected consecutive copies to merge into one segment, got %d", bs.NumSegments())
	}
	seg, _ := bs.Current()
	if string(seg.Data) != "abcd" {
		t.Fatalf("segment data = %q, want abcd", seg.Data)
	}
}

func TestBufferSetEmplaceByteArrayStartsFreshSegment(t *testing.T) {
	bs := New()
	bs.AppendCopy([]byte("hdr"))
	bs.EmplaceByteArray([]byte{1, 2, 3}, true)
	bs.AppendCopy([]byte("trailer"))

	if bs.NumSegments() != 3 {
		t.Fatalf("expected 3 segments, got %d", bs.NumSegments())
	}
	segs := bs.Segments()
	if segs[0].Kind != SegmentCopied || segs[1].Kind != SegmentBorrowed || segs[2].Kind != SegmentCopied {
		t.Fatalf("unexpected segment kinds: %+v", segs)
	}
	if len(segs[1].Data) != 3 {
		t.Fatalf("borrowed segment length = %d, want 3", len(segs[1].Data))
	}
}

func TestBufferSetCursorTraversal(t *testing.T) {
	bs := New()
	bs.AppendCopy([]byte("a"))
	bs.EmplaceByteArray([]byte{9, 9}, false)
	bs.AppendCopy([]byte("b"))

	bs.Rewind()
	count := 1
	for bs.Next() {
		count++
	}
	if count != bs.NumSegments() {
		t.Fatalf("traversal visited %d segments, want %d", count, bs.NumSegments())
	}
}

func TestBufferSetTotalSize(t *testing.T) {
	bs := New()
	bs.AppendCopy([]byte("abcd"))
	bs.EmplaceByteArray([]byte{1, 2, 3, 4, 5, 6, 7, 8}, true)
	if bs.TotalSize() != 4+4+8 {
		t.Fatalf("TotalSize() = %d, want %d", bs.TotalSize(), 4+4+8)
	}
}

func TestBufferSetAppendToNoCopyForwardsBorrowed(t *testing.T) {
	src := New()
	src.AppendCopy([]byte("x"))
	payload := []byte{7, 7, 7}
	src.EmplaceByteArray(payload, false)

	dst := New()
	src.AppendTo(dst, false)

	found := false
	for _, seg := range dst.Segments() {
		if seg.Kind == SegmentBorrowed && len(seg.Data) == len(payload) {
			found = true
			if &seg.Data[0] != &payload[0] {
				t.Fatal("expected borrowed segment to reference the same backing array")
			}
		}
	}
	if !found {
		t.Fatal("expected a borrowed segment forwarded into dst")
	}
}

func TestBufferSetAppendToCopyFlattensEverything(t *testing.T) {
	src := New()
	src.AppendCopy([]byte("x"))
	src.EmplaceByteArray([]byte{7, 7, 7}, false)

	dst := New()
	src.AppendTo(dst, true)

	for _, seg := range dst.Segments() {
		if seg.Kind == SegmentBorrowed {
			t.Fatal("copy mode must not produce borrowed segments")
		}
	}
}

func TestBufferSetFlattenRoundTrip(t *testing.T) {
	bs := New()
	bs.AppendCopy([]byte("abc"))
	bs.EmplaceByteArray([]byte{1, 2}, false)
	bs.AppendCopy([]byte("xyz"))

	flat := bs.Flatten()
	again := FromFlat(flat)
	if again.TotalSize() != bs.TotalSize() {
		t.Fatalf("flatten round trip size mismatch: %d vs %d", again.TotalSize(), bs.TotalSize())
	}
}
