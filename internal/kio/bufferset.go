// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package kio implements the BufferSet scatter/gather byte layout and
// the BinarySerializer that encodes/decodes Containers and Schemas
// onto it (spec §4.1, §4.2).
package kio

import "github.com/European-XFEL/Karabo-sub015/internal/kerrors"

// SegmentKind distinguishes an owned, copied byte run from a borrowed
// reference into externally owned memory.
type SegmentKind int

const (
	SegmentCopied SegmentKind = iota
	SegmentBorrowed
)

// Segment is one entry of a BufferSet. Copied segments own Data;
// Borrowed segments reference it — the BufferSet never copies a
// borrowed segment's bytes on its own.
type Segment struct {
	Kind SegmentKind
	Data []byte
}

// BufferSet is an ordered list of buffer segments with a read cursor,
// used to carry one serialized message without copying byte-array
// leaves (spec §3, §4.1).
type BufferSet struct {
	segments []Segment
	cursor   int
}

// New returns a BufferSet primed with a single empty copied segment,
// ready to receive AppendCopy calls.
func New() *BufferSet {
	return &BufferSet{segments: []Segment{{Kind: SegmentCopied}}}
}

// AppendCopy appends bytes to the current copied segment, starting a
// fresh one first if the last segment is borrowed.
func (b *BufferSet) AppendCopy(p []byte) {
	if len(b.segments) == 0 || b.segments[len(b.segments)-1].Kind != SegmentCopied {
		b.segments = append(b.segments, Segment{Kind: SegmentCopied})
	}
	last := &b.segments[len(b.segments)-1]
	last.Data = append(last.Data, p...)
}

// EmplaceByteArray optionally writes a 4-byte little-endian length
// into the current copied segment, then appends blob as a borrowed
// segment and opens a fresh empty copied segment after it (spec
// §4.1).
func (b *BufferSet) EmplaceByteArray(blob []byte, writeSize bool) {
	if writeSize {
		b.AppendCopy(encodeUint32(uint32(len(blob))))
	}
	b.segments = append(b.segments, Segment{Kind: SegmentBorrowed, Data: blob})
	b.segments = append(b.segments, Segment{Kind: SegmentCopied})
}

// EmplaceVector either borrows data (zeroCopy) or copies it into the
// current copied segment (spec §4.1).
func (b *BufferSet) EmplaceVector(data []byte, zeroCopy bool) {
	if zeroCopy {
		b.segments = append(b.segments, Segment{Kind: SegmentBorrowed, Data: data})
		b.segments = append(b.segments, Segment{Kind: SegmentCopied})
		return
	}
	b.AppendCopy(data)
}

// AppendTo concatenates b's segments onto other. In no-copy mode,
// borrowed segments are forwarded by reference; in copy mode every
// payload is flattened into other's copied segments.
func (b *BufferSet) AppendTo(other *BufferSet, copyFlag bool) {
	for _, seg := range b.segments {
		if seg.Kind == SegmentBorrowed && !copyFlag {
			other.segments = append(other.segments, Segment{Kind: SegmentBorrowed, Data: seg.Data})
			other.segments = append(other.segments, Segment{Kind: SegmentCopied})
			continue
		}
		other.AppendCopy(seg.Data)
	}
}

// TotalSize returns the sum of all segment lengths.
func (b *BufferSet) TotalSize() int {
	total := 0
	for _, seg := range b.segments {
		total += len(seg.Data)
	}
	return total
}

// NumSegments reports how many segments are currently in the set.
func (b *BufferSet) NumSegments() int { return len(b.segments) }

// Rewind resets the read cursor to the first segment.
func (b *BufferSet) Rewind() { b.cursor = 0 }

// Next advances the cursor to the next segment, returning false if
// already at the last segment.
func (b *BufferSet) Next() bool {
	if b.cursor+1 >= len(b.segments) {
		return false
	}
	b.cursor++
	return true
}

// Current returns the segment at the cursor.
func (b *BufferSet) Current() (Segment, bool) {
	if b.cursor < 0 || b.cursor >= len(b.segments) {
		return Segment{}, false
	}
	return b.segments[b.cursor], true
}

// Segments returns a copy of the underlying segment slice, for
// callers (compression, transport) that need to flatten the whole
// set.
func (b *BufferSet) Segments() []Segment {
	out := make([]Segment, len(b.segments))
	copy(out, b.segments)
	return out
}

// Flatten concatenates every segment into a single owned byte slice,
// discarding the zero-copy structure. Used when a message must cross
// a boundary that cannot preserve borrowed references, e.g. snappy
// compression of the whole body.
func (b *BufferSet) Flatten() []byte {
	out := make([]byte, 0, b.TotalSize())
	for _, seg := range b.segments {
		out = append(out, seg.Data...)
	}
	return out
}

// FromFlat builds a single-segment BufferSet from already-concatenated
// bytes, the inverse of Flatten for a message with no byte-array
// leaves (or one that arrived pre-decompressed).
func FromFlat(data []byte) *BufferSet {
	return &BufferSet{segments: []Segment{{Kind: SegmentCopied, Data: data}}}
}

func encodeUint32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func checkSegmentLen(claimed, actual int) error {
	if claimed != actual {
		return kerrors.NewLogicError("inconsistent buffer segment: claimed length %d, actual %d", claimed, actual)
	}
	return nil
}
