// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package clock implements Karabo's epoch-seconds-plus-attoseconds
// timestamp and the elapsed-time arithmetic the rest of the module
// needs (heartbeat countdowns, topology-check tolerances, logger
// staleness comparisons).
package clock

import (
	"fmt"
	"time"
)

// attosecondsPerSecond is 10^18; Timestamp keeps sub-second precision
// at attosecond resolution the way the original karabo::util::Epochstamp
// does, even though Go's own clock resolution is nanoseconds.
const attosecondsPerSecond = 1_000_000_000_000_000_000

// Timestamp is epoch seconds plus attoseconds-of-the-second.
type Timestamp struct {
	Seconds     uint64
	Attoseconds uint64
}

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime converts a time.Time, scaling nanosecond precision up to
// attoseconds (nanoseconds * 10^9).
func FromTime(t time.Time) Timestamp {
	sec := uint64(t.Unix())
	nsec := uint64(t.Nanosecond())
	return Timestamp{Seconds: sec, Attoseconds: nsec * 1_000_000_000}
}

// Time converts back to a time.Time, truncating to nanosecond
// precision (Go has no attosecond clock type).
func (t Timestamp) Time() time.Time {
	nsec := t.Attoseconds / 1_000_000_000
	return time.Unix(int64(t.Seconds), int64(nsec))
}

// IsZero reports whether this is the empty timestamp.
func (t Timestamp) IsZero() bool {
	return t.Seconds == 0 && t.Attoseconds == 0
}

// Sub returns t-other as a time.Duration, saturating at zero if other
// is after t (Karabo instruments never need negative elapsed times for
// the tolerance comparisons this module performs).
func (t Timestamp) Sub(other Timestamp) time.Duration {
	if t.Before(other) {
		return 0
	}
	secDiff := t.Seconds - other.Seconds
	var attoDiff int64
	if t.Attoseconds >= other.Attoseconds {
		attoDiff = int64(t.Attoseconds - other.Attoseconds)
	} else {
		secDiff--
		attoDiff = int64(attosecondsPerSecond - (other.Attoseconds - t.Attoseconds))
	}
	return time.Duration(secDiff)*time.Second + time.Duration(attoDiff/1_000_000_000)*time.Nanosecond
}

// Before reports whether t happened strictly before other.
func (t Timestamp) Before(other Timestamp) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	return t.Attoseconds < other.Attoseconds
}

// After reports whether t happened strictly after other.
func (t Timestamp) After(other Timestamp) bool { return other.Before(t) }

// ToIso8601 formats like the original's toIso8601 (UTC, microsecond
// truncation — attosecond precision is not meaningful to print).
func (t Timestamp) ToIso8601() string {
	return t.Time().UTC().Format("2006-01-02T15:04:05.000000")
}

// MillisSinceEpoch renders the MQTimestamp header field (spec §6):
// int64 milliseconds since epoch.
func (t Timestamp) MillisSinceEpoch() int64 {
	return int64(t.Seconds)*1000 + int64(t.Attoseconds/1_000_000_000_000_000)
}

// FromMillis is the inverse of MillisSinceEpoch, used to decode
// MQTimestamp header fields and logger checkpoint records back into a
// Timestamp.
func FromMillis(ms int64) Timestamp {
	return Timestamp{Seconds: uint64(ms / 1000), Attoseconds: uint64(ms%1000) * 1_000_000_000_000_000}
}

// ParseISO8601 parses the format ToIso8601 produces, for reading back
// timestamps a logger server reported as plain strings (spec §4.5
// "last update per device" table).
func ParseISO8601(s string) (Timestamp, error) {
	t, err := time.Parse("2006-01-02T15:04:05.000000", s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("clock: parsing %q: %w", s, err)
	}
	return FromTime(t), nil
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%s", t.ToIso8601())
}
