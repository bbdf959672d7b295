// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package logstore supplements the logger manager with the recursive
// last-timestamp scan and checkpoint mirroring the original
// DataLogUtils helpers provided (spec.md's distillation names the
// behavior in §4.5 step 3 but leaves the helper itself external;
// SPEC_FULL §10 supplements it from
// original_source/.../util/DataLogUtils.cc).
package logstore

import (
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
)

// timestampAttr is the attribute key a leaf's last-change time is
// recorded under, the Go equivalent of the original's per-leaf
// Epochstamp attributes.
const timestampAttr = "timestamp"

// Reader is the external collaborator a full deployment would supply:
// something that can answer "when was this device's logged state last
// written" (spec.md §4.5, "log readers ... out of scope" but named by
// contract). Nothing in this module implements or calls it; the
// manager's periodic check asks each logger server over RPC instead.
type Reader interface {
	LastUpdate(deviceID string) (clock.Timestamp, bool, error)
}

// LastChangeTimestamp recursively scans c for the most recent leaf
// timestamp attribute, descending into nested containers but not into
// table rows (VectorContainer), matching the original's "recursively
// scanned across its configuration hash including nested nodes but
// not inside table rows" (spec.md §4.5 step 3).
func LastChangeTimestamp(c *kdata.Container) (clock.Timestamp, bool) {
	var best clock.Timestamp
	found := false
	for _, key := range c.Keys() {
		v, _ := c.Get(key)
		if ts, ok := leafTimestamp(c, key); ok {
			if !found || ts.After(best) {
				best, found = ts, true
			}
		}
		if nested, ok := v.AsContainer(); ok {
			if ts, ok := LastChangeTimestamp(nested); ok {
				if !found || ts.After(best) {
					best, found = ts, true
				}
			}
		}
		// VectorContainer (table rows) is deliberately not descended
		// into: the original excludes table contents from this scan.
	}
	return best, found
}

func leafTimestamp(c *kdata.Container, key string) (clock.Timestamp, bool) {
	attr, ok := c.GetAttribute(key, timestampAttr)
	if !ok {
		return clock.Timestamp{}, false
	}
	ms, ok := attr.AsInt64()
	if !ok {
		return clock.Timestamp{}, false
	}
	return clock.FromMillis(ms), true
}

// StampLeaf records key's last-change time as an attribute, the
// writer-side counterpart of leafTimestamp, used by tests and by any
// device wiring its own property updates into a loggable Container.
func StampLeaf(c *kdata.Container, key string, ts clock.Timestamp) error {
	return c.SetAttribute(key, timestampAttr, kdata.NewInt64(ts.MillisSinceEpoch()))
}
