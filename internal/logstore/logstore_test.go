// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package logstore

import (
	"path/filepath"
	"testing"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
)

func mustStamp(t *testing.T, c *kdata.Container, key string, ts clock.Timestamp) {
	t.Helper()
	if err := StampLeaf(c, key, ts); err != nil {
		t.Fatalf("StampLeaf(%s): %v", key, err)
	}
}

func TestLastChangeTimestampPicksMostRecentNestedLeaf(t *testing.T) {
	root := kdata.NewContainer()
	root.MustSet("speed", kdata.NewDouble(1.5))
	mustStamp(t, root, "speed", clock.FromMillis(1000))

	nested := kdata.NewContainer()
	nested.MustSet("temperature", kdata.NewDouble(20.0))
	mustStamp(t, nested, "temperature", clock.FromMillis(5000))
	root.MustSet("sensor", kdata.ContainerValue(nested))

	ts, ok := LastChangeTimestamp(root)
	if !ok {
		t.Fatal("expected a timestamp, found none")
	}
	if got := ts.MillisSinceEpoch(); got != 5000 {
		t.Fatalf("most recent timestamp = %dms, want 5000ms", got)
	}
}

func TestLastChangeTimestampSkipsTableRows(t *testing.T) {
	root := kdata.NewContainer()
	row := kdata.NewContainer()
	row.MustSet("value", kdata.NewDouble(2.0))
	mustStamp(t, row, "value", clock.FromMillis(9000))
	root.MustSet("history", kdata.NewVectorContainer([]*kdata.Container{row}))
	mustStamp(t, root, "history", clock.FromMillis(100))

	ts, ok := LastChangeTimestamp(root)
	if !ok {
		t.Fatal("expected the scalar timestamp attribute on the table leaf itself")
	}
	if got := ts.MillisSinceEpoch(); got != 100 {
		t.Fatalf("timestamp = %dms, want 100ms", got)
	}
}

func TestLastChangeTimestampEmptyContainer(t *testing.T) {
	root := kdata.NewContainer()
	if _, ok := LastChangeTimestamp(root); ok {
		t.Fatal("expected no timestamp for an empty container")
	}
}

func TestCheckpointWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.avro")

	cp, err := OpenCheckpoint(path)
	if err != nil {
		t.Fatalf("OpenCheckpoint: %v", err)
	}

	first := map[string]clock.Timestamp{
		"deviceA": clock.FromMillis(1000),
		"deviceB": clock.FromMillis(2000),
	}
	if err := cp.Write(first); err != nil {
		t.Fatalf("Write(first): %v", err)
	}

	second := map[string]clock.Timestamp{
		"deviceA": clock.FromMillis(3000), // newer, must win
	}
	if err := cp.Write(second); err != nil {
		t.Fatalf("Write(second): %v", err)
	}

	loaded, err := cp.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := loaded["deviceA"].MillisSinceEpoch(); got != 3000 {
		t.Fatalf("deviceA = %dms, want 3000ms (most recent block should win)", got)
	}
	if got := loaded["deviceB"].MillisSinceEpoch(); got != 2000 {
		t.Fatalf("deviceB = %dms, want 2000ms", got)
	}
}

func TestCheckpointLoadMissingFile(t *testing.T) {
	cp, err := OpenCheckpoint(filepath.Join(t.TempDir(), "missing.avro"))
	if err != nil {
		t.Fatalf("OpenCheckpoint: %v", err)
	}
	loaded, err := cp.Load()
	if err != nil {
		t.Fatalf("Load on missing file should not error, got: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty map, got %v", loaded)
	}
}
