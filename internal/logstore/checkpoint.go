// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package logstore

import (
	"bufio"
	"fmt"
	"os"

	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
	"github.com/linkedin/goavro/v2"
)

// checkpointSchema is a flat record {device, tsMillis} per entry.
// This store's shape never changes, so there's no schema-evolution
// or merge machinery beyond keeping the latest timestamp per device.
const checkpointSchema = `{
    "type": "record",
    "name": "LastUpdateCheckpoint",
    "fields": [
        {"name": "device", "type": "string"},
        {"name": "tsMillis", "type": "long"}
    ]
}`

// Checkpoint stores per-device last-update timestamps in an Avro
// object-container file (SPEC_FULL §3 domain stack, goavro entry).
// The logger manager does not read or write it; its periodic check
// queries each logger server instead.
type Checkpoint struct {
	path  string
	codec *goavro.Codec
}

// OpenCheckpoint prepares a Checkpoint backed by path; the file itself
// is created lazily on the first Write.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	codec, err := goavro.NewCodec(checkpointSchema)
	if err != nil {
		return nil, fmt.Errorf("logstore: compiling checkpoint schema: %w", err)
	}
	return &Checkpoint{path: path, codec: codec}, nil
}

// Write appends the current last-update table as a single OCF batch.
// Each call produces one self-contained block; readers merge by
// keeping the latest timestamp per device across all blocks.
func (c *Checkpoint) Write(lastUpdate map[string]clock.Timestamp) error {
	if len(lastUpdate) == 0 {
		return nil
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logstore: opening checkpoint file: %w", err)
	}
	defer f.Close()

	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               f,
		Codec:           c.codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("logstore: creating OCF writer: %w", err)
	}

	records := make([]any, 0, len(lastUpdate))
	for device, ts := range lastUpdate {
		records = append(records, map[string]any{
			"device":   device,
			"tsMillis": ts.MillisSinceEpoch(),
		})
	}
	if err := writer.Append(records); err != nil {
		return fmt.Errorf("logstore: appending checkpoint records: %w", err)
	}
	return nil
}

// Load replays every block in the checkpoint file and returns the
// most recent timestamp seen per device.
func (c *Checkpoint) Load() (map[string]clock.Timestamp, error) {
	out := make(map[string]clock.Timestamp)
	f, err := os.Open(c.path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("logstore: opening checkpoint file: %w", err)
	}
	defer f.Close()

	reader, err := goavro.NewOCFReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("logstore: creating OCF reader: %w", err)
	}
	for reader.Scan() {
		rec, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("logstore: reading checkpoint record: %w", err)
		}
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		device, _ := m["device"].(string)
		ms, _ := m["tsMillis"].(int64)
		ts := clock.FromMillis(ms)
		if prev, ok := out[device]; !ok || ts.After(prev) {
			out[device] = ts
		}
	}
	return out, nil
}
