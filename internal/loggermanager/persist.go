// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import (
	"encoding/json"
	"os"

	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// loggerMapSchema validates the JSON mirror of loggermap.xml: a flat
// map from "DataLogger-<deviceId>" to the owning server id (spec §6).
const loggerMapSchema = `{
    "type": "object",
    "additionalProperties": {"type": "string"}
}`

// blocklistSchema validates the JSON mirror of blocklist.xml (spec §6).
const blocklistSchema = `{
    "type": "object",
    "properties": {
        "deviceIds": {"type": "array", "items": {"type": "string"}},
        "classIds": {"type": "array", "items": {"type": "string"}}
    },
    "additionalProperties": false
}`

// blocklistFile is the on-disk shape of blocklist.xml's JSON mirror.
type blocklistFile struct {
	DeviceIDs []string `json:"deviceIds"`
	ClassIDs  []string `json:"classIds"`
}

// loadLoggerMap reads path and returns deviceId("DataLogger-<id>") ->
// serverId. A missing file is not an error: a fresh manager starts
// with no prior assignments.
func loadLoggerMap(path string) (map[string]string, error) {
	out := map[string]string{}
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if err := validateJSON(loggerMapSchema, raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func saveLoggerMap(path string, m map[string]string) error {
	if path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func loadBlocklist(path string) (blocklistFile, error) {
	var bl blocklistFile
	if path == "" {
		return bl, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return bl, nil
	}
	if err != nil {
		return bl, err
	}
	if err := validateJSON(blocklistSchema, raw); err != nil {
		return bl, err
	}
	if err := json.Unmarshal(raw, &bl); err != nil {
		return bl, err
	}
	return bl, nil
}

func saveBlocklist(path string, bl blocklistFile) error {
	if path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(bl, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func validateJSON(schemaText string, raw []byte) error {
	sch, err := jsonschema.CompileString("loggermanager-persist.json", schemaText)
	if err != nil {
		klog.Errorf("loggermanager: invalid embedded persistence schema: %v", err)
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

// deviceKey is the "DataLogger-<deviceId>" form loggermap.xml's
// original structure used (spec §6).
func deviceKey(deviceID string) string { return "DataLogger-" + deviceID }
