// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package broker

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigSchema validates the raw JSON block a device server passes to
// Init. It is intentionally permissive about retry tuning: only
// address is required, everything else falls back to NATSDriver's
// defaults.
const ConfigSchema = `{
    "type": "object",
    "description": "Configuration for the NATS broker connection.",
    "properties": {
        "address": {
            "description": "Address of the NATS server (e.g. 'nats://localhost:4222').",
            "type": "string"
        },
        "username": {
            "description": "Username for NATS authentication (optional).",
            "type": "string"
        },
        "password": {
            "description": "Password for NATS authentication (optional).",
            "type": "string"
        },
        "credsFilePath": {
            "description": "Path to a NATS credentials file (optional).",
            "type": "string"
        },
        "retryBudget": {
            "description": "Number of publish retries before giving up on a message.",
            "type": "integer",
            "minimum": 0
        },
        "retryBaseWaitMs": {
            "description": "Base wait, in milliseconds, before the first publish retry.",
            "type": "integer",
            "minimum": 0
        },
        "publishRateLimit": {
            "description": "Sustained publishes per second allowed; 0 disables the limiter.",
            "type": "integer",
            "minimum": 0
        }
    },
    "required": ["address"]
}`

// Init validates rawConfig against ConfigSchema and decodes it into a
// Config. It follows the package-level Init(raw) pattern used
// throughout this codebase's subsystems, returning the decoded value
// instead of populating a package-global.
func Init(rawConfig json.RawMessage) (Config, error) {
	var cfg Config
	if rawConfig == nil {
		return cfg, nil
	}

	sch, err := jsonschema.CompileString("broker-config.json", ConfigSchema)
	if err != nil {
		klog.Errorf("broker: invalid embedded config schema: %v", err)
		return cfg, err
	}
	var v any
	if err := json.Unmarshal(rawConfig, &v); err != nil {
		klog.Errorf("broker: config is not valid JSON: %v", err)
		return cfg, err
	}
	if err := sch.Validate(v); err != nil {
		klog.Errorf("broker: config failed validation: %v", err)
		return cfg, err
	}

	dec := json.NewDecoder(bytes.NewReader(rawConfig))
	dec.DisallowUnknownFields()
	var raw struct {
		Address         string `json:"address"`
		Username        string `json:"username"`
		Password        string `json:"password"`
		CredsFilePath   string `json:"credsFilePath"`
		RetryBudget      int    `json:"retryBudget"`
		RetryBaseWaitMs  int    `json:"retryBaseWaitMs"`
		PublishRateLimit int    `json:"publishRateLimit"`
	}
	if err := dec.Decode(&raw); err != nil {
		klog.Errorf("broker: error decoding config: %v", err)
		return cfg, err
	}

	cfg.Address = raw.Address
	cfg.Username = raw.Username
	cfg.Password = raw.Password
	cfg.CredsFilePath = raw.CredsFilePath
	cfg.RetryBudget = raw.RetryBudget
	cfg.PublishRateLimit = raw.PublishRateLimit
	if raw.RetryBaseWaitMs > 0 {
		cfg.RetryBaseWait = time.Duration(raw.RetryBaseWaitMs) * time.Millisecond
	}
	return cfg.withDefaults(), nil
}
