// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import "time"

// Properties holds the manager's reconfigurable and read-only control
// surface (spec §6 "Control surface (logger manager)"). Every device
// in this codebase exposes its state the same way: a plain struct,
// guarded here by the manager's mutex m.mu.
type Properties struct {
	// Reconfigurable.
	FlushInterval          time.Duration // seconds
	EnablePerformanceStats bool
	Timeout                time.Duration // 100ms .. 60s
	TopologyCheckInterval  time.Duration // minutes
	ToleranceLogged        time.Duration // minutes
	ToleranceDiff          time.Duration // seconds
	BlocklistDeviceIDs     []string
	BlocklistClassIDs      []string

	// Read-only, updated by the manager itself.
	NumGetPropertyHistory        int64
	NumGetConfigurationFromPast  int64
	TopologyCheckLoggingProblem  bool
	TopologyCheckLastStartedUtc  time.Time
	TopologyCheckLastDoneUtc     time.Time
	TopologyCheckLastCheckResult string
}

func defaultProperties() Properties {
	return Properties{
		FlushInterval:         1 * time.Second,
		Timeout:               10 * time.Second,
		TopologyCheckInterval: 5 * time.Minute,
		ToleranceLogged:       2 * time.Minute,
		ToleranceDiff:         30 * time.Second,
	}
}

// Options configures a new Manager.
type Options struct {
	// ManagerID is this manager's own SignalSlotable instance id,
	// used only for logging.
	ManagerID string

	// Servers lists the known logger server instance ids, assigned
	// devices round-robin in the order given (spec §4.5 "pool of
	// logger servers chosen round-robin").
	Servers []string

	// MapFilePath / BlocklistFilePath are the JSON mirrors of
	// loggermap.xml / blocklist.xml (spec §6, SPEC_FULL §5.5); empty
	// disables persistence (devices re-assign from scratch on
	// restart).
	MapFilePath       string
	BlocklistFilePath string

	Properties Properties
}

func (o *Options) withDefaults() {
	if o.Properties.FlushInterval == 0 {
		o.Properties = defaultProperties()
	}
}
