// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import "github.com/European-XFEL/Karabo-sub015/pkg/klog"

// isBlocked reports whether deviceID is excluded from logging, either
// directly or via its classID being blocked. Caller holds m.mu.
func (m *Manager) isBlocked(deviceID, classID string) bool {
	if _, ok := m.blocked[deviceID]; ok {
		return true
	}
	for _, c := range m.props.BlocklistClassIDs {
		if c == classID {
			return true
		}
	}
	return false
}

// recomputeBlocked rebuilds the effective blocked device set from the
// configured deviceId/classId lists, expanding classIds via the known
// class->device map (spec §4.5 "Blocklist reconfiguration"). Caller
// holds m.mu.
func (m *Manager) recomputeBlocked() {
	next := make(map[string]struct{})
	for _, id := range m.props.BlocklistDeviceIDs {
		next[id] = struct{}{}
	}
	for _, cls := range m.props.BlocklistClassIDs {
		for _, dev := range m.classToDevs[cls] {
			next[dev] = struct{}{}
		}
	}
	m.blocked = next
}

// SetBlocklist reconfigures the device-id/class-id blocklist,
// stopping newly blocked devices and starting newly unblocked ones,
// then persisting the change (spec §4.5).
func (m *Manager) SetBlocklist(deviceIDs, classIDs []string) {
	m.strand.Post(func() { m.handleSetBlocklist(deviceIDs, classIDs) })
}

func (m *Manager) handleSetBlocklist(deviceIDs, classIDs []string) {
	m.mu.Lock()
	previous := m.blocked
	m.props.BlocklistDeviceIDs = deviceIDs
	m.props.BlocklistClassIDs = classIDs
	m.recomputeBlocked()
	next := m.blocked

	var newlyBlocked, newlyUnblocked []string
	for id := range next {
		if _, was := previous[id]; !was {
			newlyBlocked = append(newlyBlocked, id)
		}
	}
	for id := range previous {
		if _, is := next[id]; !is {
			newlyUnblocked = append(newlyUnblocked, id)
		}
	}
	m.mu.Unlock()

	for _, id := range newlyBlocked {
		m.handleDeviceGone(id)
	}
	for _, id := range newlyUnblocked {
		m.handleDeviceDiscovered(id, "")
	}

	if err := saveBlocklist(m.opts.BlocklistFilePath, blocklistFile{DeviceIDs: deviceIDs, ClassIDs: classIDs}); err != nil {
		klog.Warnf("loggermanager: persisting blocklist: %v", err)
	}
}
