// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import "github.com/European-XFEL/Karabo-sub015/pkg/klog"

// OnDeviceDiscovered handles a newly seen device (spec §4.5 "device
// lifecycle events"). classID may be empty if unknown.
func (m *Manager) OnDeviceDiscovered(deviceID, classID string) {
	m.strand.Post(func() { m.handleDeviceDiscovered(deviceID, classID) })
}

func (m *Manager) handleDeviceDiscovered(deviceID, classID string) {
	m.mu.Lock()
	if classID != "" {
		m.classToDevs[classID] = appendUnique(m.classToDevs[classID], deviceID)
	}
	if m.isBlocked(deviceID, classID) {
		m.mu.Unlock()
		return
	}
	srv, ok := m.findServerFor(deviceID)
	if !ok {
		id := m.assignServer()
		if id == "" {
			m.mu.Unlock()
			klog.Warnf("loggermanager: no servers configured, cannot log %q", deviceID)
			return
		}
		srv = m.servers[id]
		srv.queue(deviceID)
	}
	running := srv.state == Running
	m.mu.Unlock()

	if running {
		m.flushBacklog(srv)
	}
}

// OnDeviceGone removes deviceID from whichever set currently tracks
// it and tells its server to stop logging it, if running.
func (m *Manager) OnDeviceGone(deviceID string) {
	m.strand.Post(func() { m.handleDeviceGone(deviceID) })
}

func (m *Manager) handleDeviceGone(deviceID string) {
	m.mu.Lock()
	srv, ok := m.findServerFor(deviceID)
	if !ok {
		m.mu.Unlock()
		return
	}
	wasLogged := srv.contains(deviceID)
	srv.forget(deviceID)
	running := srv.state == Running
	m.mu.Unlock()
	if !wasLogged {
		return
	}
	m.persistMap()
	if running {
		m.tagDiscontinued(srv.id, deviceID)
	}
}

// OnServerDiscovered marks the server as seen, starting instantiation
// (spec §4.5: OFFLINE -> INSTANTIATING).
func (m *Manager) OnServerDiscovered(serverID string) {
	m.strand.Post(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		srv, ok := m.servers[serverID]
		if !ok || srv.state != Offline {
			return
		}
		srv.state = Instantiating
	})
}

// OnLoggerDiscovered marks the logger running on serverID as having
// acknowledged instantiation, transitioning the server to RUNNING and
// flushing its backlog (spec §4.5).
func (m *Manager) OnLoggerDiscovered(serverID string) {
	m.strand.Post(func() {
		m.mu.Lock()
		srv, ok := m.servers[serverID]
		if !ok {
			m.mu.Unlock()
			return
		}
		srv.state = Running
		m.mu.Unlock()
		m.flushBacklog(srv)
	})
}

// OnLoggerGone handles the logger process disappearing while its
// server host is still up: devices move back to backlog and
// re-instantiation is triggered (spec §4.5).
func (m *Manager) OnLoggerGone(serverID string) {
	m.strand.Post(func() {
		m.mu.Lock()
		srv, ok := m.servers[serverID]
		if !ok || srv.state != Running {
			m.mu.Unlock()
			return
		}
		srv.requeueAll()
		srv.state = Instantiating
		m.mu.Unlock()
		klog.Warnf("loggermanager: logger on %q gone, re-instantiating", serverID)
	})
}

// OnServerGone handles the whole server host disappearing: same
// requeue as OnLoggerGone, but the server drops to OFFLINE (spec
// §4.5).
func (m *Manager) OnServerGone(serverID string) {
	m.strand.Post(func() {
		m.mu.Lock()
		srv, ok := m.servers[serverID]
		if !ok {
			m.mu.Unlock()
			return
		}
		srv.requeueAll()
		srv.state = Offline
		m.mu.Unlock()
		klog.Warnf("loggermanager: server %q gone", serverID)
	})
}

func appendUnique(ss []string, v string) []string {
	for _, s := range ss {
		if s == v {
			return ss
		}
	}
	return append(ss, v)
}
