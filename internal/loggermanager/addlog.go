// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import (
	"context"

	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
)

// flushBacklog drains srv's backlog and runs the addDevicesToBeLogged
// protocol against it (spec §4.5): the callee answers with the
// sublist it already had logged, acked ids move to devices, and a
// transport failure puts everything back on the backlog and retries
// at once if the server is still RUNNING.
func (m *Manager) flushBacklog(srv *serverState) {
	m.mu.Lock()
	ids := srv.drainBacklogToBeingAdded()
	m.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.props.Timeout)
	defer cancel()
	var alreadyLogged []string
	err := m.ss.Request(ctx, srv.id, slotAddDevicesToBeLogged, m.props.Timeout, []any{ids}, &alreadyLogged)

	m.mu.Lock()
	if err != nil {
		for _, id := range ids {
			delete(srv.beingAdded, id)
			srv.backlog[id] = struct{}{}
		}
		stillRunning := srv.state == Running
		m.mu.Unlock()
		klog.Warnf("loggermanager: addDevicesToBeLogged(%s) failed: %v", srv.id, err)
		if stillRunning {
			m.flushBacklog(srv)
		}
		return
	}

	// alreadyLogged tells us which ids the server already had; acked
	// ids move to devices either way, so it's informational only.
	for _, id := range ids {
		delete(srv.beingAdded, id)
		srv.devices[id] = struct{}{}
	}
	m.mu.Unlock()
	m.persistMap()
}

// tagDiscontinued asks srv to stop logging deviceID; a failure is
// logged and otherwise ignored, matching "the logger manager never
// aborts on a per-device error" (spec §7).
func (m *Manager) tagDiscontinued(serverID, deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.props.Timeout)
	defer cancel()
	var ok bool
	if err := m.ss.Request(ctx, serverID, slotTagDeviceDiscontinued, m.props.Timeout, []any{deviceID}, &ok); err != nil {
		klog.Warnf("loggermanager: tagDeviceDiscontinued(%s, %s) failed: %v", serverID, deviceID, err)
	}
}
