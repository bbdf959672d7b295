// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import (
	"context"
	"fmt"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/logstore"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
)

const slotGetDeviceConfiguration = "slotGetConfiguration"

// checkSummary accumulates the counters the periodic check reports
// (spec §4.5 step 4). Each counter is a total over all servers; no
// per-server breakdown is kept.
type checkSummary struct {
	offlineLoggers      int
	loggerQueryFailures int
	emptyTimestamps     int
	forcedRestarts      int
	detailRequests      int
	deviceQueryFailures int
	stoppedDevices      int
}

func (s checkSummary) String() string {
	return fmt.Sprintf(
		"offline=%d loggerQueryFailures=%d emptyTimestamps=%d forcedRestarts=%d "+
			"detailRequests=%d deviceQueryFailures=%d stopped=%d",
		s.offlineLoggers, s.loggerQueryFailures, s.emptyTimestamps, s.forcedRestarts,
		s.detailRequests, s.deviceQueryFailures, s.stoppedDevices)
}

// runTopologyCheck is the gocron-scheduled sanity pass (spec §4.5
// "Periodic sanity check"). It always runs on m.strand.
func (m *Manager) runTopologyCheck() {
	start := time.Now()
	m.mu.Lock()
	m.props.TopologyCheckLastStartedUtc = start
	timeout := m.props.Timeout
	tolLogged := m.props.ToleranceLogged
	tolDiff := m.props.ToleranceDiff
	flushInterval := m.props.FlushInterval
	var running []*serverState
	for _, id := range m.order {
		running = append(running, m.servers[id])
	}
	m.mu.Unlock()

	var summary checkSummary
	for _, srv := range running {
		m.mu.Lock()
		isRunning := srv.state == Running
		m.mu.Unlock()
		if !isRunning {
			summary.offlineLoggers++
			continue
		}
		m.checkServer(srv, timeout, tolLogged, tolDiff, flushInterval, &summary)
	}

	m.mu.Lock()
	m.props.TopologyCheckLoggingProblem = summary.loggerQueryFailures > 0 || summary.deviceQueryFailures > 0
	m.props.TopologyCheckLastDoneUtc = time.Now()
	m.props.TopologyCheckLastCheckResult = summary.String()
	m.mu.Unlock()

	klog.Infof("loggermanager: topology check done in %s: %s", time.Since(start), summary)
}

func (m *Manager) checkServer(srv *serverState, timeout, tolLogged, tolDiff, flushInterval time.Duration, summary *checkSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var table *kdata.Container
	if err := m.ss.Request(ctx, srv.id, slotGetLastUpdateTable, timeout, nil, &table); err != nil {
		klog.Warnf("loggermanager: last-update table for %q failed: %v", srv.id, err)
		summary.loggerQueryFailures++
		return
	}
	var ok bool
	flushCtx, flushCancel := context.WithTimeout(context.Background(), timeout)
	_ = m.ss.Request(flushCtx, srv.id, slotFlushServer, timeout, nil, &ok)
	flushCancel()

	now := clock.Now()
	for _, deviceID := range table.Keys() {
		v, _ := table.Get(deviceID)
		row, _ := v.AsString()
		m.checkRow(srv, deviceID, row, now, tolLogged, tolDiff, flushInterval, summary)
	}
}

func (m *Manager) checkRow(srv *serverState, deviceID, row string, now clock.Timestamp, tolLogged, tolDiff, flushInterval time.Duration, summary *checkSummary) {
	if row == "" {
		summary.emptyTimestamps++
		m.mu.Lock()
		m.emptyCount[deviceID]++
		twice := m.emptyCount[deviceID] >= 2
		m.mu.Unlock()
		if twice {
			m.forceRestart(srv, deviceID, summary)
		}
		return
	}
	m.mu.Lock()
	delete(m.emptyCount, deviceID)
	m.mu.Unlock()
	m.lastSeen.Add(deviceID, row)

	loggerTS, err := clock.ParseISO8601(row)
	if err != nil {
		klog.Warnf("loggermanager: unparseable timestamp %q for %q: %v", row, deviceID, err)
		return
	}
	if now.Sub(loggerTS) <= tolLogged {
		return
	}

	summary.detailRequests++
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer cancel()
	var cfg *kdata.Container
	err = m.ss.Request(ctx, deviceID, slotGetDeviceConfiguration, 5*time.Second, nil, &cfg)
	if err != nil {
		summary.deviceQueryFailures++
		m.mu.Lock()
		_, recorded := srv.devices[deviceID]
		m.mu.Unlock()
		if !recorded {
			m.tagDiscontinued(srv.id, deviceID)
			summary.stoppedDevices++
		}
		return
	}

	deviceTS, ok := logstore.LastChangeTimestamp(cfg)
	if !ok {
		return
	}
	maxDrift := tolDiff
	if flushInterval > maxDrift {
		maxDrift = flushInterval
	}
	if deviceTS.Sub(loggerTS) > maxDrift {
		m.forceRestart(srv, deviceID, summary)
	}
}

// forceRestart enforces "stop+start" for deviceID on srv (spec §4.5
// steps 2 and 3): tell the logger to discontinue, then re-queue the
// device for a fresh addDevicesToBeLogged.
func (m *Manager) forceRestart(srv *serverState, deviceID string, summary *checkSummary) {
	m.tagDiscontinued(srv.id, deviceID)
	m.mu.Lock()
	srv.forget(deviceID)
	srv.queue(deviceID)
	delete(m.emptyCount, deviceID)
	m.mu.Unlock()
	summary.forcedRestarts++
	m.flushBacklog(srv)
}
