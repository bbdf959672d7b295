// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import (
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
	"github.com/European-XFEL/Karabo-sub015/internal/xms"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
)

// registerSlots exposes the control surface (spec §6 "Control surface
// (logger manager)") through ss's ordinary slot mechanism: a property
// here is just a Container leaf updated via the same request/reply
// machinery any other slot uses (SPEC_FULL §7).
func (m *Manager) registerSlots() {
	_ = m.ss.RegisterSlot("slotSetFlushInterval", 1, func(ctx *xms.SlotContext) ([]any, error) {
		var seconds float64
		if err := ctx.Unpack(&seconds); err != nil {
			return nil, err
		}
		m.strand.Post(func() {
			m.mu.Lock()
			m.props.FlushInterval = time.Duration(seconds * float64(time.Second))
			m.mu.Unlock()
		})
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotSetEnablePerformanceStats", 1, func(ctx *xms.SlotContext) ([]any, error) {
		var enabled bool
		if err := ctx.Unpack(&enabled); err != nil {
			return nil, err
		}
		m.strand.Post(func() {
			m.mu.Lock()
			m.props.EnablePerformanceStats = enabled
			m.mu.Unlock()
		})
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotSetTimeout", 1, func(ctx *xms.SlotContext) ([]any, error) {
		var ms int32
		if err := ctx.Unpack(&ms); err != nil {
			return nil, err
		}
		if ms < 100 || ms > 60000 {
			return nil, kerrors.NewLogicError("timeout %dms out of range [100, 60000]", ms)
		}
		m.strand.Post(func() {
			m.mu.Lock()
			m.props.Timeout = time.Duration(ms) * time.Millisecond
			m.mu.Unlock()
		})
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotSetTopologyCheckInterval", 1, func(ctx *xms.SlotContext) ([]any, error) {
		var minutes float64
		if err := ctx.Unpack(&minutes); err != nil {
			return nil, err
		}
		m.strand.Post(func() {
			m.mu.Lock()
			m.props.TopologyCheckInterval = time.Duration(minutes * float64(time.Minute))
			m.mu.Unlock()
		})
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotSetToleranceLogged", 1, func(ctx *xms.SlotContext) ([]any, error) {
		var minutes float64
		if err := ctx.Unpack(&minutes); err != nil {
			return nil, err
		}
		m.strand.Post(func() {
			m.mu.Lock()
			m.props.ToleranceLogged = time.Duration(minutes * float64(time.Minute))
			m.mu.Unlock()
		})
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotSetToleranceDiff", 1, func(ctx *xms.SlotContext) ([]any, error) {
		var seconds float64
		if err := ctx.Unpack(&seconds); err != nil {
			return nil, err
		}
		m.strand.Post(func() {
			m.mu.Lock()
			m.props.ToleranceDiff = time.Duration(seconds * float64(time.Second))
			m.mu.Unlock()
		})
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotSetBlocklist", 2, func(ctx *xms.SlotContext) ([]any, error) {
		var deviceIDs, classIDs []string
		if err := ctx.Unpack(&deviceIDs, &classIDs); err != nil {
			return nil, err
		}
		m.SetBlocklist(deviceIDs, classIDs)
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot(slotForceCheck, 0, func(ctx *xms.SlotContext) ([]any, error) {
		m.strand.Post(m.runTopologyCheck)
		return []any{true}, nil
	})

	_ = m.ss.RegisterSlot("slotGetProperties", 0, func(ctx *xms.SlotContext) ([]any, error) {
		return []any{m.snapshotProperties()}, nil
	})
}

func (m *Manager) snapshotProperties() *kdata.Container {
	m.mu.Lock()
	p := m.props
	loggerMap := m.loggerMapRows()
	m.mu.Unlock()

	c := kdata.NewContainer()
	c.MustSet("flushInterval", kdata.NewDouble(p.FlushInterval.Seconds()))
	c.MustSet("enablePerformanceStats", kdata.NewBool(p.EnablePerformanceStats))
	c.MustSet("timeout", kdata.NewInt32(int32(p.Timeout.Milliseconds())))
	c.MustSet("topologyCheck.interval", kdata.NewDouble(p.TopologyCheckInterval.Minutes()))
	c.MustSet("topologyCheck.toleranceLogged", kdata.NewDouble(p.ToleranceLogged.Minutes()))
	c.MustSet("topologyCheck.toleranceDiff", kdata.NewDouble(p.ToleranceDiff.Seconds()))
	c.MustSet("topologyCheck.loggingProblem", kdata.NewBool(p.TopologyCheckLoggingProblem))
	c.MustSet("topologyCheck.lastCheckStartedUtc", kdata.NewString(isoOrEmpty(p.TopologyCheckLastStartedUtc)))
	c.MustSet("topologyCheck.lastCheckDoneUtc", kdata.NewString(isoOrEmpty(p.TopologyCheckLastDoneUtc)))
	c.MustSet("topologyCheck.lastCheckResult", kdata.NewString(p.TopologyCheckLastCheckResult))
	c.MustSet("blocklist.deviceIds", kdata.NewVectorString(p.BlocklistDeviceIDs))
	c.MustSet("blocklist.classIds", kdata.NewVectorString(p.BlocklistClassIDs))
	c.MustSet("numGetPropertyHistory", kdata.NewInt64(p.NumGetPropertyHistory))
	c.MustSet("numGetConfigurationFromPast", kdata.NewInt64(p.NumGetConfigurationFromPast))
	c.MustSet("loggerMap", kdata.NewVectorContainer(loggerMap))
	return c
}

// isoOrEmpty renders a zero-value time.Time as "", matching how an
// unrun topology check reports its timestamps.
func isoOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return clock.FromTime(t).ToIso8601()
}
