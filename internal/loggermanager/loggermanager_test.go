// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import (
	"context"
	"testing"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/broker"
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/xms"
)

func newInstance(t *testing.T, drv broker.Driver, id string) *xms.SignalSlotable {
	t.Helper()
	s := xms.New(drv, xms.Options{InstanceID: id, HeartbeatInterval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s): %v", id, err)
	}
	t.Cleanup(s.Stop)
	return s
}

// fakeLogger wires the slots a real logger server would expose,
// backed by a plain in-memory table for test purposes.
type fakeLogger struct {
	logged map[string]bool
}

func registerFakeLogger(t *testing.T, ss *xms.SignalSlotable) *fakeLogger {
	t.Helper()
	fl := &fakeLogger{logged: make(map[string]bool)}

	if err := ss.RegisterSlot(slotAddDevicesToBeLogged, 1, func(ctx *xms.SlotContext) ([]any, error) {
		var ids []string
		if err := ctx.Unpack(&ids); err != nil {
			return nil, err
		}
		var already []string
		for _, id := range ids {
			if fl.logged[id] {
				already = append(already, id)
			}
			fl.logged[id] = true
		}
		return []any{already}, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := ss.RegisterSlot(slotTagDeviceDiscontinued, 1, func(ctx *xms.SlotContext) ([]any, error) {
		var id string
		if err := ctx.Unpack(&id); err != nil {
			return nil, err
		}
		delete(fl.logged, id)
		return []any{true}, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := ss.RegisterSlot(slotGetLastUpdateTable, 0, func(ctx *xms.SlotContext) ([]any, error) {
		table := kdata.NewContainer()
		for id := range fl.logged {
			table.MustSet(id, kdata.NewString("2026-07-31T00:00:00.000000"))
		}
		return []any{table}, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := ss.RegisterSlot(slotFlushServer, 0, func(ctx *xms.SlotContext) ([]any, error) {
		return []any{true}, nil
	}); err != nil {
		t.Fatal(err)
	}
	return fl
}

// TestDeviceDiscoveredAssignsAndLogs is scenario S5's assignment half:
// a newly discovered device is queued on a RUNNING server and flushed
// through addDevicesToBeLogged.
func TestDeviceDiscoveredAssignsAndLogs(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	server := newInstance(t, drv, "Server1")
	fl := registerFakeLogger(t, server)

	mgrSS := newInstance(t, drv, "LoggerManager")
	opts := Options{ManagerID: "LoggerManager", Servers: []string{"Server1"}}
	mgr := New(mgrSS, opts)
	t.Cleanup(mgr.Stop)

	mgr.OnServerDiscovered("Server1")
	mgr.OnLoggerDiscovered("Server1")
	mgr.OnDeviceDiscovered("deviceA", "")

	deadline := time.After(2 * time.Second)
	for {
		done := make(chan bool, 1)
		mgr.strand.Post(func() {
			_, ok := mgr.servers["Server1"].devices["deviceA"]
			done <- ok
		})
		select {
		case ok := <-done:
			if ok {
				if !fl.logged["deviceA"] {
					t.Fatal("manager thinks deviceA is logged but fake logger disagrees")
				}
				return
			}
		case <-deadline:
			t.Fatal("deviceA never reached the devices set")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestLoggerGoneRequeuesDevices is scenario S5's recovery half: a lost
// logger moves its devices back to backlog and the server is marked
// for re-instantiation rather than dropped entirely.
func TestLoggerGoneRequeuesDevices(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	mgrSS := newInstance(t, drv, "LoggerManager2")
	opts := Options{ManagerID: "LoggerManager2", Servers: []string{"ServerX"}}
	mgr := New(mgrSS, opts)
	t.Cleanup(mgr.Stop)

	done := make(chan struct{})
	mgr.strand.Post(func() {
		srv := mgr.servers["ServerX"]
		srv.state = Running
		srv.devices["deviceA"] = struct{}{}
		srv.devices["deviceB"] = struct{}{}
		close(done)
	})
	<-done

	mgr.OnLoggerGone("ServerX")

	deadline := time.After(time.Second)
	for {
		result := make(chan LoggerState, 1)
		mgr.strand.Post(func() { result <- mgr.servers["ServerX"].state })
		select {
		case st := <-result:
			if st == Instantiating {
				backlogCh := make(chan int, 1)
				mgr.strand.Post(func() { backlogCh <- len(mgr.servers["ServerX"].backlog) })
				if n := <-backlogCh; n != 2 {
					t.Fatalf("backlog has %d entries, want 2", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("server never transitioned to INSTANTIATING")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestSnapshotPropertiesExposesTopologyCheckAndLoggerMap covers the
// control surface's read-only fields (spec §6): the last topology
// check's start/done timestamps and the device-to-logger table.
func TestSnapshotPropertiesExposesTopologyCheckAndLoggerMap(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	mgrSS := newInstance(t, drv, "LoggerManager3")
	mgr := New(mgrSS, Options{ManagerID: "LoggerManager3", Servers: []string{"ServerY"}})
	t.Cleanup(mgr.Stop)

	started := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	done := time.Date(2026, 7, 31, 12, 0, 5, 0, time.UTC)
	doneCh := make(chan struct{})
	mgr.strand.Post(func() {
		mgr.mu.Lock()
		mgr.props.TopologyCheckLastStartedUtc = started
		mgr.props.TopologyCheckLastDoneUtc = done
		mgr.mu.Unlock()
		mgr.servers["ServerY"].devices["deviceA"] = struct{}{}
		close(doneCh)
	})
	<-doneCh

	snap := mgr.snapshotProperties()

	startedVal, ok := snap.Get("topologyCheck.lastCheckStartedUtc")
	if !ok {
		t.Fatal("missing topologyCheck.lastCheckStartedUtc")
	}
	if s, _ := startedVal.AsString(); s == "" {
		t.Fatal("topologyCheck.lastCheckStartedUtc is empty")
	}

	doneVal, ok := snap.Get("topologyCheck.lastCheckDoneUtc")
	if !ok {
		t.Fatal("missing topologyCheck.lastCheckDoneUtc")
	}
	if s, _ := doneVal.AsString(); s == "" {
		t.Fatal("topologyCheck.lastCheckDoneUtc is empty")
	}

	mapVal, ok := snap.Get("loggerMap")
	if !ok {
		t.Fatal("missing loggerMap")
	}
	rows, ok := mapVal.AsVectorContainer()
	if !ok || len(rows) != 1 {
		t.Fatalf("loggerMap rows = %v, want 1 row", rows)
	}
	dev, _ := rows[0].Get("device")
	devID, _ := dev.AsString()
	logger, _ := rows[0].Get("dataLogger")
	loggerID, _ := logger.AsString()
	if devID != "deviceA" || loggerID != "ServerY" {
		t.Fatalf("loggerMap row = {device:%q, dataLogger:%q}, want {deviceA, ServerY}", devID, loggerID)
	}
}

// TestServerStateSetsStayDisjoint checks the pairwise-disjoint
// invariant of a server's three bookkeeping sets: re-queuing a device
// that is already tracked must not put it on the backlog too.
func TestServerStateSetsStayDisjoint(t *testing.T) {
	srv := newServerState("S")
	srv.queue("d1")
	srv.drainBacklogToBeingAdded()
	srv.devices["d1"] = struct{}{}
	delete(srv.beingAdded, "d1")
	srv.queue("d1") // already a device: must be a no-op

	if len(srv.backlog) != 0 {
		t.Fatalf("backlog = %v, want empty (d1 already tracked)", srv.backlog)
	}
}
