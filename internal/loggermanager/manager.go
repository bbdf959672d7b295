// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package loggermanager

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/strand"
	"github.com/European-XFEL/Karabo-sub015/internal/xms"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/go-co-op/gocron/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Wire-reachable slot names a logger server is expected to implement.
// These are conventions of this core, not part of the wire format
// proper (spec §4.5's protocol names, made concrete for dispatch).
const (
	slotAddDevicesToBeLogged  = "slotAddDevicesToBeLogged"
	slotTagDeviceDiscontinued = "slotTagDeviceDiscontinued"
	slotGetLastUpdateTable    = "slotGetLastUpdateTable"
	slotFlushServer           = "slotFlush"

	slotForceCheck = "topologyCheck.slotForceCheck"
)

// LoggerClassID is the class id a data logger device instantiates
// under. Callers discriminating topology events (instanceInfo's
// "type"/"classId" fields) use this to tell a logger device apart
// from an ordinary device to be logged.
const LoggerClassID = "DataLogger"

// lastSeenCacheSize bounds the per-device last-seen-timestamp cache
// (spec §3 domain stack: bounded cache, hashicorp/golang-lru).
const lastSeenCacheSize = 8192

// Manager keeps the device/logger bijection described in spec §4.5.
// All state mutation happens on a single strand; public methods just
// post work onto it.
type Manager struct {
	opts Options
	ss   *xms.SignalSlotable

	strand *strand.Strand

	mu          sync.Mutex
	servers     map[string]*serverState
	order       []string // stable round-robin order over opts.Servers
	nextServer  int
	classToDevs map[string][]string // classId -> known device ids, for blocklist expansion
	blocked     map[string]struct{} // effective blocked device set (deviceIds ∪ expanded classIds)
	props       Properties
	emptyCount  map[string]int // deviceId -> consecutive empty-timestamp observations

	lastSeen *lru.Cache[string, string] // deviceId -> ISO timestamp, last topology-check observation

	scheduler gocron.Scheduler
}

// New constructs a Manager hosted on ss. ss must already be
// constructed (but need not be started); New registers the manager's
// slots on it.
func New(ss *xms.SignalSlotable, opts Options) *Manager {
	opts.withDefaults()
	cache, err := lru.New[string, string](lastSeenCacheSize)
	if err != nil {
		panic(err)
	}
	m := &Manager{
		opts:        opts,
		ss:          ss,
		strand:      strand.New("loggermanager:"+opts.ManagerID, 256),
		servers:     make(map[string]*serverState),
		classToDevs: make(map[string][]string),
		blocked:     make(map[string]struct{}),
		props:       opts.Properties,
		emptyCount:  make(map[string]int),
		lastSeen:    cache,
	}
	for _, id := range opts.Servers {
		m.servers[id] = newServerState(id)
		m.order = append(m.order, id)
	}
	m.registerSlots()
	return m
}

// Start restores persisted state and starts the periodic sanity-check
// scheduler. ss.Start must be called separately (the manager does not
// own the SignalSlotable's lifecycle).
func (m *Manager) Start(ctx context.Context) error {
	if err := m.restore(); err != nil {
		klog.Warnf("loggermanager: restoring persisted state failed, starting empty: %v", err)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	m.scheduler = sched
	if _, err := sched.NewJob(
		gocron.DurationJob(m.props.TopologyCheckInterval),
		gocron.NewTask(func() { m.strand.Post(m.runTopologyCheck) }),
	); err != nil {
		return err
	}
	sched.Start()
	klog.Infof("loggermanager: started with %d known servers", len(m.order))
	return nil
}

// Stop cancels the scheduler. It does not touch the underlying
// SignalSlotable.
func (m *Manager) Stop() {
	if m.scheduler != nil {
		_ = m.scheduler.Shutdown()
	}
	m.strand.Close()
}

func (m *Manager) restore() error {
	mapping, err := loadLoggerMap(m.opts.MapFilePath)
	if err != nil {
		return err
	}
	for key, serverID := range mapping {
		deviceID := trimLoggerPrefix(key)
		srv, ok := m.servers[serverID]
		if !ok {
			continue
		}
		srv.devices[deviceID] = struct{}{}
	}

	bl, err := loadBlocklist(m.opts.BlocklistFilePath)
	if err != nil {
		return err
	}
	m.props.BlocklistDeviceIDs = bl.DeviceIDs
	m.props.BlocklistClassIDs = bl.ClassIDs
	m.recomputeBlocked()
	return nil
}

func trimLoggerPrefix(key string) string {
	const prefix = "DataLogger-"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

func (m *Manager) persistMap() {
	out := make(map[string]string)
	for id, srv := range m.servers {
		for dev := range srv.devices {
			out[deviceKey(dev)] = id
		}
		for dev := range srv.beingAdded {
			out[deviceKey(dev)] = id
		}
	}
	if err := saveLoggerMap(m.opts.MapFilePath, out); err != nil {
		klog.Warnf("loggermanager: persisting logger map: %v", err)
	}
}

// assignServer picks the next server in round-robin order for a newly
// seen device (spec §4.5 "assign a server (round-robin)").
func (m *Manager) assignServer() string {
	if len(m.order) == 0 {
		return ""
	}
	id := m.order[m.nextServer%len(m.order)]
	m.nextServer++
	return id
}

// loggerMapRows builds the device-to-logger table exposed through
// slotGetProperties' "loggerMap" entry (spec §6), sorted
// case-insensitively by device id like the original's
// makeLoggersTable. Caller must hold m.mu.
func (m *Manager) loggerMapRows() []*kdata.Container {
	type entry struct{ device, server string }
	var entries []entry
	for id, srv := range m.servers {
		for dev := range srv.devices {
			entries = append(entries, entry{dev, id})
		}
		for dev := range srv.beingAdded {
			entries = append(entries, entry{dev, id})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].device) < strings.ToLower(entries[j].device)
	})
	rows := make([]*kdata.Container, 0, len(entries))
	for _, e := range entries {
		row := kdata.NewContainer()
		row.MustSet("device", kdata.NewString(e.device))
		row.MustSet("dataLogger", kdata.NewString(e.server))
		rows = append(rows, row)
	}
	return rows
}

// findServerFor reports which server already owns deviceID, if any.
func (m *Manager) findServerFor(deviceID string) (*serverState, bool) {
	for _, srv := range m.servers {
		if srv.contains(deviceID) {
			return srv, true
		}
	}
	return nil, false
}

// LastLoggedUpdate returns the most recent logger-reported timestamp
// string observed for deviceID by the periodic check, if any.
func (m *Manager) LastLoggedUpdate(deviceID string) (string, bool) {
	return m.lastSeen.Get(deviceID)
}

