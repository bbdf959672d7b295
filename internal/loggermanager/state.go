// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package loggermanager keeps a bijection between devices that ought
// to be logged and the logger servers actually logging them: a pool
// of logger servers assigned round-robin per newly seen device, with
// assignments persisted across restarts and re-verified by a periodic
// sanity check (spec §4.5).
package loggermanager

// LoggerState is a logger server's position in the per-server state
// machine (spec §4.5):
//
//	            discovered server              instantiate ack
//	OFFLINE ──────────────────────▶ INSTANTIATING ───────────────────▶ RUNNING
//	   ▲                                    │                              │
//	   │                                    │ instantiate already-exists   │ logger gone
//	   │                                    └──────────────────────────────┘
//	   │                                                                   │
//	   └──── server gone ──────────────────────────────────────────────────┘
type LoggerState int

const (
	Offline LoggerState = iota
	Instantiating
	Running
)

func (s LoggerState) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Instantiating:
		return "INSTANTIATING"
	case Running:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// serverState is one logger server's bookkeeping: which devices are
// queued, in flight, or confirmed logged. The three id sets are kept
// pairwise disjoint at all times (spec §8 universal invariant).
type serverState struct {
	id         string
	state      LoggerState
	backlog    map[string]struct{}
	beingAdded map[string]struct{}
	devices    map[string]struct{}
}

func newServerState(id string) *serverState {
	return &serverState{
		id:         id,
		state:      Offline,
		backlog:    make(map[string]struct{}),
		beingAdded: make(map[string]struct{}),
		devices:    make(map[string]struct{}),
	}
}

func (s *serverState) queue(deviceID string) {
	if s.contains(deviceID) {
		return
	}
	s.backlog[deviceID] = struct{}{}
}

// contains reports whether deviceID is tracked in any of the three
// disjoint sets.
func (s *serverState) contains(deviceID string) bool {
	if _, ok := s.backlog[deviceID]; ok {
		return true
	}
	if _, ok := s.beingAdded[deviceID]; ok {
		return true
	}
	if _, ok := s.devices[deviceID]; ok {
		return true
	}
	return false
}

func (s *serverState) forget(deviceID string) {
	delete(s.backlog, deviceID)
	delete(s.beingAdded, deviceID)
	delete(s.devices, deviceID)
}

// drainBacklogToBeingAdded moves every backlog entry into being-added
// and returns the moved ids, ready to go out in an
// addDevicesToBeLogged request.
func (s *serverState) drainBacklogToBeingAdded() []string {
	if len(s.backlog) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.backlog))
	for id := range s.backlog {
		ids = append(ids, id)
		s.beingAdded[id] = struct{}{}
		delete(s.backlog, id)
	}
	return ids
}

// requeueAll moves devices and being-added back to backlog, used when
// a RUNNING logger is lost (spec §4.5 "logger gone"/"server gone").
func (s *serverState) requeueAll() {
	for id := range s.devices {
		s.backlog[id] = struct{}{}
		delete(s.devices, id)
	}
	for id := range s.beingAdded {
		s.backlog[id] = struct{}{}
		delete(s.beingAdded, id)
	}
}
