// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"sync"

	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// Signal is a named outgoing endpoint owned by a SignalSlotable. The
// subscriber map is mutable under its own mutex, independent of the
// owning SignalSlotable's other tables (spec §4.4.1, §5 "dedicated
// mutex per shared structure").
type Signal struct {
	name    string
	arity   int
	mu      sync.Mutex
	targets map[string]map[string]struct{} // subscriber instance id -> slot names
}

func newSignal(name string, arity int) *Signal {
	return &Signal{name: name, arity: arity, targets: make(map[string]map[string]struct{})}
}

// subscribe adds one (instanceID, slot) edge; idempotent.
// Returns true if this was the first registration for that edge.
func (s *Signal) subscribe(instanceID, slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots, ok := s.targets[instanceID]
	if !ok {
		slots = make(map[string]struct{})
		s.targets[instanceID] = slots
	}
	if _, exists := slots[slot]; exists {
		return false
	}
	slots[slot] = struct{}{}
	return true
}

// unsubscribe removes one (instanceID, slot) edge. An empty slot name
// removes every edge registered for that instance (spec §4.4.1).
func (s *Signal) unsubscribe(instanceID, slot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot == "" {
		delete(s.targets, instanceID)
		return
	}
	if slots, ok := s.targets[instanceID]; ok {
		delete(slots, slot)
		if len(slots) == 0 {
			delete(s.targets, instanceID)
		}
	}
}

// snapshot copies the current destination list out from under the
// lock, so emit never holds Signal's mutex while publishing.
func (s *Signal) snapshot() []destination {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]destination, 0, len(s.targets))
	for id, slots := range s.targets {
		names := make([]string, 0, len(slots))
		for name := range slots {
			names = append(names, name)
		}
		out = append(out, destination{instanceID: id, slots: names})
	}
	return out
}

func (s *Signal) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// checkArity rejects re-registration of a signal under the same name
// with a different declared parameter count (spec §4.4.1: "Re-
// registration under the same name is a no-op if the tuple matches,
// otherwise LogicError").
func checkArity(existing, wanted int, kind, name string) error {
	if existing != wanted {
		return kerrors.NewLogicError("%s %q already registered with arity %d, got %d", kind, name, existing, wanted)
	}
	return nil
}
