// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// RegisterSignal creates a signal bound to a parameter tuple of the
// given arity. Re-registering the same name with a different arity is
// a LogicError; re-registering with the same arity is a no-op (spec
// §4.4.1).
func (s *SignalSlotable) RegisterSignal(name string, arity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.signals[name]; ok {
		return checkArity(existing.arity, arity, "signal", name)
	}
	s.signals[name] = newSignal(name, arity)
	return nil
}

// RegisterSlotForSignal subscribes subscriberID's subscriberSlot to
// signalName; idempotent, returns true on first insertion (spec
// §4.4.1).
func (s *SignalSlotable) RegisterSlotForSignal(signalName, subscriberID, subscriberSlot string) (bool, error) {
	s.mu.RLock()
	sig, ok := s.signals[signalName]
	s.mu.RUnlock()
	if !ok {
		return false, kerrors.NewSignalSlotError("unknown signal %q", signalName)
	}
	return sig.subscribe(subscriberID, subscriberSlot), nil
}

// UnregisterSlotForSignal removes one subscriber edge; an empty slot
// name removes every edge registered for that subscriber (spec
// §4.4.1).
func (s *SignalSlotable) UnregisterSlotForSignal(signalName, subscriberID, slot string) error {
	s.mu.RLock()
	sig, ok := s.signals[signalName]
	s.mu.RUnlock()
	if !ok {
		return kerrors.NewSignalSlotError("unknown signal %q", signalName)
	}
	sig.unsubscribe(subscriberID, slot)
	return nil
}

// Emit fires signalName with args to every subscriber: local
// subscribers are delivered in-process without a broker round trip,
// remote subscribers are published to once (spec §4.4.1). A
// non-heartbeat signal with zero subscribers produces no broker
// traffic at all.
func (s *SignalSlotable) Emit(signalName string, args ...any) error {
	s.mu.RLock()
	sig, ok := s.signals[signalName]
	s.mu.RUnlock()
	if !ok {
		return kerrors.NewSignalSlotError("unknown signal %q", signalName)
	}

	dests := sig.snapshot()
	if len(dests) == 0 {
		return nil
	}

	header := newHeader(s.opts.InstanceID, s.opts.HostName, s.opts.UserName)
	header.MustSet(hdrSignalFunction, kdata.NewString(signalName))

	body, err := packArgs(args...)
	if err != nil {
		return err
	}

	var remote []destination
	for _, d := range dests {
		if peer, ok := liveInstances.lookup(d.instanceID); ok {
			s.deliverLocalToSlots(peer, header, body, d.slots)
			s.metrics.shortCircuitDeliveries.Inc()
			continue
		}
		remote = append(remote, d)
	}
	if len(remote) == 0 {
		return nil
	}

	ids, fns := encodeDestinations(remote)
	header.MustSet(hdrSlotInstanceIDs, kdata.NewString(ids))
	header.MustSet(hdrSlotFunctions, kdata.NewString(fns))

	headerBytes, bodyBytes, err := encodeBody(header, body)
	if err != nil {
		return err
	}
	return s.publishWithRetry(broadcastTopic, headerBytes, bodyBytes, 4, 0)
}

// deliverLocalToSlots posts directly onto peer's unicast strand for
// us, invoking only the slot names this destination's subscriber
// record actually named (short-circuit path mirrors what the broker
// path would have delivered).
func (s *SignalSlotable) deliverLocalToSlots(peer *SignalSlotable, header, body *kdata.Container, slots []string) {
	ids, fns := encodeDestinations([]destination{{instanceID: peer.opts.InstanceID, slots: slots}})
	scoped := header.Clone()
	scoped.MustSet(hdrSlotInstanceIDs, kdata.NewString(ids))
	scoped.MustSet(hdrSlotFunctions, kdata.NewString(fns))
	peer.deliverLocal(scoped, body)
}
