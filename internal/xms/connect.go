// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"context"
	"time"

	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
)

// reconnectRequestTimeout bounds the "please register me" handshake
// connect() sends to the signal side.
const reconnectRequestTimeout = 5 * time.Second

// connectKey identifies one recorded reconnect intent.
func connectKey(signalID, signal, slotID, slot string) string {
	return signalID + "\x00" + signal + "\x00" + slotID + "\x00" + slot
}

// slotRegisterSignalForSlot is the conventional slot name every
// SignalSlotable exposes so a remote peer's connect() can ask to be
// subscribed (mirrors registerSlotForSignal, but reachable over the
// wire instead of only in-process).
const slotRegisterSignalForSlot = "slotRegisterSignalForSlot"

// slotUnregisterSignalForSlot is the wire-reachable counterpart asked
// by a remote peer's Disconnect(), symmetric with
// slotRegisterSignalForSlot.
const slotUnregisterSignalForSlot = "slotUnregisterSignalForSlot"

func (s *SignalSlotable) registerConnectSlots() {
	_ = s.RegisterSlot(slotRegisterSignalForSlot, 3, func(ctx *SlotContext) ([]any, error) {
		var signalName, subscriberID, subscriberSlot string
		if err := ctx.Unpack(&signalName, &subscriberID, &subscriberSlot); err != nil {
			return nil, err
		}
		ok, err := s.RegisterSlotForSignal(signalName, subscriberID, subscriberSlot)
		if err != nil {
			return nil, err
		}
		return []any{ok}, nil
	})
	_ = s.RegisterSlot(slotUnregisterSignalForSlot, 3, func(ctx *SlotContext) ([]any, error) {
		var signalName, subscriberID, subscriberSlot string
		if err := ctx.Unpack(&signalName, &subscriberID, &subscriberSlot); err != nil {
			return nil, err
		}
		if err := s.UnregisterSlotForSignal(signalName, subscriberID, subscriberSlot); err != nil {
			return nil, err
		}
		return []any{true}, nil
	})
}

// Connect asks signalID to register slotName on slotID as a subscriber
// of signal. The call waits for the answer and returns only once it
// arrives or reconnectRequestTimeout passes. On failure, the intent is recorded and
// retried the next time signalID announces itself via instanceNew
// (spec §4.4.7).
func (s *SignalSlotable) Connect(signalID, signal, slotID, slotName string) {
	ctx, cancel := context.WithTimeout(context.Background(), reconnectRequestTimeout)
	defer cancel()

	var ok bool
	err := s.Request(ctx, signalID, slotRegisterSignalForSlot, reconnectRequestTimeout,
		[]any{signal, slotID, slotName}, &ok)
	if err != nil || !ok {
		s.reconnectMu.Lock()
		key := connectKey(signalID, signal, slotID, slotName)
		s.reconnects[key] = &reconnectIntent{signalID: signalID, signal: signal, slotID: slotID, slot: slotName}
		s.reconnectMu.Unlock()
		klog.Warnf("%s: connect(%s.%s -> %s.%s) failed, will retry on instanceNew: %v",
			s.opts.InstanceID, signalID, signal, slotID, slotName, err)
	}
}

// Disconnect removes any recorded intent and sends an unregister
// request to signalID asking it to drop the subscription; a timeout
// is a soft failure, the local bookkeeping is dropped either way
// (spec §4.4.7).
func (s *SignalSlotable) Disconnect(signalID, signal, slotID, slotName string) {
	s.reconnectMu.Lock()
	delete(s.reconnects, connectKey(signalID, signal, slotID, slotName))
	s.reconnectMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectRequestTimeout)
	defer cancel()

	var ok bool
	if err := s.Request(ctx, signalID, slotUnregisterSignalForSlot, reconnectRequestTimeout,
		[]any{signal, slotID, slotName}, &ok); err != nil {
		klog.Warnf("%s: disconnect(%s.%s -> %s.%s) failed, treating as soft failure: %v",
			s.opts.InstanceID, signalID, signal, slotID, slotName, err)
	}
}

// retryReconnects re-attempts every recorded intent involving
// newInstanceID, called when that instance's instanceNew event
// arrives (spec §4.4.7: "retried" on either peer reappearing).
func (s *SignalSlotable) retryReconnects(newInstanceID string) {
	s.reconnectMu.Lock()
	var toRetry []*reconnectIntent
	for key, intent := range s.reconnects {
		if intent.signalID == newInstanceID || intent.slotID == newInstanceID {
			toRetry = append(toRetry, intent)
			delete(s.reconnects, key)
		}
	}
	s.reconnectMu.Unlock()

	for _, intent := range toRetry {
		s.Connect(intent.signalID, intent.signal, intent.slotID, intent.slot)
	}
}
