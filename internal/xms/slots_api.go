// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import "github.com/European-XFEL/Karabo-sub015/internal/kerrors"

// RegisterSlot creates name on first use and attaches handler to it.
// A later registration under the same name with a different arity is
// a LogicError (spec §4.4.2).
func (s *SignalSlotable) RegisterSlot(name string, arity int, handler SlotHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[name]
	if !ok {
		slot = newSlot(name, arity)
		s.slots[name] = slot
	} else if err := checkArity(slot.arity, arity, "slot", name); err != nil {
		return err
	}
	slot.addHandler(handler)
	return nil
}

func (s *SignalSlotable) registerBuiltinSlots() {
	_ = s.RegisterSlot(slotPing, 1, func(ctx *SlotContext) ([]any, error) {
		var nonce string
		if err := ctx.Unpack(&nonce); err != nil {
			return nil, kerrors.NewSignalSlotError("slotPing: %v", err)
		}
		return []any{nonce}, nil
	})
}
