// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// SlotHandler processes one invocation of a slot. It returns the
// values to pack into the reply body, or an error which is converted
// to a RemoteError reply (spec §4.4.2, §7).
type SlotHandler func(ctx *SlotContext) ([]any, error)

// SlotContext carries the per-invocation transient fields a handler
// needs: sender identity and the raw header/body (spec §4.4.2, "valid
// only while handlers run").
type SlotContext struct {
	ss     *SignalSlotable
	Header *kdata.Container
	Body   *kdata.Container

	SenderInstanceID string
	UserName         string

	replyClaimed int32
}

// Unpack reads the positional a1..aN arguments into out.
func (c *SlotContext) Unpack(out ...any) error {
	return unpackArgs(c.Body, out...)
}

// AsyncReply returns a one-shot reply handle and suppresses the
// automatic reply synthesis that would otherwise run after the
// handler returns (spec §4.4.2).
func (c *SlotContext) AsyncReply() *AsyncReply {
	atomic.StoreInt32(&c.replyClaimed, 1)
	return &AsyncReply{ss: c.ss, header: c.Header}
}

func (c *SlotContext) asyncClaimed() bool {
	return atomic.LoadInt32(&c.replyClaimed) != 0
}

// Slot is a named incoming endpoint holding one or more handlers
// invoked in registration order under a dedicated mutex, so two
// senders can never race inside the same slot (spec §4.4.2).
type Slot struct {
	name     string
	arity    int
	mu       sync.Mutex
	handlers []SlotHandler
}

func newSlot(name string, arity int) *Slot {
	return &Slot{name: name, arity: arity}
}

func (s *Slot) addHandler(h SlotHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// invoke runs the registered handlers in order, collecting the last
// non-nil reply tuple (matching the original's "last call wins" reply
// semantics when several handlers are registered on one slot name).
// The first handler that returns an error ends the run; later
// handlers are not called.
// Handler panics are recovered and converted to a RemoteError so one
// misbehaving handler cannot take down the strand.
func (s *Slot) invoke(ctx *SlotContext) (reply []any, asyncClaimed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.handlers) == 0 {
		return nil, false, kerrors.NewSignalSlotError("slot %q has no registered handler", s.name)
	}

	for _, h := range s.handlers {
		r, hErr := safeInvoke(h, ctx)
		if hErr != nil {
			return nil, ctx.asyncClaimed(), hErr
		}
		if r != nil {
			reply = r
		}
	}
	return reply, ctx.asyncClaimed(), nil
}

func safeInvoke(h SlotHandler, ctx *SlotContext) (reply []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = kerrors.NewRemoteError("slot handler panicked", fmtPanic(r))
		}
	}()
	return h(ctx)
}

func fmtPanic(r any) string {
	if e, ok := r.(error); ok {
		return e.Error()
	}
	return fmt.Sprintf("%v", r)
}
