// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"sync/atomic"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// AsyncReply is the one-shot token a slot handler captures when it
// wants to return without replying and answer later, from any
// goroutine (spec §4.4.2). Calling Reply or Error a second time is a
// no-op returning a LogicError, matching "callable at most once
// (enforced at runtime)" from the Design Notes.
type AsyncReply struct {
	ss     *SignalSlotable
	header *kdata.Container
	used   int32
}

// Reply sends args as the reply body.
func (r *AsyncReply) Reply(args ...any) error {
	if !atomic.CompareAndSwapInt32(&r.used, 0, 1) {
		return kerrors.NewLogicError("AsyncReply already used")
	}
	return r.ss.sendReply(r.header, args, nil)
}

// Error sends a __remoteException__ reply instead of a normal reply.
func (r *AsyncReply) Error(message, details string) error {
	if !atomic.CompareAndSwapInt32(&r.used, 0, 1) {
		return kerrors.NewLogicError("AsyncReply already used")
	}
	return r.ss.sendReply(r.header, nil, kerrors.NewRemoteError(message, details))
}
