// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"context"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/google/uuid"
)

// Request starts a synchronous call to target's slot, blocking up to
// timeout (or opts.DefaultTimeout if zero) and unpacking the reply
// into out (spec §4.4.3). An arity mismatch in the reply only warns;
// a type mismatch raises CastError.
func (s *SignalSlotable) Request(ctx context.Context, target, slot string, timeout time.Duration, args []any, out ...any) error {
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	replyID := uuid.NewString()

	header := s.buildRequestHeader(target, slot, replyID)
	body, err := packArgs(args...)
	if err != nil {
		return err
	}

	result := make(chan replyResult, 1)
	s.replyMu.Lock()
	s.pending[replyID] = &pendingReply{ch: result}
	s.replyMu.Unlock()
	s.metrics.pendingRequests.Inc()
	defer s.metrics.pendingRequests.Dec()
	defer s.cancelPending(replyID)

	if err := s.deliverTo(target, header, body); err != nil {
		return err
	}

	select {
	case r := <-result:
		if r.err != nil {
			return r.err
		}
		if n := r.body.Len(); n < len(out) {
			klog.Warnf("%s: reply from %s/%s has %d args, want %d", s.opts.InstanceID, target, slot, n, len(out))
			out = out[:n]
		}
		return unpackArgs(r.body, out...)
	case <-time.After(timeout):
		return kerrors.NewTimeoutError(replyID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReceiveAsync registers onReply/onError for a request's eventual
// reply and returns immediately after publishing (spec §4.4.3
// "receive_async"). Both callbacks run on the calling instance's
// broadcast strand, matching "timer callbacks post onto the relevant
// strand before touching state" (spec §4.4.6).
func (s *SignalSlotable) ReceiveAsync(target, slot string, timeout time.Duration, args []any, onReply func(*kdata.Container), onError func(error)) error {
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	replyID := uuid.NewString()

	header := s.buildRequestHeader(target, slot, replyID)
	body, err := packArgs(args...)
	if err != nil {
		return err
	}

	p := &pendingReply{
		handler: replyAsyncHandler{strand: s.broadcastStrand, onReply: onReply, onError: onError},
	}
	p.timer = time.AfterFunc(timeout, func() {
		s.replyMu.Lock()
		_, ok := s.pending[replyID]
		delete(s.pending, replyID)
		s.replyMu.Unlock()
		if ok && onError != nil {
			s.broadcastStrand.Post(func() { onError(kerrors.NewTimeoutError(replyID)) })
		}
	})

	s.replyMu.Lock()
	s.pending[replyID] = p
	s.replyMu.Unlock()

	if err := s.deliverTo(target, header, body); err != nil {
		s.cancelPending(replyID)
		return err
	}
	return nil
}

// RequestNoWait is the fire-and-forget variant: the reply, if any, is
// routed straight to replierSlot on replierID instead of back to the
// caller, and no timer is installed here (spec §4.4.3).
func (s *SignalSlotable) RequestNoWait(target, slot, replierID, replierSlot string, args ...any) error {
	header := kdata.NewContainer()
	header.MustSet(hdrSignalInstanceID, kdata.NewString(s.opts.InstanceID))
	header.MustSet(hdrSignalFunction, kdata.NewString(FuncRequestNoWait))
	header.MustSet(hdrHostName, kdata.NewString(s.opts.HostName))
	header.MustSet(hdrUserName, kdata.NewString(s.opts.UserName))
	header.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))

	ids, fns := encodeDestinations([]destination{{instanceID: target, slots: []string{slot}}})
	header.MustSet(hdrSlotInstanceIDs, kdata.NewString(ids))
	header.MustSet(hdrSlotFunctions, kdata.NewString(fns))

	if replierID != "" {
		header.MustSet(hdrReplyInstanceIDs, kdata.NewString("|"+replierID+"|"))
		_, replyFns := encodeDestinations([]destination{{instanceID: replierID, slots: []string{replierSlot}}})
		header.MustSet(hdrReplyFunctions, kdata.NewString(replyFns))
	}

	body, err := packArgs(args...)
	if err != nil {
		return err
	}
	return s.deliverTo(target, header, body)
}

func (s *SignalSlotable) buildRequestHeader(target, slot, replyID string) *kdata.Container {
	header := kdata.NewContainer()
	header.MustSet(hdrSignalInstanceID, kdata.NewString(s.opts.InstanceID))
	header.MustSet(hdrSignalFunction, kdata.NewString(FuncRequest))
	header.MustSet(hdrReplyTo, kdata.NewString(replyID))
	header.MustSet(hdrHostName, kdata.NewString(s.opts.HostName))
	header.MustSet(hdrUserName, kdata.NewString(s.opts.UserName))
	header.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))

	ids, fns := encodeDestinations([]destination{{instanceID: target, slots: []string{slot}}})
	header.MustSet(hdrSlotInstanceIDs, kdata.NewString(ids))
	header.MustSet(hdrSlotFunctions, kdata.NewString(fns))
	return header
}

func (s *SignalSlotable) cancelPending(replyID string) {
	s.replyMu.Lock()
	defer s.replyMu.Unlock()
	if p, ok := s.pending[replyID]; ok {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(s.pending, replyID)
	}
}

// handleReply routes an incoming __reply__/__remoteException__ message
// to the pending request it answers, unblocking a synchronous waiter
// or invoking a registered async handler (spec §4.4.3).
func (s *SignalSlotable) handleReply(header, body *kdata.Container) {
	replyTo := headerString(header, hdrReplyTo)

	s.replyMu.Lock()
	p, ok := s.pending[replyTo]
	if ok {
		delete(s.pending, replyTo)
	}
	s.replyMu.Unlock()
	if !ok {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}

	var replyErr error
	if headerString(header, hdrSignalFunction) == FuncRemoteException {
		message := ""
		details := ""
		if v, ok := body.Get("message"); ok {
			message, _ = v.AsString()
		}
		if v, ok := body.Get("details"); ok {
			details, _ = v.AsString()
		}
		replyErr = kerrors.NewRemoteError(message, details)
	}

	if p.ch != nil {
		p.ch <- replyResult{header: header, body: body, err: replyErr}
		return
	}

	h := p.handler
	if replyErr != nil {
		if h.onError != nil {
			h.strand.Post(func() { h.onError(replyErr) })
		}
		return
	}
	if h.onReply != nil {
		h.strand.Post(func() { h.onReply(body) })
	}
}
