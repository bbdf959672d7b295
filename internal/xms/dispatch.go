// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/broker"
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
)

// onMessage is the BrokerDriver handler installed for both the
// unicast and broadcast topics. It decodes the envelope and posts the
// rest of the work onto the appropriate strand (spec §4.4.6): one
// strand for broadcast traffic, one per distinct sender id for
// unicast traffic. Decoding errors drop the message and log, never
// tearing down the instance (spec §7).
func (s *SignalSlotable) onMessage(topic string, msg broker.Message) {
	header, body, err := decodeBody(msg.Header, msg.Body)
	if err != nil {
		klog.Warnf("%s: dropping malformed message on %s: %v", s.opts.InstanceID, topic, err)
		return
	}

	var st = s.unicastStrandFor(headerString(header, hdrSignalInstanceID))
	if topic == broadcastTopic {
		st = s.broadcastStrand
	}
	st.Post(func() {
		s.handleDecoded(header, body)
	})
}

// deliverLocal is the short-circuit path: instead of round-tripping
// through the broker, a locally resolved subscriber's receive
// pipeline is invoked directly on its own strand (spec §4.4.1).
func (s *SignalSlotable) deliverLocal(header, body *kdata.Container) {
	senderID := headerString(header, hdrSignalInstanceID)
	s.unicastStrandFor(senderID).Post(func() {
		s.handleDecoded(header, body)
	})
}

func (s *SignalSlotable) handleDecoded(header, body *kdata.Container) {
	fn := headerString(header, hdrSignalFunction)

	switch fn {
	case signalInstanceNew, signalInstanceGone, signalHeartbeat:
		s.onDiscoveryEvent(fn, header, body)
		return
	case FuncReply, FuncRemoteException:
		s.handleReply(header, body)
		return
	}

	slotNames := parseSlotFunctions(headerString(header, hdrSlotFunctions))[s.opts.InstanceID]
	if len(slotNames) == 0 {
		return
	}

	ctx := &SlotContext{
		ss:               s,
		Header:           header,
		Body:             body,
		SenderInstanceID: headerString(header, hdrSignalInstanceID),
		UserName:         headerString(header, hdrUserName),
	}

	var (
		reply        []any
		asyncClaimed bool
		callErr      error
	)
	for _, name := range slotNames {
		s.mu.RLock()
		slot, ok := s.slots[name]
		s.mu.RUnlock()
		if !ok {
			callErr = kerrors.NewSignalSlotError("unknown slot %q", name)
			continue
		}
		r, claimed, err := slot.invoke(ctx)
		if claimed {
			asyncClaimed = true
		}
		if err != nil {
			callErr = err
			continue
		}
		if r != nil {
			reply = r
		}
	}

	switch fn {
	case FuncRequest:
		if asyncClaimed {
			return
		}
		if err := s.sendReply(header, reply, callErr); err != nil {
			klog.Warnf("%s: sending reply failed: %v", s.opts.InstanceID, err)
		}
	case FuncRequestNoWait:
		if asyncClaimed {
			return
		}
		if err := s.sendNoWaitReply(header, reply, callErr); err != nil {
			klog.Warnf("%s: sending requestNoWait reply failed: %v", s.opts.InstanceID, err)
		}
	default:
		if callErr != nil {
			klog.Warnf("%s: signal %q slot error: %v", s.opts.InstanceID, fn, callErr)
		}
	}
}

// sendReply answers a __request__ message, publishing back to the
// caller's own unicast topic (our topic model routes replies the same
// way as any other unicast message: by instance id).
func (s *SignalSlotable) sendReply(requestHeader *kdata.Container, args []any, callErr error) error {
	replyTo := headerString(requestHeader, hdrReplyTo)
	target := headerString(requestHeader, hdrSignalInstanceID)

	header := kdata.NewContainer()
	header.MustSet(hdrSignalInstanceID, kdata.NewString(s.opts.InstanceID))
	header.MustSet(hdrSignalFunction, kdata.NewString(FuncReply))
	header.MustSet(hdrReplyTo, kdata.NewString(replyTo))
	header.MustSet(hdrHostName, kdata.NewString(s.opts.HostName))
	header.MustSet(hdrUserName, kdata.NewString(s.opts.UserName))
	header.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))

	body := kdata.NewContainer()
	if callErr != nil {
		header.MustSet(hdrSignalFunction, kdata.NewString(FuncRemoteException))
		body.MustSet("message", kdata.NewString(callErr.Error()))
		body.MustSet("details", kdata.NewString(""))
	} else {
		packed, err := packArgs(args...)
		if err != nil {
			return err
		}
		body = packed
	}

	return s.deliverTo(target, header, body)
}

// sendNoWaitReply answers a __requestNoWait__ message by delivering
// the result to the separate replyInstanceIds/replyFunctions
// destination recorded in the original header (spec §4.4.3).
func (s *SignalSlotable) sendNoWaitReply(requestHeader *kdata.Container, args []any, callErr error) error {
	replyIDs := parseInstanceIDs(headerString(requestHeader, hdrReplyInstanceIDs))
	replyFns := parseSlotFunctions(headerString(requestHeader, hdrReplyFunctions))
	if len(replyIDs) == 0 {
		return nil
	}

	header := kdata.NewContainer()
	header.MustSet(hdrSignalInstanceID, kdata.NewString(s.opts.InstanceID))
	header.MustSet(hdrHostName, kdata.NewString(s.opts.HostName))
	header.MustSet(hdrUserName, kdata.NewString(s.opts.UserName))
	header.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))

	body, err := packArgs(args...)
	if err != nil {
		return err
	}
	if callErr != nil {
		body = kdata.NewContainer()
		body.MustSet("message", kdata.NewString(callErr.Error()))
	}

	ids, fns := encodeDestinationsFromMap(replyIDs, replyFns)
	header.MustSet(hdrSlotInstanceIDs, kdata.NewString(ids))
	header.MustSet(hdrSlotFunctions, kdata.NewString(fns))

	for _, target := range replyIDs {
		if err := s.deliverTo(target, header, body); err != nil {
			return err
		}
	}
	return nil
}

func encodeDestinationsFromMap(ids []string, fns map[string][]string) (string, string) {
	dests := make([]destination, 0, len(ids))
	for _, id := range ids {
		dests = append(dests, destination{instanceID: id, slots: fns[id]})
	}
	return encodeDestinations(dests)
}

// deliverTo sends (header, body) to target, using the in-process
// short-circuit when target is a live instance in this process and
// publishing through the broker otherwise.
func (s *SignalSlotable) deliverTo(target string, header, body *kdata.Container) error {
	if peer, ok := liveInstances.lookup(target); ok {
		peer.deliverLocal(header, body)
		s.metrics.shortCircuitDeliveries.Inc()
		return nil
	}
	headerBytes, bodyBytes, err := encodeBody(header, body)
	if err != nil {
		return err
	}
	return s.publishWithRetry(target, headerBytes, bodyBytes, 4, 0)
}

func (s *SignalSlotable) publishWithRetry(topic string, header, body []byte, priority int, ttl time.Duration) error {
	if err := s.driver.Publish(topic, header, body, priority, ttl); err != nil {
		s.metrics.publishErrors.Inc()
		return kerrors.NewNetworkError("publish", "%v", err)
	}
	return nil
}
