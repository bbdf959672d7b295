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

// probeUniquenessTimeout bounds how long Start waits for a reply from
// a would-be duplicate holder of this instance id (spec §4.4.5).
const probeUniquenessTimeout = 300 * time.Millisecond

// probeUniqueness sends slotPing addressed to its own instance id; a
// reply within probeUniquenessTimeout means another live holder
// answered, and Start must fail.
func (s *SignalSlotable) probeUniqueness(ctx context.Context) error {
	nonce := uuid.NewString()
	var out string
	reqCtx, cancel := context.WithTimeout(ctx, probeUniquenessTimeout)
	defer cancel()

	err := s.Request(reqCtx, s.opts.InstanceID, slotPing, probeUniquenessTimeout, []any{nonce}, &out)
	if err == nil {
		return kerrors.NewSignalSlotError("instance id %q already in use", s.opts.InstanceID)
	}
	if _, ok := err.(*kerrors.TimeoutError); ok {
		return nil
	}
	// Any other error (e.g. context cancellation) is treated the same
	// as "no answer": it does not prove a duplicate exists.
	return nil
}

// emitInstanceEvent announces instanceNew/instanceGone directly on
// the broadcast topic, bypassing the Signal subscriber map: discovery
// must reach every peer regardless of explicit subscription (spec
// §4.4.4). This is a deliberate simplification over the original's
// topic-exchange routing, recorded as an Open Question resolution in
// the design ledger.
func (s *SignalSlotable) emitInstanceEvent(event string) {
	header := kdata.NewContainer()
	header.MustSet(hdrSignalInstanceID, kdata.NewString(s.opts.InstanceID))
	header.MustSet(hdrSignalFunction, kdata.NewString(event))
	header.MustSet(hdrHostName, kdata.NewString(s.opts.HostName))
	header.MustSet(hdrUserName, kdata.NewString(s.opts.UserName))
	header.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))

	body := kdata.NewContainer()
	body.MustSet("instanceId", kdata.NewString(s.opts.InstanceID))
	body.MustSet("info", kdata.ContainerValue(s.opts.InstanceInfo))

	headerBytes, bodyBytes, err := encodeBody(header, body)
	if err != nil {
		klog.Errorf("%s: encoding %s: %v", s.opts.InstanceID, event, err)
		return
	}
	if err := s.publishWithRetry(broadcastTopic, headerBytes, bodyBytes, 4, 0); err != nil {
		klog.Warnf("%s: publishing %s: %v", s.opts.InstanceID, event, err)
	}
}

// emitHeartbeat is the gocron-scheduled task. The heartbeat exception
// in spec §4.4.1 ("must reach the broker even with zero local
// subscribers") holds automatically here since it never consults the
// Signal subscriber map at all.
func (s *SignalSlotable) emitHeartbeat() {
	header := kdata.NewContainer()
	header.MustSet(hdrSignalInstanceID, kdata.NewString(s.opts.InstanceID))
	header.MustSet(hdrSignalFunction, kdata.NewString(signalHeartbeat))
	header.MustSet(hdrHostName, kdata.NewString(s.opts.HostName))
	header.MustSet(hdrUserName, kdata.NewString(s.opts.UserName))
	header.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))

	body := kdata.NewContainer()
	body.MustSet("instanceId", kdata.NewString(s.opts.InstanceID))
	body.MustSet("intervalSeconds", kdata.NewInt32(int32(s.opts.HeartbeatInterval/time.Second)))
	body.MustSet("info", kdata.ContainerValue(s.opts.InstanceInfo))

	headerBytes, bodyBytes, err := encodeBody(header, body)
	if err != nil {
		klog.Errorf("%s: encoding heartbeat: %v", s.opts.InstanceID, err)
		return
	}
	if err := s.publishWithRetry(broadcastTopic, headerBytes, bodyBytes, 4, 0); err != nil {
		klog.Warnf("%s: publishing heartbeat: %v", s.opts.InstanceID, err)
	}
}

// onDiscoveryEvent runs on the broadcast strand for instanceNew,
// instanceGone and heartbeat messages, maintaining the tracked-
// instance table and invoking the user's TrackingHandler, if any
// (spec §4.4.4).
func (s *SignalSlotable) onDiscoveryEvent(event string, header, body *kdata.Container) {
	instanceID := ""
	if v, ok := body.Get("instanceId"); ok {
		instanceID, _ = v.AsString()
	}
	if instanceID == "" || instanceID == s.opts.InstanceID {
		return
	}
	var info *kdata.Container
	if v, ok := body.Get("info"); ok {
		info, _ = v.AsContainer()
	}
	if info == nil {
		info = kdata.NewContainer()
	}
	s.infoCache.Add(instanceID, info)

	switch event {
	case signalInstanceNew:
		s.trackInstance(instanceID, info, s.opts.HeartbeatInterval)
		s.notifyTracking("instanceNew", instanceID, info)
		s.retryReconnects(instanceID)
	case signalInstanceGone:
		s.untrackInstance(instanceID)
		s.notifyTracking("instanceGone", instanceID, info)
	case signalHeartbeat:
		interval := s.opts.HeartbeatInterval
		if v, ok := body.Get("intervalSeconds"); ok {
			if secs, ok := v.AsInt32(); ok && secs > 0 {
				interval = time.Duration(secs) * time.Second
			}
		}
		isNew := !s.hasTrackedInstance(instanceID)
		s.trackInstance(instanceID, info, interval)
		if isNew {
			s.notifyTracking("instanceNew", instanceID, info)
			s.retryReconnects(instanceID)
		}
	}
}

func (s *SignalSlotable) hasTrackedInstance(id string) bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	_, ok := s.tracked[id]
	return ok
}

// trackInstance (re)arms the countdown timer for id at
// trackedInstanceTTLFactor * interval; missing heartbeats expire the
// countdown and synthesize an instanceGone event (spec §4.4.4).
func (s *SignalSlotable) trackInstance(id string, info *kdata.Container, interval time.Duration) {
	ttl := interval * trackedInstanceTTLFactor
	if ttl <= 0 {
		ttl = s.opts.HeartbeatInterval * trackedInstanceTTLFactor
	}

	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if t, ok := s.tracked[id]; ok {
		t.info = info
		t.interval = interval
		t.timer.Reset(ttl)
		return
	}
	t := &trackedInstance{info: info, interval: interval}
	t.timer = time.AfterFunc(ttl, func() { s.expireTrackedInstance(id) })
	s.tracked[id] = t
}

func (s *SignalSlotable) untrackInstance(id string) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if t, ok := s.tracked[id]; ok {
		t.timer.Stop()
		delete(s.tracked, id)
	}
}

func (s *SignalSlotable) expireTrackedInstance(id string) {
	s.trackMu.Lock()
	t, ok := s.tracked[id]
	if ok {
		delete(s.tracked, id)
	}
	s.trackMu.Unlock()
	if !ok {
		return
	}
	klog.Warnf("%s: instance %q missed its heartbeat deadline, declaring it gone", s.opts.InstanceID, id)
	s.notifyTracking("instanceGone", id, t.info)
}

func (s *SignalSlotable) notifyTracking(event, instanceID string, info *kdata.Container) {
	if !s.opts.TrackInstances || s.opts.TrackingHandler == nil {
		return
	}
	s.broadcastStrand.Post(func() {
		s.opts.TrackingHandler(event, instanceID, info)
	})
}
