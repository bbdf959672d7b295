// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package xms implements the signal/slot RPC core: typed signals and
// slots, synchronous and asynchronous request/response, short-circuit
// in-process delivery, instance discovery via heartbeats, and
// resilient reconnection of signal-to-slot edges (spec §4.4).
package xms

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/broker"
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
	"github.com/European-XFEL/Karabo-sub015/internal/strand"
	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
	"github.com/go-co-op/gocron/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// infoCacheSize bounds the last-known-info cache: instances that have
// long since gone still leave a trace for diagnostics, but the table
// must not grow without bound across a long-running topology (spec §3
// domain stack: bounded cache).
const infoCacheSize = 4096

// Heartbeat and discovery signal/slot names, kept internal because
// user code never addresses them directly.
const (
	signalInstanceNew     = "signalInstanceNew"
	signalInstanceGone    = "signalInstanceGone"
	signalInstanceUpdated = "signalInstanceUpdated"
	signalHeartbeat       = "signalHeartbeat"
	slotPing              = "slotPing"
	broadcastTopic        = "karaboBroadcast"
)

// trackedInstanceTTLFactor multiplies the peer's advertised heartbeat
// interval to get the countdown before it is declared gone (spec
// §4.4.4: "a multiple (>=2) of the advertised interval").
const trackedInstanceTTLFactor = 3

// TrackingHandler receives discovery events when tracking is enabled.
type TrackingHandler func(event, instanceID string, info *kdata.Container)

// Options configures a new SignalSlotable.
type Options struct {
	InstanceID        string
	HostName          string
	UserName          string
	HeartbeatInterval time.Duration
	InstanceInfo      *kdata.Container
	TrackInstances    bool
	TrackingHandler    TrackingHandler
	DefaultTimeout    time.Duration
}

func (o *Options) withDefaults() {
	if o.HostName == "" {
		o.HostName, _ = os.Hostname()
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	if o.InstanceInfo == nil {
		o.InstanceInfo = kdata.NewContainer()
	}
	if o.DefaultTimeout <= 0 {
		// "tens of seconds" per spec §5 cancellation/timeouts.
		o.DefaultTimeout = 30 * time.Second
	}
}

type pendingReply struct {
	ch      chan replyResult
	handler replyAsyncHandler
	timer   *time.Timer
}

type replyResult struct {
	header *kdata.Container
	body   *kdata.Container
	err    error
}

type replyAsyncHandler struct {
	strand  *strand.Strand
	onReply func(body *kdata.Container)
	onError func(err error)
}

type trackedInstance struct {
	info     *kdata.Container
	interval time.Duration
	timer    *time.Timer
}

type reconnectIntent struct {
	signalID, signal string
	slotID, slot     string
}

// SignalSlotable is one RPC endpoint: an addressable identity that
// owns signals, slots, a request/reply pipeline and discovery state
// (spec §4.4).
type SignalSlotable struct {
	opts Options

	driver broker.Driver

	mu      sync.RWMutex
	signals map[string]*Signal
	slots   map[string]*Slot

	replyMu  sync.Mutex
	pending  map[string]*pendingReply

	trackMu  sync.Mutex
	tracked  map[string]*trackedInstance

	reconnectMu sync.Mutex
	reconnects  map[string]*reconnectIntent

	broadcastStrand *strand.Strand
	unicastMu       sync.Mutex
	unicastStrands  map[string]*strand.Strand

	scheduler gocron.Scheduler

	runningMu sync.Mutex
	running   bool

	metrics   *instanceMetrics
	infoCache *lru.Cache[string, *kdata.Container]
}

// New constructs a SignalSlotable bound to driver; it does not start
// network activity until Start is called.
func New(driver broker.Driver, opts Options) *SignalSlotable {
	opts.withDefaults()
	infoCache, err := lru.New[string, *kdata.Container](infoCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// infoCacheSize never is.
		panic(err)
	}
	s := &SignalSlotable{
		opts:            opts,
		driver:          driver,
		signals:         make(map[string]*Signal),
		slots:           make(map[string]*Slot),
		pending:         make(map[string]*pendingReply),
		tracked:         make(map[string]*trackedInstance),
		reconnects:      make(map[string]*reconnectIntent),
		broadcastStrand: strand.New("broadcast:"+opts.InstanceID, 256),
		unicastStrands:  make(map[string]*strand.Strand),
		metrics:         newInstanceMetrics(opts.InstanceID),
		infoCache:       infoCache,
	}
	s.registerBuiltinSlots()
	s.registerConnectSlots()
	return s
}

func (s *SignalSlotable) InstanceID() string { return s.opts.InstanceID }

// LastKnownInfo returns the most recently seen instanceInfo for id,
// including instances that have since gone offline, up to
// infoCacheSize entries of history.
func (s *SignalSlotable) LastKnownInfo(id string) (*kdata.Container, bool) {
	return s.infoCache.Get(id)
}

func (s *SignalSlotable) unicastTopic() string { return s.opts.InstanceID }

// unicastStrandFor returns the per-sender strand, creating it on
// first use (spec §4.4.6: "one strand per distinct sender id").
func (s *SignalSlotable) unicastStrandFor(senderID string) *strand.Strand {
	s.unicastMu.Lock()
	defer s.unicastMu.Unlock()
	st, ok := s.unicastStrands[senderID]
	if !ok {
		st = strand.New("unicast:"+s.opts.InstanceID+":"+senderID, 256)
		s.unicastStrands[senderID] = st
	}
	return st
}

// Start performs the uniqueness probe, subscribes to this instance's
// topics, announces presence and starts the heartbeat ticker (spec
// §4.4, §4.4.4, §4.4.5).
func (s *SignalSlotable) Start(ctx context.Context) error {
	s.runningMu.Lock()
	if s.running {
		s.runningMu.Unlock()
		return kerrors.NewSignalSlotError("instance %q already started", s.opts.InstanceID)
	}
	s.runningMu.Unlock()

	// Subscribe to our own topic before probing: a duplicate holder of
	// this instance id replies to the probe on this same topic (spec
	// §4.4.5), so the listener must already be live.
	if err := s.driver.Subscribe(s.unicastTopic(), s.onMessage); err != nil {
		return kerrors.NewNetworkError("subscribe", "%v", err)
	}

	if err := s.probeUniqueness(ctx); err != nil {
		_ = s.driver.Unsubscribe(s.unicastTopic())
		return err
	}

	if err := s.driver.Subscribe(broadcastTopic, s.onMessage); err != nil {
		return kerrors.NewNetworkError("subscribe", "%v", err)
	}
	s.driver.OnError(func(consumerID, kind, message string) {
		klog.Errorf("%s: broker error on %s: %s: %s", s.opts.InstanceID, consumerID, kind, message)
	})

	liveInstances.register(s)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("xms: creating scheduler: %w", err)
	}
	s.scheduler = sched
	if _, err := sched.NewJob(
		gocron.DurationJob(s.opts.HeartbeatInterval),
		gocron.NewTask(s.emitHeartbeat),
	); err != nil {
		return fmt.Errorf("xms: scheduling heartbeat: %w", err)
	}
	sched.Start()

	liveInstances.register(s)

	s.runningMu.Lock()
	s.running = true
	s.runningMu.Unlock()

	s.emitInstanceEvent(signalInstanceNew)
	klog.Infof("%s: started", s.opts.InstanceID)
	return nil
}

// Stop cancels all timers, unsubscribes from the broker, emits
// instanceGone and unregisters from the process-wide registry (spec
// §5 "shutdown cancels all timers ... joins the pool").
func (s *SignalSlotable) Stop() {
	s.runningMu.Lock()
	if !s.running {
		s.runningMu.Unlock()
		return
	}
	s.running = false
	s.runningMu.Unlock()

	s.emitInstanceEvent(signalInstanceGone)

	if s.scheduler != nil {
		_ = s.scheduler.Shutdown()
	}
	_ = s.driver.Unsubscribe(s.unicastTopic())
	_ = s.driver.Unsubscribe(broadcastTopic)
	liveInstances.unregister(s.opts.InstanceID)

	s.trackMu.Lock()
	for id, t := range s.tracked {
		t.timer.Stop()
		delete(s.tracked, id)
	}
	s.trackMu.Unlock()

	s.broadcastStrand.Close()
	s.unicastMu.Lock()
	for _, st := range s.unicastStrands {
		st.Close()
	}
	s.unicastMu.Unlock()

	s.replyMu.Lock()
	for id, p := range s.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(s.pending, id)
	}
	s.replyMu.Unlock()

	klog.Infof("%s: stopped", s.opts.InstanceID)
}
