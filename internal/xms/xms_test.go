// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"context"
	"testing"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/broker"
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
)

func newTestInstance(t *testing.T, drv broker.Driver, id string) *SignalSlotable {
	t.Helper()
	s := New(drv, Options{InstanceID: id, HeartbeatInterval: time.Hour})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s): %v", id, err)
	}
	t.Cleanup(s.Stop)
	return s
}

// TestRequestReplyHappyPath is scenario S3.
func TestRequestReplyHappyPath(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	a := newTestInstance(t, drv, "A")
	b := newTestInstance(t, drv, "B")

	var gotSenderID string
	if err := b.RegisterSlot("add", 2, func(ctx *SlotContext) ([]any, error) {
		var x, y int32
		if err := ctx.Unpack(&x, &y); err != nil {
			return nil, err
		}
		gotSenderID = ctx.SenderInstanceID
		return []any{x + y}, nil
	}); err != nil {
		t.Fatal(err)
	}

	var out int32
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := a.Request(ctx, "B", "add", 500*time.Millisecond, []any{int32(2), int32(3)}, &out); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if out != 5 {
		t.Fatalf("out = %d, want 5", out)
	}
	if gotSenderID != "A" {
		t.Fatalf("handler saw sender id %q, want A", gotSenderID)
	}
}

// TestRequestTimeout is scenario S4: a slot that never replies must
// surface TimeoutError, and a reply arriving after the deadline must
// be dropped silently rather than panicking or double-resolving.
func TestRequestTimeout(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	a := newTestInstance(t, drv, "A")
	b := newTestInstance(t, drv, "B")

	release := make(chan struct{})
	if err := b.RegisterSlot("slow", 0, func(ctx *SlotContext) ([]any, error) {
		<-release
		return []any{}, nil
	}); err != nil {
		t.Fatal(err)
	}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	err := a.Request(ctx, "B", "slow", 50*time.Millisecond, nil)
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected TimeoutError")
	}
	if elapsed < 50*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

// countingDriver wraps a Driver to count Publish calls, for asserting
// the "zero subscribers -> zero broker traffic" invariant (spec §8).
type countingDriver struct {
	broker.Driver
	publishes int
}

func (d *countingDriver) Publish(topic string, header, body []byte, priority int, ttl time.Duration) error {
	d.publishes++
	return d.Driver.Publish(topic, header, body, priority, ttl)
}

func TestEmitZeroSubscribersProducesNoTraffic(t *testing.T) {
	inner := broker.NewInMemory()
	t.Cleanup(func() { _ = inner.Close() })
	drv := &countingDriver{Driver: inner}
	a := newTestInstance(t, drv, "A")
	drv.publishes = 0 // drop the instanceNew/heartbeat-setup traffic from Start

	if err := a.RegisterSignal("tick", 0); err != nil {
		t.Fatal(err)
	}
	if err := a.Emit("tick"); err != nil {
		t.Fatal(err)
	}
	if drv.publishes != 0 {
		t.Fatalf("expected zero publishes for a signal with no subscribers, got %d", drv.publishes)
	}
}

func TestEmitSameProcessShortCircuit(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	a := newTestInstance(t, drv, "A")
	b := newTestInstance(t, drv, "B")

	if err := a.RegisterSignal("valueChanged", 1); err != nil {
		t.Fatal(err)
	}
	received := make(chan int32, 1)
	if err := b.RegisterSlot("onValueChanged", 1, func(ctx *SlotContext) ([]any, error) {
		var v int32
		if err := ctx.Unpack(&v); err != nil {
			return nil, err
		}
		received <- v
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.RegisterSlotForSignal("valueChanged", "B", "onValueChanged"); err != nil {
		t.Fatal(err)
	}

	if err := a.Emit("valueChanged", int32(7)); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-received:
		if v != 7 {
			t.Fatalf("got %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("slot was never invoked")
	}
}

// TestAsyncReplyDelivers covers the deferred-reply path: a handler
// claims AsyncReply and answers from another goroutine, and the
// caller's blocking Request still resolves.
func TestAsyncReplyDelivers(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	a := newTestInstance(t, drv, "A")
	b := newTestInstance(t, drv, "B")

	if err := b.RegisterSlot("slowAdd", 2, func(ctx *SlotContext) ([]any, error) {
		var x, y int32
		if err := ctx.Unpack(&x, &y); err != nil {
			return nil, err
		}
		reply := ctx.AsyncReply()
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = reply.Reply(x + y)
		}()
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	var out int32
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Request(ctx, "B", "slowAdd", time.Second, []any{int32(4), int32(6)}, &out); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if out != 10 {
		t.Fatalf("out = %d, want 10", out)
	}
}

// TestAsyncReplyUsedTwiceIsRejected is the "callable at most once"
// invariant: a second Reply call after the first must fail rather than
// silently double-deliver.
func TestAsyncReplyUsedTwiceIsRejected(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	b := newTestInstance(t, drv, "B2")
	var reply *AsyncReply
	claimed := make(chan struct{})
	if err := b.RegisterSlot("claim", 0, func(ctx *SlotContext) ([]any, error) {
		reply = ctx.AsyncReply()
		close(claimed)
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	a := newTestInstance(t, drv, "A2")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Request(ctx, "B2", "claim", time.Second, nil)
	}()

	select {
	case <-claimed:
	case <-time.After(time.Second):
		t.Fatal("slot was never invoked")
	}

	if err := reply.Reply(int32(1)); err != nil {
		t.Fatalf("first Reply: %v", err)
	}
	if err := reply.Reply(int32(2)); err == nil {
		t.Fatal("second Reply should have been rejected")
	}
}

// TestRequestNoWaitRoutesToReplier covers the fire-and-forget variant:
// the reply from the called slot lands on the named replier instance
// and slot instead of going back to the caller.
func TestRequestNoWaitRoutesToReplier(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	worker := newTestInstance(t, drv, "Worker")
	if err := worker.RegisterSlot("double", 1, func(ctx *SlotContext) ([]any, error) {
		var x int32
		if err := ctx.Unpack(&x); err != nil {
			return nil, err
		}
		return []any{x * 2}, nil
	}); err != nil {
		t.Fatal(err)
	}

	replier := newTestInstance(t, drv, "Replier")
	received := make(chan int32, 1)
	if err := replier.RegisterSlot("onResult", 1, func(ctx *SlotContext) ([]any, error) {
		var v int32
		if err := ctx.Unpack(&v); err != nil {
			return nil, err
		}
		received <- v
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	caller := newTestInstance(t, drv, "Caller")
	if err := caller.RequestNoWait("Worker", "double", "Replier", "onResult", int32(21)); err != nil {
		t.Fatalf("RequestNoWait: %v", err)
	}

	select {
	case v := <-received:
		if v != 42 {
			t.Fatalf("got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("replier slot was never invoked")
	}
}

// TestTrackingHandlerSeesDiscoveryEvents covers the discovery happy
// path: an instanceNew broadcast from a newly started peer, and the
// instanceGone from its Stop, reach a tracking-enabled observer's
// TrackingHandler.
func TestTrackingHandlerSeesDiscoveryEvents(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	events := make(chan string, 4)
	observer := New(drv, Options{
		InstanceID:        "Observer",
		HeartbeatInterval: time.Hour,
		TrackInstances:    true,
		TrackingHandler: func(event, instanceID string, info *kdata.Container) {
			events <- event + ":" + instanceID
		},
	})
	if err := observer.Start(context.Background()); err != nil {
		t.Fatalf("Start(Observer): %v", err)
	}
	t.Cleanup(observer.Stop)

	peer := newTestInstance(t, drv, "Peer")

	select {
	case ev := <-events:
		if ev != "instanceNew:Peer" {
			t.Fatalf("got %q, want instanceNew:Peer", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("observer never saw instanceNew")
	}

	peer.Stop()

	select {
	case ev := <-events:
		if ev != "instanceGone:Peer" {
			t.Fatalf("got %q, want instanceGone:Peer", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("observer never saw instanceGone")
	}
}

// TestReconnectRetriesOnInstanceNew checks that a Connect() intent
// recorded because its target was unavailable is retried once that
// target announces itself, without the caller doing anything further.
func TestReconnectRetriesOnInstanceNew(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	a := newTestInstance(t, drv, "A3")
	received := make(chan int32, 1)
	if err := a.RegisterSlot("onTick", 1, func(ctx *SlotContext) ([]any, error) {
		var v int32
		if err := ctx.Unpack(&v); err != nil {
			return nil, err
		}
		received <- v
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	// Simulate an earlier failed Connect() attempt against "B3", which
	// does not exist yet: record the intent directly instead of paying
	// for the real request's timeout.
	a.reconnectMu.Lock()
	a.reconnects[connectKey("B3", "tick", "A3", "onTick")] = &reconnectIntent{
		signalID: "B3", signal: "tick", slotID: "A3", slot: "onTick",
	}
	a.reconnectMu.Unlock()

	// Register the signal before Start so the instanceNew broadcast that
	// triggers the retry can never race ahead of it being known.
	b := New(drv, Options{InstanceID: "B3", HeartbeatInterval: time.Hour})
	if err := b.RegisterSignal("tick", 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start(B3): %v", err)
	}
	t.Cleanup(b.Stop)

	deadline := time.After(time.Second)
	for {
		a.reconnectMu.Lock()
		_, pending := a.reconnects[connectKey("B3", "tick", "A3", "onTick")]
		a.reconnectMu.Unlock()
		if !pending {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reconnect intent was never retried")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := b.Emit("tick", int32(99)); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case v := <-received:
		if v != 99 {
			t.Fatalf("got %d, want 99", v)
		}
	case <-time.After(time.Second):
		t.Fatal("A3's slot was never invoked after reconnect")
	}
}

// TestDisconnectUnsubscribesRemotePeer is the counterpart of
// TestReconnectRetriesOnInstanceNew:
// Disconnect must reach the signal side over the wire and remove the
// subscription there, not just forget the local reconnect intent.
func TestDisconnectUnsubscribesRemotePeer(t *testing.T) {
	drv := broker.NewInMemory()
	t.Cleanup(func() { _ = drv.Close() })

	pub := newTestInstance(t, drv, "Pub4")
	if err := pub.RegisterSignal("tick", 1); err != nil {
		t.Fatal(err)
	}

	sub := newTestInstance(t, drv, "Sub4")
	received := make(chan int32, 1)
	if err := sub.RegisterSlot("onTick", 1, func(ctx *SlotContext) ([]any, error) {
		var v int32
		if err := ctx.Unpack(&v); err != nil {
			return nil, err
		}
		received <- v
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	sub.Connect("Pub4", "tick", "Sub4", "onTick")
	waitForSubscriberCount(t, pub, "tick", 1)

	if err := pub.Emit("tick", int32(1)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	select {
	case v := <-received:
		if v != 1 {
			t.Fatalf("got %d, want 1", v)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the first tick")
	}

	sub.Disconnect("Pub4", "tick", "Sub4", "onTick")
	waitForSubscriberCount(t, pub, "tick", 0)

	if err := pub.Emit("tick", int32(2)); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	select {
	case <-received:
		t.Fatal("handler ran after Disconnect")
	case <-time.After(50 * time.Millisecond):
	}
}

func waitForSubscriberCount(t *testing.T, s *SignalSlotable, signalName string, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		s.mu.RLock()
		sig, ok := s.signals[signalName]
		s.mu.RUnlock()
		if !ok {
			t.Fatalf("signal %q not registered", signalName)
		}
		if sig.subscriberCount() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("subscriber count for %q never reached %d", signalName, want)
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
