// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package broker defines the BrokerDriver contract the signal/slot
// runtime depends on (spec §4.3) and ships two implementations: a
// NATS-backed driver for real deployments and an in-process driver
// used by tests and by short-circuit delivery's same-process peers.
package broker

import "time"

// Message is the (header, body) pair the driver delivers to
// subscribers. Both are already-serialized BufferSet byte streams;
// the driver never looks inside them.
type Message struct {
	Header []byte
	Body   []byte
}

// Handler processes one delivered message. It runs on a driver-owned
// goroutine (spec §4.3: "driver-owned thread or strand").
type Handler func(topic string, msg Message)

// ErrorHandler reports an out-of-band driver error: (consumer id,
// kind, message), matching spec §4.3's error-reporting contract.
type ErrorHandler func(consumerID, kind, message string)

// Driver is the minimal publish/subscribe contract the signal/slot
// runtime needs from a broker. No ordering is guaranteed between
// topics; per-sender ordering only holds when the caller publishes
// from the same call-site sequentially (spec §4.3, §5).
type Driver interface {
	// Publish enqueues a message for topic. Priority and TimeToLive
	// are advisory; a driver that cannot honor them MAY ignore them,
	// but must not block past the call.
	Publish(topic string, header, body []byte, priority int, timeToLive time.Duration) error
	Subscribe(topic string, handler Handler) error
	Unsubscribe(topic string) error
	// OnError registers a callback for asynchronous driver errors
	// (connection loss, publish-after-retry-budget failures).
	OnError(handler ErrorHandler)
	Close() error
}
