// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package broker

import (
	"sync"
	"time"

	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// InMemoryDriver delivers messages to subscribers of the same process
// without touching the network. It backs unit tests and the
// short-circuit delivery path for peers that share a process (spec
// §4.3, §5: "same-process peers bypass the broker round trip").
type InMemoryDriver struct {
	mu   sync.RWMutex
	subs map[string][]Handler

	errMu      sync.Mutex
	errHandler ErrorHandler

	closed bool
}

// NewInMemory returns a ready-to-use in-process driver.
func NewInMemory() *InMemoryDriver {
	return &InMemoryDriver{subs: make(map[string][]Handler)}
}

func (d *InMemoryDriver) OnError(handler ErrorHandler) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	d.errHandler = handler
}

func (d *InMemoryDriver) reportError(consumerID, kind, message string) {
	d.errMu.Lock()
	handler := d.errHandler
	d.errMu.Unlock()
	if handler != nil {
		handler(consumerID, kind, message)
	}
}

// Publish hands the message to every subscriber of topic on its own
// goroutine, matching the "driver-owned goroutine" contract that
// NATSDriver provides via its dispatcher.
func (d *InMemoryDriver) Publish(topic string, header, body []byte, priority int, timeToLive time.Duration) error {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return kerrors.NewNetworkError("publish", "driver closed (topic %q)", topic)
	}
	handlers := append([]Handler(nil), d.subs[topic]...)
	d.mu.RUnlock()

	msg := Message{Header: header, Body: body}
	for _, h := range handlers {
		go h(topic, msg)
	}
	return nil
}

func (d *InMemoryDriver) Subscribe(topic string, handler Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kerrors.NewNetworkError("subscribe", "driver closed (topic %q)", topic)
	}
	d.subs[topic] = append(d.subs[topic], handler)
	return nil
}

// Unsubscribe removes every handler registered for topic. The driver
// does not track handler identity (spec places that burden on the
// signal/slot layer, which keys its own dispatch table by slot name),
// so partial unsubscription of a single handler is not supported here.
func (d *InMemoryDriver) Unsubscribe(topic string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs, topic)
	return nil
}

func (d *InMemoryDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.subs = make(map[string][]Handler)
	return nil
}
