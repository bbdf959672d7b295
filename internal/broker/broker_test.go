// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDriverPublishSubscribe(t *testing.T) {
	d := NewInMemory()
	t.Cleanup(func() { _ = d.Close() })

	received := make(chan Message, 1)
	require.NoError(t, d.Subscribe("topic.a", func(topic string, msg Message) {
		received <- msg
	}))

	require.NoError(t, d.Publish("topic.a", []byte("h"), []byte("b"), 0, 0))

	select {
	case msg := <-received:
		assert.Equal(t, "h", string(msg.Header))
		assert.Equal(t, "b", string(msg.Body))
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the message")
	}
}

func TestInMemoryDriverPublishNoSubscribersIsNotAnError(t *testing.T) {
	d := NewInMemory()
	t.Cleanup(func() { _ = d.Close() })

	assert.NoError(t, d.Publish("nobody.listens", nil, nil, 0, 0))
}

func TestInMemoryDriverUnsubscribeStopsDelivery(t *testing.T) {
	d := NewInMemory()
	t.Cleanup(func() { _ = d.Close() })

	received := make(chan struct{}, 1)
	require.NoError(t, d.Subscribe("topic.b", func(topic string, msg Message) { received <- struct{}{} }))
	require.NoError(t, d.Unsubscribe("topic.b"))
	require.NoError(t, d.Publish("topic.b", nil, nil, 0, 0))

	select {
	case <-received:
		t.Fatal("handler ran after Unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryDriverOperationsFailAfterClose(t *testing.T) {
	d := NewInMemory()
	require.NoError(t, d.Close())

	assert.Error(t, d.Publish("x", nil, nil, 0, 0), "Publish after Close should fail")
	assert.Error(t, d.Subscribe("x", func(string, Message) {}), "Subscribe after Close should fail")
}

func TestInMemoryDriverOnErrorInvokedByCaller(t *testing.T) {
	d := NewInMemory()
	t.Cleanup(func() { _ = d.Close() })

	got := make(chan string, 1)
	d.OnError(func(consumerID, kind, message string) {
		got <- kind
	})
	d.reportError("c1", "decode", "boom")

	select {
	case kind := <-got:
		assert.Equal(t, "decode", kind)
	case <-time.After(time.Second):
		t.Fatal("error handler was never invoked")
	}
}

func TestInitRejectsMissingAddress(t *testing.T) {
	raw := json.RawMessage(`{"username": "bob"}`)
	_, err := Init(raw)
	assert.Error(t, err, "expected a validation error for a missing required address")
}

func TestInitRejectsUnknownField(t *testing.T) {
	raw := json.RawMessage(`{"address": "nats://localhost:4222", "bogus": 1}`)
	_, err := Init(raw)
	assert.Error(t, err, "expected an error for an unknown config field")
}

func TestInitAppliesDefaultsOnTopOfProvidedFields(t *testing.T) {
	raw := json.RawMessage(`{"address": "nats://localhost:4222", "retryBaseWaitMs": 50}`)
	cfg, err := Init(raw)
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", cfg.Address)
	assert.Equal(t, 50*time.Millisecond, cfg.RetryBaseWait)
	assert.Equal(t, 5, cfg.RetryBudget, "omitted retryBudget should take the default")
}

func TestInitNilConfigReturnsZeroValue(t *testing.T) {
	cfg, err := Init(nil)
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Address)
}
