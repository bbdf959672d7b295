// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package strand

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStrandRunsTasksInOrder(t *testing.T) {
	s := New("test", 8)
	defer s.Close()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		s.Post(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tasks to run")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestStrandSyncBlocksUntilDone(t *testing.T) {
	s := New("test", 4)
	defer s.Close()

	var n int32
	s.Sync(func() { atomic.StoreInt32(&n, 42) })
	if atomic.LoadInt32(&n) != 42 {
		t.Fatal("Sync returned before task ran")
	}
}

func TestStrandRejectsPostAfterClose(t *testing.T) {
	s := New("test", 4)
	s.Close()
	if s.Post(func() {}) {
		t.Fatal("expected Post to fail after Close")
	}
}

func TestStrandPanicRecovered(t *testing.T) {
	s := New("test", 4)
	defer s.Close()

	s.Sync(func() { panic("boom") })
	// survives: a second task still runs.
	ran := make(chan struct{})
	s.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("strand did not recover from panicking task")
	}
}
