// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package strand provides a single-goroutine, FIFO execution context.
// The signal/slot runtime posts slot invocations, broadcast callbacks
// and logger-manager state transitions onto a Strand so that work
// belonging to one SignalSlotable instance never runs on two
// goroutines at once, without requiring a lock around the instance's
// own state (spec §5: "serialized per-instance dispatch").
package strand

import (
	"context"
	"sync"

	"github.com/European-XFEL/Karabo-sub015/pkg/klog"
)

// Task is one unit of work posted to a Strand.
type Task func()

// Strand runs posted tasks one at a time, in the order they were
// posted, on a single dedicated goroutine.
type Strand struct {
	name string

	queue chan Task
	wg    sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// New starts a Strand backed by a buffered channel of the given
// capacity. A full queue makes Post block, which is the intended
// backpressure signal for a sender that outruns its strand.
func New(name string, capacity int) *Strand {
	if capacity <= 0 {
		capacity = 64
	}
	s := &Strand{
		name:   name,
		queue:  make(chan Task, capacity),
		closed: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Strand) run() {
	defer s.wg.Done()
	for {
		select {
		case task := <-s.queue:
			s.invoke(task)
		case <-s.closed:
			// Drain whatever was already enqueued before Close was
			// called; no further sends can land once closed is closed
			// since Post checks it before sending.
			for {
				select {
				case task := <-s.queue:
					s.invoke(task)
				default:
					return
				}
			}
		}
	}
}

func (s *Strand) invoke(task Task) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("strand %s: task panicked: %v", s.name, r)
		}
	}()
	task()
}

// Post enqueues task for later execution on the strand's goroutine.
// It blocks if the queue is full and returns false without enqueuing
// if the strand has already been closed.
func (s *Strand) Post(task Task) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.queue <- task:
		return true
	case <-s.closed:
		return false
	}
}

// PostCtx is Post with a cancellation path, for callers that must not
// block past ctx's deadline when the strand is backed up.
func (s *Strand) PostCtx(ctx context.Context, task Task) error {
	select {
	case <-s.closed:
		return context.Canceled
	default:
	}
	select {
	case s.queue <- task:
		return nil
	case <-s.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync posts task and blocks until it has run, returning once the
// strand's goroutine has executed it. Used where the caller needs a
// value back out, in place of condition-variable synchronization.
func (s *Strand) Sync(task Task) bool {
	done := make(chan struct{})
	ok := s.Post(func() {
		defer close(done)
		task()
	})
	if !ok {
		return false
	}
	<-done
	return true
}

// Close stops accepting new tasks and waits for the queue to drain.
// Already-queued tasks still run; Post calls made after Close do not.
func (s *Strand) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}
