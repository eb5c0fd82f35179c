// Copyright 2025 Apex Metrology GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"sync"
	"time"
)

// Queue is a multi-producer FIFO with blocking pop, timeout and an explicit
// stop signal that wakes all waiters. The dispatch engine is its single
// consumer.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	stopped bool

	// notify carries at most one pending wakeup. A lost extra signal is fine:
	// the waiter re-checks the slice on every loop iteration.
	notify chan struct{}
	stop   chan struct{}
}

// NewQueue creates an empty, running queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// Push appends an item and wakes the consumer. Returns false once the queue
// has been stopped.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()

		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.wake()

	return true
}

// PushFront prepends an item so it is consumed before everything already
// queued. Used to put deferred work back ahead of newly arriving items.
func (q *Queue[T]) PushFront(item T) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()

		return false
	}
	q.items = append([]T{item}, q.items...)
	q.mu.Unlock()

	q.wake()

	return true
}

// TryPop removes the head without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// WaitPopFor blocks until an item is available, the timeout elapses or the
// queue is stopped. A stopped queue still drains items already present.
func (q *Queue[T]) WaitPopFor(timeout time.Duration) (T, bool) {
	deadline := time.Now().Add(timeout)

	for {
		if item, ok := q.TryPop(); ok {
			return item, true
		}

		var zero T

		q.mu.Lock()
		stopped := q.stopped
		q.mu.Unlock()
		if stopped {
			return zero, false
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return zero, false
		}

		timer := time.NewTimer(wait)
		select {
		case <-q.notify:
		case <-q.stop:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Stop rejects further pushes and wakes every blocked waiter. Idempotent.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}
	q.stopped = true
	close(q.stop)
}

func (q *Queue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
