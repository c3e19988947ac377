// Copyright 2016 CoreOS, Inc.
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

package scheduler

import "sync"

// weightedSemaphore is a counting semaphore whose units are acquired and
// released in arbitrary-sized batches, generalizing the fixed-one-unit
// buffered-channel semaphore in lang/worker.WorkerGroup to the
// threads_required weighting spec.md §4.8 calls for.
type weightedSemaphore struct {
	mu        sync.Mutex
	cond      *sync.Cond
	capacity  uint32
	available uint32
	closed    bool
}

func newWeightedSemaphore(capacity uint32) *weightedSemaphore {
	s := &weightedSemaphore{capacity: capacity, available: capacity}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// acquire blocks until n units (clamped to the semaphore's total capacity)
// are available, or the semaphore is closed. It returns false if closed
// before it could acquire.
func (s *weightedSemaphore) acquire(n uint32) bool {
	if n > s.capacity {
		n = s.capacity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.closed && s.available < n {
		s.cond.Wait()
	}
	if s.closed {
		return false
	}
	s.available -= n
	return true
}

func (s *weightedSemaphore) release(n uint32) {
	if n > s.capacity {
		n = s.capacity
	}
	s.mu.Lock()
	s.available += n
	s.mu.Unlock()
	s.cond.Broadcast()
}

// close wakes every blocked acquirer so a canceled run doesn't deadlock
// waiting for capacity that no new test needs.
func (s *weightedSemaphore) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}
