// Copyright 2017 CoreOS, Inc.
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

package clock

import (
	"sync"
	"time"
)

// PausableSleep fires its channel after a duration of unpaused time. While
// paused its deadline is frozen; on Resume the deadline is pushed out by
// however long the pause lasted (spec.md §9: "Deadline +
// AccumulatedPausedDuration; on resume, shift the deadline by the paused
// duration").
type PausableSleep struct {
	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
	paused   bool
	pausedAt time.Time
	fired    chan time.Time
	stopped  bool
}

// NewPausableSleep arms a sleep for the given duration.
func NewPausableSleep(d time.Duration) *PausableSleep {
	ps := &PausableSleep{
		deadline: time.Now().Add(d),
		fired:    make(chan time.Time, 1),
	}
	ps.timer = time.AfterFunc(d, ps.onFire)
	return ps
}

func (ps *PausableSleep) onFire() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.paused || ps.stopped {
		return
	}
	select {
	case ps.fired <- time.Now():
	default:
	}
}

// C returns the channel that receives the fire time once, when the
// deadline is reached while unpaused.
func (ps *PausableSleep) C() <-chan time.Time {
	return ps.fired
}

// Pause freezes the deadline. Calling Pause while already paused is a
// no-op.
func (ps *PausableSleep) Pause() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.paused || ps.stopped {
		return
	}
	ps.paused = true
	ps.pausedAt = time.Now()
	ps.timer.Stop()
}

// Resume shifts the deadline forward by the paused duration and re-arms
// the underlying timer. Calling Resume while not paused is a no-op.
func (ps *PausableSleep) Resume() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if !ps.paused || ps.stopped {
		return
	}
	pausedFor := time.Since(ps.pausedAt)
	ps.deadline = ps.deadline.Add(pausedFor)
	ps.paused = false
	remaining := time.Until(ps.deadline)
	if remaining < 0 {
		remaining = 0
	}
	ps.timer = time.AfterFunc(remaining, ps.onFire)
}

// Stop cancels the sleep; it will never fire afterward.
func (ps *PausableSleep) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.stopped = true
	ps.timer.Stop()
}

// Reset re-arms the sleep for a fresh duration from now, as used when the
// supervisor re-arms the slow-timeout tick after a non-terminating Slow
// event.
func (ps *PausableSleep) Reset(d time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.timer.Stop()
	select {
	case <-ps.fired:
	default:
	}
	ps.stopped = false
	ps.paused = false
	ps.deadline = time.Now().Add(d)
	ps.timer = time.AfterFunc(d, ps.onFire)
}
