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

// Package clock provides a pausable stopwatch and a pausable sleep, used
// anywhere slow-timeout or retry-backoff intervals must freeze while the
// run is suspended under job control instead of expiring underneath it.
package clock

import (
	"sync"
	"time"
)

// Stopwatch records wall-clock start time and accumulates elapsed
// monotonic duration across any number of Pause/Resume cycles.
type Stopwatch struct {
	mu        sync.Mutex
	origStart time.Time
	startTime time.Time
	elapsed   time.Duration
	paused    bool
	pausedAt  time.Time
}

// NewStopwatch starts a running stopwatch.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{origStart: now, startTime: now}
}

// Pause freezes elapsed-time accumulation. Calling Pause while already
// paused is a no-op.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.elapsed += time.Since(s.startTime)
	s.paused = true
	s.pausedAt = time.Now()
}

// Resume unfreezes elapsed-time accumulation. Calling Resume while not
// paused is a no-op.
func (s *Stopwatch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	s.startTime = time.Now()
}

// Elapsed returns the unpaused elapsed duration so far.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return s.elapsed
	}
	return s.elapsed + time.Since(s.startTime)
}

// End stops tracking and returns the original start time and the total
// wall-clock duration since then, including any paused intervals. Scenario
// 6 in spec.md §8 requires this: slow-detection uses unpaused time (see
// Elapsed), but a test's reported time_taken must include time spent
// paused under job control.
func (s *Stopwatch) End() (time.Time, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origStart, time.Since(s.origStart)
}
