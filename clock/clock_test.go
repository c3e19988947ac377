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
	"testing"
	"time"
)

const slack = time.Duration(150) * time.Millisecond

func TestStopwatchPauseResume(t *testing.T) {
	sw := NewStopwatch()
	time.Sleep(100 * time.Millisecond)
	sw.Pause()
	time.Sleep(300 * time.Millisecond) // should not count
	sw.Resume()
	time.Sleep(100 * time.Millisecond)

	elapsed := sw.Elapsed()
	want := 200 * time.Millisecond
	if elapsed < want-slack || elapsed > want+slack {
		t.Errorf("elapsed = %v, want %v +/- %v", elapsed, want, slack)
	}
}

func TestStopwatchEndPreservesStart(t *testing.T) {
	start := time.Now()
	sw := NewStopwatch()
	sw.Pause()
	sw.Resume()
	gotStart, _ := sw.End()
	if gotStart.Before(start.Add(-slack)) || gotStart.After(start.Add(slack)) {
		t.Errorf("End() start = %v, want close to %v", gotStart, start)
	}
}

func TestStopwatchEndIncludesPausedDuration(t *testing.T) {
	sw := NewStopwatch()
	time.Sleep(50 * time.Millisecond)
	sw.Pause()
	time.Sleep(200 * time.Millisecond)
	sw.Resume()
	time.Sleep(50 * time.Millisecond)

	_, wallClock := sw.End()
	want := 300 * time.Millisecond
	if wallClock < want-slack || wallClock > want+slack {
		t.Errorf("End() duration = %v, want %v +/- %v (must include the paused interval)", wallClock, want, slack)
	}

	elapsed := sw.Elapsed()
	wantElapsed := 100 * time.Millisecond
	if elapsed < wantElapsed-slack || elapsed > wantElapsed+slack {
		t.Errorf("Elapsed() = %v, want %v +/- %v (must exclude the paused interval)", elapsed, wantElapsed, slack)
	}
}

func TestPausableSleepFiresWhenUnpaused(t *testing.T) {
	ps := NewPausableSleep(100 * time.Millisecond)
	defer ps.Stop()

	start := time.Now()
	<-ps.C()
	total := time.Since(start)
	want := 100 * time.Millisecond
	if total < want-slack || total > want+slack {
		t.Errorf("fired after %v, want %v +/- %v", total, want, slack)
	}
}

func TestPausableSleepFreezesDuringPause(t *testing.T) {
	ps := NewPausableSleep(150 * time.Millisecond)
	defer ps.Stop()

	time.Sleep(50 * time.Millisecond)
	ps.Pause()
	time.Sleep(300 * time.Millisecond) // held well past the original deadline
	select {
	case <-ps.C():
		t.Fatal("sleep fired while paused")
	default:
	}
	ps.Resume()

	start := time.Now()
	<-ps.C()
	total := time.Since(start)
	want := 100 * time.Millisecond // remaining time when paused
	if total < want-slack || total > want+slack {
		t.Errorf("fired %v after resume, want %v +/- %v", total, want, slack)
	}
}
