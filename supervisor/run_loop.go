// Copyright 2015 CoreOS, Inc.
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

package supervisor

import (
	"os/exec"
	"time"

	"github.com/coreos/anvil/clock"
	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/iocollect"
	"github.com/coreos/anvil/platform"
	"github.com/coreos/anvil/testlist"
)

// runAndDrain is the Running/Draining/Classification portion of the state
// machine: it waits on the child, ticks the slow-timeout clock, reacts to
// forward events, and once the child has exited, waits out a leak-detection
// window for the I/O collector to finish draining.
func runAndDrain(cmd *exec.Cmd, collector *iocollect.Collector, sw *clock.Stopwatch, job platform.Job, p Params) (testlist.ExecutionResult, bool) {
	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var slow *clock.PausableSleep
	if p.Settings.Slow.Period > 0 {
		slow = clock.NewPausableSleep(p.Settings.Slow.Period)
		defer slow.Stop()
	}

	var slowTicks uint32
	isSlow := false
	terminating := false
	timedOut := false

	// fwd is nilled out once a terminate() goroutine takes over reading
	// p.Forward, so the two goroutines never race for the same message.
	fwd := p.Forward

	var childErr error
	childExited := false

	for !childExited {
		var slowC <-chan time.Time
		if slow != nil {
			slowC = slow.C()
		}

		select {
		case childErr = <-waitErr:
			childExited = true

		case <-slowC:
			slowTicks++
			isSlow = true
			willTerminate := p.Settings.Slow.TerminateAfter != nil && slowTicks >= *p.Settings.Slow.TerminateAfter
			// Deliberately nominal (hits * period), not wall-clock: see
			// spec.md §9's open question on this.
			nominalElapsed := time.Duration(slowTicks) * p.Settings.Slow.Period
			if p.OnSlow != nil && p.Settings.Slow.Grace > 0 {
				p.OnSlow(nominalElapsed, willTerminate)
			}
			if willTerminate && !terminating {
				terminating = true
				timedOut = true
				go terminate(cmd, job, platform.TerminateTimeout, p.Settings.Slow.Grace, fwd)
				fwd = nil
			} else if !willTerminate {
				slow.Reset(p.Settings.Slow.Period)
			}

		case msg, ok := <-fwd:
			if !ok {
				fwd = nil
				continue
			}
			switch {
			case msg.ShouldPause():
				sw.Pause()
				if slow != nil {
					slow.Pause()
				}
				ackIfPresent(msg)
			case msg.ShouldResume():
				sw.Resume()
				if slow != nil {
					slow.Resume()
				}
				ackIfPresent(msg)
			case msg.ShouldEscalate() && !terminating:
				terminating = true
				mode := platform.TerminateSignalOnce
				if msg.HardKill() {
					mode = platform.TerminateSignalTwice
				}
				terminateFwd := fwd
				fwd = nil
				go terminate(cmd, job, mode, p.Settings.Slow.Grace, terminateFwd)
				ackIfPresent(msg)
			default:
				ackIfPresent(msg)
			}
		}
	}

	leaked := drainWithLeakDetection(collector, p.Settings.LeakTimeout)

	return classify(cmd, childErr, leaked, timedOut), isSlow
}

func ackIfPresent(msg eventbus.ForwardMsg) {
	if msg.Ack != nil {
		close(msg.Ack)
	}
}

// terminate relays forward events onto the platform.ForwardEvent channel
// TerminateChild expects, converting eventbus.ForwardMsg values (which
// already implement the interface) across the channel-element-type
// boundary that keeps platform from importing eventbus.
func terminate(cmd *exec.Cmd, job platform.Job, mode platform.TerminateMode, grace time.Duration, forward <-chan eventbus.ForwardMsg) {
	relay := make(chan platform.ForwardEvent)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case msg, ok := <-forward:
				if !ok {
					return
				}
				select {
				case relay <- msg:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	_ = platform.TerminateChild(cmd, mode, grace, job, relay)
}

// drainWithLeakDetection waits for both collector readers to finish, but no
// longer than timeout measured from the child's exit (wall clock, per
// spec.md §9's leak-timer decision: unaffected by job-control pauses, since
// a leaked grandchild keeps running through a paused run the same way it
// would outside one).
func drainWithLeakDetection(collector *iocollect.Collector, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.After(timeout)
	remaining := 2
	for remaining > 0 {
		select {
		case <-collector.Done():
			remaining--
		case <-deadline:
			return true
		}
	}
	return false
}

func classify(cmd *exec.Cmd, waitErr error, leaked, timedOut bool) testlist.ExecutionResult {
	if waitErr == nil {
		if leaked {
			return testlist.ExecutionResult{Kind: testlist.ResultLeak, Leaked: true}
		}
		return testlist.ExecutionResult{Kind: testlist.ResultPass}
	}

	abort := abortStatus(cmd, waitErr)
	if timedOut {
		return testlist.ExecutionResult{Kind: testlist.ResultTimeout, Abort: abort, Leaked: leaked}
	}
	if abort.Present {
		return testlist.ExecutionResult{Kind: testlist.ResultFail, Abort: abort, Leaked: leaked}
	}
	return testlist.ExecutionResult{Kind: testlist.ResultFail, Leaked: leaked}
}
