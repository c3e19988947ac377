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

package scheduler

import (
	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/platform"
	"github.com/coreos/anvil/sigsource"
	"github.com/coreos/anvil/testlist"
)

// watchSignals starts (if Signals is configured) a goroutine translating
// host signal events into bus cancellation and forward broadcasts, per
// spec.md §4.8's job-control-propagation and signal-escalation rules. The
// returned func stops the watcher; it is always safe to call.
func (s *Scheduler) watchSignals() func() {
	if s.opts.Signals == nil {
		return func() {}
	}
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		defer close(done)
		events := s.opts.Signals.Events()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Kind {
				case sigsource.KindJobControl:
					s.handleJobControl(ev.JobControl)
				case sigsource.KindShutdown:
					s.handleShutdown(ev.Shutdown)
				}
			case <-stop:
				return
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func (s *Scheduler) handleJobControl(jc sigsource.JobControlSignal) {
	switch jc {
	case sigsource.Stop:
		s.fan.broadcastAndAwait(eventbus.ForwardStop, stopAckTimeout)
		_ = s.bus.ReportRunPaused()
		_ = platform.RaiseStop()
	case sigsource.Continue:
		s.fan.broadcast(eventbus.ForwardMsg{Kind: eventbus.ForwardContinue})
		_ = s.bus.ReportRunContinued()
	}
}

func (s *Scheduler) handleShutdown(sig sigsource.ShutdownSignal) {
	reason := testlist.CancelSignal
	if sig == sigsource.Interrupt {
		reason = testlist.CancelInterrupt
	}

	s.mu.Lock()
	s.shutdownSignals++
	n := s.shutdownSignals
	if n <= 2 {
		s.signalCount = s.signalCount.Next()
	}
	s.mu.Unlock()

	switch {
	case n == 1:
		s.beginCancel(reason, nil)
		s.fan.broadcast(eventbus.ForwardMsg{Kind: eventbus.ForwardShutdownOnce})
	case n == 2:
		s.beginCancel(reason, nil)
		s.fan.broadcast(eventbus.ForwardMsg{Kind: eventbus.ForwardShutdownTwice})
	default:
		// A third shutdown signal is the user asking loudly to exit;
		// spec.md §4.8 calls for an unconditional panic here.
		panic("scheduler: third shutdown signal received, aborting")
	}
}
