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

// Package scheduler is the top-level run loop (C8): it draws tests from a
// testlist.List in list order, acquires global and group capacity, and
// spawns a supervisor goroutine per test, wiring retries, job control and
// signal escalation through to every live attempt. It generalizes
// lang/worker.WorkerGroup's context-cancel-plus-capacity-channel shape into
// the grouped, weighted capacity model and ordered event stream spec.md
// §4.8 describes.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/coreos/pkg/multierror"

	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/retry"
	"github.com/coreos/anvil/sigsource"
	"github.com/coreos/anvil/supervisor"
	"github.com/coreos/anvil/testlist"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/anvil", "scheduler")

// stopAckTimeout is spec.md §4.8's "wait up to 100 ms for acknowledgements".
const stopAckTimeout = 100 * time.Millisecond

// SettingsFunc resolves a test instance's effective settings; it is the
// profile override evaluator from package profile, bound at Options
// construction time so the scheduler itself never imports profile.
type SettingsFunc func(*testlist.Instance) testlist.Settings

// Options configures one run.
type Options struct {
	// Capacity is the global thread budget T. In NoCapture mode it is
	// forced to 1 and GroupCapacity is ignored.
	Capacity      uint32
	GroupCapacity map[string]uint32
	NoCapture     bool
	FailFast      bool

	Settings SettingsFunc
	Sink     eventbus.Sink

	// Signals, if non-nil, is consumed for the run's duration and closed
	// by the caller afterward. A nil Signals means Noop handling.
	Signals *sigsource.Source
}

// Scheduler runs one test list to completion.
type Scheduler struct {
	opts Options
	bus  *eventbus.Bus
	fan  *fanout

	globalSem *weightedSemaphore
	groupSems map[string]*weightedSemaphore

	rand *rand.Rand

	mu              sync.Mutex
	signalCount     eventbus.SignalCount
	shutdownSignals int
	cancelOnce      sync.Once
	cancelCh        chan struct{}
}

// New prepares a Scheduler; it does not start the run.
func New(opts Options) *Scheduler {
	capacity := opts.Capacity
	if opts.NoCapture {
		capacity = 1
	}
	if capacity == 0 {
		capacity = 1
	}

	groupSems := make(map[string]*weightedSemaphore)
	if !opts.NoCapture {
		for name, n := range opts.GroupCapacity {
			if n == 0 {
				n = 1
			}
			groupSems[name] = newWeightedSemaphore(n)
		}
	}

	return &Scheduler{
		opts:      opts,
		fan:       newFanout(),
		globalSem: newWeightedSemaphore(capacity),
		groupSems: groupSems,
		rand:      rand.New(rand.NewSource(1)),
		cancelCh:  make(chan struct{}),
	}
}

// CancelState returns the run's cancel reason, or CancelNone before Run has
// been called or if the run never canceled.
func (s *Scheduler) CancelState() testlist.CancelReason {
	if s.bus == nil {
		return testlist.CancelNone
	}
	return s.bus.CancelState()
}

// Run executes every instance in list and returns the final RunStats. The
// only errors it returns come from the reporter sink (spec.md §7: "Callback
// errors are the only way a run terminates early with a surfaced error"): a
// RunStarted delivery failure as is, any later one as an *eventbus.RunError.
func (s *Scheduler) Run(list *testlist.List) (testlist.RunStats, error) {
	s.bus = eventbus.New(s.opts.Sink, s.opts.FailFast, list.RunCount())

	if err := s.bus.ReportRunStarted(); err != nil {
		return s.bus.Stats(), err
	}

	stopSignals := s.watchSignals()
	defer stopSignals()

	var wg sync.WaitGroup
	for _, inst := range list.Instances() {
		inst := inst
		fm := inst.FilterMatch()
		if !fm.Matched {
			_ = s.bus.ReportTestSkipped(inst, fm.Reason)
			continue
		}

		if s.bus.Canceled() {
			// Scenario 2 (fail-fast): tests not yet started when
			// cancellation begins are simply never started.
			continue
		}

		settings := s.opts.Settings(inst)
		weight := settings.ThreadsRequired
		if weight == 0 {
			weight = 1
		}

		if !s.globalSem.acquire(weight) {
			continue
		}
		var groupSem *weightedSemaphore
		if settings.Group != "" && !s.opts.NoCapture {
			groupSem = s.groupSems[settings.Group]
			if groupSem != nil && !groupSem.acquire(1) {
				s.globalSem.release(weight)
				continue
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.globalSem.release(weight)
			if groupSem != nil {
				defer groupSem.release(1)
			}
			s.runOneTest(inst, settings)
		}()
	}

	wg.Wait()
	s.globalSem.close()
	for _, gs := range s.groupSems {
		gs.close()
	}

	// Drain every error the run produced: ReportRunFinished's own delivery
	// can fail independently of an earlier callback error, and dropping
	// either one silently would hide a real failure. multierror.Error
	// generalizes lang/worker.WorkerGroup's addErr/getErr accumulation to
	// this two-source case.
	var errs multierror.Error
	if err := s.bus.ReportRunFinished(); err != nil {
		errs = append(errs, err)
	}
	if cbErr := s.bus.FirstCallbackError(); cbErr != nil {
		errs = append(errs, cbErr)
	}
	if err := errs.AsError(); err != nil {
		if len(errs) == 1 {
			err = errs[0]
		}
		return s.bus.Stats(), s.wrapError(err)
	}
	return s.bus.Stats(), nil
}

// wrapError folds a callback error into the richer eventbus.RunError
// taxonomy spec.md §4.11 describes, so a caller can tell a fail-fast
// cancellation apart from a signal-triggered one without re-deriving it
// from CancelState itself.
func (s *Scheduler) wrapError(cbErr error) error {
	reason := s.bus.CancelState()
	re := &eventbus.RunError{CallbackErr: cbErr, Reason: reason}
	switch reason {
	case testlist.CancelTestFailure:
		re.TestFailureCanceled = true
	case testlist.CancelSignal, testlist.CancelInterrupt:
		re.Signal = true
		s.mu.Lock()
		if s.shutdownSignals >= 2 {
			re.Forward = eventbus.ShutdownTwice
		} else {
			re.Forward = eventbus.ShutdownOnce
		}
		s.mu.Unlock()
	}
	return re
}

// runOneTest drives every attempt of one test instance through to its
// terminal ExecutionStatuses and reports Started/Slow/Retry*/Finished.
func (s *Scheduler) runOneTest(inst *testlist.Instance, settings testlist.Settings) {
	id, fwd, unsubscribe := s.fan.subscribe()
	_ = id
	defer unsubscribe()

	if s.bus.Canceled() {
		return
	}

	if settings.Retry == nil {
		settings.Retry = testlist.NoRetryPolicy
	}

	if err := s.bus.ReportTestStarted(inst); err != nil {
		s.beginCancel(testlist.CancelReportError, err)
		return
	}

	var statuses testlist.ExecutionStatuses
	total := settings.Retry.TotalAttempts()

	var delayBeforeStart time.Duration
	for attempt := 1; attempt <= total; attempt++ {
		retryData := testlist.RetryData{Attempt: attempt, TotalAttempts: total}

		status, _ := supervisor.Run(context.Background(), supervisor.Params{
			Instance:         inst,
			Settings:         settings,
			Retry:            retryData,
			RunID:            s.bus.RunID(),
			DelayBeforeStart: delayBeforeStart,
			NoCapture:        s.opts.NoCapture,
			Forward:          fwd,
			Canceled:         s.bus.Canceled,
			OnSlow: func(nominalElapsed time.Duration, willTerminate bool) {
				_ = s.bus.ReportTestSlow(inst, nominalElapsed, willTerminate)
			},
		})
		statuses = append(statuses, status)

		last := len(statuses) == total || status.Result.Kind.IsSuccess()
		if last || s.bus.Canceled() {
			break
		}

		delay := retry.NextDelay(settings.Retry, attempt, s.rand)
		if err := s.bus.ReportAttemptFailedWillRetry(inst, status, delay); err != nil {
			s.beginCancel(testlist.CancelReportError, err)
			break
		}

		if !s.sleepCancellable(delay) {
			break
		}

		if err := s.bus.ReportRetryStarted(inst); err != nil {
			s.beginCancel(testlist.CancelReportError, err)
			break
		}
		delayBeforeStart = delay
	}

	if err := s.bus.ReportTestFinished(inst, statuses); err != nil {
		s.beginCancel(testlist.CancelReportError, err)
	} else if s.bus.Canceled() {
		// Fail-fast cancellation begins inside the bus; wake retry sleeps too.
		s.cancelOnce.Do(func() { close(s.cancelCh) })
	}
}

// sleepCancellable waits out d, waking early if cancellation begins.
func (s *Scheduler) sleepCancellable(d time.Duration) bool {
	if d <= 0 {
		return !s.bus.Canceled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !s.bus.Canceled()
	case <-s.cancelCh:
		return false
	}
}

func (s *Scheduler) beginCancel(reason testlist.CancelReason, err error) {
	plog.Debugf("scheduler: beginning cancellation, reason=%s", reason)
	s.bus.BeginCancel(reason, err)
	s.cancelOnce.Do(func() { close(s.cancelCh) })
}
