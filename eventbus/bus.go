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

package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/coreos/anvil/clock"
	"github.com/coreos/anvil/testlist"
)

// Sink receives one TestEvent at a time. Its underlying type matches
// reporter.Sink so a reporter.Sink value can be passed here directly
// without eventbus importing the reporter package (which itself imports
// eventbus for TestEvent).
type Sink func(TestEvent) error

// Bus is the single-consumer serializer from spec.md §4.9: every exported
// Report* method holds mu across both its state update and its sink call,
// so concurrent callers (the scheduler spawns one goroutine per admitted
// test) never deliver two events to the sink at once, and never deliver a
// stale stats snapshot after a newer one.
type Bus struct {
	mu sync.Mutex

	runID     uuid.UUID
	stopwatch *clock.Stopwatch
	sink      Sink

	running  int
	stats    testlist.RunStats
	failFast bool

	cancelState  testlist.CancelReason
	cancelSignal ForwardKind
	cancelOnce   bool

	// canceled is Release-set here and Acquire-read by every supervisor,
	// per spec.md §5 ("the only write-shared primitive").
	canceled atomic.Bool

	firstCallbackErr error
}

// New creates a Bus with a freshly generated run UUID and a running
// stopwatch, and fail-fast behavior as configured.
func New(sink Sink, failFast bool, initialRunCount int) *Bus {
	return &Bus{
		runID:     uuid.New(),
		stopwatch: clock.NewStopwatch(),
		sink:      sink,
		failFast:  failFast,
		stats:     testlist.RunStats{InitialRunCount: initialRunCount},
	}
}

// RunID returns the run's UUID.
func (b *Bus) RunID() uuid.UUID { return b.runID }

// Canceled reports whether cancellation has begun. Supervisors must check
// this with Acquire ordering (atomic.Bool.Load already provides it) after
// subscribing to the forward channel, per spec.md §5 and §9.
func (b *Bus) Canceled() bool { return b.canceled.Load() }

// Stats returns a copy of the current cumulative RunStats.
func (b *Bus) Stats() testlist.RunStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// CancelState returns the current (monotonically non-decreasing) cancel
// reason.
func (b *Bus) CancelState() testlist.CancelReason {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancelState
}

// deliverLocked stamps and sends ev to the sink. The caller must hold mu
// for deliverLocked's entire duration, including the sink call itself: that
// is what makes delivery single-threaded from the sink's perspective
// (spec.md §4.10), not just the state update that precedes it.
func (b *Bus) deliverLocked(ev TestEvent) error {
	ev.RunID = b.runID
	ev.Timestamp = time.Now()
	ev.Elapsed = b.stopwatch.Elapsed()
	return b.sink(ev)
}

// ReportRunStarted emits RunStarted; it must be the first event reported.
func (b *Bus) ReportRunStarted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindRunStarted})
}

// ReportTestStarted emits TestStarted for test. It does not consult the
// canceled flag itself; the scheduler checks Canceled before calling it.
func (b *Bus) ReportTestStarted(test *testlist.Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running++
	return b.deliverLocked(TestEvent{Kind: KindTestStarted, Test: test, CurrentStats: b.stats})
}

// ReportTestSlow emits TestSlow.
func (b *Bus) ReportTestSlow(test *testlist.Instance, nominalElapsed time.Duration, willTerminate bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindTestSlow, Test: test, SlowElapsed: nominalElapsed, WillTerminate: willTerminate})
}

// ReportAttemptFailedWillRetry emits TestAttemptFailedWillRetry.
func (b *Bus) ReportAttemptFailedWillRetry(test *testlist.Instance, status testlist.ExecuteStatus, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindTestAttemptFailedWillRetry, Test: test, RetryStatus: status, DelayBeforeNext: delay})
}

// ReportRetryStarted emits TestRetryStarted.
func (b *Bus) ReportRetryStarted(test *testlist.Instance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindTestRetryStarted, Test: test})
}

// ReportTestFinished updates RunStats per the rule in spec.md §4.9, then
// emits TestFinished, and begins fail-fast cancellation if warranted.
func (b *Bus) ReportTestFinished(test *testlist.Instance, statuses testlist.ExecutionStatuses) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.running--
	b.stats.RecordTerminal(statuses)
	failFast := b.failFast && !statuses.Disposition().IsSuccess()

	if err := b.deliverLocked(TestEvent{Kind: KindTestFinished, Test: test, Statuses: statuses, CurrentStats: b.stats}); err != nil {
		b.beginCancelLocked(testlist.CancelReportError, err)
		return err
	}

	if failFast {
		b.beginCancelLocked(testlist.CancelTestFailure, nil)
	}
	return nil
}

// ReportTestSkipped emits TestSkipped and increments the skip counter.
func (b *Bus) ReportTestSkipped(test *testlist.Instance, reason testlist.MismatchReason) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.RecordSkip()
	return b.deliverLocked(TestEvent{Kind: KindTestSkipped, Test: test, SkipReason: reason})
}

// ReportRunPaused/ReportRunContinued emit the job-control events.
func (b *Bus) ReportRunPaused() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindRunPaused})
}

func (b *Bus) ReportRunContinued() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindRunContinued})
}

// ReportRunFinished emits RunFinished; it must be the last event reported.
func (b *Bus) ReportRunFinished() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deliverLocked(TestEvent{Kind: KindRunFinished, CurrentStats: b.stats})
}

// BeginCancel raises the cancel state and, the first time any cause wins,
// sets the canceled flag (Release) and emits RunBeginCancel, per spec.md
// §7 ("emits RunBeginCancel at most once; the first cause wins by
// severity; subsequent causes with higher severity can raise the cancel
// state without emitting again").
func (b *Bus) BeginCancel(reason testlist.CancelReason, callbackErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beginCancelLocked(reason, callbackErr)
}

// beginCancelLocked is BeginCancel's body, callable from within another
// Report* method that already holds mu (ReportTestFinished's fail-fast and
// report-error paths) without double-locking.
func (b *Bus) beginCancelLocked(reason testlist.CancelReason, callbackErr error) {
	raised := reason > b.cancelState
	b.cancelState = b.cancelState.Raise(reason)
	firstEmit := !b.cancelOnce
	if firstEmit {
		b.cancelOnce = true
	}
	if callbackErr != nil && b.firstCallbackErr == nil {
		b.firstCallbackErr = callbackErr
	}
	running := b.running

	if !raised && !firstEmit {
		return
	}

	b.canceled.Store(true) // Release, set before any broadcast goes out

	if firstEmit {
		_ = b.deliverLocked(TestEvent{Kind: KindRunBeginCancel, CancelReason: reason, Running: running})
	}
}

// FirstCallbackError returns the first error a reporter.Sink returned
// during the run, if any.
func (b *Bus) FirstCallbackError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.firstCallbackErr
}

// Signal escalation state, tracked alongside the bus because the scheduler
// consults it to decide how to shape the next forward broadcast (spec.md
// §4.8's None/Once/Twice signal count).
type SignalCount int32

const (
	SignalNone SignalCount = iota
	SignalOnce
	SignalTwice
)

// Next advances s by one shutdown signal, saturating at SignalTwice. The caller is
// responsible for panicking on a third signal, per spec.md §4.8 ("A third
// shutdown signal panics the process").
func (s SignalCount) Next() SignalCount {
	if s >= SignalTwice {
		return SignalTwice
	}
	return s + 1
}
