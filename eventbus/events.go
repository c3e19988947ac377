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

// Package eventbus is the single-consumer serializer described in
// spec.md §4.9: it owns the run UUID, the run stopwatch, running-test
// counter, cumulative RunStats, fail-fast flag and cancel state, converts
// internal events into the external TestEvent stream and delivers them to
// a caller-supplied reporter.Sink. It generalizes
// mantle/harness/reporters.Reporters's fan-out-with-first-error shape from
// "call every reporter" to "maintain running stats, then call one sink."
package eventbus

import (
	"time"

	"github.com/google/uuid"

	"github.com/coreos/anvil/testlist"
)

// Kind tags a TestEvent's payload.
type Kind int

const (
	KindRunStarted Kind = iota
	KindTestStarted
	KindTestSlow
	KindTestAttemptFailedWillRetry
	KindTestRetryStarted
	KindTestFinished
	KindTestSkipped
	KindRunBeginCancel
	KindRunPaused
	KindRunContinued
	KindRunFinished
)

// TestEvent is the single external event type, per spec.md §6.
type TestEvent struct {
	Timestamp time.Time
	Elapsed   time.Duration
	RunID     uuid.UUID
	Kind      Kind

	Test *testlist.Instance // nil for run-scoped events

	// Populated depending on Kind.
	CurrentStats    testlist.RunStats // TestStarted, TestFinished, RunFinished
	SlowElapsed     time.Duration     // TestSlow: hits * period, nominal
	WillTerminate   bool              // TestSlow
	RetryStatus     testlist.ExecuteStatus
	DelayBeforeNext time.Duration // TestAttemptFailedWillRetry
	Statuses        testlist.ExecutionStatuses
	SkipReason      testlist.MismatchReason
	CancelReason    testlist.CancelReason
	Running         int // RunBeginCancel: supervisors still in flight
}
