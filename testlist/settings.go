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

package testlist

import "time"

// OutputPolicy controls whether a test's captured output is kept around
// after a terminal result of the matching kind.
type OutputPolicy int

const (
	OutputNever OutputPolicy = iota
	OutputImmediate
	OutputFinal
)

// SlowTimeout governs when a running test is considered slow, and whether
// the supervisor eventually terminates it.
type SlowTimeout struct {
	Period time.Duration

	// TerminateAfter, if non-nil, is the number of slow-ticks after which
	// the supervisor begins forced termination.
	TerminateAfter *uint32

	// Grace is how long the supervisor waits between the soft and hard
	// termination signal once TerminateAfter is reached.
	Grace time.Duration
}

// Settings are the effective, resolved values for one test instance,
// computed once by the profile's override evaluator just before the test
// is scheduled. Settings are read-only for the remainder of the run.
type Settings struct {
	Retry Policy

	Slow SlowTimeout

	LeakTimeout time.Duration

	// ThreadsRequired is the capacity weight this test consumes from the
	// scheduler's global budget (and its group's budget, if any). Always
	// >= 1.
	ThreadsRequired uint32

	Group string

	// ExtraArgs is appended after the test name when the supervisor spawns
	// the binary, letting a profile override pass flags a particular test
	// needs (e.g. a libtest `--nocapture`-alike).
	ExtraArgs []string

	SuccessOutput OutputPolicy
	FailureOutput OutputPolicy

	JUnitCaptureSuccess bool
	JUnitCaptureFailure bool
}

// Policy is a retry policy: either Fixed or Exponential. It lives here,
// rather than in package retry, because it is part of the resolved,
// immutable per-test Settings; package retry only knows how to turn a
// Policy into delays.
type Policy interface {
	// TotalAttempts is Count+1: the initial attempt plus every retry.
	TotalAttempts() int
	isPolicy()
}

type FixedPolicy struct {
	Count  int
	Delay  time.Duration
	Jitter bool
}

func (p FixedPolicy) TotalAttempts() int { return p.Count + 1 }
func (FixedPolicy) isPolicy()            {}

type ExponentialPolicy struct {
	Count   int
	Initial time.Duration
	// Max, if non-zero, clamps the computed delay.
	Max    time.Duration
	Jitter bool
}

func (p ExponentialPolicy) TotalAttempts() int { return p.Count + 1 }
func (ExponentialPolicy) isPolicy()            {}

// NoRetryPolicy is the zero-retry policy: a single attempt, no backoff.
var NoRetryPolicy Policy = FixedPolicy{Count: 0}
