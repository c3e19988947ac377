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
	"fmt"

	"github.com/coreos/anvil/testlist"
)

// ShutdownForwardEvent is the forward-event payload carried by a
// SignalCanceled error, so the scheduler knows which forward event to
// broadcast.
type ShutdownForwardEvent int

const (
	ShutdownOnce ShutdownForwardEvent = iota
	ShutdownTwice
)

// RunError is the error taxonomy from spec.md §4.11: it is what
// scheduler.Scheduler.Run returns when a reporter sink returned an error.
// A run canceled by fail-fast or a signal with no sink error returns nil.
type RunError struct {
	// CallbackErr is the sink error. When both an earlier callback and the
	// RunFinished delivery failed, it is a multierror.Error holding both.
	CallbackErr error

	// TestFailureCanceled is set when fail-fast triggered the cancellation.
	TestFailureCanceled bool

	// Signal is set (with Forward populated) when a shutdown signal
	// triggered the cancellation.
	Signal  bool
	Forward ShutdownForwardEvent

	Reason testlist.CancelReason
}

func (e *RunError) Error() string {
	switch {
	case e.TestFailureCanceled:
		if e.CallbackErr != nil {
			return fmt.Sprintf("anvil: run canceled after test failure (fail-fast); reporting also failed: %v", e.CallbackErr)
		}
		return "anvil: run canceled after test failure (fail-fast)"
	case e.Signal:
		return fmt.Sprintf("anvil: run canceled by shutdown signal (%v)", e.Reason)
	case e.CallbackErr != nil:
		return fmt.Sprintf("anvil: reporter callback failed: %v", e.CallbackErr)
	default:
		return "anvil: run canceled"
	}
}

func (e *RunError) Unwrap() error { return e.CallbackErr }
