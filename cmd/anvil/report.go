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

package main

import (
	"fmt"
	"os"

	"github.com/coreos/anvil/eventbus"
)

// consoleSink prints one line per test-scoped event to stdout, in the
// terse style mantle/harness's default (non-verbose) reporting uses: a
// single line on completion, nothing in between unless something is
// actually slow or failing.
func consoleSink(ev eventbus.TestEvent) error {
	switch ev.Kind {
	case eventbus.KindTestStarted:
		fmt.Printf("     RUN  %s\n", ev.Test)
	case eventbus.KindTestSlow:
		word := "SLOW"
		if ev.WillTerminate {
			word = "TERMINATING"
		}
		fmt.Printf("    %s  %s (%s)\n", word, ev.Test, ev.SlowElapsed)
	case eventbus.KindTestAttemptFailedWillRetry:
		fmt.Printf("   RETRY  %s: %s, retrying in %s\n", ev.Test, ev.RetryStatus.Result.Kind, ev.DelayBeforeNext)
	case eventbus.KindTestFinished:
		last := ev.Statuses.Last()
		fmt.Printf("%8s  %s (%s)\n", last.Result.Kind, ev.Test, last.TimeTaken)
	case eventbus.KindTestSkipped:
		fmt.Printf("    SKIP  %s (%s)\n", ev.Test, ev.SkipReason)
	case eventbus.KindRunBeginCancel:
		fmt.Fprintf(os.Stderr, "anvil: canceling run: %s\n", ev.CancelReason)
	case eventbus.KindRunFinished:
		s := ev.CurrentStats
		fmt.Printf("\n%d run: %d passed (%d flaky, %d leaky), %d failed, %d timed out, %d exec-failed, %d skipped\n",
			s.InitialRunCount, s.Passed, s.Flaky, s.Leaky, s.Failed, s.TimedOut, s.ExecFailed, s.Skipped)
	}
	return nil
}
