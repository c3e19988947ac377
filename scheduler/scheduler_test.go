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
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/testlist"
)

// scriptBinary writes script to a temporary, executable shell script and
// returns a Binary pointing at it, mirroring supervisor_test.go's
// scriptInstance helper.
func scriptBinary(t *testing.T, name, script string) *testlist.Binary {
	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	contents := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &testlist.Binary{ID: name, Path: path}
}

func fixedSettings(settings testlist.Settings) SettingsFunc {
	return func(*testlist.Instance) testlist.Settings { return settings }
}

// eventRecorder is a reporter.Sink-shaped collector. The bus serializes its
// own calls into record, so the mutex here only guards the race against the
// test goroutine reading r.events after Run returns.
type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.TestEvent
}

func (r *eventRecorder) record(ev eventbus.TestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) kinds() []eventbus.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]eventbus.Kind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func TestRunAllPassUpdatesStats(t *testing.T) {
	bin := scriptBinary(t, "pass", "exit 0")
	inst := testlist.NewInstance(bin, "case", "", os.Environ(), testlist.Match())
	list, err := testlist.NewList([]*testlist.Binary{bin}, []*testlist.Instance{inst})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}

	rec := &eventRecorder{}
	sched := New(Options{
		Capacity: 2,
		Settings: fixedSettings(testlist.Settings{LeakTimeout: 2 * time.Second}),
		Sink:     rec.record,
	})

	stats, err := sched.Run(list)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Passed != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want one pass and no failures", stats)
	}
	if sched.CancelState() != testlist.CancelNone {
		t.Errorf("CancelState() = %v, want CancelNone", sched.CancelState())
	}
}

// TestRunOrderMatchesListOrder checks C8's admission-order invariant: with
// enough capacity for only one test at a time, TestStarted events must
// appear in the same order the instances were admitted in.
func TestRunOrderMatchesListOrder(t *testing.T) {
	var binaries []*testlist.Binary
	var instances []*testlist.Instance
	names := []string{"a", "b", "c"}
	for _, n := range names {
		bin := scriptBinary(t, n, "exit 0")
		binaries = append(binaries, bin)
		instances = append(instances, testlist.NewInstance(bin, n, "", os.Environ(), testlist.Match()))
	}
	list, err := testlist.NewList(binaries, instances)
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}

	rec := &eventRecorder{}
	sched := New(Options{
		Capacity: 1,
		Settings: fixedSettings(testlist.Settings{LeakTimeout: 2 * time.Second}),
		Sink:     rec.record,
	})

	if _, err := sched.Run(list); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var started []string
	for _, ev := range rec.events {
		if ev.Kind == eventbus.KindTestStarted {
			started = append(started, ev.Test.Name())
		}
	}
	if len(started) != 3 || started[0] != "a" || started[1] != "b" || started[2] != "c" {
		t.Errorf("start order = %v, want [a b c]", started)
	}
}

func TestRunFailFastCancelsRemainingTests(t *testing.T) {
	failBin := scriptBinary(t, "fail", "exit 1")
	neverBin := scriptBinary(t, "never", "exit 0")
	failInst := testlist.NewInstance(failBin, "fails", "", os.Environ(), testlist.Match())
	neverInst := testlist.NewInstance(neverBin, "never-runs", "", os.Environ(), testlist.Match())
	list, err := testlist.NewList(
		[]*testlist.Binary{failBin, neverBin},
		[]*testlist.Instance{failInst, neverInst},
	)
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}

	rec := &eventRecorder{}
	sched := New(Options{
		Capacity: 1,
		FailFast: true,
		Settings: fixedSettings(testlist.Settings{LeakTimeout: 2 * time.Second}),
		Sink:     rec.record,
	})

	stats, err := sched.Run(list)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Passed != 0 {
		t.Errorf("Passed = %d, want 0 (second test must never start)", stats.Passed)
	}
	if sched.CancelState() != testlist.CancelTestFailure {
		t.Errorf("CancelState() = %v, want CancelTestFailure", sched.CancelState())
	}

	for _, ev := range rec.events {
		if ev.Kind == eventbus.KindTestStarted && ev.Test.Name() == "never-runs" {
			t.Fatal("never-runs test was started after fail-fast cancellation began")
		}
	}
}

func TestRunRetrySucceedsAndIsFlaky(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "attempted")
	script := `
if [ -f ` + marker + ` ]; then
	exit 0
fi
touch ` + marker + `
exit 1
`
	path := filepath.Join(dir, "flaky.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bin := &testlist.Binary{ID: "flaky", Path: path}
	inst := testlist.NewInstance(bin, "case", "", os.Environ(), testlist.Match())
	list, err := testlist.NewList([]*testlist.Binary{bin}, []*testlist.Instance{inst})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}

	rec := &eventRecorder{}
	settings := testlist.Settings{
		LeakTimeout: 2 * time.Second,
		Retry:       testlist.FixedPolicy{Count: 1, Delay: 10 * time.Millisecond},
	}
	sched := New(Options{
		Capacity: 1,
		Settings: fixedSettings(settings),
		Sink:     rec.record,
	})

	stats, err := sched.Run(list)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Passed != 1 {
		t.Errorf("Passed = %d, want 1", stats.Passed)
	}
	if stats.Flaky != 1 {
		t.Errorf("Flaky = %d, want 1 (first attempt failed, second passed)", stats.Flaky)
	}

	var sawRetry bool
	for _, k := range rec.kinds() {
		if k == eventbus.KindTestAttemptFailedWillRetry {
			sawRetry = true
		}
	}
	if !sawRetry {
		t.Error("expected a TestAttemptFailedWillRetry event")
	}
}

func TestRunMismatchedInstancesAreSkippedNotRun(t *testing.T) {
	bin := scriptBinary(t, "skip", "exit 0")
	inst := testlist.NewInstance(bin, "case", "", os.Environ(), testlist.Mismatch(testlist.MismatchString))
	list, err := testlist.NewList([]*testlist.Binary{bin}, []*testlist.Instance{inst})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}

	rec := &eventRecorder{}
	sched := New(Options{
		Capacity: 1,
		Settings: fixedSettings(testlist.Settings{LeakTimeout: 2 * time.Second}),
		Sink:     rec.record,
	})

	stats, err := sched.Run(list)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Passed != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want no tests actually run", stats)
	}
	for _, k := range rec.kinds() {
		if k == eventbus.KindTestStarted {
			t.Fatal("a mismatched instance was started")
		}
		if k == eventbus.KindTestSkipped {
			return
		}
	}
	t.Error("expected a TestSkipped event")
}

// TestRunCallbackErrorSurfacesAsRunError checks spec.md §4.11's error
// taxonomy: a failing sink must be the only way Run returns a non-nil
// error, and that error must be an *eventbus.RunError.
func TestRunCallbackErrorSurfacesAsRunError(t *testing.T) {
	bin := scriptBinary(t, "pass", "exit 0")
	inst := testlist.NewInstance(bin, "case", "", os.Environ(), testlist.Match())
	list, err := testlist.NewList([]*testlist.Binary{bin}, []*testlist.Instance{inst})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}

	boom := errors.New("sink exploded")
	sched := New(Options{
		Capacity: 1,
		Settings: fixedSettings(testlist.Settings{LeakTimeout: 2 * time.Second}),
		Sink: func(ev eventbus.TestEvent) error {
			if ev.Kind == eventbus.KindTestStarted {
				return boom
			}
			return nil
		},
	})

	_, runErr := sched.Run(list)
	if runErr == nil {
		t.Fatal("Run returned nil error, want a wrapped callback error")
	}
	re, ok := runErr.(*eventbus.RunError)
	if !ok {
		t.Fatalf("Run error is %T, want *eventbus.RunError", runErr)
	}
	if re.CallbackErr != boom {
		t.Errorf("CallbackErr = %v, want %v", re.CallbackErr, boom)
	}
	if re.Signal {
		t.Error("Signal = true, want false (cancellation came from a callback, not a signal)")
	}
}
