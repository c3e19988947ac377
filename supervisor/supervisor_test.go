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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/testlist"
)

// scriptInstance writes script to a temporary, executable shell script and
// points an Instance's Binary at it, so Run spawns real shell processes
// without the supervisor needing to know anything about shell quoting.
func scriptInstance(t *testing.T, script string) *testlist.Instance {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.sh")
	contents := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	bin := &testlist.Binary{ID: "shtest", Path: path}
	return testlist.NewInstance(bin, "case", "", os.Environ(), testlist.Match())
}

func TestRunBasicPass(t *testing.T) {
	inst := scriptInstance(t, "exit 0")
	status, err := Run(context.Background(), Params{
		Instance: inst,
		RunID:    uuid.New(),
		Retry:    testlist.RetryData{Attempt: 1, TotalAttempts: 1},
		Settings: testlist.Settings{LeakTimeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.Result.Kind != testlist.ResultPass {
		t.Errorf("Result.Kind = %v, want Pass", status.Result.Kind)
	}
}

func TestRunCapturesStdoutAndStderr(t *testing.T) {
	inst := scriptInstance(t, "echo out; echo err 1>&2; exit 0")
	status, err := Run(context.Background(), Params{
		Instance: inst,
		RunID:    uuid.New(),
		Retry:    testlist.RetryData{Attempt: 1, TotalAttempts: 1},
		Settings: testlist.Settings{LeakTimeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(status.CapturedStdout) != "out\n" {
		t.Errorf("CapturedStdout = %q, want %q", status.CapturedStdout, "out\n")
	}
	if string(status.CapturedStderr) != "err\n" {
		t.Errorf("CapturedStderr = %q, want %q", status.CapturedStderr, "err\n")
	}
}

func TestRunNonZeroExitIsFail(t *testing.T) {
	inst := scriptInstance(t, "exit 7")
	status, err := Run(context.Background(), Params{
		Instance: inst,
		RunID:    uuid.New(),
		Retry:    testlist.RetryData{Attempt: 1, TotalAttempts: 1},
		Settings: testlist.Settings{LeakTimeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.Result.Kind != testlist.ResultFail {
		t.Errorf("Result.Kind = %v, want Fail", status.Result.Kind)
	}
}

func TestRunSetsAttemptAndRunIDEnv(t *testing.T) {
	inst := scriptInstance(t, `[ "$ATTEMPT" = "2" ] && [ -n "$RUN_ID" ]`)
	runID := uuid.New()
	status, err := Run(context.Background(), Params{
		Instance: inst,
		RunID:    runID,
		Retry:    testlist.RetryData{Attempt: 2, TotalAttempts: 3},
		Settings: testlist.Settings{LeakTimeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.Result.Kind != testlist.ResultPass {
		t.Errorf("Result.Kind = %v, want Pass (ATTEMPT/RUN_ID not set as expected)", status.Result.Kind)
	}
}

func TestRunSlowTimeoutTerminates(t *testing.T) {
	inst := scriptInstance(t, "sleep 5")
	terminateAfter := uint32(1)
	var slowHits int
	start := time.Now()
	status, err := Run(context.Background(), Params{
		Instance: inst,
		RunID:    uuid.New(),
		Retry:    testlist.RetryData{Attempt: 1, TotalAttempts: 1},
		Settings: testlist.Settings{
			LeakTimeout: 2 * time.Second,
			Slow: testlist.SlowTimeout{
				Period:         100 * time.Millisecond,
				TerminateAfter: &terminateAfter,
				Grace:          100 * time.Millisecond,
			},
		},
		OnSlow: func(nominalElapsed time.Duration, willTerminate bool) {
			slowHits++
		},
	})
	total := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status.Result.Kind != testlist.ResultTimeout {
		t.Errorf("Result.Kind = %v, want Timeout", status.Result.Kind)
	}
	if slowHits == 0 {
		t.Error("expected at least one Slow tick")
	}
	if total > 2*time.Second {
		t.Errorf("took %v, expected termination well under 2s", total)
	}
}

func TestRunForwardShutdownTwiceHardKills(t *testing.T) {
	inst := scriptInstance(t, "sleep 30")
	fwd := make(chan eventbus.ForwardMsg, 1)

	done := make(chan struct{})
	var status testlist.ExecuteStatus
	go func() {
		defer close(done)
		var err error
		status, err = Run(context.Background(), Params{
			Instance: inst,
			RunID:    uuid.New(),
			Retry:    testlist.RetryData{Attempt: 1, TotalAttempts: 1},
			Settings: testlist.Settings{LeakTimeout: 2 * time.Second},
			Forward:  fwd,
		})
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	fwd <- eventbus.ForwardMsg{Kind: eventbus.ForwardShutdownTwice}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a hard-kill forward event")
	}

	if status.Result.Kind != testlist.ResultFail {
		t.Errorf("Result.Kind = %v, want Fail", status.Result.Kind)
	}
}
