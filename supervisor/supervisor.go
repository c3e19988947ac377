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

// Package supervisor runs exactly one attempt of one test, per the state
// machine in spec.md §4.6 (Pre-spawn -> Running -> Draining ->
// Classification). It generalizes mantle/system/exec.ExecCmd's
// Cmd-plus-Kill-plus-Signaled wrapper into the full multiplexed wait loop
// spec.md describes, and mantle/harness/timeout_test.go's
// `select { case <-time.After(...): case <-h.timeoutContext.Done(): }`
// shape into the richer multi-branch select over child exit, slow ticks,
// I/O collector completion, and forward events.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/coreos/anvil/clock"
	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/iocollect"
	"github.com/coreos/anvil/lang/destructor"
	"github.com/coreos/anvil/platform"
	"github.com/coreos/anvil/testlist"
)

// RunTestErrorKind is the supervisor-internal error taxonomy from
// spec.md §4.11; every kind collapses to ExecFail.
type RunTestErrorKind int

const (
	ErrSpawn RunTestErrorKind = iota
	ErrWait
	ErrCollectStdout
	ErrCollectStderr
)

// RunTestError wraps a RunTestErrorKind with the underlying cause.
type RunTestError struct {
	Kind RunTestErrorKind
	Err  error
}

func (e *RunTestError) Error() string {
	var label string
	switch e.Kind {
	case ErrSpawn:
		label = "spawn"
	case ErrWait:
		label = "wait"
	case ErrCollectStdout:
		label = "collect stdout"
	case ErrCollectStderr:
		label = "collect stderr"
	}
	return fmt.Sprintf("supervisor: %s: %v", label, e.Err)
}

func (e *RunTestError) Unwrap() error { return e.Err }

// SlowHook is invoked on each slow tick while the test runs, but only when
// Settings.Slow.Grace is non-zero. willTerminate reports whether this tick
// begins forced termination; the supervisor makes that decision itself from
// Settings.
type SlowHook func(nominalElapsed time.Duration, willTerminate bool)

// Params bundles a single attempt's inputs.
type Params struct {
	Instance *testlist.Instance
	Settings testlist.Settings
	Retry    testlist.RetryData
	RunID    uuid.UUID

	DelayBeforeStart time.Duration
	NoCapture        bool

	// Forward delivers broadcast Stop/Continue/Shutdown events to this
	// attempt; it is this supervisor's private subscriber channel, fed by
	// the scheduler's fan-out.
	Forward <-chan eventbus.ForwardMsg

	// Canceled reports whether the run has begun cancellation. Run itself
	// does not call it; the scheduler checks the flag before a test starts.
	Canceled func() bool

	OnSlow SlowHook
}

// Run executes exactly one attempt and returns its ExecuteStatus. The only
// error Run itself returns is ctx being done before the attempt could even
// start; all per-attempt failures are folded into the returned
// ExecuteStatus's ExecFail/Timeout/Fail result, per spec.md §4.6, §4.11.
func Run(ctx context.Context, p Params) (testlist.ExecuteStatus, error) {
	if err := ctx.Err(); err != nil {
		return testlist.ExecuteStatus{}, err
	}

	status := testlist.ExecuteStatus{
		Retry:            p.Retry,
		DelayBeforeStart: p.DelayBeforeStart,
	}

	sw := clock.NewStopwatch()

	cmd, collector, err := spawn(p)
	if err != nil {
		startTime, elapsed := sw.End()
		status.StartTime = startTime
		status.TimeTaken = elapsed
		status.Result = testlist.ExecutionResult{Kind: testlist.ResultExecFail}
		if collector != nil {
			collector.AppendStderr(err.Error())
			status.CapturedStderr = collector.Stderr()
		} else {
			status.CapturedStderr = []byte(err.Error())
		}
		return status, nil
	}

	job := platform.CreateJob()
	platform.AssignToJob(cmd, job)
	if job != nil {
		defer job.Close()
	}

	result, isSlow := runAndDrain(cmd, collector, sw, job, p)

	startTime, elapsed := sw.End()
	status.StartTime = startTime
	status.TimeTaken = elapsed
	status.IsSlow = isSlow
	status.Result = result
	status.CapturedStdout = collector.Stdout()
	status.CapturedStderr = collector.Stderr()
	return status, nil
}

func spawn(p Params) (*exec.Cmd, *iocollect.Collector, error) {
	inst := p.Instance
	cmd := exec.Command(inst.Binary().Path, testArgs(inst, p.Settings)...)
	cmd.Dir = workDir(inst)
	cmd.Env = childEnv(p)

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, nil, &RunTestError{Kind: ErrSpawn, Err: err}
	}
	// The parent's fd is dup'd into the child by Start; it is only ours to
	// close, and only once Start has either succeeded or failed.
	var cleanup destructor.MultiDestructor
	cleanup.AddCloser(devNull)
	defer cleanup.Destroy()
	cmd.Stdin = devNull

	platform.SetProcessGroup(cmd)

	var collector *iocollect.Collector
	if p.NoCapture {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		platform.ConfigureHandleInheritance(cmd, true)
		if err := cmd.Start(); err != nil {
			return nil, iocollect.Start(nil, nil), &RunTestError{Kind: ErrSpawn, Err: err}
		}
		collector = iocollect.Start(nil, nil)
		return cmd, collector, nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, &RunTestError{Kind: ErrSpawn, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, &RunTestError{Kind: ErrSpawn, Err: err}
	}
	platform.ConfigureHandleInheritance(cmd, false)

	if err := cmd.Start(); err != nil {
		return nil, iocollect.Start(nil, nil), &RunTestError{Kind: ErrSpawn, Err: err}
	}

	collector = iocollect.Start(stdout, stderr)
	return cmd, collector, nil
}

func testArgs(inst *testlist.Instance, settings testlist.Settings) []string {
	args := []string{inst.Name()}
	return append(args, settings.ExtraArgs...)
}

func workDir(inst *testlist.Instance) string {
	if cwd := inst.Binary().Cwd; cwd != "" {
		return cwd
	}
	if inst.WorkDir() != "" {
		return inst.WorkDir()
	}
	return filepath.Dir(inst.Binary().Path)
}

// childEnv builds the child's environment per spec.md §6: ATTEMPT, RUN_ID,
// and an augmented dynamic-library search path, layered over the
// instance's base environment.
func childEnv(p Params) []string {
	env := append([]string{}, p.Instance.Env()...)
	env = append(env,
		"ATTEMPT="+strconv.Itoa(p.Retry.Attempt),
		"RUN_ID="+p.RunID.String(),
	)

	if dirs, err := platform.DylibSearchDirs(p.Instance.Binary().Path); err == nil && len(dirs) > 0 {
		varName := platform.LibraryPathEnvVar()
		joined := dirs[0]
		for _, d := range dirs[1:] {
			joined += ":" + d
		}
		if existing := os.Getenv(varName); existing != "" {
			joined = joined + ":" + existing
		}
		env = append(env, varName+"="+joined)
	}

	return env
}
