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

//go:build windows

package platform

import (
	"os/exec"
	"time"

	"github.com/pkg/errors"
)

// windowsJob stands in for a job object handle. This pack doesn't vendor
// golang.org/x/sys/windows, so the job-object backend is a logged no-op
// rather than a fabricated syscall shim; see DESIGN.md.
type windowsJob struct{}

func (windowsJob) Close() error { return nil }

func setProcessGroup(cmd *exec.Cmd) {
	// Windows has no process-group equivalent in this backend; job objects
	// (once wired) are the descendant-tree container instead.
}

func createJob() (Job, error) {
	plog.Debugf("platform: job objects not wired on this build, descendant processes are not contained")
	return windowsJob{}, nil
}

func assignToJob(cmd *exec.Cmd, job Job) error {
	return nil
}

func jobControlSend(cmd *exec.Cmd, sig JobControlSignal) error {
	// No job control (SIGSTOP/SIGCONT) on Windows; a no-op per spec.md §4.1.
	return nil
}

func raiseStop() error {
	// No equivalent to self-SIGSTOP; nothing to do.
	return nil
}

func terminateChild(cmd *exec.Cmd, mode TerminateMode, grace time.Duration, job Job, forward <-chan ForwardEvent) error {
	hardKill := func() error {
		if cmd.Process == nil {
			return errors.New("platform: process not started")
		}
		return cmd.Process.Kill()
	}

	switch mode {
	case TerminateSignalTwice, TerminateSignalOnce:
		return hardKill()
	case TerminateTimeout:
		// Windows has no graceful SIGTERM; the job-object "terminate" call
		// is itself the hard kill, so grace is skipped.
		return hardKill()
	default:
		return errors.Errorf("platform: unknown terminate mode %v", mode)
	}
}

func configureHandleInheritance(cmd *exec.Cmd, noCapture bool) {
	// os/exec on Windows does not leak unrelated handles to children by
	// default; nothing to configure beyond stdin, handled by the caller.
}
