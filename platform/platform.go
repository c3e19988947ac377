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

// Package platform is the host abstraction the supervisor depends on:
// process groups, job objects, signal raising and handle inheritance. It
// generalizes mantle/system/exec.ExecCmd (a Cmd interface wrapping
// *exec.Cmd with a Kill/Signaled convenience layer) into the
// ProcessContainer capability spec.md §9 calls for, with one backend per
// OS family.
package platform

import (
	"os/exec"
	"time"

	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/anvil", "platform")

// JobControlSignal is Stop or Continue, forwarded to a child's process
// group on signal-capable systems.
type JobControlSignal int

const (
	Stop JobControlSignal = iota
	Continue
)

// TerminateMode selects how TerminateChild ends a child.
type TerminateMode int

const (
	// TerminateTimeout sends the soft signal, waits Grace, then hard-kills.
	TerminateTimeout TerminateMode = iota
	// TerminateSignalOnce forwards exactly one shutdown signal.
	TerminateSignalOnce
	// TerminateSignalTwice hard-kills immediately.
	TerminateSignalTwice
)

// Job is an opaque handle to a kernel-enforced child container (a Windows
// job object, or nil on systems without one).
type Job interface {
	Close() error
}

// ForwardEvent carries whatever the caller needs to decide whether to keep
// waiting on a grace period or escalate immediately; TerminateChild honors
// it the way spec.md §4.6 describes for the Timeout(grace) mode.
type ForwardEvent interface {
	// ShouldPause reports a Stop forward event.
	ShouldPause() bool
	// ShouldResume reports a Continue forward event.
	ShouldResume() bool
	// ShouldEscalate reports any shutdown forward event.
	ShouldEscalate() bool
}

// SetProcessGroup places cmd's future child in a new process group so the
// whole descendant tree can be signaled together.
func SetProcessGroup(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}

// CreateJob creates a kernel container for the child, if the host supports
// one. Failure is non-fatal: it is logged and nil is returned.
func CreateJob() Job {
	j, err := createJob()
	if err != nil {
		plog.Debugf("platform: CreateJob: %v (continuing without a job container)", err)
		return nil
	}
	return j
}

// AssignToJob assigns cmd's child process to job, once started. Failure is
// non-fatal: it is logged.
func AssignToJob(cmd *exec.Cmd, job Job) {
	if job == nil {
		return
	}
	if err := assignToJob(cmd, job); err != nil {
		plog.Debugf("platform: AssignToJob: %v", err)
	}
}

// JobControlSend sends Stop or Continue to the child's process group on
// signal-capable systems; it is a no-op where job control doesn't exist.
func JobControlSend(cmd *exec.Cmd, sig JobControlSignal) error {
	return jobControlSend(cmd, sig)
}

// RaiseStop suspends the current process itself (not a signal-handler
// trapped variant) so a parent shell observes the runner as stopped.
func RaiseStop() error {
	return raiseStop()
}

// TerminateChild ends cmd per mode, honoring forward events during any
// grace period. job may be nil.
func TerminateChild(cmd *exec.Cmd, mode TerminateMode, grace time.Duration, job Job, forward <-chan ForwardEvent) error {
	return terminateChild(cmd, mode, grace, job, forward)
}

// ConfigureHandleInheritance sets stdin/stdout/stderr inheritance on hosts
// where standard handles leak by default; stdin is never inherited. When
// noCapture is false the caller has already piped stdout/stderr and this is
// a no-op for them.
func ConfigureHandleInheritance(cmd *exec.Cmd, noCapture bool) {
	configureHandleInheritance(cmd, noCapture)
}
