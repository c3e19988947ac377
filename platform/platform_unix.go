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

//go:build linux || darwin

package platform

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/coreos/anvil/clock"
)

// unixJob is the no-op Job on systems without a kernel job-object concept;
// process groups already give us descendant-tree signaling.
type unixJob struct{}

func (unixJob) Close() error { return nil }

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func createJob() (Job, error) {
	// Signal-capable systems use process groups, not job objects; this
	// exists so the supervisor can call CreateJob uniformly across OSes.
	return unixJob{}, nil
}

func assignToJob(cmd *exec.Cmd, job Job) error {
	return nil
}

func jobControlSend(cmd *exec.Cmd, sig JobControlSignal) error {
	pgid, err := processGroupID(cmd)
	if err != nil {
		return err
	}
	var hostSig unix.Signal
	switch sig {
	case Stop:
		hostSig = unix.SIGSTOP
	case Continue:
		hostSig = unix.SIGCONT
	default:
		return errors.Errorf("platform: unknown job control signal %v", sig)
	}
	return unix.Kill(-pgid, hostSig)
}

func raiseStop() error {
	return unix.Kill(unix.Getpid(), unix.SIGSTOP)
}

func terminateChild(cmd *exec.Cmd, mode TerminateMode, grace time.Duration, job Job, forward <-chan ForwardEvent) error {
	pgid, err := processGroupID(cmd)
	if err != nil {
		return err
	}

	hardKill := func() error {
		return unix.Kill(-pgid, unix.SIGKILL)
	}

	switch mode {
	case TerminateSignalTwice:
		return hardKill()
	case TerminateSignalOnce:
		return unix.Kill(-pgid, unix.SIGTERM)
	case TerminateTimeout:
		if err := unix.Kill(-pgid, unix.SIGTERM); err != nil {
			return err
		}
		sleep := clock.NewPausableSleep(grace)
		defer sleep.Stop()
		for {
			select {
			case <-sleep.C():
				return hardKill()
			case ev, ok := <-forward:
				if !ok {
					return hardKill()
				}
				switch {
				case ev.ShouldEscalate():
					return hardKill()
				case ev.ShouldPause():
					sleep.Pause()
					_ = unix.Kill(-pgid, unix.SIGSTOP)
				case ev.ShouldResume():
					sleep.Resume()
					_ = unix.Kill(-pgid, unix.SIGCONT)
				}
			}
		}
	default:
		return errors.Errorf("platform: unknown terminate mode %v", mode)
	}
}

func configureHandleInheritance(cmd *exec.Cmd, noCapture bool) {
	// Unix file descriptors are inherited by default; nothing to do beyond
	// making sure stdin is never inherited, which the supervisor already
	// arranges by wiring cmd.Stdin to a null reader.
}

func processGroupID(cmd *exec.Cmd) (int, error) {
	if cmd.Process == nil {
		return 0, errors.New("platform: process not started")
	}
	return unix.Getpgid(cmd.Process.Pid)
}
