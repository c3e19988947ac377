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

package supervisor

import (
	"os/exec"
	"syscall"

	"github.com/coreos/anvil/testlist"
)

func abortStatus(cmd *exec.Cmd, waitErr error) testlist.AbortStatus {
	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return testlist.AbortStatus{}
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return testlist.AbortStatus{}
	}
	return testlist.AbortStatus{Signal: int(status.Signal()), Present: true}
}
