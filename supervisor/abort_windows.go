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

package supervisor

import (
	"os/exec"

	"github.com/coreos/anvil/testlist"
)

// abortStatus has no signal concept on Windows; a non-zero NT status is
// reported through ExitCode, not a signal, so AbortStatus is always absent
// here.
func abortStatus(cmd *exec.Cmd, waitErr error) testlist.AbortStatus {
	return testlist.AbortStatus{}
}
