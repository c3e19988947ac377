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

//go:build windows

package sigsource

import (
	"os"
	"os/signal"
)

// On Windows only Ctrl-C (os.Interrupt) is installed, per spec.md §6; there
// is no SIGHUP/SIGTERM/job-control equivalent.
func (s *Source) install() {
	signal.Notify(s.ch, os.Interrupt)
}

func (s *Source) translate(sig os.Signal) (Event, bool) {
	if sig == os.Interrupt {
		return Event{Kind: KindShutdown, Shutdown: Interrupt}, true
	}
	return Event{}, false
}
