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

//go:build linux || darwin

package sigsource

import (
	"os"
	"os/signal"
	"syscall"
)

func (s *Source) install() {
	signal.Notify(s.ch, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGTSTP, syscall.SIGCONT)
}

func (s *Source) translate(sig os.Signal) (Event, bool) {
	switch sig {
	case syscall.SIGHUP:
		return Event{Kind: KindShutdown, Shutdown: Hangup}, true
	case syscall.SIGTERM:
		return Event{Kind: KindShutdown, Shutdown: Term}, true
	case os.Interrupt:
		return Event{Kind: KindShutdown, Shutdown: Interrupt}, true
	case syscall.SIGTSTP:
		return s.debounceJobControl(Stop)
	case syscall.SIGCONT:
		return s.debounceJobControl(Continue)
	default:
		return Event{}, false
	}
}
