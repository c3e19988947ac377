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

package eventbus

import "github.com/coreos/anvil/platform"

// ForwardKind is a forward event's payload kind, per spec.md's glossary
// ("Forward event: a message broadcast from the bus to all live
// supervisors: Stop, Continue, or Shutdown(Once|Twice)").
type ForwardKind int

const (
	ForwardStop ForwardKind = iota
	ForwardContinue
	ForwardShutdownOnce
	ForwardShutdownTwice
)

// ForwardMsg is one item on the broadcast channel from the bus/scheduler to
// every live supervisor. Ack, if non-nil, should be closed once the
// supervisor has acted on a Stop message, per spec.md §4.8's 100ms
// acknowledgement wait.
type ForwardMsg struct {
	Kind ForwardKind
	Ack  chan<- struct{}
}

var _ platform.ForwardEvent = ForwardMsg{}

func (m ForwardMsg) ShouldPause() bool    { return m.Kind == ForwardStop }
func (m ForwardMsg) ShouldResume() bool   { return m.Kind == ForwardContinue }
func (m ForwardMsg) ShouldEscalate() bool { return m.Kind == ForwardShutdownOnce || m.Kind == ForwardShutdownTwice }

// HardKill reports whether this forward event requires unconditional
// hard-kill regardless of any in-progress grace period (spec.md §4.6's
// Signal(Twice) mode).
func (m ForwardMsg) HardKill() bool { return m.Kind == ForwardShutdownTwice }
