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

package sigsource

import "testing"

func TestNoopSourceProducesNothing(t *testing.T) {
	s := New(Noop)
	defer s.Close()

	select {
	case ev, ok := <-s.Events():
		t.Fatalf("Noop source produced an event: %+v (open=%v)", ev, ok)
	default:
	}
}

func TestJobControlDebounce(t *testing.T) {
	s := &Source{lastJobControl: nil}

	ev, ok := s.debounceJobControl(Stop)
	if !ok || ev.JobControl != Stop {
		t.Fatalf("first Stop should pass through, got ok=%v ev=%+v", ok, ev)
	}

	if _, ok := s.debounceJobControl(Stop); ok {
		t.Fatalf("second consecutive Stop should be debounced")
	}

	ev, ok = s.debounceJobControl(Continue)
	if !ok || ev.JobControl != Continue {
		t.Fatalf("Continue after Stop should pass through, got ok=%v ev=%+v", ok, ev)
	}

	if _, ok := s.debounceJobControl(Continue); ok {
		t.Fatalf("second consecutive Continue should be debounced")
	}
}
