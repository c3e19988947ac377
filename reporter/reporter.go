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

// Package reporter is the sink interface external consumers implement to
// receive the event bus's output. It generalizes
// mantle/harness/reporters.Reporter (which took a fixed (name, subtests,
// result, duration, output) tuple) to the richer eventbus.TestEvent, and
// keeps the same fan-out-with-first-error shape as
// mantle/harness/reporters.Reporters.
package reporter

import "github.com/coreos/anvil/eventbus"

// Sink receives one TestEvent at a time, in order, one call completing
// before the next begins (spec.md §4.10). It may fail; a failing sink
// begins cancellation with reason ReportError.
type Sink func(eventbus.TestEvent) error

// Sinks fans one event out to many sinks, in order, stopping at (and
// returning) the first error -- matching
// mantle/harness/reporters.Reporters.Output's early-return-on-error shape.
type Sinks []Sink

func (s Sinks) Report(ev eventbus.TestEvent) error {
	for _, sink := range s {
		if err := sink(ev); err != nil {
			return err
		}
	}
	return nil
}
