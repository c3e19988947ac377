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

package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/testlist"
)

// jsonTest is one test's whole-run summary, matching the shape of
// mantle/harness/reporters/json.go's jsonTest (Name/Result/Duration/Output)
// but with result expressed as the richer testlist.ResultKind.
type jsonTest struct {
	Name     string        `json:"name"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Output   string        `json:"output"`
}

// JSONSummary accumulates a whole-run summary the way
// mantle/harness/reporters/json.go's jsonReporter did, for collaborators
// that want a single post-hoc report file instead of consuming the event
// stream directly.
type JSONSummary struct {
	Tests  []jsonTest `json:"tests"`
	Result string     `json:"result"`

	mu sync.Mutex
}

// NewJSONSummary returns a Sink that accumulates a JSONSummary; call
// WriteFile once the run has finished.
func NewJSONSummary() (*JSONSummary, Sink) {
	r := &JSONSummary{}
	return r, r.observe
}

func (r *JSONSummary) observe(ev eventbus.TestEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case eventbus.KindTestFinished:
		last := ev.Statuses.Last()
		r.Tests = append(r.Tests, jsonTest{
			Name:     ev.Test.Name(),
			Result:   last.Result.Kind.String(),
			Duration: last.TimeTaken,
			Attempts: len(ev.Statuses),
			Output:   string(append(append([]byte{}, last.CapturedStdout...), last.CapturedStderr...)),
		})
	case eventbus.KindTestSkipped:
		r.Tests = append(r.Tests, jsonTest{
			Name:   ev.Test.Name(),
			Result: "SKIP",
		})
	case eventbus.KindRunFinished:
		if r.Result == "" {
			r.Result = resultFromStats(ev.CurrentStats)
		}
	}
	return nil
}

func resultFromStats(stats testlist.RunStats) string {
	if stats.Failed > 0 || stats.TimedOut > 0 || stats.ExecFailed > 0 {
		return "FAIL"
	}
	return "PASS"
}

// WriteFile writes the accumulated summary as JSON to filename under dir,
// matching mantle/harness/reporters/json.go's Output(path) contract.
func (r *JSONSummary) WriteFile(dir, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(r)
}
