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

// Package profile is the declarative configuration collaborator described
// in spec.md §6: defaults plus an override-rule evaluator that resolves
// per-test Settings (§3, §4.4). It generalizes mantle/kola/harness.go's
// denylist matching (glob patterns over package/binary/name, evaluated in
// document order) from a skip-only list into a full Settings override
// evaluator with last-match-wins field merging.
package profile

import (
	"path/filepath"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/coreos/anvil/testlist"
)

// Override is one profile rule: a glob-based filter plus the Settings
// fields it overrides. Zero-value pointer fields mean "don't override".
type Override struct {
	PackageGlob string `yaml:"package,omitempty"`
	BinaryGlob  string `yaml:"binary,omitempty"`
	NameGlob    string `yaml:"name,omitempty"`
	Platform    string `yaml:"platform,omitempty"` // "host", "target", or "" for both

	Retries     *int           `yaml:"retries,omitempty"`
	RetryDelay  *time.Duration `yaml:"retry-delay,omitempty"`
	SlowTimeout *time.Duration `yaml:"slow-timeout,omitempty"`
	LeakTimeout *time.Duration `yaml:"leak-timeout,omitempty"`
	Threads     *uint32        `yaml:"threads-required,omitempty"`
	Group       *string        `yaml:"test-group,omitempty"`

	// Args is a shell-quoted string of extra arguments to pass the test
	// binary, split with the same quoting rules as a shell command line.
	Args *string `yaml:"args,omitempty"`
}

// Profile holds defaults plus an ordered list of override rules.
type Profile struct {
	Default  testlist.Settings
	Filter   string // default filter expression, applied at construction by the collaborator that builds the testlist.List
	Groups   map[string]int
	Override []Override `yaml:"overrides"`
}

// Load parses a YAML profile document, matching mantle/kola/harness.go's
// use of gopkg.in/yaml.v2 for denylist and test-metadata documents.
func Load(data []byte) (*Profile, error) {
	var raw struct {
		Overrides []Override `yaml:"overrides"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "profile: parsing yaml")
	}
	return &Profile{
		Default:  DefaultSettings(),
		Override: raw.Overrides,
	}, nil
}

// DefaultSettings mirrors cargo-nextest's documented defaults: one attempt,
// a 60s slow timeout with no forced termination, a 100ms leak timeout.
func DefaultSettings() testlist.Settings {
	return testlist.Settings{
		Retry:           testlist.NoRetryPolicy,
		Slow:            testlist.SlowTimeout{Period: 60 * time.Second},
		LeakTimeout:     100 * time.Millisecond,
		ThreadsRequired: 1,
		SuccessOutput:   testlist.OutputNever,
		FailureOutput:   testlist.OutputImmediate,
	}
}

// CommandLineOverride, if non-nil, replaces the per-test retry policy
// wholesale, per spec.md §3 ("A command-line override, if present,
// replaces the per-test policy wholesale").
type CommandLineOverride struct {
	Retry testlist.Policy
}

// Resolve evaluates every override rule against query in document order,
// last match wins per field, then applies cli on top if given. It is pure
// and deterministic, per spec.md §4.4.
func (p *Profile) Resolve(query testlist.Query, cli *CommandLineOverride) testlist.Settings {
	settings := p.Default

	for _, ov := range p.Override {
		if !matches(ov, query) {
			continue
		}
		applyOverride(&settings, ov)
	}

	if cli != nil && cli.Retry != nil {
		settings.Retry = cli.Retry
	}

	return settings
}

func matches(ov Override, q testlist.Query) bool {
	if ov.PackageGlob != "" && !globMatch(ov.PackageGlob, q.Package) {
		return false
	}
	if ov.BinaryGlob != "" && !globMatch(ov.BinaryGlob, q.Binary) {
		return false
	}
	if ov.NameGlob != "" && !globMatch(ov.NameGlob, q.Name) {
		return false
	}
	switch ov.Platform {
	case "host":
		if q.Platform != testlist.PlatformHost {
			return false
		}
	case "target":
		if q.Platform != testlist.PlatformTarget {
			return false
		}
	}
	return true
}

func globMatch(pattern, s string) bool {
	ok, err := filepath.Match(pattern, s)
	return err == nil && ok
}

func applyOverride(s *testlist.Settings, ov Override) {
	if ov.Retries != nil {
		s.Retry = testlist.FixedPolicy{Count: *ov.Retries}
	}
	if ov.RetryDelay != nil {
		if fp, ok := s.Retry.(testlist.FixedPolicy); ok {
			fp.Delay = *ov.RetryDelay
			s.Retry = fp
		}
	}
	if ov.SlowTimeout != nil {
		s.Slow.Period = *ov.SlowTimeout
	}
	if ov.LeakTimeout != nil {
		s.LeakTimeout = *ov.LeakTimeout
	}
	if ov.Threads != nil {
		s.ThreadsRequired = *ov.Threads
	}
	if ov.Group != nil {
		s.Group = *ov.Group
	}
	if ov.Args != nil {
		if args, err := shellquote.Split(*ov.Args); err == nil {
			s.ExtraArgs = args
		}
	}
}
