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

// Package testlist holds the immutable test-instance data model: the set of
// tests a run will execute, partitioned by binary, together with the
// per-test settings resolved from a profile before scheduling begins.
package testlist

import (
	"fmt"

	"github.com/pkg/errors"
)

// Platform distinguishes where a binary was built to run.
type Platform int

const (
	PlatformHost Platform = iota
	PlatformTarget
)

// Binary is the containing binary-level metadata for a set of test
// instances. Binary identifiers are unique within a List.
type Binary struct {
	ID       string
	Path     string
	Platform Platform

	// NonTest marks a helper binary that exposes no runnable test cases
	// (e.g. a setup script); it still occupies a Binary entry so tooling
	// that walks binaries uniformly doesn't need a special case.
	NonTest bool

	// Cwd, if set, overrides the working directory for every instance in
	// this binary; otherwise instances default to the binary's directory.
	Cwd string
}

// MismatchReason explains why a test's FilterMatch is Mismatch.
type MismatchReason int

const (
	MismatchNone MismatchReason = iota
	MismatchBinary
	MismatchPlatform
	MismatchExpression
	MismatchString
	MismatchDefaultFilter
)

func (r MismatchReason) String() string {
	switch r {
	case MismatchBinary:
		return "binary"
	case MismatchPlatform:
		return "platform"
	case MismatchExpression:
		return "expression"
	case MismatchString:
		return "string"
	case MismatchDefaultFilter:
		return "default-filter"
	default:
		return "none"
	}
}

// FilterMatch is the verdict of evaluating a test against the run's filter.
// It is fixed at construction time and never recomputed.
type FilterMatch struct {
	Matched bool
	Reason  MismatchReason
}

func Match() FilterMatch { return FilterMatch{Matched: true} }

func Mismatch(reason MismatchReason) FilterMatch {
	return FilterMatch{Matched: false, Reason: reason}
}

// Instance is an immutable handle to a single test case. Its lifetime is
// the run: it is never mutated once the List is constructed.
type Instance struct {
	binary      *Binary
	name        string
	workdir     string
	env         []string
	filterMatch FilterMatch
}

func NewInstance(binary *Binary, name, workdir string, env []string, fm FilterMatch) *Instance {
	return &Instance{
		binary:      binary,
		name:        name,
		workdir:     workdir,
		env:         env,
		filterMatch: fm,
	}
}

func (i *Instance) Binary() *Binary         { return i.binary }
func (i *Instance) Name() string            { return i.name }
func (i *Instance) WorkDir() string         { return i.workdir }
func (i *Instance) Env() []string           { return i.env }
func (i *Instance) FilterMatch() FilterMatch { return i.filterMatch }

// BinaryID identifies the test for settings resolution and logging; it is
// stable across runs.
func (i *Instance) BinaryID() string { return i.binary.ID }

// Query is the tuple a profile's override evaluator matches against.
type Query struct {
	Package  string
	Binary   string
	Name     string
	Platform Platform
}

// SkipCounts categorizes tests that will not be attempted.
type SkipCounts struct {
	Mismatch int
	NonTest  int
}

// List is a set of test instances partitioned into binaries. It is built
// once by a collaborator (the build-tool invoker) and never mutated again
// once a run begins.
type List struct {
	binaries  []*Binary
	instances []*Instance
}

// NewList validates binary-identifier uniqueness and returns a List.
func NewList(binaries []*Binary, instances []*Instance) (*List, error) {
	seen := make(map[string]bool, len(binaries))
	for _, b := range binaries {
		if seen[b.ID] {
			return nil, errors.Errorf("testlist: duplicate binary id %q", b.ID)
		}
		seen[b.ID] = true
	}
	return &List{binaries: binaries, instances: instances}, nil
}

// Binaries returns the binaries in construction order.
func (l *List) Binaries() []*Binary { return l.binaries }

// Instances returns every test instance in construction (list) order. This
// is the admission order the scheduler (C8) pulls from.
func (l *List) Instances() []*Instance { return l.instances }

// RunCount returns the number of tests that will attempt to run, i.e. those
// whose FilterMatch is Match.
func (l *List) RunCount() int {
	n := 0
	for _, i := range l.instances {
		if i.filterMatch.Matched {
			n++
		}
	}
	return n
}

// SkipCounts returns categorized counts of tests that will not run.
func (l *List) SkipCounts() SkipCounts {
	var sc SkipCounts
	for _, i := range l.instances {
		if i.filterMatch.Matched {
			continue
		}
		if i.binary.NonTest {
			sc.NonTest++
		} else {
			sc.Mismatch++
		}
	}
	return sc
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s::%s", i.binary.ID, i.name)
}
