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

package main

import (
	"flag"
	"strings"

	"github.com/coreos/anvil/system"
)

// Options bundles the flags anvil's run command accepts. It mirrors
// harness.Options's FlagSet(prefix, errorHandling) pattern: a plain struct
// with defaults applied by init() and a method that wires it into a
// *flag.FlagSet, which main.go then merges into cobra's pflag set.
type Options struct {
	// BinDir holds the already-built test binaries to discover and run.
	BinDir string

	// ProfilePath is the YAML profile to load; empty means built-in
	// defaults with no overrides.
	ProfilePath string

	// Match restricts discovered tests to names containing this substring.
	Match string

	// Capacity is the global thread budget; scheduler.Options wants a
	// uint32, but flag has no UintVar for anything narrower than uint.
	Capacity  uint
	NoCapture bool
	FailFast  bool

	// JSONOutput, if set, is a file path to write a JSONSummary to once
	// the run finishes.
	JSONOutput string
}

// FlagSet can be used to set up options via command line flags. An
// optional prefix can be prepended to each flag. Defaults can be specified
// prior to calling FlagSet.
func (o *Options) FlagSet(prefix string, errorHandling flag.ErrorHandling) *flag.FlagSet {
	o.init()
	name := strings.Trim(prefix, ".-")
	f := flag.NewFlagSet(name, errorHandling)
	f.StringVar(&o.BinDir, prefix+"bin-dir", o.BinDir,
		"directory of already-built test binaries to run")
	f.StringVar(&o.ProfilePath, prefix+"profile", o.ProfilePath,
		"path to a YAML profile (default settings, no overrides)")
	f.StringVar(&o.Match, prefix+"run", o.Match,
		"run only tests whose name contains `substring`")
	f.UintVar(&o.Capacity, prefix+"capacity", o.Capacity,
		"global thread budget `n`")
	f.BoolVar(&o.NoCapture, prefix+"no-capture", o.NoCapture,
		"run with a single global thread and let tests inherit stdout/stderr")
	f.BoolVar(&o.FailFast, prefix+"fail-fast", o.FailFast,
		"cancel the run after the first failing test")
	f.StringVar(&o.JSONOutput, prefix+"json-output", o.JSONOutput,
		"write a JSON run summary to `file`")
	return f
}

// init fills in any default values that shouldn't be the zero value.
func (o *Options) init() {
	if o.Capacity == 0 {
		if n, err := system.GetProcessors(); err == nil && n > 0 {
			o.Capacity = n
		} else {
			o.Capacity = 1
		}
	}
}
