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
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/coreos/anvil/lang/natsort"
	"github.com/coreos/anvil/testlist"
)

// discover walks dir (non-recursively -- it holds already-built binaries,
// not a source tree) and turns every executable regular file into a
// testlist.Binary, listing its test cases by invoking it with the
// -test.list flag Go's testing package compiles into every `go test -c`
// binary. This is deliberately the minimal walk spec.md excludes the rest
// of (the build-tool invocation); it exists only so cmd/anvil has
// something to hand the scheduler.
func discover(dir, match string) (*testlist.List, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "anvil: reading bin-dir %q", dir)
	}
	// os.ReadDir already sorts lexically, which orders "bin10" before
	// "bin2"; sort naturally instead so admission order (list order,
	// spec.md's C8) matches what a human expects from the directory.
	sort.Slice(entries, func(i, j int) bool {
		return natsort.Less(entries[i].Name(), entries[j].Name())
	})

	var binaries []*testlist.Binary
	var instances []*testlist.Instance

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "anvil: statting %q", ent.Name())
		}
		if info.Mode()&0o111 == 0 {
			continue
		}

		path := filepath.Join(dir, ent.Name())
		bin := &testlist.Binary{ID: ent.Name(), Path: path, Platform: testlist.PlatformHost}

		names, err := listTestNames(path)
		if err != nil {
			// A binary that doesn't understand -test.list isn't a test
			// binary; record it as non-test so it still shows up in the
			// list's Binaries rather than silently vanishing. It has no
			// instances, so SkipCounts does not count it.
			bin.NonTest = true
			binaries = append(binaries, bin)
			continue
		}
		binaries = append(binaries, bin)

		for _, name := range names {
			fm := testlist.Match()
			if match != "" && !strings.Contains(name, match) {
				fm = testlist.Mismatch(testlist.MismatchString)
			}
			instances = append(instances, testlist.NewInstance(bin, name, "", os.Environ(), fm))
		}
	}

	return testlist.NewList(binaries, instances)
}

// listTestNames runs binary with -test.list=. and returns each printed
// line (one test name per line, per the testing package's contract).
func listTestNames(binary string) ([]string, error) {
	cmd := exec.Command(binary, "-test.list", ".")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "anvil: listing tests in %q", binary)
	}

	var names []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			names = append(names, line)
		}
	}
	return names, scanner.Err()
}
