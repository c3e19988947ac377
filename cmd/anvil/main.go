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

// Command anvil is a thin harness for exercising the scheduling engine: it
// discovers already-built test binaries under a directory, loads a YAML
// profile, and runs them through package scheduler. It is not a
// reimplementation of the build-tool invocation or CLI/reporter-formatting
// layers spec.md declares out of scope.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/spf13/cobra"

	"github.com/coreos/anvil/eventbus"
	"github.com/coreos/anvil/profile"
	"github.com/coreos/anvil/reporter"
	"github.com/coreos/anvil/scheduler"
	"github.com/coreos/anvil/sigsource"
	"github.com/coreos/anvil/testlist"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/anvil", "anvil")

// Exit codes per spec.md §6's "exit code contract for the embedding CLI".
const (
	exitSuccess     = 0
	exitTestFailure = 1
	exitCancelled   = 2
	exitNoTestsRun  = 3
)

var opts Options

var root = &cobra.Command{
	Use:          "anvil",
	Short:        "Run a directory of test binaries under a weighted, retrying scheduler",
	RunE:         runRoot,
	SilenceUsage: true,
}

func init() {
	root.Flags().AddGoFlagSet(opts.FlagSet("", flag.ContinueOnError))
}

func main() {
	if err := root.Execute(); err != nil {
		plog.Errorf("anvil: %v", err)
		os.Exit(exitTestFailure)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if opts.BinDir == "" {
		return fmt.Errorf("anvil: --bin-dir is required")
	}

	list, err := discover(opts.BinDir, opts.Match)
	if err != nil {
		return err
	}

	prof, err := loadProfile(opts.ProfilePath)
	if err != nil {
		return err
	}

	sinks := reporter.Sinks{consoleSink}
	var summary *reporter.JSONSummary
	if opts.JSONOutput != "" {
		var jsonSink reporter.Sink
		summary, jsonSink = reporter.NewJSONSummary()
		sinks = append(sinks, jsonSink)
	}

	sched := scheduler.New(scheduler.Options{
		Capacity:  uint32(opts.Capacity),
		NoCapture: opts.NoCapture,
		FailFast:  opts.FailFast,
		Settings:  settingsFunc(prof),
		Sink:      eventbus.Sink(sinks.Report),
		Signals:   sigsource.New(sigsource.Standard),
	})

	stats, runErr := sched.Run(list)

	if summary != nil {
		if err := summary.WriteFile(".", opts.JSONOutput); err != nil {
			plog.Errorf("anvil: writing json summary: %v", err)
		}
	}

	if runErr != nil {
		var re *eventbus.RunError
		if errors.As(runErr, &re) && re.Signal {
			plog.Errorf("anvil: %v", runErr)
			os.Exit(exitCancelled)
		}
		return runErr
	}

	os.Exit(exitCode(stats, sched.CancelState()))
	return nil
}

// settingsFunc binds a loaded profile into the scheduler.SettingsFunc
// shape, resolving each instance against its binary ID and name.
func settingsFunc(prof *profile.Profile) scheduler.SettingsFunc {
	return func(inst *testlist.Instance) testlist.Settings {
		query := testlist.Query{
			Binary:   inst.BinaryID(),
			Name:     inst.Name(),
			Platform: inst.Binary().Platform,
		}
		return prof.Resolve(query, nil)
	}
}

// loadProfile reads path, falling back to built-in defaults with no
// overrides when path is empty.
func loadProfile(path string) (*profile.Profile, error) {
	if path == "" {
		return &profile.Profile{Default: profile.DefaultSettings()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("anvil: reading profile %q: %w", path, err)
	}
	return profile.Load(data)
}

// exitCode implements spec.md §6's exit code contract.
func exitCode(stats testlist.RunStats, cancelReason testlist.CancelReason) int {
	switch {
	case stats.InitialRunCount == 0:
		return exitNoTestsRun
	case cancelReason == testlist.CancelSignal || cancelReason == testlist.CancelInterrupt:
		return exitCancelled
	case stats.Failed > 0 || stats.TimedOut > 0 || stats.ExecFailed > 0:
		return exitTestFailure
	default:
		return exitSuccess
	}
}
