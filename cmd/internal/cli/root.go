// Copyright 2026 Google Inc. All Rights Reserved.
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

// Package cli implements the perfmon command.
package cli

import (
	"flag"
	"io"
	"os"

	"github.com/google/perfmon"
	"github.com/google/perfmon/cmd/internal/output"
	"github.com/google/perfmon/perf"

	"github.com/spf13/cobra"
	"k8s.io/klog"
)

// Options are shared by all subcommands.
type Options struct {
	Events     string
	ConfigFile string
	Output     string
	NoColor    bool

	// NewBackend creates the counters measurements run against.
	NewBackend func() perf.Backend
	// CheckSupport inspects the host for the events command.
	CheckSupport func() (perf.Support, error)
	Stdout       io.Writer
	Stderr       io.Writer
}

func defaultOptions() *Options {
	return &Options{
		Events:       os.Getenv(perfmon.EventsEnv),
		ConfigFile:   os.Getenv(perfmon.ConfigEnv),
		Output:       string(output.FormatText),
		NewBackend:   func() perf.Backend { return perf.NewCounterBackend() },
		CheckSupport: perf.CheckSupport,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}

// NewRootCommand builds the perfmon command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultOptions())
}

func newRootCommand(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:   "perfmon",
		Short: "Count hardware performance events of programs and workloads",
		Long: `perfmon counts hardware performance events, such as cycles or TLB misses,
of a command or of a built-in workload.

Events are taken from --events (default $PERF_EVENTS) and from the JSON
configuration in --perf_events_config (default $PERF_EVENTS_CONFIG).`,
		SilenceUsage: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	root.PersistentFlags().AddGoFlagSet(klogFlags)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.Events, "events", opts.Events, "Comma separated perf events to count, defaults to $"+perfmon.EventsEnv)
	flags.StringVar(&opts.ConfigFile, "perf_events_config", opts.ConfigFile, "Path to a JSON file describing perf events, defaults to $"+perfmon.ConfigEnv)
	flags.StringVarP(&opts.Output, "output", "o", opts.Output, "Output format: text, json or yaml")
	flags.BoolVar(&opts.NoColor, "no_color", false, "Disable colored output")

	root.AddCommand(
		newExecCommand(opts),
		newBenchCommand(opts),
		newEventsCommand(opts),
	)
	return root
}

// events resolves the configured events, the file configuration is appended
// to the list.
func (o *Options) events() (perf.Events, error) {
	events := perf.ParseEventList(o.Events)
	if o.ConfigFile == "" {
		return events, nil
	}
	fromFile, err := perf.LoadConfig(o.ConfigFile)
	if err != nil {
		return perf.Events{}, err
	}
	return events.Merge(fromFile), nil
}

// session returns an initialized measurement session.
func (o *Options) session() (*perfmon.Session, error) {
	events, err := o.events()
	if err != nil {
		return nil, err
	}
	session := perfmon.NewSession(o.NewBackend())
	if err := session.Initialize(events); err != nil {
		return nil, err
	}
	return session, nil
}

func (o *Options) printer(w io.Writer) (*output.Printer, error) {
	format, err := output.ParseFormat(o.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format, o.NoColor), nil
}
