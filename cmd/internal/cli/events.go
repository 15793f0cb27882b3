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

package cli

import (
	"github.com/google/perfmon/cmd/internal/output"
	"github.com/google/perfmon/perf"

	"github.com/spf13/cobra"
	"k8s.io/klog"
)

func newEventsCommand(opts *Options) *cobra.Command {
	var sysfs string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List known events and the PMUs of this machine",
		Long: `List the event names the built-in encoder understands, the PMUs in sysfs
and, for raw events of the configuration, the PMU their type refers to.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := opts.printer(opts.Stdout)
			if err != nil {
				return err
			}
			report := output.HostReport{
				Libpfm: perf.LibpfmEnabled,
				Events: perf.KnownEvents(),
			}
			support, err := opts.CheckSupport()
			if err != nil {
				return err
			}
			report.KernelRelease = support.KernelRelease
			report.Usable = support.Usable()
			if support.ParanoidKnown {
				paranoid := support.Paranoid
				report.Paranoid = &paranoid
			}
			report.PMUs, err = perf.ListPMUs(sysfs)
			if err != nil {
				klog.Warningf("Unable to list PMUs: %v", err)
			}

			events, err := opts.events()
			if err != nil {
				return err
			}
			for _, event := range events.Raw.NonGrouped {
				raw := output.RawEventPMU{Name: string(event.Name), Type: event.Type}
				if pmu, err := perf.FindPMU(report.PMUs, event.Type); err == nil {
					raw.PMU = pmu.Name
				} else {
					klog.Warningf("Raw event %s: %v", event.Name, err)
				}
				report.RawEvents = append(report.RawEvents, raw)
			}
			return printer.Host(&report)
		},
	}
	cmd.Flags().StringVar(&sysfs, "sysfs", perf.SystemDevicesPath, "Directory listing event sources")
	return cmd
}
