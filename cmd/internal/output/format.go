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

// Package output renders measurement results for the perfmon command.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/perfmon"
	"github.com/google/perfmon/perf"
	"github.com/google/perfmon/workload"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch format := Format(strings.ToLower(s)); format {
	case FormatText, FormatJSON, FormatYAML:
		return format, nil
	}
	return "", errors.Errorf("unknown output format %q, expected text, json or yaml", s)
}

// Printer writes results in one format, coloring text output when w is a
// terminal.
type Printer struct {
	w      io.Writer
	format Format
	event  *color.Color
	value  *color.Color
	header *color.Color
}

func NewPrinter(w io.Writer, format Format, noColor bool) *Printer {
	p := &Printer{
		w:      w,
		format: format,
		event:  color.New(color.FgCyan),
		value:  color.New(color.FgGreen, color.Bold),
		header: color.New(color.FgMagenta, color.Bold),
	}
	for _, c := range []*color.Color{p.event, p.value, p.header} {
		if noColor || !isTerminal(w) {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type resultEntry struct {
	Event string `json:"event" yaml:"event"`
	Count uint64 `json:"count" yaml:"count"`
}

func sortedEntries(results perfmon.Results) []resultEntry {
	entries := make([]resultEntry, 0, len(results))
	for event, count := range results {
		entries = append(entries, resultEntry{Event: event, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Event < entries[j].Event })
	return entries
}

// Results prints a single measurement.
func (p *Printer) Results(results perfmon.Results, elapsed time.Duration) error {
	switch p.format {
	case FormatJSON:
		return p.json(struct {
			ElapsedNs int64         `json:"elapsed_ns"`
			Events    []resultEntry `json:"events"`
		}{elapsed.Nanoseconds(), sortedEntries(results)})
	case FormatYAML:
		return p.yaml(struct {
			ElapsedNs int64         `yaml:"elapsed_ns"`
			Events    []resultEntry `yaml:"events"`
		}{elapsed.Nanoseconds(), sortedEntries(results)})
	}

	tw := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', tabwriter.AlignRight)
	for _, entry := range sortedEntries(results) {
		fmt.Fprintf(tw, "%s\t  %s\t\n", p.value.Sprint(entry.Count), p.event.Sprint(entry.Event))
	}
	fmt.Fprintf(tw, "%s\t  %s\t\n", p.value.Sprint(elapsed), "elapsed")
	return tw.Flush()
}

// Report prints the summary of a repeated measurement.
func (p *Printer) Report(report *workload.Report) error {
	switch p.format {
	case FormatJSON:
		return p.json(report)
	case FormatYAML:
		return p.yaml(report)
	}

	fmt.Fprintf(p.w, "%s %s, %d iterations\n\n", p.header.Sprint("workload"), report.Workload, report.Iterations)
	tw := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "min\tmean\tp50\tp90\tp99\tmax\ttotal\t  event\t")
	for _, event := range report.EventNames() {
		s := report.Events[event]
		fmt.Fprintf(tw, "%d\t%.1f\t%d\t%d\t%d\t%d\t%d\t  %s\t\n", s.Min, s.Mean, s.P50, s.P90, s.P99, s.Max, s.Total, p.event.Sprint(event))
	}
	e := report.Elapsed
	fmt.Fprintf(tw, "%v\t%v\t%v\t%v\t%v\t%v\t%v\t  %s\t\n",
		time.Duration(e.Min), time.Duration(e.Mean), time.Duration(e.P50), time.Duration(e.P90),
		time.Duration(e.P99), time.Duration(e.Max), time.Duration(e.Total), "elapsed")
	return tw.Flush()
}

// HostReport describes what the host supports.
type HostReport struct {
	KernelRelease string        `json:"kernel_release" yaml:"kernel_release"`
	Paranoid      *int          `json:"perf_event_paranoid,omitempty" yaml:"perf_event_paranoid,omitempty"`
	Usable        bool          `json:"usable" yaml:"usable"`
	Libpfm        bool          `json:"libpfm" yaml:"libpfm"`
	Events        []string      `json:"events" yaml:"events"`
	PMUs          []perf.PMU    `json:"pmus" yaml:"pmus"`
	RawEvents     []RawEventPMU `json:"raw_events,omitempty" yaml:"raw_events,omitempty"`
}

// RawEventPMU names the PMU a configured raw event is counted on. PMU is
// empty when no PMU has the event's type.
type RawEventPMU struct {
	Name string `json:"name" yaml:"name"`
	Type uint32 `json:"type" yaml:"type"`
	PMU  string `json:"pmu" yaml:"pmu"`
}

// Host prints a HostReport.
func (p *Printer) Host(report *HostReport) error {
	switch p.format {
	case FormatJSON:
		return p.json(report)
	case FormatYAML:
		return p.yaml(report)
	}

	paranoid := "unknown"
	if report.Paranoid != nil {
		paranoid = fmt.Sprint(*report.Paranoid)
	}
	fmt.Fprintf(p.w, "%s %s\n", p.header.Sprint("kernel"), report.KernelRelease)
	fmt.Fprintf(p.w, "%s %s\n", p.header.Sprint("perf_event_paranoid"), paranoid)
	fmt.Fprintf(p.w, "%s %t\n", p.header.Sprint("usable"), report.Usable)
	fmt.Fprintf(p.w, "%s %t\n\n", p.header.Sprint("libpfm"), report.Libpfm)

	fmt.Fprintln(p.w, p.header.Sprint("events"))
	for _, event := range report.Events {
		fmt.Fprintf(p.w, "  %s\n", p.event.Sprint(event))
	}
	if len(report.PMUs) != 0 {
		fmt.Fprintf(p.w, "\n%s\n", p.header.Sprint("pmus"))
		tw := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "  name\ttype\tcpus")
		for _, pmu := range report.PMUs {
			fmt.Fprintf(tw, "  %s\t%d\t%d\n", p.event.Sprint(pmu.Name), pmu.Type, len(pmu.CPUs))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if len(report.RawEvents) == 0 {
		return nil
	}
	fmt.Fprintf(p.w, "\n%s\n", p.header.Sprint("raw events"))
	tw := tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
	for _, raw := range report.RawEvents {
		pmu := raw.PMU
		if pmu == "" {
			pmu = "unknown"
		}
		fmt.Fprintf(tw, "  %s\ttype %d\t%s\n", p.event.Sprint(raw.Name), raw.Type, pmu)
	}
	return tw.Flush()
}

func (p *Printer) json(v interface{}) error {
	encoder := json.NewEncoder(p.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (p *Printer) yaml(v interface{}) error {
	encoder := yaml.NewEncoder(p.w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
