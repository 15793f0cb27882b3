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

package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/perfmon"
	"github.com/google/perfmon/workload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	for input, expected := range map[string]Format{"text": FormatText, "JSON": FormatJSON, "yaml": FormatYAML} {
		format, err := ParseFormat(input)
		assert.Nil(t, err)
		assert.Equal(t, expected, format)
	}
	_, err := ParseFormat("xml")
	assert.NotNil(t, err)
}

func TestResultsText(t *testing.T) {
	buf := &bytes.Buffer{}
	printer := NewPrinter(buf, FormatText, false)

	err := printer.Results(perfmon.Results{"b_event": 2, "a_event": 1234}, 1500*time.Millisecond)

	require.Nil(t, err)
	out := buf.String()
	// Not a terminal, no escape sequences.
	assert.NotContains(t, out, "\x1b[")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a_event")), bytes.Index(buf.Bytes(), []byte("b_event")))
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "1.5s")
}

func TestResultsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	printer := NewPrinter(buf, FormatJSON, true)

	require.Nil(t, printer.Results(perfmon.Results{"b": 2, "a": 1}, time.Microsecond))

	assert.Equal(t, int64(1000), gjson.Get(buf.String(), "elapsed_ns").Int())
	assert.Equal(t, "a", gjson.Get(buf.String(), "events.0.event").String())
	assert.Equal(t, int64(2), gjson.Get(buf.String(), "events.1.count").Int())
}

func TestReportYAML(t *testing.T) {
	buf := &bytes.Buffer{}
	printer := NewPrinter(buf, FormatYAML, true)
	report := &workload.Report{
		Workload:   "sort",
		Iterations: 2,
		Events:     map[string]workload.Summary{"cycles": {Total: 30, Min: 10, Max: 20, Mean: 15}},
	}

	require.Nil(t, printer.Report(report))

	var decoded workload.Report
	require.Nil(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *report, decoded)
}

func TestReportText(t *testing.T) {
	buf := &bytes.Buffer{}
	printer := NewPrinter(buf, FormatText, true)
	report := &workload.Report{
		Workload:   "walk",
		Iterations: 1,
		Elapsed:    workload.Summary{Total: 2000, Min: 2000, Max: 2000, Mean: 2000},
		Events:     map[string]workload.Summary{"PERF_COUNT_HW_CACHE_DTLB:MISS": {Total: 7, Min: 7, Max: 7, Mean: 7}},
	}

	require.Nil(t, printer.Report(report))

	assert.Contains(t, buf.String(), "workload walk, 1 iterations")
	assert.Contains(t, buf.String(), "PERF_COUNT_HW_CACHE_DTLB:MISS")
	assert.Contains(t, buf.String(), "2µs")
}

func TestHostText(t *testing.T) {
	buf := &bytes.Buffer{}
	printer := NewPrinter(buf, FormatText, true)

	require.Nil(t, printer.Host(&HostReport{KernelRelease: "6.1.0", Usable: true, Events: []string{"PERF_COUNT_HW_CPU_CYCLES"}}))

	assert.Contains(t, buf.String(), "kernel 6.1.0")
	assert.Contains(t, buf.String(), "perf_event_paranoid unknown")
	assert.Contains(t, buf.String(), "  PERF_COUNT_HW_CPU_CYCLES")
}
