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
	"bytes"
	"flag"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/perfmon/perf"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// countingBackend reports every prepared event as having advanced by the
// number of completed intervals.
type countingBackend struct {
	names     []string
	intervals uint64
	err       error
}

func (b *countingBackend) Prepare(events perf.Events) error {
	if b.err != nil {
		return b.err
	}
	b.names = events.Names()
	if len(b.names) == 0 {
		for _, event := range perf.DefaultEvents {
			b.names = append(b.names, string(event))
		}
	}
	return nil
}

func (b *countingBackend) Begin() {}

func (b *countingBackend) End() []perf.Record {
	b.intervals++
	records := make([]perf.Record, len(b.names))
	for i, name := range b.names {
		records[i] = perf.Record{Name: []byte(name), Value: b.intervals * uint64(i+1)}
	}
	return records
}

func testCommand(backend perf.Backend, args ...string) (*bytes.Buffer, *bytes.Buffer, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	opts := &Options{
		Output:     "text",
		NewBackend: func() perf.Backend { return backend },
		CheckSupport: func() (perf.Support, error) {
			return perf.Support{KernelRelease: "5.15.0-91-generic", Paranoid: 2, ParanoidKnown: true}, nil
		},
		Stdout: stdout,
		Stderr: stderr,
	}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout, stderr, err
}

func TestBenchJSON(t *testing.T) {
	backend := &countingBackend{}
	stdout, _, err := testCommand(backend, "bench", "--workload", "sum", "--size", "1k", "--iterations", "4",
		"--events", "cycles,instructions", "-o", "json")
	require.Nil(t, err)

	out := stdout.String()
	assert.Equal(t, "sum", gjson.Get(out, "workload").String())
	assert.Equal(t, int64(4), gjson.Get(out, "iterations").Int())
	assert.Equal(t, uint64(1+2+3+4), gjson.Get(out, "events.cycles.total").Uint())
	assert.Equal(t, uint64(2*(1+2+3+4)), gjson.Get(out, "events.instructions.total").Uint())
	assert.Equal(t, int64(1), gjson.Get(out, "events.cycles.min").Int())
	assert.Equal(t, int64(4), gjson.Get(out, "events.cycles.max").Int())
	assert.True(t, gjson.Get(out, "elapsed_ns.total").Exists())
}

func TestBenchMetricsFile(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "bench.prom")
	_, _, err := testCommand(&countingBackend{}, "bench", "--workload", "sum", "--size", "64", "--iterations", "2",
		"--events", "cycles,instructions", "--metrics_file", metricsFile, "--deny_events", "^inst")
	require.Nil(t, err)

	contents, err := ioutil.ReadFile(metricsFile)
	require.Nil(t, err)
	assert.Contains(t, string(contents), `perfmon_event_count_total{event="cycles"} 3`)
	assert.NotContains(t, string(contents), `event="instructions"`)
	assert.Contains(t, string(contents), "perfmon_measurements_total 2")
}

func TestBenchDefaultEvents(t *testing.T) {
	stdout, _, err := testCommand(&countingBackend{}, "bench", "--workload", "sum", "--size", "16", "--iterations", "1", "-o", "yaml")
	require.Nil(t, err)
	for _, event := range perf.DefaultEvents {
		assert.Contains(t, stdout.String(), string(event)+":")
	}
}

func TestBenchText(t *testing.T) {
	stdout, _, err := testCommand(&countingBackend{}, "bench", "--workload", "walk", "--size", "128", "--iterations", "3",
		"--events", "PERF_COUNT_HW_CACHE_DTLB:MISS", "--no_color")
	require.Nil(t, err)
	assert.Contains(t, stdout.String(), "workload walk, 3 iterations")
	assert.Contains(t, stdout.String(), "PERF_COUNT_HW_CACHE_DTLB:MISS")
	assert.NotContains(t, stdout.String(), "\x1b[")
}

func TestBenchInvalidFlags(t *testing.T) {
	testCases := [][]string{
		{"bench", "--workload", "nope"},
		{"bench", "--size", "lots"},
		{"bench", "--size", "0"},
		{"bench", "--iterations", "0"},
		{"bench", "-o", "xml"},
		{"bench", "--metrics_file", "out.prom", "--deny_events", "("},
	}
	for _, args := range testCases {
		_, _, err := testCommand(&countingBackend{}, args...)
		assert.NotNil(t, err, "%v", args)
	}
}

func TestBenchPrepareFailure(t *testing.T) {
	_, _, err := testCommand(&countingBackend{err: errors.New("permission denied")}, "bench", "--size", "16")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestBenchConfigFile(t *testing.T) {
	stdout, _, err := testCommand(&countingBackend{}, "bench", "--workload", "sum", "--size", "16", "--iterations", "1",
		"--events", "cycles", "--perf_events_config", "../../../perf/testing/perf.json", "-o", "json")
	require.Nil(t, err)
	out := stdout.String()
	for _, event := range []string{"cycles", "instructions", "PERF_COUNT_HW_CACHE_DTLB:MISS", "instructions_retired"} {
		assert.True(t, gjson.Get(out, "events."+gjson.Escape(event)).Exists(), event)
	}
}

func TestExec(t *testing.T) {
	stdout, stderr, err := testCommand(&countingBackend{}, "exec", "--events", "cycles", "-o", "json", "--", "sh", "-c", "echo hello")
	require.Nil(t, err)
	assert.Equal(t, "hello\n", stdout.String())
	assert.Equal(t, "cycles", gjson.Get(stderr.String(), "events.0.event").String())
	assert.Equal(t, uint64(1), gjson.Get(stderr.String(), "events.0.count").Uint())
}

func TestExecExitCode(t *testing.T) {
	_, stderr, err := testCommand(&countingBackend{}, "exec", "--events", "cycles", "--", "sh", "-c", "exit 3")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	// Counts are reported even for failing commands.
	assert.Contains(t, stderr.String(), "cycles")
}

func TestExecMissingCommand(t *testing.T) {
	_, _, err := testCommand(&countingBackend{}, "exec", "--", "this-command-does-not-exist")
	assert.NotNil(t, err)

	_, _, err = testCommand(&countingBackend{}, "exec")
	assert.NotNil(t, err)
}

func TestEvents(t *testing.T) {
	sysfs := t.TempDir()
	cpu := filepath.Join(sysfs, "cpu")
	require.Nil(t, os.MkdirAll(cpu, 0755))
	require.Nil(t, ioutil.WriteFile(filepath.Join(cpu, "type"), []byte("4\n"), 0644))
	require.Nil(t, ioutil.WriteFile(filepath.Join(cpu, "cpumask"), []byte("0-3\n"), 0644))

	stdout, _, err := testCommand(&countingBackend{}, "events", "--sysfs", sysfs, "-o", "json")
	require.Nil(t, err)

	out := stdout.String()
	assert.Equal(t, "5.15.0-91-generic", gjson.Get(out, "kernel_release").String())
	assert.Equal(t, int64(2), gjson.Get(out, "perf_event_paranoid").Int())
	assert.True(t, gjson.Get(out, "usable").Bool())
	assert.Equal(t, perf.LibpfmEnabled, gjson.Get(out, "libpfm").Bool())
	assert.Equal(t, int64(len(perf.KnownEvents())), gjson.Get(out, "events.#").Int())
	assert.Equal(t, "cpu", gjson.Get(out, "pmus.0.name").String())
	assert.Equal(t, int64(4), gjson.Get(out, "pmus.0.type").Int())
	assert.Equal(t, int64(4), gjson.Get(out, "pmus.0.cpus.#").Int())
}

func TestEventsRawEventPMU(t *testing.T) {
	sysfs := t.TempDir()
	cpu := filepath.Join(sysfs, "cpu")
	require.Nil(t, os.MkdirAll(cpu, 0755))
	require.Nil(t, ioutil.WriteFile(filepath.Join(cpu, "type"), []byte("4"), 0644))

	stdout, _, err := testCommand(&countingBackend{}, "events", "--sysfs", sysfs,
		"--perf_events_config", "../../../perf/testing/perf.json", "-o", "json")
	require.Nil(t, err)

	out := stdout.String()
	assert.Equal(t, "instructions_retired", gjson.Get(out, "raw_events.0.name").String())
	assert.Equal(t, "cpu", gjson.Get(out, "raw_events.0.pmu").String())
}

func TestEventsMissingSysfs(t *testing.T) {
	stdout, _, err := testCommand(&countingBackend{}, "events", "--sysfs", "/this/does/not/exist")
	require.Nil(t, err)
	assert.Contains(t, stdout.String(), "PERF_COUNT_HW_CPU_CYCLES")
	assert.NotContains(t, stdout.String(), "pmus")
}

func TestNoGlobalFlags(t *testing.T) {
	newRootCommand(defaultOptions())
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		assert.True(t, strings.HasPrefix(f.Name, "test."), "leaking flag %q", f.Name)
	})
}

func TestKlogFlags(t *testing.T) {
	cmd := newRootCommand(defaultOptions())
	assert.NotNil(t, cmd.PersistentFlags().Lookup("v"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("logtostderr"))
}
