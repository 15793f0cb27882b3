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

package workload

import (
	"sort"
	"time"

	"github.com/google/perfmon"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pkg/errors"
	"k8s.io/klog"
	"k8s.io/utils/clock"
)

const (
	histogramMin     = 1
	histogramMax     = int64(1) << 52
	histogramSigFigs = 3
)

// Measurer is a measurement session, usually a *perfmon.Session.
type Measurer interface {
	Begin()
	End() (perfmon.Results, error)
}

// Recorder receives every measured interval, see metrics.PerfRecorder.
type Recorder interface {
	Record(results map[string]uint64, elapsed time.Duration)
}

// Summary describes the distribution of one event over all iterations.
type Summary struct {
	Total uint64  `json:"total" yaml:"total"`
	Min   int64   `json:"min" yaml:"min"`
	Mean  float64 `json:"mean" yaml:"mean"`
	P50   int64   `json:"p50" yaml:"p50"`
	P90   int64   `json:"p90" yaml:"p90"`
	P99   int64   `json:"p99" yaml:"p99"`
	Max   int64   `json:"max" yaml:"max"`
}

// Report is the outcome of Runner.Run. Elapsed is in nanoseconds.
type Report struct {
	Workload   string             `json:"workload" yaml:"workload"`
	Iterations int                `json:"iterations" yaml:"iterations"`
	Elapsed    Summary            `json:"elapsed_ns" yaml:"elapsed_ns"`
	Events     map[string]Summary `json:"events" yaml:"events"`
}

// EventNames returns the measured events in lexical order.
func (r *Report) EventNames() []string {
	names := make([]string, 0, len(r.Events))
	for name := range r.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Runner struct {
	measurer Measurer
	clock    clock.PassiveClock
	recorder Recorder
}

// NewRunner creates a runner. recorder may be nil.
func NewRunner(measurer Measurer, recorder Recorder) *Runner {
	return &Runner{measurer: measurer, clock: clock.RealClock{}, recorder: recorder}
}

type distribution struct {
	histogram *hdrhistogram.Histogram
	total     uint64
}

func newDistribution() *distribution {
	return &distribution{histogram: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)}
}

func (d *distribution) record(value uint64) {
	d.total += value
	clamped := int64(histogramMax)
	if value < uint64(histogramMax) {
		clamped = int64(value)
	}
	if err := d.histogram.RecordValue(clamped); err != nil {
		klog.Warningf("Unable to record %d: %v", value, err)
	}
}

func (d *distribution) summary() Summary {
	return Summary{
		Total: d.total,
		Min:   d.histogram.Min(),
		Mean:  d.histogram.Mean(),
		P50:   d.histogram.ValueAtQuantile(50),
		P90:   d.histogram.ValueAtQuantile(90),
		P99:   d.histogram.ValueAtQuantile(99),
		Max:   d.histogram.Max(),
	}
}

// Run measures iterations executions of w.
func (r *Runner) Run(w Workload, iterations int) (*Report, error) {
	if iterations <= 0 {
		return nil, errors.Errorf("iterations must be positive, got %d", iterations)
	}
	elapsed := newDistribution()
	events := map[string]*distribution{}

	for i := 0; i < iterations; i++ {
		w.Prepare()
		start := r.clock.Now()
		r.measurer.Begin()
		w.Run()
		results, err := r.measurer.End()
		took := r.clock.Since(start)
		if err != nil {
			return nil, errors.Wrapf(err, "iteration %d of %s", i, w.Name())
		}
		klog.V(3).Infof("Iteration %d of %s took %v: %v", i, w.Name(), took, results)

		elapsed.record(uint64(took.Nanoseconds()))
		for event, value := range results {
			d, ok := events[event]
			if !ok {
				d = newDistribution()
				events[event] = d
			}
			d.record(value)
		}
		if r.recorder != nil {
			r.recorder.Record(results, took)
		}
	}

	report := &Report{
		Workload:   w.Name(),
		Iterations: iterations,
		Elapsed:    elapsed.summary(),
		Events:     make(map[string]Summary, len(events)),
	}
	for event, d := range events {
		report.Events[event] = d.summary()
	}
	return report, nil
}
