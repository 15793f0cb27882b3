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

package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog"
)

const eventLabelName = "event"

// Results mirrors perfmon.Results to keep this package free of the
// measurement session.
type Results = map[string]uint64

type eventTotals struct {
	total uint64
	last  uint64
}

// perfMetric describes one metric family exported for every recorded event.
type perfMetric struct {
	name      string
	help      string
	valueType prometheus.ValueType
	getValue  func(totals eventTotals) float64
}

func (metric *perfMetric) desc() *prometheus.Desc {
	return prometheus.NewDesc(metric.name, metric.help, []string{eventLabelName}, nil)
}

// PerfRecorder accumulates measurement results and exposes them as
// Prometheus metrics. It implements prometheus.Collector and is safe for
// concurrent use.
type PerfRecorder struct {
	lock         sync.Mutex
	events       map[string]*eventTotals
	denyList     *DenyList
	measurements prometheus.Counter
	duration     prometheus.Histogram
	denied       prometheus.Counter
	perfMetrics  []perfMetric
}

// NewPerfRecorder returns a recorder dropping events matched by denyList,
// which may be nil.
func NewPerfRecorder(denyList *DenyList) *PerfRecorder {
	return &PerfRecorder{
		events:   map[string]*eventTotals{},
		denyList: denyList,
		measurements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "perfmon",
			Name:      "measurements_total",
			Help:      "Number of recorded measurement intervals.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "perfmon",
			Name:      "measurement_duration_seconds",
			Help:      "Wall time of recorded measurement intervals.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "perfmon",
			Name:      "denied_events_total",
			Help:      "Number of event values dropped by the deny list.",
		}),
		perfMetrics: []perfMetric{
			{
				name:      "perfmon_event_count_total",
				help:      "Sum of event counts over all recorded measurement intervals.",
				valueType: prometheus.CounterValue,
				getValue:  func(totals eventTotals) float64 { return float64(totals.total) },
			},
			{
				name:      "perfmon_event_count_last",
				help:      "Event count of the latest recorded measurement interval.",
				valueType: prometheus.GaugeValue,
				getValue:  func(totals eventTotals) float64 { return float64(totals.last) },
			},
		},
	}
}

// Record adds the results of one measurement interval that took elapsed.
func (r *PerfRecorder) Record(results Results, elapsed time.Duration) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for event, value := range results {
		if r.denyList != nil && r.denyList.IsDenied(event) {
			klog.V(4).Infof("Not recording denied event %s", event)
			r.denied.Inc()
			continue
		}
		totals, ok := r.events[event]
		if !ok {
			totals = &eventTotals{}
			r.events[event] = totals
		}
		totals.total += value
		totals.last = value
	}
	r.measurements.Inc()
	r.duration.Observe(elapsed.Seconds())
}

// Describe implements prometheus.Collector.
func (r *PerfRecorder) Describe(ch chan<- *prometheus.Desc) {
	r.measurements.Describe(ch)
	r.duration.Describe(ch)
	r.denied.Describe(ch)
	for _, metric := range r.perfMetrics {
		ch <- metric.desc()
	}
}

// Collect implements prometheus.Collector.
func (r *PerfRecorder) Collect(ch chan<- prometheus.Metric) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.measurements.Collect(ch)
	r.duration.Collect(ch)
	r.denied.Collect(ch)

	events := make([]string, 0, len(r.events))
	for event := range r.events {
		events = append(events, event)
	}
	sort.Strings(events)
	for _, metric := range r.perfMetrics {
		desc := metric.desc()
		for _, event := range events {
			ch <- prometheus.MustNewConstMetric(desc, metric.valueType, metric.getValue(*r.events[event]), event)
		}
	}
}
