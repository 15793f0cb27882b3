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
	"math"
	"strings"

	"github.com/google/perfmon/metrics"
	"github.com/google/perfmon/workload"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"k8s.io/klog"
)

type benchOptions struct {
	workload    string
	size        string
	iterations  int
	seed        int64
	metricsFile string
	denyEvents  []string
}

func newBenchCommand(opts *Options) *cobra.Command {
	bench := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Count events of a built-in workload",
		Example: `  perfmon bench --workload walk --size 16M --events PERF_COUNT_HW_CACHE_DTLB:MISS
  perfmon bench --workload sort --iterations 50 -o json --metrics_file sort.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts, bench)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&bench.workload, "workload", "sort", "Workload to run: "+strings.Join(workload.Names, ", "))
	flags.StringVar(&bench.size, "size", "512k", "Number of elements the workload operates on, e.g. 1M or 65536")
	flags.IntVar(&bench.iterations, "iterations", 10, "Number of measured runs")
	flags.Int64Var(&bench.seed, "seed", 1, "Seed for the workload input")
	flags.StringVar(&bench.metricsFile, "metrics_file", "", "Write Prometheus metrics of all runs to this file")
	flags.StringSliceVar(&bench.denyEvents, "deny_events", nil, "Regular expressions of events to leave out of the metrics file")
	return cmd
}

func parseSize(size string) (int, error) {
	elements, err := units.FromHumanSize(size)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", size)
	}
	if elements <= 0 || elements > math.MaxInt32 {
		return 0, errors.Errorf("size %q is out of range", size)
	}
	return int(elements), nil
}

func runBench(opts *Options, bench *benchOptions) error {
	printer, err := opts.printer(opts.Stdout)
	if err != nil {
		return err
	}
	size, err := parseSize(bench.size)
	if err != nil {
		return err
	}
	w, err := workload.New(bench.workload, size, bench.seed)
	if err != nil {
		return err
	}

	var recorder *metrics.PerfRecorder
	var runRecorder workload.Recorder
	if bench.metricsFile != "" {
		denyList, err := metrics.NewDenyList(bench.denyEvents)
		if err != nil {
			return err
		}
		recorder = metrics.NewPerfRecorder(denyList)
		runRecorder = recorder
	}

	session, err := opts.session()
	if err != nil {
		return err
	}
	klog.V(1).Infof("Running %s on %d elements, %d iterations", w.Name(), size, bench.iterations)
	report, err := workload.NewRunner(session, runRecorder).Run(w, bench.iterations)
	if err != nil {
		return err
	}
	if err := printer.Report(report); err != nil {
		return err
	}

	if recorder == nil {
		return nil
	}
	registry := prometheus.NewRegistry()
	if err := registry.Register(recorder); err != nil {
		return errors.Wrap(err, "unable to register perf metrics")
	}
	return metrics.WriteTextFile(registry, bench.metricsFile)
}
