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
	"os"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog"
	"k8s.io/utils/clock"
)

// ExitError carries the exit code of a measured command that failed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "command exited with code " + strconv.Itoa(e.Code)
}

func newExecCommand(opts *Options) *cobra.Command {
	var clk clock.PassiveClock = clock.RealClock{}
	return &cobra.Command{
		Use:     "exec -- COMMAND [ARGS...]",
		Short:   "Count events of a command and its children",
		Example: `  PERF_EVENTS=PERF_COUNT_HW_CACHE_DTLB:MISS perfmon exec -- sort -n data.txt`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := opts.printer(opts.Stderr)
			if err != nil {
				return err
			}
			session, err := opts.session()
			if err != nil {
				return err
			}

			child := exec.Command(args[0], args[1:]...)
			child.Stdin = os.Stdin
			child.Stdout = opts.Stdout
			child.Stderr = opts.Stderr

			start := clk.Now()
			session.Begin()
			runErr := child.Run()
			results, err := session.End()
			elapsed := clk.Since(start)
			if err != nil {
				return err
			}
			if err := printer.Results(results, elapsed); err != nil {
				return err
			}

			if exitErr, ok := runErr.(*exec.ExitError); ok {
				klog.V(1).Infof("%s exited with %v", args[0], exitErr)
				return &ExitError{Code: exitErr.ExitCode()}
			}
			return errors.Wrapf(runErr, "unable to run %s", args[0])
		},
	}
}
