// Copyright 2016 Google Inc. All Rights Reserved.
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

// flag_check verifies that no package of this module registers flags on
// flag.CommandLine. Flags of the perfmon command are scoped to its cobra
// commands.
package main

import (
	"flag"
	"fmt"
	"os"

	// Import everything to verify that flags are not added to command line.

	_ "github.com/google/perfmon"
	_ "github.com/google/perfmon/cmd/internal/cli"
	_ "github.com/google/perfmon/cmd/internal/output"
	_ "github.com/google/perfmon/metrics"
	_ "github.com/google/perfmon/perf"
	_ "github.com/google/perfmon/workload"
)

func main() {
	hasLeak := false
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		fmt.Fprintf(os.Stderr, "Leaking flag %q: %q\n", f.Name, f.Usage)
		hasLeak = true
	})

	if hasLeak {
		os.Exit(1)
	}
}
