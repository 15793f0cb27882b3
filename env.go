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

package perfmon

import (
	"os"

	"github.com/google/perfmon/perf"
)

const (
	// EventsEnv holds a comma separated list of event names, e.g.
	// "PERF_COUNT_HW_CACHE_DTLB:MISS,PERF_COUNT_HW_CACHE_ITLB:MISS".
	EventsEnv = "PERF_EVENTS"
	// ConfigEnv optionally points to a JSON perf events configuration file.
	ConfigEnv = "PERF_EVENTS_CONFIG"
)

// EventsFromEnv builds the event configuration from the environment. An
// unset PERF_EVENTS is treated as an empty list.
func EventsFromEnv() (perf.Events, error) {
	events := perf.ParseEventList(os.Getenv(EventsEnv))
	configFile := os.Getenv(ConfigEnv)
	if configFile == "" {
		return events, nil
	}
	fromFile, err := perf.LoadConfig(configFile)
	if err != nil {
		return perf.Events{}, err
	}
	return events.Merge(fromFile), nil
}
