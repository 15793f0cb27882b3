// Copyright 2020 Google Inc. All Rights Reserved.
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

// Types related to handling perf events that are missing from unix package.
package perf

import (
	"io"
	"math"
)

// ReadFormat allows to read perf event's value for non-grouped events
// opened with PERF_FORMAT_TOTAL_TIME_ENABLED | PERF_FORMAT_TOTAL_TIME_RUNNING.
type ReadFormat struct {
	Value       uint64 /* The value of the event */
	TimeEnabled uint64 /* if PERF_FORMAT_TOTAL_TIME_ENABLED */
	TimeRunning uint64 /* if PERF_FORMAT_TOTAL_TIME_RUNNING */
}

// overflowed reports whether any of the fields wrapped into the sign bit.
func (r ReadFormat) overflowed() bool {
	return r.Value > math.MaxInt64 || r.TimeEnabled > math.MaxInt64 || r.TimeRunning > math.MaxInt64
}

// contended reports whether the counter was never scheduled on a PMU.
func (r ReadFormat) contended() bool {
	return r.TimeEnabled == 0
}

// scaled reports whether the kernel multiplexed the counter.
func (r ReadFormat) scaled() bool {
	return r.TimeEnabled != r.TimeRunning
}

// Record is a single (event name, count) pair produced by Backend.End.
//
// Name aliases memory owned by the backend. It must be treated as read-only
// and must not be retained after the next call into the backend.
type Record struct {
	Name  []byte
	Value uint64
}

type readerCloser interface {
	io.Reader
	io.Closer
}

// metadata stores perf event meta information.
type metadata struct {
	name []byte
	file readerCloser
}
