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

// Package perfmon counts hardware performance events, such as cycles or
// TLB misses, around a region of code.
//
//	events, err := perfmon.EventsFromEnv()
//	...
//	perfmon.MustInitialize(events)
//	perfmon.Begin()
//	work()
//	results := perfmon.MustEnd()
//
// A process has a single measurement session. Only Initialize is safe to
// call concurrently. Begin and End drive counters shared by the whole
// process and must be used from one goroutine at a time; concurrent use
// yields meaningless counts.
package perfmon

import (
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/perfmon/perf"

	"github.com/pkg/errors"
	"k8s.io/klog"
)

const (
	uninitialized int32 = iota
	initialized
)

// Results maps event names to how many times the event occurred during
// a measurement interval.
type Results map[string]uint64

// Session sequences a perf.Backend: one Prepare, then any number of
// Begin/End pairs.
type Session struct {
	state   int32
	backend perf.Backend
}

func NewSession(backend perf.Backend) *Session {
	return &Session{backend: backend}
}

var defaultSession = NewSession(perf.NewCounterBackend())

// Initialize prepares the backend with events. Only the first call on a
// session reaches the backend, every other call fails with
// ErrDoubleInitialization, including calls racing with the first one.
// An empty configuration lets the backend pick its default events.
//
// A failing Prepare still consumes the session.
func (s *Session) Initialize(events perf.Events) error {
	if !atomic.CompareAndSwapInt32(&s.state, uninitialized, initialized) {
		return errors.Wrap(ErrDoubleInitialization, "perfmon can only be initialized once")
	}
	klog.V(1).Infof("Initializing perf session with events %v", events.Names())
	if err := s.backend.Prepare(events); err != nil {
		klog.Errorf("Unable to prepare perf events: %v", err)
		return errors.Wrap(err, "unable to prepare perf events")
	}
	return nil
}

// Initialized reports whether Initialize has been called.
func (s *Session) Initialized() bool {
	return atomic.LoadInt32(&s.state) == initialized
}

// Begin starts a measurement interval.
func (s *Session) Begin() {
	s.backend.Begin()
}

// End finishes a measurement interval. The returned Results are owned by
// the caller. If the backend reports the same event twice the later value
// wins.
func (s *Session) End() (Results, error) {
	records := s.backend.End()
	results := make(Results, len(records))
	for i := range records {
		name := records[i].Name
		if !utf8.Valid(name) {
			return nil, errors.Wrapf(ErrInvalidEventName, "record %d of %d: %q", i, len(records), name)
		}
		results[string(name)] = records[i].Value
	}
	return results, nil
}

// Measure runs fn inside a measurement interval.
func (s *Session) Measure(fn func()) (Results, error) {
	s.Begin()
	fn()
	return s.End()
}

// Initialize initializes the process-wide session.
func Initialize(events perf.Events) error {
	return defaultSession.Initialize(events)
}

// MustInitialize is like Initialize but panics on error.
func MustInitialize(events perf.Events) {
	if err := Initialize(events); err != nil {
		panic(err)
	}
}

// Begin starts a measurement interval on the process-wide session.
func Begin() {
	defaultSession.Begin()
}

// End finishes a measurement interval on the process-wide session.
func End() (Results, error) {
	return defaultSession.End()
}

// MustEnd is like End but panics on error.
func MustEnd() Results {
	results, err := End()
	if err != nil {
		panic(err)
	}
	return results
}

// Measure runs fn inside a measurement interval of the process-wide session.
func Measure(fn func()) (Results, error) {
	return defaultSession.Measure(fn)
}
