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

// Counting perf events of the calling process.
package perf

import (
	"encoding/binary"
	"io"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog"
)

const readFormatSize = int(unsafe.Sizeof(ReadFormat{}))

// Backend programs hardware counters and reports how much they advanced
// between Begin and End.
type Backend interface {
	// Prepare opens and enables counters for events. It is called once.
	Prepare(events Events) error
	// Begin snapshots all counters.
	Begin()
	// End snapshots all counters again and returns one record per event.
	// The returned slice and the names it references belong to the backend
	// and are only valid until the next call into it.
	End() []Record
}

type opener func(attr *unix.PerfEventAttr, name string) (readerCloser, error)

// Option configures a CounterBackend.
type Option func(*CounterBackend)

// WithEncoder overrides how event names are turned into perf_event_attr.
func WithEncoder(encoder Encoder) Option {
	return func(b *CounterBackend) { b.encoder = encoder }
}

func withOpener(open opener) Option {
	return func(b *CounterBackend) { b.open = open }
}

func withEnabler(enable func() error) Option {
	return func(b *CounterBackend) { b.enable = enable }
}

// CounterBackend counts events for the calling process and, through inherit,
// for children it spawns after Prepare. It is not safe for concurrent use.
type CounterBackend struct {
	encoder Encoder
	open    opener
	enable  func() error

	counters []metadata
	initial  []ReadFormat
	final    []ReadFormat
	records  []Record
	buf      [readFormatSize]byte
}

var _ Backend = &CounterBackend{}

func NewCounterBackend(opts ...Option) *CounterBackend {
	b := &CounterBackend{
		encoder: newDefaultEncoder(),
		open:    openCounter,
		enable:  enableTaskCounters,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *CounterBackend) Prepare(events Events) error {
	if len(b.counters) != 0 {
		return errors.New("perf events are already prepared")
	}
	if err := events.validate(); err != nil {
		return err
	}
	if events.IsEmpty() {
		klog.V(1).Infof("No perf events configured, using %v", DefaultEvents)
		events.NonGrouped = DefaultEvents
	}

	for _, event := range events.NonGrouped {
		klog.V(4).Infof("Setting up non-grouped perf event %s", event)
		attr, err := b.encoder.Encode(string(event))
		if err != nil {
			b.Close()
			return errors.Wrapf(err, "error creating event %q", event)
		}
		if err := b.registerEvent(attr, string(event)); err != nil {
			b.Close()
			return err
		}
	}
	for _, event := range events.Raw.NonGrouped {
		klog.V(4).Infof("Setting up non-grouped raw perf event %#v", event)
		if err := b.registerEvent(createPerfEventAttr(event), string(event.Name)); err != nil {
			b.Close()
			return err
		}
	}

	b.initial = make([]ReadFormat, len(b.counters))
	b.final = make([]ReadFormat, len(b.counters))
	b.records = make([]Record, len(b.counters))

	if err := b.enable(); err != nil {
		b.Close()
		return errors.Wrap(err, "error in prctl(PR_TASK_PERF_EVENTS_ENABLE)")
	}
	klog.V(1).Infof("Prepared %d perf events", len(b.counters))
	return nil
}

func (b *CounterBackend) registerEvent(attr *unix.PerfEventAttr, name string) error {
	setAttributes(attr)
	file, err := b.open(attr, name)
	if err != nil {
		klog.Errorf("Setting up perf event %s failed: %q", name, err)
		return err
	}
	b.counters = append(b.counters, metadata{name: []byte(name), file: file})
	return nil
}

func (b *CounterBackend) Begin() {
	b.readAll(b.initial)
}

func (b *CounterBackend) End() []Record {
	b.readAll(b.final)
	for i, counter := range b.counters {
		b.records[i] = Record{Name: counter.name, Value: delta(counter.name, b.initial[i], b.final[i])}
	}
	return b.records
}

func (b *CounterBackend) readAll(into []ReadFormat) {
	for i, counter := range b.counters {
		value, err := readCounter(counter.file, b.buf[:])
		if err != nil {
			klog.Warningf("Unable to read perf event %s: %q", counter.name, err)
			value = ReadFormat{}
		}
		into[i] = value
	}
}

// Close releases all counters. The backend can be prepared again afterwards.
func (b *CounterBackend) Close() error {
	var firstErr error
	for _, counter := range b.counters {
		klog.V(4).Infof("Closing perf_event file descriptor for %s", counter.name)
		if err := counter.file.Close(); err != nil {
			klog.Warningf("Unable to close perf_event file descriptor for %s: %q", counter.name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	b.counters = nil
	return firstErr
}

func readCounter(r io.Reader, buf []byte) (ReadFormat, error) {
	if _, err := io.ReadFull(r, buf[:readFormatSize]); err != nil {
		return ReadFormat{}, errors.Wrap(err, "read of perf event did not return 3 64-bit values")
	}
	return ReadFormat{
		Value:       binary.LittleEndian.Uint64(buf[0:8]),
		TimeEnabled: binary.LittleEndian.Uint64(buf[8:16]),
		TimeRunning: binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// delta is how much a counter advanced. Overflowed, never scheduled or
// decreasing counters are reported as 0.
func delta(name []byte, initial, final ReadFormat) uint64 {
	if initial.overflowed() || final.overflowed() || initial.contended() || final.contended() {
		klog.Warningf("perf event %s overflowed or was never scheduled, reporting 0", name)
		return 0
	}
	if final.Value < initial.Value {
		klog.Warningf("perf event %s went backwards (%d -> %d), reporting 0", name, initial.Value, final.Value)
		return 0
	}
	if final.scaled() {
		klog.V(2).Infof("perf event %s was multiplexed: enabled %dns, running %dns", name, final.TimeEnabled, final.TimeRunning)
	}
	return final.Value - initial.Value
}

func createPerfEventAttr(event RawEvent) *unix.PerfEventAttr {
	length := len(event.Config)

	config := &unix.PerfEventAttr{
		Type:   event.Type,
		Config: event.Config[0],
	}
	if length >= 2 {
		config.Ext1 = event.Config[1]
	}
	if length == 3 {
		config.Ext2 = event.Config[2]
	}

	klog.V(4).Infof("perf_event_attr struct prepared: %#v", config)
	return config
}

func setAttributes(config *unix.PerfEventAttr) {
	config.Read_format = unix.PERF_FORMAT_TOTAL_TIME_ENABLED | unix.PERF_FORMAT_TOTAL_TIME_RUNNING
	config.Bits |= unix.PerfBitDisabled | unix.PerfBitInherit
	config.Size = uint32(unsafe.Sizeof(unix.PerfEventAttr{}))
}

func openCounter(attr *unix.PerfEventAttr, name string) (readerCloser, error) {
	pid, cpu, groupFd, flags := 0, -1, -1, unix.PERF_FLAG_FD_CLOEXEC
	fd, err := unix.PerfEventOpen(attr, pid, cpu, groupFd, flags)
	if err != nil {
		return nil, errors.Wrapf(err, "error in perf_event_open for event %q", name)
	}
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "error in ioctl(reset) for event %q", name)
	}
	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "error in ioctl(enable) for event %q", name)
	}
	return os.NewFile(uintptr(fd), name), nil
}

func enableTaskCounters() error {
	return unix.Prctl(unix.PR_TASK_PERF_EVENTS_ENABLE, 0, 0, 0, 0)
}
