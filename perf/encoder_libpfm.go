//go:build libpfm && cgo
// +build libpfm,cgo

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

// Event name encoding backed by libpfm.
package perf

// #cgo CFLAGS: -I/usr/include
// #cgo LDFLAGS: -lpfm
// #include <perfmon/pfmlib.h>
// #include <stdlib.h>
import "C"

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog"
)

// LibpfmEnabled tells whether event names are resolved by libpfm.
const LibpfmEnabled = true

// pfmPerfEncodeArgT represents structure that is used to parse perf event name
// into perf_event_attr using libpfm.
type pfmPerfEncodeArgT struct {
	attr  unsafe.Pointer
	fstr  unsafe.Pointer
	size  C.size_t
	idx   C.int
	cpu   C.int
	flags C.int
}

var (
	pfmOnce    sync.Once
	pfmInitErr error
)

// PfmEncoder resolves any event name known to libpfm for the host CPU,
// e.g. "INST_RETIRED:ANY_P" or "PERF_COUNT_HW_CACHE_DTLB:MISS".
type PfmEncoder struct{}

func newDefaultEncoder() Encoder {
	return PfmEncoder{}
}

func initializeLibpfm() error {
	pfmOnce.Do(func() {
		if pErr := C.pfm_initialize(); pErr != C.PFM_SUCCESS {
			pfmInitErr = errors.Errorf("unable to initialize libpfm: %s", C.GoString(C.pfm_strerror(pErr)))
		}
	})
	return pfmInitErr
}

func (PfmEncoder) Encode(eventName string) (*unix.PerfEventAttr, error) {
	if err := initializeLibpfm(); err != nil {
		return nil, err
	}

	perfEventAttrMemory := C.calloc(1, C.size_t(unsafe.Sizeof(unix.PerfEventAttr{})))
	eventMemory := C.calloc(1, C.size_t(unsafe.Sizeof(pfmPerfEncodeArgT{})))
	name := C.CString(eventName)
	defer clearMemory(perfEventAttrMemory, eventMemory, unsafe.Pointer(name))

	event := (*pfmPerfEncodeArgT)(eventMemory)
	event.attr = perfEventAttrMemory
	event.size = C.size_t(unsafe.Sizeof(*event))

	pErr := C.pfm_get_os_event_encoding(name, C.PFM_PLM3, C.PFM_OS_PERF_EVENT, eventMemory)
	if pErr != C.PFM_SUCCESS {
		return nil, errors.Errorf("unable to transform event name %s to perf_event_attr: %s", eventName, C.GoString(C.pfm_strerror(pErr)))
	}

	attr := *(*unix.PerfEventAttr)(perfEventAttrMemory)
	klog.V(4).Infof("libpfm encoded %s as perf_event_attr: %#v", eventName, attr)
	return &attr, nil
}

func clearMemory(pointers ...unsafe.Pointer) {
	for _, pointer := range pointers {
		C.free(pointer)
	}
}
