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

// Translation of generic perf event names into perf_event_attr.
package perf

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Encoder translates an event name into the attributes perf_event_open needs.
// Only Type, Config, Ext1, Ext2 and the exclude bits are expected to be set,
// the remaining attributes are filled in by the backend.
type Encoder interface {
	Encode(name string) (*unix.PerfEventAttr, error)
}

// BuiltinEncoder understands the generic event names libpfm exposes through
// its "perf" PMU: PERF_COUNT_HW_*, PERF_COUNT_SW_* and
// PERF_COUNT_HW_CACHE_<cache>[:<operation>][:<result>], plus the short
// aliases used by perf-stat. It does not need libpfm to be installed.
type BuiltinEncoder struct{}

type genericEvent struct {
	typ    uint32
	config uint64
}

var genericEvents = map[string]genericEvent{
	"PERF_COUNT_HW_CPU_CYCLES":              {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CPU_CYCLES},
	"PERF_COUNT_HW_INSTRUCTIONS":            {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_INSTRUCTIONS},
	"PERF_COUNT_HW_CACHE_REFERENCES":        {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_REFERENCES},
	"PERF_COUNT_HW_CACHE_MISSES":            {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_CACHE_MISSES},
	"PERF_COUNT_HW_BRANCH_INSTRUCTIONS":     {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS},
	"PERF_COUNT_HW_BRANCH_MISSES":           {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BRANCH_MISSES},
	"PERF_COUNT_HW_BUS_CYCLES":              {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_BUS_CYCLES},
	"PERF_COUNT_HW_STALLED_CYCLES_FRONTEND": {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND},
	"PERF_COUNT_HW_STALLED_CYCLES_BACKEND":  {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND},
	"PERF_COUNT_HW_REF_CPU_CYCLES":          {unix.PERF_TYPE_HARDWARE, unix.PERF_COUNT_HW_REF_CPU_CYCLES},

	"PERF_COUNT_SW_CPU_CLOCK":        {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CPU_CLOCK},
	"PERF_COUNT_SW_TASK_CLOCK":       {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_TASK_CLOCK},
	"PERF_COUNT_SW_PAGE_FAULTS":      {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS},
	"PERF_COUNT_SW_CONTEXT_SWITCHES": {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CONTEXT_SWITCHES},
	"PERF_COUNT_SW_CPU_MIGRATIONS":   {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_CPU_MIGRATIONS},
	"PERF_COUNT_SW_PAGE_FAULTS_MIN":  {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS_MIN},
	"PERF_COUNT_SW_PAGE_FAULTS_MAJ":  {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ},
	"PERF_COUNT_SW_ALIGNMENT_FAULTS": {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_ALIGNMENT_FAULTS},
	"PERF_COUNT_SW_EMULATION_FAULTS": {unix.PERF_TYPE_SOFTWARE, unix.PERF_COUNT_SW_EMULATION_FAULTS},
}

// perf-stat style aliases.
var genericAliases = map[string]string{
	"cycles":           "PERF_COUNT_HW_CPU_CYCLES",
	"cpu-cycles":       "PERF_COUNT_HW_CPU_CYCLES",
	"instructions":     "PERF_COUNT_HW_INSTRUCTIONS",
	"cache-references": "PERF_COUNT_HW_CACHE_REFERENCES",
	"cache-misses":     "PERF_COUNT_HW_CACHE_MISSES",
	"branches":         "PERF_COUNT_HW_BRANCH_INSTRUCTIONS",
	"branch-misses":    "PERF_COUNT_HW_BRANCH_MISSES",
	"bus-cycles":       "PERF_COUNT_HW_BUS_CYCLES",
	"ref-cycles":       "PERF_COUNT_HW_REF_CPU_CYCLES",
	"cpu-clock":        "PERF_COUNT_SW_CPU_CLOCK",
	"task-clock":       "PERF_COUNT_SW_TASK_CLOCK",
	"page-faults":      "PERF_COUNT_SW_PAGE_FAULTS",
	"context-switches": "PERF_COUNT_SW_CONTEXT_SWITCHES",
	"cpu-migrations":   "PERF_COUNT_SW_CPU_MIGRATIONS",
	"minor-faults":     "PERF_COUNT_SW_PAGE_FAULTS_MIN",
	"major-faults":     "PERF_COUNT_SW_PAGE_FAULTS_MAJ",
}

const cacheEventPrefix = "PERF_COUNT_HW_CACHE_"

var cacheIDs = map[string]uint64{
	"L1D":  unix.PERF_COUNT_HW_CACHE_L1D,
	"L1I":  unix.PERF_COUNT_HW_CACHE_L1I,
	"LL":   unix.PERF_COUNT_HW_CACHE_LL,
	"DTLB": unix.PERF_COUNT_HW_CACHE_DTLB,
	"ITLB": unix.PERF_COUNT_HW_CACHE_ITLB,
	"BPU":  unix.PERF_COUNT_HW_CACHE_BPU,
	"NODE": unix.PERF_COUNT_HW_CACHE_NODE,
}

var cacheOps = map[string]uint64{
	"READ":     unix.PERF_COUNT_HW_CACHE_OP_READ,
	"WRITE":    unix.PERF_COUNT_HW_CACHE_OP_WRITE,
	"PREFETCH": unix.PERF_COUNT_HW_CACHE_OP_PREFETCH,
}

var cacheResults = map[string]uint64{
	"ACCESS": unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS,
	"MISS":   unix.PERF_COUNT_HW_CACHE_RESULT_MISS,
}

func (BuiltinEncoder) Encode(name string) (*unix.PerfEventAttr, error) {
	if canonical, ok := genericAliases[name]; ok {
		name = canonical
	}
	if event, ok := genericEvents[name]; ok {
		return userSpaceAttr(event.typ, event.config), nil
	}
	if strings.HasPrefix(name, cacheEventPrefix) {
		config, err := encodeCacheEvent(strings.TrimPrefix(name, cacheEventPrefix))
		if err != nil {
			return nil, errors.Wrapf(err, "cannot encode %q", name)
		}
		return userSpaceAttr(unix.PERF_TYPE_HW_CACHE, config), nil
	}
	return nil, errors.Errorf("unknown event %q", name)
}

// encodeCacheEvent parses "<cache>[:<op>][:<result>]". Like libpfm the
// operation defaults to READ and the result to ACCESS.
func encodeCacheEvent(event string) (uint64, error) {
	parts := strings.Split(event, ":")
	id, ok := cacheIDs[parts[0]]
	if !ok {
		return 0, errors.Errorf("unknown cache %q", parts[0])
	}
	op, result := uint64(unix.PERF_COUNT_HW_CACHE_OP_READ), uint64(unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)
	opSet, resultSet := false, false
	for _, modifier := range parts[1:] {
		modifier = strings.ToUpper(modifier)
		if v, ok := cacheOps[modifier]; ok && !opSet {
			op, opSet = v, true
			continue
		}
		if v, ok := cacheResults[modifier]; ok && !resultSet {
			result, resultSet = v, true
			continue
		}
		return 0, errors.Errorf("invalid or repeated unit mask %q", modifier)
	}
	return id | op<<8 | result<<16, nil
}

func userSpaceAttr(typ uint32, config uint64) *unix.PerfEventAttr {
	return &unix.PerfEventAttr{
		Type:   typ,
		Config: config,
		Bits:   unix.PerfBitExcludeKernel | unix.PerfBitExcludeHv,
	}
}

// KnownEvents lists the names BuiltinEncoder accepts without unit masks.
func KnownEvents() []string {
	names := make([]string, 0, len(genericEvents)+len(genericAliases)+len(cacheIDs))
	for name := range genericEvents {
		names = append(names, name)
	}
	for alias := range genericAliases {
		names = append(names, alias)
	}
	for cache := range cacheIDs {
		names = append(names, cacheEventPrefix+cache)
	}
	sort.Strings(names)
	return names
}
