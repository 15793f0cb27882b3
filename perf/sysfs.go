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

// Discovery of performance monitoring units exposed in sysfs.
package perf

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"k8s.io/klog"
)

// SystemDevicesPath is where the kernel lists PMUs usable with perf_event_open.
const SystemDevicesPath = "/sys/bus/event_source/devices"

// PMU is a performance monitoring unit. Type is the value to put into
// perf_event_attr.type for raw events of this PMU.
type PMU struct {
	Name string   `json:"name" yaml:"name"`
	Type uint32   `json:"type" yaml:"type"`
	CPUs []uint32 `json:"cpus,omitempty" yaml:"cpus,omitempty"`
}

// ListPMUs reads all PMUs from devicesPath, sorted by name. Entries without
// a readable type file are skipped.
func ListPMUs(devicesPath string) ([]PMU, error) {
	names, err := godirwalk.ReadDirnames(devicesPath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list PMUs in %q", devicesPath)
	}
	sort.Strings(names)

	pmus := make([]PMU, 0, len(names))
	for _, name := range names {
		pmuPath := filepath.Join(devicesPath, name)
		typeOf, err := readUint32(filepath.Join(pmuPath, "type"))
		if err != nil {
			klog.V(2).Infof("Skipping %q: %v", pmuPath, err)
			continue
		}
		pmu := PMU{Name: name, Type: typeOf}
		cpumask, err := ioutil.ReadFile(filepath.Join(pmuPath, "cpumask"))
		if err == nil {
			pmu.CPUs, err = parseCPUList(strings.TrimSpace(string(cpumask)))
			if err != nil {
				return nil, errors.Wrapf(err, "invalid cpumask of PMU %q", name)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "unable to read cpumask of PMU %q", name)
		}
		pmus = append(pmus, pmu)
	}
	return pmus, nil
}

// FindPMU returns the PMU with the given perf_event_attr.type.
func FindPMU(pmus []PMU, typeOf uint32) (*PMU, error) {
	for i := range pmus {
		if pmus[i].Type == typeOf {
			return &pmus[i], nil
		}
	}
	return nil, errors.Errorf("there is no PMU with type %d", typeOf)
}

func readUint32(path string) (uint32, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(string(contents)), 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to parse %q", path)
	}
	return uint32(value), nil
}

// parseCPUList parses kernel cpu lists such as "0-3,8,10-11".
func parseCPUList(list string) ([]uint32, error) {
	if list == "" {
		return nil, nil
	}
	var cpus []uint32
	for _, part := range strings.Split(list, ",") {
		bounds := strings.SplitN(part, "-", 2)
		first, err := strconv.ParseUint(bounds[0], 10, 32)
		if err != nil {
			return nil, err
		}
		last := first
		if len(bounds) == 2 {
			last, err = strconv.ParseUint(bounds[1], 10, 32)
			if err != nil {
				return nil, err
			}
		}
		if last < first {
			return nil, errors.Errorf("invalid cpu range %q", part)
		}
		for cpu := first; cpu <= last; cpu++ {
			cpus = append(cpus, uint32(cpu))
		}
	}
	return cpus, nil
}
