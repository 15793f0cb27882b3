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

package perf

import (
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/klog"
)

const paranoidPath = "/proc/sys/kernel/perf_event_paranoid"

// perf_event_open appeared in 2.6.31.
var minimalKernel = semver.Version{Major: 2, Minor: 6, Patch: 31}

// Support describes whether the host lets this process count its own events.
type Support struct {
	KernelRelease string
	// Paranoid is the perf_event_paranoid level, -1 (everything allowed)
	// to 3 or more (perf_event_open denied for unprivileged users on
	// some distributions).
	Paranoid      int
	ParanoidKnown bool
}

// Usable is false when unprivileged counting is known to be denied.
func (s Support) Usable() bool {
	return !s.ParanoidKnown || s.Paranoid < 3
}

// CheckSupport inspects the running kernel.
func CheckSupport() (Support, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return Support{}, errors.Wrap(err, "uname failed")
	}
	release := unix.ByteSliceToString(uname.Release[:])
	support, err := checkSupport(release, paranoidPath)
	if err != nil {
		return support, err
	}
	if !support.Usable() {
		klog.Warningf("perf_event_paranoid is %d, counting events of unprivileged processes is likely denied", support.Paranoid)
	}
	return support, nil
}

func checkSupport(release, paranoidFile string) (Support, error) {
	support := Support{KernelRelease: release}
	version, err := parseKernelRelease(release)
	if err != nil {
		return support, err
	}
	base := semver.Version{Major: version.Major, Minor: version.Minor, Patch: version.Patch}
	if base.LT(minimalKernel) {
		return support, errors.Errorf("kernel %s does not support perf_event_open, %s or newer is required", release, minimalKernel)
	}

	paranoid, err := readParanoid(paranoidFile)
	if err != nil {
		klog.V(2).Infof("Unable to read %s: %v", paranoidFile, err)
		return support, nil
	}
	support.Paranoid, support.ParanoidKnown = paranoid, true
	return support, nil
}

// parseKernelRelease understands releases such as "5.15.0-91-generic" or
// "4.19.112+" by dropping everything after the numeric prefix when the
// release is not valid semver.
func parseKernelRelease(release string) (semver.Version, error) {
	if version, err := semver.ParseTolerant(release); err == nil {
		return version, nil
	}
	end := strings.IndexFunc(release, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if end == -1 {
		end = len(release)
	}
	version, err := semver.ParseTolerant(strings.TrimRight(release[:end], "."))
	if err != nil {
		return semver.Version{}, errors.Wrapf(err, "unable to parse kernel release %q", release)
	}
	return version, nil
}

func readParanoid(path string) (int, error) {
	contents, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(contents)))
}
