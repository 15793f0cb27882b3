// Copyright 2021 Google Inc. All Rights Reserved.
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

package metrics

import (
	"regexp"

	"github.com/pkg/errors"
)

// DenyList matches event names that must not be exported.
type DenyList struct {
	patterns []*regexp.Regexp
}

// NewDenyList compiles every pattern; an event is denied when any of them
// matches.
func NewDenyList(patterns []string) (*DenyList, error) {
	l := &DenyList{}
	for _, pattern := range patterns {
		r, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid deny pattern %q", pattern)
		}
		l.patterns = append(l.patterns, r)
	}
	return l, nil
}

// IsDenied reports whether event matches one of the patterns.
func (l *DenyList) IsDenied(event string) bool {
	for _, r := range l.patterns {
		if r.MatchString(event) {
			return true
		}
	}
	return false
}

// Filter returns a copy of results without denied events.
func (l *DenyList) Filter(results Results) Results {
	filtered := make(Results, len(results))
	for event, value := range results {
		if !l.IsDenied(event) {
			filtered[event] = value
		}
	}
	return filtered
}
