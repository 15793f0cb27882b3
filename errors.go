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

import "github.com/pkg/errors"

var (
	// ErrDoubleInitialization is returned by every Initialize call after the
	// first one. It signals a programming error; measurement must not
	// proceed.
	ErrDoubleInitialization = errors.New("perf session initialized more than once")

	// ErrInvalidEventName is returned by End when the backend reports an
	// event name that is not valid UTF-8, which means the backend and this
	// package disagree on the record layout. No partial result is returned.
	ErrInvalidEventName = errors.New("invalid event name")
)
