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

// Package workload provides workloads to measure and a runner that measures
// them repeatedly.
package workload

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Workload is measured by calling Prepare outside of the measurement
// interval and Run inside it.
type Workload interface {
	Name() string
	Prepare()
	Run()
}

// Names lists the workloads New understands.
var Names = []string{"sort", "sum", "walk"}

// New creates the named workload operating on size elements.
func New(name string, size int, seed int64) (Workload, error) {
	if size <= 0 {
		return nil, errors.Errorf("workload size must be positive, got %d", size)
	}
	random := rand.New(rand.NewSource(seed))
	switch name {
	case "sort":
		return &sortWorkload{random: random, values: make([]int64, size)}, nil
	case "sum":
		return &sumWorkload{size: size}, nil
	case "walk":
		if size > math.MaxInt32 {
			return nil, errors.Errorf("walk workload supports at most %d elements", math.MaxInt32)
		}
		return &walkWorkload{random: random, next: make([]int32, size)}, nil
	}
	return nil, errors.Errorf("unknown workload %q, expected one of %v", name, Names)
}

// sortWorkload sorts random 64-bit integers.
type sortWorkload struct {
	random *rand.Rand
	values []int64
}

func (w *sortWorkload) Name() string { return "sort" }

func (w *sortWorkload) Prepare() {
	for i := range w.values {
		w.values[i] = w.random.Int63()
	}
}

func (w *sortWorkload) Run() {
	sort.Slice(w.values, func(i, j int) bool { return w.values[i] < w.values[j] })
}

// sumWorkload materializes 0..size-1 and sums it.
type sumWorkload struct {
	size int
	Sum  int
}

func (w *sumWorkload) Name() string { return "sum" }

func (w *sumWorkload) Prepare() {}

func (w *sumWorkload) Run() {
	values := make([]int, w.size)
	for i := range values {
		values[i] = i
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	w.Sum = sum
}

// walkWorkload follows a random cycle through an array, defeating caches,
// TLBs and prefetchers.
type walkWorkload struct {
	random *rand.Rand
	next   []int32
	Last   int32
}

func (w *walkWorkload) Name() string { return "walk" }

// Prepare builds a single random cycle with Sattolo's algorithm.
func (w *walkWorkload) Prepare() {
	for i := range w.next {
		w.next[i] = int32(i)
	}
	for i := len(w.next) - 1; i > 0; i-- {
		j := w.random.Intn(i)
		w.next[i], w.next[j] = w.next[j], w.next[i]
	}
}

func (w *walkWorkload) Run() {
	position := int32(0)
	for range w.next {
		position = w.next[position]
	}
	w.Last = position
}
