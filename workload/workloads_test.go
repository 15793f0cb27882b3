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

package workload

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortWorkload(t *testing.T) {
	w, err := New("sort", 1000, 1)
	require.Nil(t, err)

	w.Prepare()
	w.Run()

	values := w.(*sortWorkload).values
	assert.Len(t, values, 1000)
	assert.True(t, sort.SliceIsSorted(values, func(i, j int) bool { return values[i] < values[j] }))
}

func TestSumWorkload(t *testing.T) {
	w, err := New("sum", 1000000, 1)
	require.Nil(t, err)

	w.Prepare()
	w.Run()

	assert.Equal(t, 499999500000, w.(*sumWorkload).Sum)
}

func TestWalkWorkloadVisitsEveryElement(t *testing.T) {
	const size = 4096
	w, err := New("walk", size, 7)
	require.Nil(t, err)
	w.Prepare()

	next := w.(*walkWorkload).next
	visited := make([]bool, size)
	position := int32(0)
	for i := 0; i < size; i++ {
		assert.False(t, visited[position], "element %d visited twice", position)
		visited[position] = true
		position = next[position]
	}
	assert.Equal(t, int32(0), position)

	w.Run()
	assert.Equal(t, int32(0), w.(*walkWorkload).Last)
}

func TestNewErrors(t *testing.T) {
	_, err := New("sleep", 10, 1)
	assert.NotNil(t, err)
	_, err = New("sort", 0, 1)
	assert.NotNil(t, err)
}
