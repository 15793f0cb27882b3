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
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigParsing(t *testing.T) {
	file, err := os.Open("testing/perf.json")
	assert.Nil(t, err)
	defer file.Close()

	events, err := parseConfig(file)

	assert.Nil(t, err)
	assert.Equal(t, []Event{"instructions", "PERF_COUNT_HW_CACHE_DTLB:MISS"}, events.NonGrouped)
	assert.Empty(t, events.Grouped)

	assert.Len(t, events.Raw.NonGrouped, 1)
	assert.Equal(t, Config{5439680}, events.Raw.NonGrouped[0].Config)
	assert.Equal(t, uint32(4), events.Raw.NonGrouped[0].Type)
	assert.Equal(t, Event("instructions_retired"), events.Raw.NonGrouped[0].Name)

	assert.Equal(t, []string{"instructions", "PERF_COUNT_HW_CACHE_DTLB:MISS", "instructions_retired"}, events.Names())
}

func TestLoadConfig(t *testing.T) {
	events, err := LoadConfig("testing/perf.json")
	assert.Nil(t, err)
	assert.False(t, events.IsEmpty())
}

func TestNonExistentFile(t *testing.T) {
	_, err := LoadConfig("this-file-is-so-non-existent")
	assert.NotNil(t, err)
}

func TestMalformedJsonFile(t *testing.T) {
	_, err := LoadConfig("testing/this-is-some-random.json")
	assert.NotNil(t, err)
}

func TestGroupedEvents(t *testing.T) {
	_, err := LoadConfig("testing/grouped.json")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "grouped events are not supported")
}

func TestSchemaViolation(t *testing.T) {
	_, err := LoadConfig("testing/invalid_config.json")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestConfigRejectsUnknownFields(t *testing.T) {
	_, err := parseConfig(strings.NewReader(`{"core": {"events": ["cycles"]}}`))
	assert.NotNil(t, err)
}

func TestConfigUnmarshalHexAndDecimal(t *testing.T) {
	events, err := parseConfig(strings.NewReader(`{"raw": {"non_grouped": [{"type": 4, "config": ["0x10", "32", "0XfF"], "name": "x"}]}}`))
	assert.Nil(t, err)
	assert.Equal(t, Config{16, 32, 255}, events.Raw.NonGrouped[0].Config)
}

func TestParseEventList(t *testing.T) {
	testCases := []struct {
		list     string
		expected []Event
	}{
		{"", nil},
		{",,", nil},
		{"PERF_COUNT_HW_CACHE_DTLB:MISS,PERF_COUNT_HW_CACHE_ITLB:MISS", []Event{"PERF_COUNT_HW_CACHE_DTLB:MISS", "PERF_COUNT_HW_CACHE_ITLB:MISS"}},
		{" cycles , ,instructions,", []Event{"cycles", "instructions"}},
	}
	for _, tc := range testCases {
		t.Run(tc.list, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseEventList(tc.list).NonGrouped)
		})
	}
	assert.True(t, ParseEventList("").IsEmpty())
}

func TestMerge(t *testing.T) {
	first := ParseEventList("cycles")
	second := Events{Raw: RawEvents{NonGrouped: []RawEvent{{Type: 4, Config: Config{1}, Name: "raw"}}}}

	merged := first.Merge(second)

	assert.Equal(t, []string{"cycles", "raw"}, merged.Names())
	assert.Len(t, first.Raw.NonGrouped, 0)
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Events{}.validate())
	assert.NotNil(t, Events{NonGrouped: []Event{" "}}.validate())
	assert.NotNil(t, Events{Raw: RawEvents{NonGrouped: []RawEvent{{Type: 4, Name: "no_config"}}}}.validate())
	assert.NotNil(t, Events{Raw: RawEvents{NonGrouped: []RawEvent{{Type: 4, Config: Config{1}}}}}.validate())
	assert.NotNil(t, Events{Raw: RawEvents{Grouped: [][]RawEvent{{{Type: 4, Config: Config{1}, Name: "g"}}}}}.validate())
}
