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

// Configuration of perf events to be measured.
package perf

import (
	"bytes"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"k8s.io/klog"
)

// DefaultEvents is measured when no event is configured.
var DefaultEvents = []Event{"PERF_COUNT_HW_CPU_CYCLES", "PERF_COUNT_HW_INSTRUCTIONS"}

type Events struct {
	// List of perf events' names to be measured. Events in this list
	// will not be grouped. See group_fd argument in documentation
	// at man perf_event_open
	NonGrouped []Event `json:"non_grouped"`

	// List of groups of perf events' names to be measured. See group_fd
	// argument documentation at man perf_event_open. Not supported yet,
	// configurations containing groups are rejected.
	Grouped [][]Event `json:"grouped"`

	// Raw allows to specify events by passing their type and configuration directly.
	// See symbolically formed events documentation at man perf-stat.
	Raw RawEvents `json:"raw,omitempty"`
}

type Event string

type RawEvents struct {
	// List of perf events to be measured. RawEvents in this list
	// will not be grouped. See group_fd argument documentation
	// at man perf_event_open.
	NonGrouped []RawEvent `json:"non_grouped"`

	// List of groups of events to be measured. Rejected like Events.Grouped.
	Grouped [][]RawEvent `json:"grouped"`
}

type RawEvent struct {
	// Type of the event. See perf_event_attr documentation
	// at man perf_event_open.
	Type uint32 `json:"type"`

	// Symbolically formed event like:
	// pmu/config=PerfEvent.Config[0],config1=PerfEvent.Config[1],config2=PerfEvent.Config[2]
	// as described in man perf-stat.
	Config Config `json:"config"`

	// Human readable name of the event, used as the key of measurement results.
	Name Event `json:"name"`
}

type Config []uint64

func (c *Config) UnmarshalJSON(b []byte) error {
	config := []string{}
	err := json.Unmarshal(b, &config)
	if err != nil {
		klog.Errorf("Unmarshalling %s into slice of strings failed: %q", b, err)
		return errors.Errorf("unmarshalling %s into slice of strings failed: %q", b, err)
	}
	intermediate := []uint64{}
	for _, v := range config {
		uintValue, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			klog.Errorf("Parsing %#v into uint64 failed: %q", v, err)
			return errors.Errorf("parsing %#v into uint64 failed: %q", v, err)
		}
		intermediate = append(intermediate, uintValue)
	}
	*c = intermediate
	return nil
}

// ParseEventList turns a comma separated list of event names, as found in
// the PERF_EVENTS environment variable, into Events. Empty entries are
// skipped, so "" yields an empty configuration.
func ParseEventList(list string) Events {
	events := Events{}
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		events.NonGrouped = append(events.NonGrouped, Event(name))
	}
	return events
}

// IsEmpty is true when neither named nor raw events are configured.
func (e Events) IsEmpty() bool {
	return len(e.NonGrouped) == 0 && len(e.Grouped) == 0 &&
		len(e.Raw.NonGrouped) == 0 && len(e.Raw.Grouped) == 0
}

// Merge returns the union of both configurations, e first.
func (e Events) Merge(other Events) Events {
	merged := Events{}
	merged.NonGrouped = append(append(merged.NonGrouped, e.NonGrouped...), other.NonGrouped...)
	merged.Grouped = append(append(merged.Grouped, e.Grouped...), other.Grouped...)
	merged.Raw.NonGrouped = append(append(merged.Raw.NonGrouped, e.Raw.NonGrouped...), other.Raw.NonGrouped...)
	merged.Raw.Grouped = append(append(merged.Raw.Grouped, e.Raw.Grouped...), other.Raw.Grouped...)
	return merged
}

// Names lists the result keys the configuration will produce, in order.
func (e Events) Names() []string {
	names := make([]string, 0, len(e.NonGrouped)+len(e.Raw.NonGrouped))
	for _, event := range e.NonGrouped {
		names = append(names, string(event))
	}
	for _, event := range e.Raw.NonGrouped {
		names = append(names, string(event.Name))
	}
	return names
}

func (e Events) validate() error {
	if len(e.Grouped) != 0 || len(e.Raw.Grouped) != 0 {
		return errors.New("grouped events are not supported")
	}
	for i, event := range e.NonGrouped {
		if strings.TrimSpace(string(event)) == "" {
			return errors.Errorf("event %d has an empty name", i)
		}
	}
	for i, event := range e.Raw.NonGrouped {
		if event.Name == "" {
			return errors.Errorf("raw event %d has an empty name", i)
		}
		if len(event.Config) == 0 || len(event.Config) > 3 {
			return errors.Errorf("raw event %q must have between 1 and 3 config values, got %d", event.Name, len(event.Config))
		}
	}
	return nil
}

// LoadConfig reads perf events configuration from a JSON file.
func LoadConfig(configFile string) (Events, error) {
	file, err := os.Open(configFile)
	if err != nil {
		klog.Errorf("Unable to read configuration file %q: %q", configFile, err)
		return Events{}, errors.Wrapf(err, "unable to read configuration file %q", configFile)
	}
	defer file.Close()

	events, err := parseConfig(file)
	if err != nil {
		klog.Errorf("Unable to load perf events configuration from %q: %q", configFile, err)
		return Events{}, errors.Wrapf(err, "unable to load perf events configuration from %q", configFile)
	}
	return events, nil
}

func parseConfig(reader io.Reader) (Events, error) {
	contents, err := ioutil.ReadAll(reader)
	if err != nil {
		return Events{}, err
	}
	var document interface{}
	if err := json.Unmarshal(contents, &document); err != nil {
		return Events{}, errors.Wrap(err, "malformed JSON")
	}
	if err := configSchema.Validate(document); err != nil {
		return Events{}, errors.Wrap(err, "configuration does not match schema")
	}

	events := Events{}
	decoder := json.NewDecoder(bytes.NewReader(contents))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&events); err != nil {
		return Events{}, err
	}
	if err := events.validate(); err != nil {
		return Events{}, err
	}
	return events, nil
}

const configSchemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "name": {"type": "string", "minLength": 1},
    "raw": {
      "type": "object",
      "required": ["type", "config", "name"],
      "additionalProperties": false,
      "properties": {
        "type": {"type": "integer", "minimum": 0},
        "config": {
          "type": "array",
          "minItems": 1,
          "maxItems": 3,
          "items": {"type": "string", "pattern": "^(0[xX][0-9a-fA-F]+|[0-9]+)$"}
        },
        "name": {"$ref": "#/definitions/name"}
      }
    }
  },
  "properties": {
    "non_grouped": {"type": "array", "items": {"$ref": "#/definitions/name"}},
    "grouped": {"type": "array", "items": {"type": "array", "items": {"$ref": "#/definitions/name"}}},
    "raw": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "non_grouped": {"type": "array", "items": {"$ref": "#/definitions/raw"}},
        "grouped": {"type": "array", "items": {"type": "array", "items": {"$ref": "#/definitions/raw"}}}
      }
    }
  }
}`

var configSchema = jsonschema.MustCompileString("perf-events.json", configSchemaSource)
