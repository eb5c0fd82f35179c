// Copyright 2025 Apex Metrology GmbH
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

// Package messages is the closed catalogue of everything the tracker core can
// be told: events (things that happened), state commands (imperatives expected
// to move the state machine) and action commands (state-validated device
// operations that return data without changing the hierarchy).
package messages

// Kind classifies a registered message type. Action commands are routed to
// the action executor, events and state commands to the hierarchical state
// engine. The tag is explicit rather than inferred from the message shape.
type Kind int

const (
	KindEvent Kind = iota
	KindStateCommand
	KindActionCommand
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindStateCommand:
		return "stateCommand"
	case KindActionCommand:
		return "actionCommand"
	default:
		return "unknown"
	}
}

// Message is an immutable catalogue value. Params is the inverse of the
// registry constructor: Build(m.MessageName(), m.Params()) reproduces m.
type Message interface {
	MessageName() string
	Params() map[string]any
}

// floatParam reads a numeric field, tolerating the types JSON decoding
// produces, and falls back to def when the field is absent.
func floatParam(params map[string]any, key string, def float64) float64 {
	if params == nil {
		return def
	}

	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return def
	}
}

func intParam(params map[string]any, key string, def int) int {
	if params == nil {
		return def
	}

	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func stringParam(params map[string]any, key string, def string) string {
	if params == nil {
		return def
	}

	if v, ok := params[key].(string); ok {
		return v
	}

	return def
}
