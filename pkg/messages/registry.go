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

package messages

import (
	"errors"
	"fmt"
)

// ErrUnknownMessage is returned when a name matches no registered type.
var ErrUnknownMessage = errors.New("unknown message")

// Descriptor is the registration record for one message type. Sync is only
// meaningful for action commands: it declares whether the command runs
// synchronously relative to the caller by default.
type Descriptor struct {
	Name string
	Kind Kind
	Sync bool
	New  func(params map[string]any) Message
}

// registry is the closed name->descriptor table. Constructors default absent
// optional fields instead of failing, so a bare {"name":"Home"} is valid.
var registry = map[string]Descriptor{
	// Events
	"InitComplete": {Name: "InitComplete", Kind: KindEvent,
		New: func(map[string]any) Message { return InitComplete{} }},
	"InitFailed": {Name: "InitFailed", Kind: KindEvent,
		New: func(p map[string]any) Message {
			return InitFailed{Reason: stringParam(p, "errorReason", "")}
		}},
	"TargetFound": {Name: "TargetFound", Kind: KindEvent,
		New: func(p map[string]any) Message {
			return TargetFound{DistanceMM: floatParam(p, "distance_mm", 0)}
		}},
	"TargetLost": {Name: "TargetLost", Kind: KindEvent,
		New: func(map[string]any) Message { return TargetLost{} }},
	"MeasurementComplete": {Name: "MeasurementComplete", Kind: KindEvent,
		New: func(p map[string]any) Message {
			return MeasurementComplete{
				X: floatParam(p, "x", 0),
				Y: floatParam(p, "y", 0),
				Z: floatParam(p, "z", 0),
			}
		}},
	"ErrorOccurred": {Name: "ErrorOccurred", Kind: KindEvent,
		New: func(p map[string]any) Message {
			return ErrorOccurred{
				Code:        intParam(p, "errorCode", 0),
				Description: stringParam(p, "description", ""),
			}
		}},

	// State commands
	"PowerOn": {Name: "PowerOn", Kind: KindStateCommand,
		New: func(map[string]any) Message { return PowerOn{} }},
	"PowerOff": {Name: "PowerOff", Kind: KindStateCommand,
		New: func(map[string]any) Message { return PowerOff{} }},
	"StartSearch": {Name: "StartSearch", Kind: KindStateCommand,
		New: func(map[string]any) Message { return StartSearch{} }},
	"StartMeasure": {Name: "StartMeasure", Kind: KindStateCommand,
		New: func(map[string]any) Message { return StartMeasure{} }},
	"StopMeasure": {Name: "StopMeasure", Kind: KindStateCommand,
		New: func(map[string]any) Message { return StopMeasure{} }},
	"Reset": {Name: "Reset", Kind: KindStateCommand,
		New: func(map[string]any) Message { return Reset{} }},
	"ReturnToIdle": {Name: "ReturnToIdle", Kind: KindStateCommand,
		New: func(map[string]any) Message { return ReturnToIdle{} }},

	// Action commands
	"Home": {Name: "Home", Kind: KindActionCommand, Sync: true,
		New: func(p map[string]any) Message {
			return Home{Speed: floatParam(p, "speed", DefaultHomeSpeed)}
		}},
	"GetPosition": {Name: "GetPosition", Kind: KindActionCommand,
		New: func(map[string]any) Message { return GetPosition{} }},
	"SetLaserPower": {Name: "SetLaserPower", Kind: KindActionCommand,
		New: func(p map[string]any) Message {
			return SetLaserPower{PowerLevel: floatParam(p, "powerLevel", DefaultLaserPower)}
		}},
	"Compensate": {Name: "Compensate", Kind: KindActionCommand, Sync: true,
		New: func(p map[string]any) Message {
			return Compensate{
				Temperature: floatParam(p, "temperature", DefaultTemperature),
				Pressure:    floatParam(p, "pressure", DefaultPressure),
				Humidity:    floatParam(p, "humidity", DefaultHumidity),
			}
		}},
	"GetStatus": {Name: "GetStatus", Kind: KindActionCommand,
		New: func(map[string]any) Message { return GetStatus{} }},
	"MoveRelative": {Name: "MoveRelative", Kind: KindActionCommand, Sync: true,
		New: func(p map[string]any) Message {
			return MoveRelative{
				Azimuth:   floatParam(p, "azimuth", 0),
				Elevation: floatParam(p, "elevation", 0),
			}
		}},
}

// Lookup returns the descriptor for a message name.
func Lookup(name string) (Descriptor, bool) {
	d, ok := registry[name]

	return d, ok
}

// Build constructs the message value registered under name from a structured
// payload. Absent optional fields are defaulted.
func Build(name string, params map[string]any) (Message, error) {
	d, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, name)
	}

	return d.New(params), nil
}

// DescriptorOf returns the descriptor for a message value.
func DescriptorOf(m Message) (Descriptor, bool) {
	return Lookup(m.MessageName())
}

// Names returns all registered message names. Used by the gateway to report
// the protocol surface.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	return names
}
