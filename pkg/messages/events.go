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

// Events record something that already happened on the device side.

// InitComplete reports a finished self-test and calibration.
type InitComplete struct{}

func (InitComplete) MessageName() string    { return "InitComplete" }
func (InitComplete) Params() map[string]any { return map[string]any{} }

// InitFailed reports a failed self-test with a human-readable reason.
type InitFailed struct {
	Reason string
}

func (m InitFailed) MessageName() string { return "InitFailed" }
func (m InitFailed) Params() map[string]any {
	return map[string]any{"errorReason": m.Reason}
}

// TargetFound reports retroreflector acquisition at a distance.
type TargetFound struct {
	DistanceMM float64
}

func (m TargetFound) MessageName() string { return "TargetFound" }
func (m TargetFound) Params() map[string]any {
	return map[string]any{"distance_mm": m.DistanceMM}
}

// TargetLost reports loss of the tracked retroreflector.
type TargetLost struct{}

func (TargetLost) MessageName() string    { return "TargetLost" }
func (TargetLost) Params() map[string]any { return map[string]any{} }

// MeasurementComplete reports one recorded coordinate triple.
type MeasurementComplete struct {
	X, Y, Z float64
}

func (m MeasurementComplete) MessageName() string { return "MeasurementComplete" }
func (m MeasurementComplete) Params() map[string]any {
	return map[string]any{"x": m.X, "y": m.Y, "z": m.Z}
}

// ErrorOccurred reports a device fault.
type ErrorOccurred struct {
	Code        int
	Description string
}

func (m ErrorOccurred) MessageName() string { return "ErrorOccurred" }
func (m ErrorOccurred) Params() map[string]any {
	return map[string]any{"errorCode": m.Code, "description": m.Description}
}
