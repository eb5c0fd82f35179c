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

// Action commands perform a state-validated device operation and return
// domain data without moving the state hierarchy. Whether a command is
// synchronous by default is declared on its registry descriptor.

const (
	DefaultHomeSpeed   = 100.0
	DefaultLaserPower  = 1.0
	DefaultTemperature = 20.0
	DefaultPressure    = 1013.25
	DefaultHumidity    = 50.0
)

// Home moves the tracker to its home position at a speed percentage.
type Home struct {
	Speed float64
}

func (m Home) MessageName() string { return "Home" }
func (m Home) Params() map[string]any {
	return map[string]any{"speed": m.Speed}
}

// GetPosition reads the current position.
type GetPosition struct{}

func (GetPosition) MessageName() string    { return "GetPosition" }
func (GetPosition) Params() map[string]any { return map[string]any{} }

// SetLaserPower adjusts laser output, 0.0 to 1.0.
type SetLaserPower struct {
	PowerLevel float64
}

func (m SetLaserPower) MessageName() string { return "SetLaserPower" }
func (m SetLaserPower) Params() map[string]any {
	return map[string]any{"powerLevel": m.PowerLevel}
}

// Compensate applies environmental compensation from ambient readings.
type Compensate struct {
	Temperature float64 // Celsius
	Pressure    float64 // hPa
	Humidity    float64 // percent
}

func (m Compensate) MessageName() string { return "Compensate" }
func (m Compensate) Params() map[string]any {
	return map[string]any{
		"temperature": m.Temperature,
		"pressure":    m.Pressure,
		"humidity":    m.Humidity,
	}
}

// GetStatus reads overall system status. Valid in any state.
type GetStatus struct{}

func (GetStatus) MessageName() string    { return "GetStatus" }
func (GetStatus) Params() map[string]any { return map[string]any{} }

// MoveRelative moves the tracker head by relative angles in degrees.
type MoveRelative struct {
	Azimuth   float64
	Elevation float64
}

func (m MoveRelative) MessageName() string { return "MoveRelative" }
func (m MoveRelative) Params() map[string]any {
	return map[string]any{"azimuth": m.Azimuth, "elevation": m.Elevation}
}
