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

// Package hsm models the laser tracker operating modes as three tagged unions
// composed by ownership:
//
//	State            = Off | Operational
//	OperationalSub   = Initializing | Idle | Tracking | Error
//	TrackingSub      = Searching | Locked | Measuring
//
// Exactly one variant is active at each nesting level at all times. The
// Machine in machine.go owns the active state and performs transitions with
// strict exit-then-replace-then-entry ordering, recursing into composites.
package hsm

// TopState is the outermost union: the device is powered down or operational.
type TopState interface {
	Name() string
	isTopState()
}

// OperationalSub is the union of operating modes inside Operational.
type OperationalSub interface {
	Name() string
	isOperationalSub()
}

// TrackingSub is the union of tracking modes inside Tracking.
type TrackingSub interface {
	Name() string
	isTrackingSub()
}

// Off is the powered-down state.
type Off struct{}

func (*Off) Name() string { return "Off" }
func (*Off) isTopState()  {}

// Operational is the powered composite state. It always owns exactly one
// active sub-state and freshly constructs into Initializing.
type Operational struct {
	Sub OperationalSub
}

// NewOperational returns an Operational in its initial Initializing sub-state.
func NewOperational() *Operational {
	return &Operational{Sub: &Initializing{}}
}

func (*Operational) Name() string { return "Operational" }
func (*Operational) isTopState()  {}

// Initializing runs self-test and calibration after power-on.
type Initializing struct {
	Progress int
}

func (*Initializing) Name() string      { return "Initializing" }
func (*Initializing) isOperationalSub() {}

// Idle is ready for operation with the laser on standby.
type Idle struct{}

func (*Idle) Name() string      { return "Idle" }
func (*Idle) isOperationalSub() {}

// Error holds a fault until a Reset re-initializes the device.
type Error struct {
	Code        int
	Description string
}

func (*Error) Name() string      { return "Error" }
func (*Error) isOperationalSub() {}

// Tracking is the composite tracking mode. It always owns exactly one active
// sub-state and freshly constructs into Searching.
type Tracking struct {
	Sub TrackingSub
}

// NewTracking returns a Tracking in its initial Searching sub-state.
func NewTracking() *Tracking {
	return &Tracking{Sub: &Searching{}}
}

func (*Tracking) Name() string      { return "Tracking" }
func (*Tracking) isOperationalSub() {}

// Searching scans for the retroreflector target.
type Searching struct {
	SearchAngle float64
}

func (*Searching) Name() string   { return "Searching" }
func (*Searching) isTrackingSub() {}

// Locked has the target acquired at a known distance.
type Locked struct {
	TargetDistanceMM float64
}

func (*Locked) Name() string   { return "Locked" }
func (*Locked) isTrackingSub() {}

// Measuring is an active precision measurement session. MeasurementComplete
// mutates it in place without leaving the state.
type Measuring struct {
	PointCount          int
	LastX, LastY, LastZ float64
}

func (*Measuring) Name() string   { return "Measuring" }
func (*Measuring) isTrackingSub() {}
