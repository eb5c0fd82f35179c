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

package hsm

import (
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/messages"
)

// Machine is the hierarchical state machine. It is not safe for concurrent
// use: the dispatch engine's single worker is the only mutator, and external
// readers only ever see the text snapshot the engine takes under its own lock.
type Machine struct {
	current TopState
	log     *zap.SugaredLogger
}

// NewMachine creates a machine in Off and runs the Off entry action.
func NewMachine(log *zap.SugaredLogger) *Machine {
	m := &Machine{current: &Off{}, log: log}
	m.enterTop(m.current)

	return m
}

// Current exposes the active state for inspection. Worker-thread only.
func (m *Machine) Current() TopState {
	return m.current
}

// StateName returns the fully-qualified, ::-joined state path, e.g.
// "Operational::Tracking::Locked".
func (m *Machine) StateName() string {
	switch s := m.current.(type) {
	case *Operational:
		return s.Name() + "::" + operationalSubName(s.Sub)
	default:
		return m.current.Name()
	}
}

func operationalSubName(sub OperationalSub) string {
	if tr, ok := sub.(*Tracking); ok {
		return tr.Name() + "::" + tr.Sub.Name()
	}

	return sub.Name()
}

// Handle dispatches a message against the current state, walking from the
// outermost matching level inward. It returns whether the message was handled;
// an unhandled message leaves the state untouched and is not an error.
func (m *Machine) Handle(msg messages.Message) bool {
	var handled bool

	switch s := m.current.(type) {
	case *Off:
		handled = m.handleOff(msg)
	case *Operational:
		handled = m.handleOperational(s, msg)
	}

	if !handled {
		m.log.Debugf("message %s ignored in state %s", msg.MessageName(), m.StateName())
	}

	return handled
}

func (m *Machine) handleOff(msg messages.Message) bool {
	if _, ok := msg.(messages.PowerOn); ok {
		m.transitionTop(NewOperational())

		return true
	}

	return false
}

func (m *Machine) handleOperational(op *Operational, msg messages.Message) bool {
	// Operational-level messages first, then bubble down to the sub-state.
	if _, ok := msg.(messages.PowerOff); ok {
		m.transitionTop(&Off{})

		return true
	}

	switch sub := op.Sub.(type) {
	case *Initializing:
		return m.handleInitializing(op, msg)
	case *Idle:
		return m.handleIdle(op, msg)
	case *Tracking:
		return m.handleTracking(op, sub, msg)
	case *Error:
		return m.handleError(op, msg)
	}

	return false
}

func (m *Machine) handleInitializing(op *Operational, msg messages.Message) bool {
	switch e := msg.(type) {
	case messages.InitComplete:
		m.transitionOperational(op, &Idle{})

		return true
	case messages.InitFailed:
		m.transitionOperational(op, &Error{Code: -1, Description: e.Reason})

		return true
	}

	return false
}

func (m *Machine) handleIdle(op *Operational, msg messages.Message) bool {
	switch e := msg.(type) {
	case messages.StartSearch:
		m.transitionOperational(op, NewTracking())

		return true
	case messages.ErrorOccurred:
		m.transitionOperational(op, &Error{Code: e.Code, Description: e.Description})

		return true
	}

	return false
}

func (m *Machine) handleError(op *Operational, msg messages.Message) bool {
	if _, ok := msg.(messages.Reset); ok {
		m.transitionOperational(op, &Initializing{})

		return true
	}

	return false
}

func (m *Machine) handleTracking(op *Operational, tr *Tracking, msg messages.Message) bool {
	// Tracking-level messages first, then the innermost sub-state.
	switch e := msg.(type) {
	case messages.ReturnToIdle:
		m.transitionOperational(op, &Idle{})

		return true
	case messages.ErrorOccurred:
		m.transitionOperational(op, &Error{Code: e.Code, Description: e.Description})

		return true
	}

	switch sub := tr.Sub.(type) {
	case *Searching:
		return m.handleSearching(tr, msg)
	case *Locked:
		return m.handleLocked(tr, msg)
	case *Measuring:
		return m.handleMeasuring(tr, sub, msg)
	}

	return false
}

func (m *Machine) handleSearching(tr *Tracking, msg messages.Message) bool {
	if e, ok := msg.(messages.TargetFound); ok {
		m.transitionTracking(tr, &Locked{TargetDistanceMM: e.DistanceMM})

		return true
	}

	return false
}

func (m *Machine) handleLocked(tr *Tracking, msg messages.Message) bool {
	switch msg.(type) {
	case messages.StartMeasure:
		m.transitionTracking(tr, &Measuring{})

		return true
	case messages.TargetLost:
		m.transitionTracking(tr, &Searching{})

		return true
	}

	return false
}

func (m *Machine) handleMeasuring(tr *Tracking, meas *Measuring, msg messages.Message) bool {
	switch e := msg.(type) {
	case messages.MeasurementComplete:
		// Handled without a transition: record the point in place.
		meas.PointCount++
		meas.LastX, meas.LastY, meas.LastZ = e.X, e.Y, e.Z
		m.log.Infof("point #%d recorded: (%.6f, %.6f, %.6f) mm", meas.PointCount, e.X, e.Y, e.Z)

		return true
	case messages.StopMeasure:
		m.transitionTracking(tr, &Locked{})

		return true
	case messages.TargetLost:
		m.transitionTracking(tr, &Searching{})

		return true
	}

	return false
}

// --- transition helpers -----------------------------------------------------
//
// Every transition exits the active state (recursively for composites),
// replaces the value, then enters the new state (recursively). No path skips
// entry or exit, including the implicit initial sub-state of a composite.

func (m *Machine) transitionTop(next TopState) {
	m.exitTop(m.current)
	m.current = next
	m.enterTop(next)
}

func (m *Machine) transitionOperational(op *Operational, next OperationalSub) {
	m.exitOperationalSub(op.Sub)
	op.Sub = next
	m.enterOperationalSub(next)
}

func (m *Machine) transitionTracking(tr *Tracking, next TrackingSub) {
	m.exitTrackingSub(tr.Sub)
	tr.Sub = next
	m.enterTrackingSub(next)
}

// --- entry/exit diagnostics -------------------------------------------------

func (m *Machine) enterTop(s TopState) {
	switch st := s.(type) {
	case *Off:
		m.log.Info("entry Off: laser tracker powered down")
	case *Operational:
		m.log.Info("entry Operational: system powered on")
		m.enterOperationalSub(st.Sub)
	}
}

func (m *Machine) exitTop(s TopState) {
	switch st := s.(type) {
	case *Off:
		m.log.Info("exit Off: preparing for power up")
	case *Operational:
		m.exitOperationalSub(st.Sub)
		m.log.Info("exit Operational: shutting down systems")
	}
}

func (m *Machine) enterOperationalSub(sub OperationalSub) {
	switch st := sub.(type) {
	case *Initializing:
		m.log.Info("entry Initializing: starting self-test and calibration")
	case *Idle:
		m.log.Info("entry Idle: ready for operation, laser standby")
	case *Error:
		m.log.Infof("entry Error: system error detected, code %d: %s", st.Code, st.Description)
	case *Tracking:
		m.log.Info("entry Tracking: entering tracking mode")
		m.enterTrackingSub(st.Sub)
	}
}

func (m *Machine) exitOperationalSub(sub OperationalSub) {
	switch st := sub.(type) {
	case *Initializing:
		m.log.Info("exit Initializing: self-test complete")
	case *Idle:
		m.log.Info("exit Idle: activating laser systems")
	case *Error:
		m.log.Info("exit Error: error cleared, resuming operation")
	case *Tracking:
		m.exitTrackingSub(st.Sub)
		m.log.Info("exit Tracking: leaving tracking mode")
	}
}

func (m *Machine) enterTrackingSub(sub TrackingSub) {
	switch st := sub.(type) {
	case *Searching:
		m.log.Info("entry Searching: scanning for retroreflector target")
	case *Locked:
		m.log.Infof("entry Locked: target acquired at %.3f mm", st.TargetDistanceMM)
	case *Measuring:
		m.log.Info("entry Measuring: starting precision measurement")
	}
}

func (m *Machine) exitTrackingSub(sub TrackingSub) {
	switch st := sub.(type) {
	case *Searching:
		m.log.Info("exit Searching: target acquisition complete")
	case *Locked:
		m.log.Info("exit Locked: transitioning tracking mode")
	case *Measuring:
		m.log.Infof("exit Measuring: measurement session ended (%d points recorded)", st.PointCount)
	}
}
