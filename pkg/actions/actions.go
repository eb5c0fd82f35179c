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

// Package actions executes action commands: device operations that are
// validated against the current state name and return structured results
// without moving the state hierarchy.
package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/messages"
)

// Device is the hardware surface the action executors drive. Implemented by
// device.Simulator; tests substitute their own.
type Device interface {
	Home(ctx context.Context, speed float64) (azimuth, elevation float64)
	CurrentPosition() map[string]any
	SetLaserPower(level float64)
	LaserPower() float64
	Compensate(ctx context.Context, temperature, pressure, humidity float64) float64
	MoveRelative(ctx context.Context, azimuth, elevation float64) time.Duration
	HostReadings(ctx context.Context) map[string]any
}

// Action is one executable command instance. Validate checks the current
// state before Execute touches the device; a validation failure must leave
// the device untouched.
type Action interface {
	Validate(stateName string) error
	Execute(ctx context.Context) (map[string]any, error)
}

// Runner dispatches action-command messages to their executors.
type Runner struct {
	dev        Device
	instanceID uuid.UUID
	startedAt  time.Time
	log        *zap.SugaredLogger
}

// NewRunner creates a runner bound to a device and the owning engine's
// instance identity.
func NewRunner(dev Device, instanceID uuid.UUID, log *zap.SugaredLogger) *Runner {
	return &Runner{
		dev:        dev,
		instanceID: instanceID,
		startedAt:  time.Now(),
		log:        log,
	}
}

// Run validates and executes an action-command message against the given
// state snapshot. Failures are ordinary errors; the caller turns them into
// failure responses.
func (r *Runner) Run(ctx context.Context, msg messages.Message, stateName string) (map[string]any, error) {
	action, err := r.actionFor(msg, stateName)
	if err != nil {
		return nil, err
	}

	if err := action.Validate(stateName); err != nil {
		return nil, err
	}

	r.log.Debugf("executing %s in state %s", msg.MessageName(), stateName)

	return action.Execute(ctx)
}

func (r *Runner) actionFor(msg messages.Message, stateName string) (Action, error) {
	switch m := msg.(type) {
	case messages.Home:
		return &homeAction{dev: r.dev, cmd: m, stateName: stateName}, nil
	case messages.GetPosition:
		return &getPositionAction{dev: r.dev}, nil
	case messages.SetLaserPower:
		return &setLaserPowerAction{dev: r.dev, cmd: m}, nil
	case messages.Compensate:
		return &compensateAction{dev: r.dev, cmd: m}, nil
	case messages.GetStatus:
		return &getStatusAction{runner: r, stateName: stateName}, nil
	case messages.MoveRelative:
		return &moveRelativeAction{dev: r.dev, cmd: m}, nil
	default:
		return nil, fmt.Errorf("message %s is not an action command", msg.MessageName())
	}
}

// homeAction moves to the home position. Only valid while Idle.
type homeAction struct {
	dev       Device
	cmd       messages.Home
	stateName string
}

func (a *homeAction) Validate(stateName string) error {
	if !strings.Contains(stateName, "Idle") {
		return fmt.Errorf("Home command only valid in Idle state (current: %s)", stateName)
	}
	if a.cmd.Speed <= 0 || a.cmd.Speed > 100 {
		return fmt.Errorf("homing speed must be in (0,100], got %.1f", a.cmd.Speed)
	}

	return nil
}

func (a *homeAction) Execute(ctx context.Context) (map[string]any, error) {
	azimuth, elevation := a.dev.Home(ctx, a.cmd.Speed)

	return map[string]any{
		"position": map[string]any{"azimuth": azimuth, "elevation": elevation},
		"state":    a.stateName,
	}, nil
}

// getPositionAction reads the position. Not available while powered down,
// initializing or faulted.
type getPositionAction struct {
	dev Device
}

func (a *getPositionAction) Validate(stateName string) error {
	for _, blocked := range []string{"Off", "Initializing", "Error"} {
		if strings.Contains(stateName, blocked) {
			return fmt.Errorf("GetPosition not available in %s", stateName)
		}
	}

	return nil
}

func (a *getPositionAction) Execute(context.Context) (map[string]any, error) {
	return map[string]any{"position": a.dev.CurrentPosition()}, nil
}

// setLaserPowerAction adjusts laser output. Valid in any powered state.
type setLaserPowerAction struct {
	dev Device
	cmd messages.SetLaserPower
}

func (a *setLaserPowerAction) Validate(stateName string) error {
	if strings.Contains(stateName, "Off") {
		return fmt.Errorf("SetLaserPower not available when powered off")
	}
	if a.cmd.PowerLevel < 0.0 || a.cmd.PowerLevel > 1.0 {
		return fmt.Errorf("power level must be between 0.0 and 1.0, got %.2f", a.cmd.PowerLevel)
	}

	return nil
}

func (a *setLaserPowerAction) Execute(context.Context) (map[string]any, error) {
	a.dev.SetLaserPower(a.cmd.PowerLevel)

	return map[string]any{"powerLevel": a.cmd.PowerLevel}, nil
}

// compensateAction applies environmental compensation. Valid while Idle or
// Locked.
type compensateAction struct {
	dev Device
	cmd messages.Compensate
}

func (a *compensateAction) Validate(stateName string) error {
	if !strings.Contains(stateName, "Idle") && !strings.Contains(stateName, "Locked") {
		return fmt.Errorf("Compensate only valid in Idle or Locked state (current: %s)", stateName)
	}

	return nil
}

func (a *compensateAction) Execute(ctx context.Context) (map[string]any, error) {
	factor := a.dev.Compensate(ctx, a.cmd.Temperature, a.cmd.Pressure, a.cmd.Humidity)

	return map[string]any{
		"compensationFactor": factor,
		"applied":            true,
	}, nil
}

// getStatusAction reports overall status. No state restriction.
type getStatusAction struct {
	runner    *Runner
	stateName string
}

func (a *getStatusAction) Validate(string) error { return nil }

func (a *getStatusAction) Execute(ctx context.Context) (map[string]any, error) {
	status := map[string]any{
		"state":         a.stateName,
		"healthy":       !strings.Contains(a.stateName, "Error"),
		"powered":       !strings.Contains(a.stateName, "Off"),
		"instanceUUID":  a.runner.instanceID.String(),
		"uptimeSeconds": time.Since(a.runner.startedAt).Seconds(),
		"laserPower":    a.runner.dev.LaserPower(),
	}

	if host := a.runner.dev.HostReadings(ctx); len(host) > 0 {
		status["host"] = host
	}

	return status, nil
}

// moveRelativeAction moves the head by relative angles. Valid while Idle or
// Locked.
type moveRelativeAction struct {
	dev Device
	cmd messages.MoveRelative
}

func (a *moveRelativeAction) Validate(stateName string) error {
	if !strings.Contains(stateName, "Idle") && !strings.Contains(stateName, "Locked") {
		return fmt.Errorf("MoveRelative only valid in Idle or Locked state (current: %s)", stateName)
	}

	return nil
}

func (a *moveRelativeAction) Execute(ctx context.Context) (map[string]any, error) {
	moveTime := a.dev.MoveRelative(ctx, a.cmd.Azimuth, a.cmd.Elevation)

	return map[string]any{
		"movedAz":    a.cmd.Azimuth,
		"movedEl":    a.cmd.Elevation,
		"moveTimeMs": moveTime.Milliseconds(),
	}, nil
}
