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

// Package demo drives the engine through a scripted measurement session. It is
// the same workflow an operator would perform: power up, acquire a target,
// record points, run maintenance commands, recover from a fault, power down.
package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/dispatch"
	"github.com/apexmetrology/trackerd/pkg/messages"
	"github.com/apexmetrology/trackerd/pkg/models"
)

const commandTimeout = 5 * time.Second

// Harness runs the scripted scenarios against a started engine.
type Harness struct {
	engine *dispatch.Engine
	log    *zap.SugaredLogger
}

// New creates a harness. The engine must already be running.
func New(engine *dispatch.Engine, log *zap.SugaredLogger) *Harness {
	return &Harness{engine: engine, log: log}
}

// Run executes all scenarios in order and stops at the first failure.
func (h *Harness) Run(ctx context.Context) error {
	scenarios := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"power-up", h.powerUp},
		{"target acquisition", h.acquireTarget},
		{"measurement session", h.measure},
		{"maintenance commands", h.maintenance},
		{"fault and recovery", h.faultRecovery},
		{"power-down", h.powerDown},
	}

	for _, sc := range scenarios {
		h.log.Infof("--- scenario: %s ---", sc.name)
		if err := sc.fn(ctx); err != nil {
			return fmt.Errorf("scenario %q failed: %w", sc.name, err)
		}
	}

	h.log.Info("all scenarios completed")

	return nil
}

func (h *Harness) powerUp(context.Context) error {
	if err := h.command(messages.PowerOn{}); err != nil {
		return err
	}
	if err := h.command(messages.InitComplete{}); err != nil {
		return err
	}

	return h.expectState("Operational::Idle")
}

func (h *Harness) acquireTarget(context.Context) error {
	if err := h.command(messages.StartSearch{}); err != nil {
		return err
	}
	if err := h.command(messages.TargetFound{DistanceMM: 5000.0}); err != nil {
		return err
	}

	return h.expectState("Operational::Tracking::Locked")
}

// measure records three points asynchronously and polls their responses.
func (h *Harness) measure(ctx context.Context) error {
	if err := h.command(messages.StartMeasure{}); err != nil {
		return err
	}

	points := []messages.MeasurementComplete{
		{X: 100.123456, Y: 200.234567, Z: 50.345678},
		{X: 100.123460, Y: 200.234570, Z: 50.345680},
		{X: 100.123458, Y: 200.234565, Z: 50.345679},
	}

	ids := make([]uint64, 0, len(points))
	for _, p := range points {
		id, err := h.engine.SendMessageAsync(p)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		resp, err := h.awaitResponse(ctx, id)
		if err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("measurement point rejected: %s", resp.Error)
		}
	}

	if err := h.command(messages.StopMeasure{}); err != nil {
		return err
	}

	return h.expectState("Operational::Tracking::Locked")
}

func (h *Harness) maintenance(context.Context) error {
	// Home must fail while still tracking, then succeed from Idle.
	if resp := h.engine.SendMessage(messages.Home{Speed: 50}, commandTimeout); resp.Success {
		return errors.New("Home unexpectedly succeeded while tracking")
	}

	if err := h.command(messages.ReturnToIdle{}); err != nil {
		return err
	}

	for _, msg := range []messages.Message{
		messages.Home{Speed: 50},
		messages.GetPosition{},
		messages.SetLaserPower{PowerLevel: 0.8},
		messages.Compensate{Temperature: 22.5, Pressure: 1015.0, Humidity: 45.0},
		messages.MoveRelative{Azimuth: 10.0, Elevation: 5.0},
		messages.GetStatus{},
	} {
		resp := h.engine.SendMessage(msg, commandTimeout)
		if !resp.Success {
			return fmt.Errorf("%s failed: %s", msg.MessageName(), resp.Error)
		}
		h.log.Infof("%s -> %v", msg.MessageName(), resp.Result)
	}

	return nil
}

func (h *Harness) faultRecovery(context.Context) error {
	if err := h.command(messages.ErrorOccurred{Code: 42, Description: "beam interrupted"}); err != nil {
		return err
	}
	if err := h.expectState("Operational::Error"); err != nil {
		return err
	}

	if err := h.command(messages.Reset{}); err != nil {
		return err
	}
	if err := h.command(messages.InitComplete{}); err != nil {
		return err
	}

	return h.expectState("Operational::Idle")
}

func (h *Harness) powerDown(context.Context) error {
	if err := h.command(messages.PowerOff{}); err != nil {
		return err
	}

	return h.expectState("Off")
}

// command sends a message synchronously and fails on a failure response.
func (h *Harness) command(msg messages.Message) error {
	resp := h.engine.SendMessage(msg, commandTimeout)
	if !resp.Success {
		return fmt.Errorf("%s failed: %s", msg.MessageName(), resp.Error)
	}

	return nil
}

// awaitResponse polls the response queue for an async send with backoff.
func (h *Harness) awaitResponse(ctx context.Context, id uint64) (*models.Response, error) {
	var resp *models.Response

	operation := func() error {
		if r := h.engine.WaitForResponse(id, 50*time.Millisecond); r != nil {
			resp = r

			return nil
		}

		return fmt.Errorf("response %d not ready", id)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 20 * time.Millisecond
	expo.MaxElapsedTime = 5 * time.Second
	policy := backoff.WithContext(expo, ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return resp, nil
}

func (h *Harness) expectState(want string) error {
	got := h.engine.CurrentStateName()
	if got != want {
		return fmt.Errorf("expected state %s, got %s", want, got)
	}

	return nil
}
