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

// Package device is the stand-in for the physical tracker hardware: simulated
// motion and sensing with proportional delays and deterministic readings.
package device

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Simulator emulates the tracker hardware. Synchronous operations sleep a
// latency proportional to the real device's, scaled by the configured factor
// so tests can run with zero delay.
type Simulator struct {
	latencyScale float64
	log          *zap.SugaredLogger

	mu         sync.Mutex
	laserPower float64
}

// NewSimulator creates a simulator. latencyScale 1.0 is realistic timing,
// 0 disables all delays.
func NewSimulator(latencyScale float64, log *zap.SugaredLogger) *Simulator {
	return &Simulator{
		latencyScale: latencyScale,
		log:          log,
		laserPower:   1.0,
	}
}

// sleep waits for the scaled duration or until the context is done.
func (s *Simulator) sleep(ctx context.Context, d time.Duration) {
	scaled := time.Duration(float64(d) * s.latencyScale)
	if scaled <= 0 {
		return
	}

	select {
	case <-time.After(scaled):
	case <-ctx.Done():
	}
}

// Home drives the head to its home position at a speed percentage. The homing
// time is inversely proportional to speed.
func (s *Simulator) Home(ctx context.Context, speed float64) (azimuth, elevation float64) {
	s.log.Infof("homing at %.1f%% speed", speed)
	s.sleep(ctx, time.Duration(1000/(speed/100.0))*time.Millisecond)
	s.log.Info("homing complete")

	return 0.0, 0.0
}

// CurrentPosition reads the simulated sensors.
func (s *Simulator) CurrentPosition() map[string]any {
	return map[string]any{
		"x":         1234.567,
		"y":         2345.678,
		"z":         345.789,
		"azimuth":   45.123,
		"elevation": 12.456,
	}
}

// SetLaserPower applies a power level in [0,1]. Range checking is the
// caller's job; the device just applies it.
func (s *Simulator) SetLaserPower(level float64) {
	s.mu.Lock()
	s.laserPower = level
	s.mu.Unlock()
	s.log.Infof("laser power set to %.0f%%", level*100)
}

// LaserPower returns the currently applied power level.
func (s *Simulator) LaserPower() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.laserPower
}

// Compensate computes the environmental compensation factor from ambient
// readings. The calculation itself takes a fixed amount of device time.
func (s *Simulator) Compensate(ctx context.Context, temperature, pressure, humidity float64) float64 {
	s.log.Infof("compensating: T=%.1fC P=%.2fhPa H=%.1f%%", temperature, pressure, humidity)
	s.sleep(ctx, 500*time.Millisecond)

	return 1.0 + ((temperature - 20.0) * 0.000001) + ((pressure - 1013.25) * 0.0000001)
}

// MoveRelative moves the head by relative angles. The move time grows with
// the angular distance.
func (s *Simulator) MoveRelative(ctx context.Context, azimuth, elevation float64) time.Duration {
	moveTime := time.Duration(math.Sqrt(azimuth*azimuth+elevation*elevation)*10) * time.Millisecond
	s.log.Infof("moving by az=%.3f el=%.3f (%.0fms)", azimuth, elevation, float64(moveTime.Milliseconds()))
	s.sleep(ctx, moveTime)

	return moveTime
}

// HostReadings samples process-host diagnostics for status reports. Readings
// that cannot be sampled are simply omitted.
func (s *Simulator) HostReadings(ctx context.Context) map[string]any {
	readings := map[string]any{}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		readings["cpuPercent"] = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		readings["memUsedPercent"] = vm.UsedPercent
	}

	return readings
}
