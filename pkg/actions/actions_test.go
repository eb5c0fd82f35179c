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

package actions_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/actions"
	"github.com/apexmetrology/trackerd/pkg/messages"
)

// fakeDevice records calls so validation failures can be shown to leave the
// hardware untouched.
type fakeDevice struct {
	homeCalls       int
	compensateCalls int
	moveCalls       int
	laserPower      float64
}

func (d *fakeDevice) Home(context.Context, float64) (float64, float64) {
	d.homeCalls++

	return 0, 0
}

func (d *fakeDevice) CurrentPosition() map[string]any {
	return map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}
}

func (d *fakeDevice) SetLaserPower(level float64) {
	d.laserPower = level
}

func (d *fakeDevice) LaserPower() float64 {
	return d.laserPower
}

func (d *fakeDevice) Compensate(context.Context, float64, float64, float64) float64 {
	d.compensateCalls++

	return 1.0000025
}

func (d *fakeDevice) MoveRelative(context.Context, float64, float64) time.Duration {
	d.moveCalls++

	return 10 * time.Millisecond
}

func (d *fakeDevice) HostReadings(context.Context) map[string]any {
	return map[string]any{"cpuPercent": 1.0}
}

var _ = Describe("Runner", func() {
	var (
		dev    *fakeDevice
		runner *actions.Runner
		ctx    context.Context
	)

	BeforeEach(func() {
		dev = &fakeDevice{laserPower: 1.0}
		runner = actions.NewRunner(dev, uuid.New(), zap.NewNop().Sugar())
		ctx = context.Background()
	})

	Describe("Home", func() {
		It("runs in Idle and returns the homed position", func() {
			result, err := runner.Run(ctx, messages.Home{Speed: 50}, "Operational::Idle")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(HaveKey("position"))
			Expect(dev.homeCalls).To(Equal(1))
		})

		It("is rejected outside Idle without touching the device", func() {
			_, err := runner.Run(ctx, messages.Home{Speed: 50}, "Operational::Tracking::Locked")
			Expect(err).To(MatchError(ContainSubstring("Idle")))
			Expect(dev.homeCalls).To(BeZero())
		})

		It("rejects out-of-range speeds", func() {
			for _, speed := range []float64{0, -5, 150} {
				_, err := runner.Run(ctx, messages.Home{Speed: speed}, "Operational::Idle")
				Expect(err).To(HaveOccurred(), "speed %.1f", speed)
			}
			Expect(dev.homeCalls).To(BeZero())
		})
	})

	Describe("GetPosition", func() {
		It("reads the position while tracking", func() {
			result, err := runner.Run(ctx, messages.GetPosition{}, "Operational::Tracking::Locked")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(HaveKey("position"))
		})

		It("is rejected while powered down, initializing or faulted", func() {
			for _, state := range []string{"Off", "Operational::Initializing", "Operational::Error"} {
				_, err := runner.Run(ctx, messages.GetPosition{}, state)
				Expect(err).To(HaveOccurred(), state)
			}
		})
	})

	Describe("SetLaserPower", func() {
		It("applies an in-range level", func() {
			result, err := runner.Run(ctx, messages.SetLaserPower{PowerLevel: 0.5}, "Operational::Idle")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(HaveKeyWithValue("powerLevel", 0.5))
			Expect(dev.laserPower).To(Equal(0.5))
		})

		It("rejects levels outside [0,1]", func() {
			for _, level := range []float64{-0.1, 1.5} {
				_, err := runner.Run(ctx, messages.SetLaserPower{PowerLevel: level}, "Operational::Idle")
				Expect(err).To(HaveOccurred(), "level %.2f", level)
			}
			Expect(dev.laserPower).To(Equal(1.0))
		})

		It("is rejected while powered off", func() {
			_, err := runner.Run(ctx, messages.SetLaserPower{PowerLevel: 0.5}, "Off")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Compensate", func() {
		It("runs in Idle and in Locked", func() {
			for _, state := range []string{"Operational::Idle", "Operational::Tracking::Locked"} {
				result, err := runner.Run(ctx, messages.Compensate{
					Temperature: 22.5, Pressure: 1015, Humidity: 45,
				}, state)
				Expect(err).NotTo(HaveOccurred(), state)
				Expect(result).To(HaveKeyWithValue("applied", true))
			}
			Expect(dev.compensateCalls).To(Equal(2))
		})

		It("is rejected while Measuring", func() {
			_, err := runner.Run(ctx, messages.Compensate{}, "Operational::Tracking::Measuring")
			Expect(err).To(HaveOccurred())
			Expect(dev.compensateCalls).To(BeZero())
		})
	})

	Describe("MoveRelative", func() {
		It("reports the move it performed", func() {
			result, err := runner.Run(ctx, messages.MoveRelative{Azimuth: 10, Elevation: 5}, "Operational::Idle")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(HaveKeyWithValue("movedAz", 10.0))
			Expect(result).To(HaveKeyWithValue("movedEl", 5.0))
			Expect(result).To(HaveKey("moveTimeMs"))
		})

		It("is rejected while Searching", func() {
			_, err := runner.Run(ctx, messages.MoveRelative{}, "Operational::Tracking::Searching")
			Expect(err).To(HaveOccurred())
			Expect(dev.moveCalls).To(BeZero())
		})
	})

	Describe("GetStatus", func() {
		It("works in every state", func() {
			for _, state := range []string{"Off", "Operational::Idle", "Operational::Error",
				"Operational::Tracking::Measuring"} {
				result, err := runner.Run(ctx, messages.GetStatus{}, state)
				Expect(err).NotTo(HaveOccurred(), state)
				Expect(result).To(HaveKeyWithValue("state", state))
				Expect(result).To(HaveKey("instanceUUID"))
				Expect(result).To(HaveKey("uptimeSeconds"))
			}
		})

		It("derives health and power from the state name", func() {
			result, _ := runner.Run(ctx, messages.GetStatus{}, "Operational::Error")
			Expect(result).To(HaveKeyWithValue("healthy", false))
			Expect(result).To(HaveKeyWithValue("powered", true))

			result, _ = runner.Run(ctx, messages.GetStatus{}, "Off")
			Expect(result).To(HaveKeyWithValue("healthy", true))
			Expect(result).To(HaveKeyWithValue("powered", false))
		})
	})

	It("rejects non-action messages", func() {
		_, err := runner.Run(ctx, messages.PowerOn{}, "Off")
		Expect(err).To(MatchError(ContainSubstring("not an action command")))
	})
})
