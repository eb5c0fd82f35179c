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

package device_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/apexmetrology/trackerd/pkg/device"
)

var _ = Describe("Simulator", func() {
	var sim *device.Simulator

	BeforeEach(func() {
		sim = device.NewSimulator(0, zap.NewNop().Sugar())
	})

	It("homes to the origin", func() {
		az, el := sim.Home(context.Background(), 50)
		Expect(az).To(BeZero())
		Expect(el).To(BeZero())
	})

	It("returns a deterministic position reading", func() {
		pos := sim.CurrentPosition()
		Expect(pos).To(HaveKeyWithValue("x", 1234.567))
		Expect(pos).To(HaveKey("azimuth"))
	})

	It("tracks the applied laser power", func() {
		Expect(sim.LaserPower()).To(Equal(1.0))
		sim.SetLaserPower(0.3)
		Expect(sim.LaserPower()).To(Equal(0.3))
	})

	It("computes the compensation factor from ambient readings", func() {
		factor := sim.Compensate(context.Background(), 20.0, 1013.25, 50.0)
		Expect(factor).To(Equal(1.0))

		warmer := sim.Compensate(context.Background(), 30.0, 1013.25, 50.0)
		Expect(warmer).To(BeNumerically(">", factor))
	})

	It("scales move time with angular distance", func() {
		short := sim.MoveRelative(context.Background(), 1, 0)
		long := sim.MoveRelative(context.Background(), 30, 40)
		Expect(long).To(BeNumerically(">", short))
		Expect(long).To(Equal(500 * time.Millisecond))
	})

	It("skips all delays at latency scale zero", func() {
		start := time.Now()
		sim.Home(context.Background(), 1)
		sim.Compensate(context.Background(), 25, 1000, 40)
		Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))
	})
})
