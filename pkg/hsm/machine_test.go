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

package hsm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/apexmetrology/trackerd/pkg/hsm"
	"github.com/apexmetrology/trackerd/pkg/messages"
)

var _ = Describe("Machine", func() {
	var (
		machine *hsm.Machine
		logs    *observer.ObservedLogs
	)

	BeforeEach(func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.InfoLevel)
		machine = hsm.NewMachine(zap.New(core).Sugar())
	})

	// drive replays a message sequence, requiring each to be handled.
	drive := func(msgs ...messages.Message) {
		for _, msg := range msgs {
			Expect(machine.Handle(msg)).To(BeTrue(),
				"expected %s to be handled in %s", msg.MessageName(), machine.StateName())
		}
	}

	It("starts in Off", func() {
		Expect(machine.StateName()).To(Equal("Off"))
	})

	Describe("transition table", func() {
		It("powers on into Operational::Initializing", func() {
			drive(messages.PowerOn{})
			Expect(machine.StateName()).To(Equal("Operational::Initializing"))
		})

		It("powers off from any operational sub-state", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{})
			drive(messages.PowerOff{})
			Expect(machine.StateName()).To(Equal("Off"))
		})

		It("moves to Idle on InitComplete", func() {
			drive(messages.PowerOn{}, messages.InitComplete{})
			Expect(machine.StateName()).To(Equal("Operational::Idle"))
		})

		It("moves to Error with code -1 on InitFailed", func() {
			drive(messages.PowerOn{}, messages.InitFailed{Reason: "laser fault"})
			Expect(machine.StateName()).To(Equal("Operational::Error"))

			op, ok := machine.Current().(*hsm.Operational)
			Expect(ok).To(BeTrue())
			errState, ok := op.Sub.(*hsm.Error)
			Expect(ok).To(BeTrue())
			Expect(errState.Code).To(Equal(-1))
			Expect(errState.Description).To(Equal("laser fault"))
		})

		It("enters Tracking::Searching on StartSearch", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{})
			Expect(machine.StateName()).To(Equal("Operational::Tracking::Searching"))
		})

		It("records the acquired distance in Locked", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{})
			drive(messages.TargetFound{DistanceMM: 5000.0})
			Expect(machine.StateName()).To(Equal("Operational::Tracking::Locked"))

			op := machine.Current().(*hsm.Operational)
			tr := op.Sub.(*hsm.Tracking)
			Expect(tr.Sub.(*hsm.Locked).TargetDistanceMM).To(Equal(5000.0))
		})

		It("falls back to Searching on TargetLost from Locked", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.TargetFound{DistanceMM: 100}, messages.TargetLost{})
			Expect(machine.StateName()).To(Equal("Operational::Tracking::Searching"))
		})

		It("falls back to Searching on TargetLost while Measuring", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.TargetFound{DistanceMM: 100}, messages.StartMeasure{}, messages.TargetLost{})
			Expect(machine.StateName()).To(Equal("Operational::Tracking::Searching"))
		})

		It("returns to Locked on StopMeasure", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.TargetFound{DistanceMM: 100}, messages.StartMeasure{}, messages.StopMeasure{})
			Expect(machine.StateName()).To(Equal("Operational::Tracking::Locked"))
		})

		It("returns to Idle from anywhere inside Tracking", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.TargetFound{DistanceMM: 100}, messages.StartMeasure{}, messages.ReturnToIdle{})
			Expect(machine.StateName()).To(Equal("Operational::Idle"))
		})

		It("faults from Idle on ErrorOccurred", func() {
			drive(messages.PowerOn{}, messages.InitComplete{},
				messages.ErrorOccurred{Code: 7, Description: "encoder glitch"})
			Expect(machine.StateName()).To(Equal("Operational::Error"))
		})

		It("faults from Tracking on ErrorOccurred", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.ErrorOccurred{Code: 9, Description: "beam interrupted"})
			Expect(machine.StateName()).To(Equal("Operational::Error"))
		})

		It("re-initializes on Reset from Error", func() {
			drive(messages.PowerOn{}, messages.InitFailed{Reason: "self-test failed"}, messages.Reset{})
			Expect(machine.StateName()).To(Equal("Operational::Initializing"))
		})
	})

	Describe("unhandled messages", func() {
		It("ignores a second PowerOn without changing state", func() {
			drive(messages.PowerOn{})
			Expect(machine.Handle(messages.PowerOn{})).To(BeFalse())
			Expect(machine.StateName()).To(Equal("Operational::Initializing"))
		})

		It("ignores StartMeasure while Searching", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{})
			Expect(machine.Handle(messages.StartMeasure{})).To(BeFalse())
			Expect(machine.StateName()).To(Equal("Operational::Tracking::Searching"))
		})

		It("ignores events while Off", func() {
			Expect(machine.Handle(messages.InitComplete{})).To(BeFalse())
			Expect(machine.Handle(messages.TargetFound{DistanceMM: 1})).To(BeFalse())
			Expect(machine.StateName()).To(Equal("Off"))
		})
	})

	Describe("measurement session", func() {
		BeforeEach(func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.TargetFound{DistanceMM: 5000.0}, messages.StartMeasure{})
		})

		It("counts points in place without leaving Measuring", func() {
			drive(
				messages.MeasurementComplete{X: 1.1, Y: 2.2, Z: 3.3},
				messages.MeasurementComplete{X: 1.2, Y: 2.3, Z: 3.4},
				messages.MeasurementComplete{X: 1.3, Y: 2.4, Z: 3.5},
			)

			Expect(machine.StateName()).To(Equal("Operational::Tracking::Measuring"))

			op := machine.Current().(*hsm.Operational)
			tr := op.Sub.(*hsm.Tracking)
			meas := tr.Sub.(*hsm.Measuring)
			Expect(meas.PointCount).To(Equal(3))
			Expect(meas.LastX).To(Equal(1.3))
			Expect(meas.LastY).To(Equal(2.4))
			Expect(meas.LastZ).To(Equal(3.5))
		})
	})

	Describe("entry and exit ordering", func() {
		messagesAfter := func(n int) []string {
			all := logs.All()
			names := make([]string, 0, len(all)-n)
			for _, entry := range all[n:] {
				names = append(names, entry.Message)
			}

			return names
		}

		It("runs exit before entry on the top-level transition", func() {
			before := logs.Len()
			drive(messages.PowerOn{})

			Expect(messagesAfter(before)).To(Equal([]string{
				"exit Off: preparing for power up",
				"entry Operational: system powered on",
				"entry Initializing: starting self-test and calibration",
			}))
		})

		It("enters the implicit initial sub-state of a fresh composite", func() {
			drive(messages.PowerOn{}, messages.InitComplete{})
			before := logs.Len()
			drive(messages.StartSearch{})

			Expect(messagesAfter(before)).To(Equal([]string{
				"exit Idle: activating laser systems",
				"entry Tracking: entering tracking mode",
				"entry Searching: scanning for retroreflector target",
			}))
		})

		It("exits the innermost sub-state first when leaving a composite", func() {
			drive(messages.PowerOn{}, messages.InitComplete{}, messages.StartSearch{},
				messages.TargetFound{DistanceMM: 100}, messages.StartMeasure{})
			before := logs.Len()
			drive(messages.PowerOff{})

			Expect(messagesAfter(before)).To(Equal([]string{
				"exit Measuring: measurement session ended (0 points recorded)",
				"exit Tracking: leaving tracking mode",
				"exit Operational: shutting down systems",
				"entry Off: laser tracker powered down",
			}))
		})
	})
})
