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

package models_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apexmetrology/trackerd/pkg/codec"
	"github.com/apexmetrology/trackerd/pkg/models"
)

var _ = Describe("Envelope", func() {
	Describe("ParseEnvelope", func() {
		It("decodes a full request", func() {
			env, err := models.ParseEnvelope([]byte(
				`{"id":7,"name":"Home","params":{"speed":50},"sync":true,"needsReply":true,"timeoutMs":2000}`))
			Expect(err).NotTo(HaveOccurred())

			Expect(env.ID).To(Equal(uint64(7)))
			Expect(env.Name).To(Equal("Home"))
			Expect(env.Params).To(HaveKeyWithValue("speed", 50.0))
			Expect(env.Sync).To(BeTrue())
			Expect(env.NeedsReply).To(BeTrue())
			Expect(env.TimeoutMs).To(Equal(uint32(2000)))
			Expect(env.CreatedAt).To(BeTemporally("~", time.Now(), time.Second))
		})

		It("defaults an absent needsReply to the sync flag", func() {
			env, err := models.ParseEnvelope([]byte(`{"name":"Home","sync":true}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.NeedsReply).To(BeTrue())

			env, err = models.ParseEnvelope([]byte(`{"name":"PowerOn","sync":false}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.NeedsReply).To(BeFalse())
		})

		It("keeps an explicit needsReply that contradicts sync", func() {
			env, err := models.ParseEnvelope([]byte(`{"name":"PowerOn","sync":true,"needsReply":false}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.NeedsReply).To(BeFalse())
		})

		It("leaves an absent id at zero for the engine to assign", func() {
			env, err := models.ParseEnvelope([]byte(`{"name":"GetStatus"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(env.ID).To(BeZero())
		})

		It("rejects malformed JSON", func() {
			_, err := models.ParseEnvelope([]byte(`{"name":`))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("malformed envelope"))
		})

		It("rejects a request without a message name", func() {
			_, err := models.ParseEnvelope([]byte(`{"id":1,"sync":true}`))
			Expect(err).To(MatchError(ContainSubstring("missing message name")))
		})
	})

	Describe("timeouts", func() {
		It("never times out with TimeoutMs zero", func() {
			env := models.NewEnvelope(1, "GetStatus", nil, false, true, 0)
			env.CreatedAt = time.Now().Add(-time.Hour)
			Expect(env.TimedOut()).To(BeFalse())
		})

		It("times out once the deadline passes", func() {
			env := models.NewEnvelope(1, "GetStatus", nil, false, true, 10)
			Expect(env.TimedOut()).To(BeFalse())

			env.CreatedAt = time.Now().Add(-20 * time.Millisecond)
			Expect(env.TimedOut()).To(BeTrue())
			Expect(env.Remaining()).To(BeZero())
		})
	})

	Describe("wire round-trip", func() {
		It("survives ToWire then ParseEnvelope", func() {
			original := models.NewEnvelope(42, "TargetFound",
				map[string]any{"distance_mm": 5000.0}, true, true, 1500)

			wire, err := original.ToWire()
			Expect(err).NotTo(HaveOccurred())

			parsed, err := models.ParseEnvelope(wire)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.ID).To(Equal(original.ID))
			Expect(parsed.Name).To(Equal(original.Name))
			Expect(parsed.Params).To(Equal(original.Params))
			Expect(parsed.Sync).To(Equal(original.Sync))
			Expect(parsed.NeedsReply).To(Equal(original.NeedsReply))
			Expect(parsed.TimeoutMs).To(Equal(original.TimeoutMs))
		})
	})
})

var _ = Describe("Response", func() {
	It("correlates to its envelope", func() {
		env := models.NewEnvelope(9, "Home", nil, true, true, 0)
		resp := models.NewResponse(env, true, map[string]any{"state": "Operational::Idle"}, "")

		Expect(resp.ID).To(Equal(uint64(9)))
		Expect(resp.Name).To(Equal("Home"))
		Expect(resp.Success).To(BeTrue())
		Expect(resp.RequestCreatedAt).To(Equal(env.CreatedAt))
	})

	It("serializes with the response marker and request age", func() {
		env := models.NewEnvelope(3, "GetPosition", nil, false, true, 0)
		env.CreatedAt = time.Now().Add(-250 * time.Millisecond)

		wire, err := models.NewResponse(env, false, nil, "not available").ToWire()
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(codec.Unmarshal(wire, &decoded)).To(Succeed())
		Expect(decoded).To(HaveKeyWithValue("isResponse", true))
		Expect(decoded).To(HaveKeyWithValue("id", 3.0))
		Expect(decoded).To(HaveKeyWithValue("success", false))
		Expect(decoded).To(HaveKeyWithValue("error", "not available"))
		Expect(decoded["timestamp_ms"]).To(BeNumerically(">=", 250))
	})

	It("omits the error field on success", func() {
		env := models.NewEnvelope(4, "GetStatus", nil, false, true, 0)

		wire, err := models.NewResponse(env, true, map[string]any{"healthy": true}, "").ToWire()
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(codec.Unmarshal(wire, &decoded)).To(Succeed())
		Expect(decoded).NotTo(HaveKey("error"))
	})

	It("builds a synthetic timeout failure", func() {
		resp := models.NewTimeoutResponse(11, "Compensate")
		Expect(resp.Success).To(BeFalse())
		Expect(resp.Error).NotTo(BeEmpty())
		Expect(resp.ID).To(Equal(uint64(11)))
	})
})
