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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apexmetrology/trackerd/pkg/config"
)

var _ = Describe("Config", func() {
	writeFile := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())

		return path
	}

	It("provides sensible defaults", func() {
		cfg := config.DefaultConfig()
		Expect(cfg.Engine.PollInterval()).To(Equal(100 * time.Millisecond))
		Expect(cfg.Device.LatencyScale).To(Equal(1.0))
		Expect(cfg.API.Enabled).To(BeTrue())
		Expect(cfg.API.Listen).To(Equal(":8090"))
	})

	It("overlays file values on the defaults", func() {
		path := writeFile(`
engine:
  pollIntervalMs: 50
  defaultTimeoutMs: 2000
device:
  latencyScale: 0.5
api:
  enabled: false
agent:
  logLevel: debug
`)

		cfg, err := config.LoadFromFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.PollInterval()).To(Equal(50 * time.Millisecond))
		Expect(cfg.Engine.DefaultTimeoutMs).To(Equal(uint32(2000)))
		Expect(cfg.Device.LatencyScale).To(Equal(0.5))
		Expect(cfg.API.Enabled).To(BeFalse())
		Expect(cfg.Agent.LogLevel).To(Equal("debug"))
	})

	It("restores the poll interval default when unset", func() {
		cfg, err := config.LoadFromFile(writeFile(`device: {latencyScale: 1.0}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Engine.PollInterval()).To(Equal(100 * time.Millisecond))
	})

	It("rejects a negative latency scale", func() {
		_, err := config.LoadFromFile(writeFile(`device: {latencyScale: -1.0}`))
		Expect(err).To(MatchError(ContainSubstring("latencyScale")))
	})

	It("fails on a missing file", func() {
		_, err := config.LoadFromFile("/nonexistent/config.yaml")
		Expect(err).To(HaveOccurred())
	})

	It("fails on invalid YAML", func() {
		_, err := config.LoadFromFile(writeFile("engine: ["))
		Expect(err).To(MatchError(ContainSubstring("parse")))
	})
})
