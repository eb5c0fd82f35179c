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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FullConfig is the top-level configuration for the tracker daemon.
type FullConfig struct {
	Engine EngineConfig `yaml:"engine"` // Dispatch engine tuning
	Device DeviceConfig `yaml:"device"` // Simulated device behavior
	API    APIConfig    `yaml:"api"`    // HTTP gateway, optional
	Agent  AgentConfig  `yaml:"agent"`  // Process-level settings
}

// EngineConfig tunes the dispatch engine.
type EngineConfig struct {
	// PollIntervalMs is how long the worker blocks on an empty queue before
	// re-checking for shutdown, in milliseconds. Zero means the built-in
	// default (100ms).
	PollIntervalMs int `yaml:"pollIntervalMs,omitempty"`

	// DefaultTimeoutMs is stamped on wire envelopes that request a reply but
	// carry no timeoutMs. 0 keeps them unbounded.
	DefaultTimeoutMs uint32 `yaml:"defaultTimeoutMs,omitempty"`
}

// PollInterval returns the worker poll interval as a duration.
func (c EngineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// DeviceConfig tunes the simulated hardware backend.
type DeviceConfig struct {
	// LatencyScale multiplies all simulated operation delays. 1.0 is
	// realistic timing, 0 disables delays (used by tests).
	LatencyScale float64 `yaml:"latencyScale"`
}

// APIConfig configures the HTTP gateway.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"` // host:port, default ":8090"
}

// AgentConfig holds process-level settings.
type AgentConfig struct {
	MetricsPort int    `yaml:"metricsPort,omitempty"` // 0 disables the standalone metrics listener
	LogLevel    string `yaml:"logLevel,omitempty"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() FullConfig {
	return FullConfig{
		Engine: EngineConfig{
			PollIntervalMs: 100,
		},
		Device: DeviceConfig{
			LatencyScale: 1.0,
		},
		API: APIConfig{
			Enabled: true,
			Listen:  ":8090",
		},
	}
}

// LoadFromFile reads a YAML config file and overlays it on the defaults.
func LoadFromFile(path string) (FullConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Engine.PollIntervalMs <= 0 {
		cfg.Engine.PollIntervalMs = 100
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		cfg.API.Listen = ":8090"
	}
	if cfg.Device.LatencyScale < 0 {
		return cfg, fmt.Errorf("device.latencyScale must not be negative, got %f", cfg.Device.LatencyScale)
	}

	return cfg, nil
}
