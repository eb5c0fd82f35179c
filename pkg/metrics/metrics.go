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

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Envelope outcome labels.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeNotHandled = "not_handled"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "trackerd"
	subsystem = "core"

	processedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "envelopes_processed_total",
			Help:      "Total number of envelopes processed by message kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	deferredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "envelopes_deferred_total",
			Help:      "Total number of sync envelopes parked in the deferral buffer",
		},
	)

	staleDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "envelopes_stale_dropped_total",
			Help:      "Total number of envelopes discarded unprocessed because their timeout had already elapsed",
		},
	)

	callerTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "caller_timeouts_total",
			Help:      "Total number of synchronous sends that gave up waiting",
		},
	)

	queueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_length",
			Help:      "Current number of envelopes waiting in the inbound queue",
		},
	)

	inflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inflight_requests",
			Help:      "Current number of outstanding request ids",
		},
	)

	processingTime = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "processing_duration_milliseconds",
			Help:      "Time taken to process one envelope (in milliseconds)",
			Objectives: map[float64]float64{
				0.5:  0.01, // 50th percentile with 1% error
				0.9:  0.01, // 90th percentile with 1% error
				0.95: 0.01, // 95th percentile with 1% error
				0.99: 0.01, // 99th percentile with 1% error
			},
		},
		[]string{"kind"},
	)
)

// IncProcessed records a processed envelope by message kind and outcome.
func IncProcessed(kind, outcome string) {
	processedTotal.WithLabelValues(kind, outcome).Inc()
}

// IncDeferred records a sync envelope parked in the deferral buffer.
func IncDeferred() {
	deferredTotal.Inc()
}

// IncStaleDropped records an envelope discarded unprocessed for staleness.
func IncStaleDropped() {
	staleDroppedTotal.Inc()
}

// IncCallerTimeout records a synchronous send that gave up waiting.
func IncCallerTimeout() {
	callerTimeoutsTotal.Inc()
}

// SetQueueLength updates the inbound queue depth gauge.
func SetQueueLength(n int) {
	queueLength.Set(float64(n))
}

// SetInflightRequests updates the outstanding-request gauge.
func SetInflightRequests(n int) {
	inflightRequests.Set(float64(n))
}

// ObserveProcessingTime records how long one envelope took to process.
func ObserveProcessingTime(kind string, duration time.Duration) {
	processingTime.WithLabelValues(kind).Observe(float64(duration.Milliseconds()))
}

// Handler returns the HTTP handler serving the prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
