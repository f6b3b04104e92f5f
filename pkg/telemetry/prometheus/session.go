// Copyright 2023 LiveKit, Inc.
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

package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var (
	sessionCurrent atomic.Int32

	promSessionCurrent   prometheus.Gauge
	promJoinAttempts     *prometheus.CounterVec
	promJoinDuration     prometheus.Histogram
	promStateTransitions *prometheus.CounterVec
	promChatMessages     *prometheus.CounterVec
	promTeardownFailures prometheus.Counter
	promTrackUnavailable *prometheus.CounterVec
	promConnectionLost   prometheus.Counter
)

func initSessionStats(nodeID string) {
	constLabels := prometheus.Labels{"node_id": nodeID}

	promSessionCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "session",
		Name:        "total",
		ConstLabels: constLabels,
	})
	promJoinAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "session",
		Name:        "join_attempts",
		ConstLabels: constLabels,
	}, []string{"result"})
	promJoinDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "session",
		Name:        "join_time_ms",
		ConstLabels: constLabels,
		Buckets:     prometheus.ExponentialBucketsRange(100, 30000, 12),
	})
	promStateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "session",
		Name:        "state_transitions",
		ConstLabels: constLabels,
	}, []string{"state"})
	promChatMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "chat",
		Name:        "messages",
		ConstLabels: constLabels,
	}, []string{"direction"})
	promTeardownFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "session",
		Name:        "teardown_failures",
		ConstLabels: constLabels,
	})
	promTrackUnavailable = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "track",
		Name:        "unavailable",
		ConstLabels: constLabels,
	}, []string{"kind"})
	promConnectionLost = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "session",
		Name:        "connection_lost",
		ConstLabels: constLabels,
	})

	prometheus.MustRegister(promSessionCurrent)
	prometheus.MustRegister(promJoinAttempts)
	prometheus.MustRegister(promJoinDuration)
	prometheus.MustRegister(promStateTransitions)
	prometheus.MustRegister(promChatMessages)
	prometheus.MustRegister(promTeardownFailures)
	prometheus.MustRegister(promTrackUnavailable)
	prometheus.MustRegister(promConnectionLost)
}

func SessionStarted() {
	sessionCurrent.Inc()
	if initialized.Load() {
		promSessionCurrent.Add(1)
	}
}

func SessionEnded() {
	sessionCurrent.Dec()
	if initialized.Load() {
		promSessionCurrent.Sub(1)
	}
}

func CurrentSessions() int32 {
	return sessionCurrent.Load()
}

// RecordJoinAttempt counts one credential+connect attempt; result is "success", "retry" or "failed".
func RecordJoinAttempt(result string) {
	if !initialized.Load() {
		return
	}
	promJoinAttempts.WithLabelValues(result).Inc()
}

func RecordJoinTime(startedAt time.Time) {
	if !initialized.Load() || startedAt.IsZero() {
		return
	}
	promJoinDuration.Observe(float64(time.Since(startedAt).Milliseconds()))
}

func RecordStateTransition(state string) {
	if !initialized.Load() {
		return
	}
	promStateTransitions.WithLabelValues(state).Inc()
}

func RecordChatMessage(outgoing bool) {
	if !initialized.Load() {
		return
	}
	direction := "incoming"
	if outgoing {
		direction = "outgoing"
	}
	promChatMessages.WithLabelValues(direction).Inc()
}

func RecordTeardownFailure() {
	if !initialized.Load() {
		return
	}
	promTeardownFailures.Inc()
}

func RecordTrackUnavailable(kind string) {
	if !initialized.Load() {
		return
	}
	promTrackUnavailable.WithLabelValues(kind).Inc()
}

func RecordConnectionLost() {
	if !initialized.Load() {
		return
	}
	promConnectionLost.Inc()
}
