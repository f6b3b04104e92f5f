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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	promTokensIssued   *prometheus.CounterVec
	promRoomOperations *prometheus.CounterVec
)

func initAdmissionStats(nodeID string) {
	promTokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "admission",
		Name:        "tokens_issued",
		ConstLabels: prometheus.Labels{"node_id": nodeID},
	}, []string{"role"})
	promRoomOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   tutorRoomNamespace,
		Subsystem:   "admission",
		Name:        "room_operations",
		ConstLabels: prometheus.Labels{"node_id": nodeID},
	}, []string{"op", "status"})

	prometheus.MustRegister(promTokensIssued)
	prometheus.MustRegister(promRoomOperations)
}

func RecordTokenIssued(role string) {
	if !initialized.Load() {
		return
	}
	promTokensIssued.WithLabelValues(role).Inc()
}

func RecordRoomOperation(op string, err error) {
	if !initialized.Load() {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	promRoomOperations.WithLabelValues(op, status).Inc()
}
