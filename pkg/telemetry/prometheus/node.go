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
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/atomic"
)

const (
	tutorRoomNamespace string = "tutor_room"
)

var (
	initialized atomic.Bool

	ServiceOperationCounter *prometheus.CounterVec
)

// Init registers all collectors. Recording before Init is a no-op.
func Init(nodeID string) {
	if initialized.Swap(true) {
		return
	}

	ServiceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   tutorRoomNamespace,
			Subsystem:   "node",
			Name:        "service_operation",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		},
		[]string{"type", "status", "error_type"},
	)
	prometheus.MustRegister(ServiceOperationCounter)

	initSessionStats(nodeID)
	initAdmissionStats(nodeID)
}

func IsInitialized() bool {
	return initialized.Load()
}

// RecordServiceOperation counts one admission API operation.
func RecordServiceOperation(op string, err error) {
	if !initialized.Load() {
		return
	}
	status, errorType := "success", ""
	if err != nil {
		status, errorType = "failure", fmt.Sprintf("%T", err)
	}
	ServiceOperationCounter.WithLabelValues(op, status, errorType).Add(1)
}

// NewServer serves /metrics on port. It returns nil when port is 0.
func NewServer(port uint32) *http.Server {
	if port == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
}
