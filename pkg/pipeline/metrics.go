// Copyright 2026 The labctl Authors.
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

package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WriteMetrics writes the summary to path in Prometheus text format. Each
// stage reports one labctl_stage_result series per status, set to 1 for the
// actual status and 0 otherwise.
func WriteMetrics(path string, sum *Summary) error {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	duration := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labctl_stage_duration_seconds",
			Help: "Wall time of the last run of each bootstrap stage",
		},
		[]string{"stage"},
	)
	result := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labctl_stage_result",
			Help: "Outcome of the last run of each bootstrap stage",
		},
		[]string{"stage", "result"},
	)
	lastRun := factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "labctl_last_run_timestamp_seconds",
			Help: "Unix time the last bootstrap run finished",
		},
	)

	for _, r := range sum.Results {
		duration.WithLabelValues(r.Stage).Set(r.Duration.Seconds())
		for _, s := range Statuses {
			v := 0.0
			if s == r.Status {
				v = 1
			}
			result.WithLabelValues(r.Stage, string(s)).Set(v)
		}
	}
	lastRun.Set(float64(sum.Finished.Unix()))

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
