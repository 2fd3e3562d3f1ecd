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

// Package pipeline runs bootstrap stages in order.
//
// Stages run one after another and the run stops at the first failure, like
// a shell script under set -e. Every stage gets a Result whether it ran,
// was filtered out with only/skip, or never started because an earlier stage
// failed.
//
// When a metrics file is configured the run is also written in Prometheus
// text format, suitable for the node exporter textfile collector:
//
//	labctl_stage_duration_seconds{stage="harbor"} 41.2
//	labctl_stage_result{stage="harbor",result="ok"} 1
package pipeline
