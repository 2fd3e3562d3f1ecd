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

// Package status reports the state of a bootstrapped host.
//
// A Collector gathers, concurrently and best-effort, the MicroK8s systemd
// units, the Kubernetes server version, the Helm releases labctl manages
// with their chart version drift, the Harbor certificate, and the summary
// of the last bootstrap run. Section failures are recorded in the Report
// instead of aborting collection, so a half-built host still gets a report.
//
// The last run summary lives in a ConfigMap written by SaveSummary after
// each bootstrap.
package status
