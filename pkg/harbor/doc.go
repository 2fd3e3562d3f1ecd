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

// Package harbor deploys the Harbor registry with the goharbor Helm chart.
//
// Harbor is exposed through an ingress using the TLS secret issued by the
// certs stage, and persists its components on the claims created by the
// storage stage. The admin password lives in a Secret that the chart reads
// through existingSecretAdminPassword; it is generated on first install and
// reused afterwards.
//
// Project configuration through the REST API lives in harbor/configure.
package harbor
