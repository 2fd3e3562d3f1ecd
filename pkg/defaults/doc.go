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

// Package defaults provides centralized configuration constants for labctl.
//
// This package defines timeout values, polling intervals, and client limits
// used across the bootstrap stages. Centralizing these values keeps stage
// code free of magic numbers and makes tuning easier.
//
// # Timeout Categories
//
//   - Command timeouts: for external CLI invocations (snap, microk8s, helm)
//   - Kubernetes timeouts: for API calls and readiness waits
//   - Certificate timeouts: for ACME issuance through DNS-01
//   - HTTP client timeouts: for the Harbor REST API
//
// # Usage
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.K8sAPITimeout)
//	defer cancel()
//
// Waits take their timeout as an argument so the configuration file can
// override these values per stage.
package defaults
