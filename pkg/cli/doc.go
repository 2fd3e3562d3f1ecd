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

// Package cli implements the labctl command line.
//
// # Commands
//
//	labctl bootstrap [--only a,b] [--skip c]
//	labctl prereqs | microk8s | certs | storage | arc
//	labctl harbor install | configure | smoke-test
//	labctl status [--fail-on-problems]
//
// Each stage command runs one bootstrap stage through the same pipeline as
// bootstrap, so it prints a stage summary, records metrics when a metrics
// file is configured, and stores the summary for status.
//
// # Global Flags
//
//	--config, -c      Configuration file (default: labctl.yaml, env LABCTL_CONFIG)
//	--kubeconfig, -k  Kubeconfig (default: microk8s.kubeconfigPath, then KUBECONFIG, ~/.kube/config, MicroK8s credentials)
//	--log-level       debug, info, warn, error (env LABCTL_LOG_LEVEL or LOG_LEVEL)
//	--dry-run         Log external commands instead of running them
//
// Commands that print results accept --output (file, cm://namespace/name,
// or stdout) and --format (json, yaml, table).
//
// A missing labctl.yaml in the working directory falls back to built-in
// defaults; a file named with --config must exist.
package cli
