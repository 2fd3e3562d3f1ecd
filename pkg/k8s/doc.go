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

// Package k8s groups labctl's Kubernetes helpers.
//
// # Sub-packages
//
// client: singleton clientset and dynamic client built from the kubeconfig
// written by the microk8s stage.
//
//	cs, _, err := client.GetKubeClient()
//
// resources: check-then-act helpers (namespaces, secrets, ConfigMaps) and
// readiness waits for Deployments, Endpoints, ServiceAccounts and claims.
//
//	created, err := resources.EnsureNamespace(ctx, cs, "harbor")
//	err = resources.WaitForDeploymentReady(ctx, cs, "harbor", "harbor-core", 5*time.Minute)
//
// Waits poll with wait.PollUntilContextTimeout and return TIMEOUT errors
// carrying the last observed state.
package k8s
