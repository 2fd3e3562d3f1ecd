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

// Package client provides the Kubernetes clients shared by every labctl stage.
//
// Clients are built on first successful use and cached:
//
//	import "github.com/homelab/labctl/pkg/k8s/client"
//
//	clientset, config, err := client.GetKubeClient()
//	if err != nil {
//	    return fmt.Errorf("failed to get kubernetes client: %w", err)
//	}
//
// The microk8s stage writes the kubeconfig that later stages use. The CLI
// passes its --kubeconfig flag to SetDefaultKubeconfig before any stage runs;
// without it ResolveKubeconfig tries:
//   - KUBECONFIG environment variable
//   - ~/.kube/config
//   - the MicroK8s credentials file
//   - In-cluster service account
//
// # Custom Resources
//
// cert-manager ClusterIssuers and Certificates have no typed clientset in
// labctl's dependency set. GetDynamicClient returns a dynamic client built from
// the same rest.Config.
//
// # Custom Kubeconfig Path
//
// BuildKubeClient creates a client for an explicit kubeconfig and bypasses the
// cache:
//
//	clientset, config, err := client.BuildKubeClient("/path/to/kubeconfig")
//
// # Testing
//
// Packages accept kubernetes.Interface and dynamic.Interface so tests can use
// k8s.io/client-go/kubernetes/fake and k8s.io/client-go/dynamic/fake.
package client
