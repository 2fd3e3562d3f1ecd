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

package defaults

import "time"

// Command timeouts for external tool invocations.
const (
	// CommandTimeout is the default timeout for short CLI invocations.
	CommandTimeout = 2 * time.Minute

	// SnapInstallTimeout bounds `snap install microk8s`, which downloads the snap.
	SnapInstallTimeout = 10 * time.Minute

	// AptInstallTimeout bounds apt-get package installation.
	AptInstallTimeout = 10 * time.Minute

	// HelmInstallTimeout is passed to `helm upgrade --install --timeout`.
	HelmInstallTimeout = 10 * time.Minute
)

// Kubernetes timeouts for API operations and readiness waits.
const (
	// K8sAPITimeout is the timeout for a single Kubernetes API call.
	K8sAPITimeout = 30 * time.Second

	// MicroK8sReadyTimeout is how long to wait for `microk8s status --wait-ready`.
	MicroK8sReadyTimeout = 5 * time.Minute

	// DeploymentReadyTimeout is the default wait for a Deployment to become available.
	DeploymentReadyTimeout = 5 * time.Minute

	// EndpointsReadyTimeout is the default wait for webhook endpoints.
	EndpointsReadyTimeout = 3 * time.Minute

	// ServiceAccountTimeout is the default wait for a ServiceAccount to appear.
	ServiceAccountTimeout = 2 * time.Minute

	// PollInterval is the interval between readiness checks.
	PollInterval = 2 * time.Second

	// ConfigMapWriteTimeout is the timeout for writing to ConfigMaps.
	ConfigMapWriteTimeout = 30 * time.Second

	// KubeClientQPS and KubeClientBurst throttle the Kubernetes client.
	KubeClientQPS   = 20
	KubeClientBurst = 40
)

// Certificate timeouts.
const (
	// CertificateReadyTimeout is the default wait for a Certificate to become Ready.
	// DNS-01 propagation through Route53 regularly takes a few minutes.
	CertificateReadyTimeout = 10 * time.Minute

	// CertificatePollInterval is the interval between Certificate status checks.
	CertificatePollInterval = 5 * time.Second
)

// HTTP client settings for outbound requests.
const (
	// HTTPClientTimeout is the default total timeout for HTTP requests.
	HTTPClientTimeout = 30 * time.Second

	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 5 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 5 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 10 * time.Second

	// HTTPIdleConnTimeout is the timeout for idle connections in the pool.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second

	// HTTPRetryMax is the number of retries for transient Harbor API failures.
	HTTPRetryMax = 4

	// HTTPRetryDelay is the initial backoff between retries.
	HTTPRetryDelay = 500 * time.Millisecond

	// HTTPRetryMaxDelay caps the retry backoff.
	HTTPRetryMaxDelay = 10 * time.Second

	// HarborRequestsPerSecond limits the request rate against the Harbor API.
	HarborRequestsPerSecond = 10

	// HarborRequestBurst is the burst size for the Harbor API limiter.
	HarborRequestBurst = 5
)
