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

package certmanager

import (
	"context"
	"fmt"
	"log/slog"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/k8s/resources"
)

const (
	repoName = "jetstack"
	repoURL  = "https://charts.jetstack.io"
	chart    = "jetstack/cert-manager"

	webhookService = "cert-manager-webhook"

	// Release is the cert-manager Helm release name.
	Release = "cert-manager"

	// SecretAccessKeyKey is the key of the Route53 secret access key in its Secret.
	SecretAccessKeyKey = "secret-access-key"
)

var (
	// ClusterIssuerGVR identifies cert-manager ClusterIssuers.
	ClusterIssuerGVR = schema.GroupVersionResource{Group: "cert-manager.io", Version: "v1", Resource: "clusterissuers"}
	// CertificateGVR identifies cert-manager Certificates.
	CertificateGVR = schema.GroupVersionResource{Group: "cert-manager.io", Version: "v1", Resource: "certificates"}

	deployments = []string{"cert-manager", "cert-manager-webhook", "cert-manager-cainjector"}
)

// Manager runs the certs stage.
type Manager struct {
	Helm    *helm.Client
	Kube    kubernetes.Interface
	Dynamic dynamic.Interface
	Config  config.CertManagerConfig
}

// Run installs cert-manager, creates the issuer and certificate, and waits
// until the certificate is issued.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Install(ctx); err != nil {
		return err
	}
	if _, err := m.EnsureRoute53Secret(ctx); err != nil {
		return err
	}
	if _, err := m.EnsureClusterIssuer(ctx); err != nil {
		return err
	}
	if _, err := m.EnsureCertificate(ctx); err != nil {
		return err
	}
	return m.WaitForCertificate(ctx)
}

// Install deploys the cert-manager chart with its CRDs and waits for the
// controller, webhook and cainjector, then for webhook endpoints.
func (m *Manager) Install(ctx context.Context) error {
	err := m.Helm.UpgradeInstall(ctx, helm.Release{
		Name:            Release,
		Namespace:       m.Config.Namespace,
		Chart:           chart,
		Version:         m.Config.ChartVersion,
		RepoName:        repoName,
		RepoURL:         repoURL,
		CreateNamespace: true,
		Values: helm.Values{
			"crds": map[string]any{"enabled": true},
		},
	})
	if err != nil {
		return err
	}

	timeout := m.Config.ReadyTimeout.Or(defaults.DeploymentReadyTimeout)
	if err := resources.WaitForDeployments(ctx, m.Kube, m.Config.Namespace, deployments, timeout); err != nil {
		return err
	}
	// The webhook rejects issuer creation until it has a ready endpoint.
	return resources.WaitForEndpoints(ctx, m.Kube, m.Config.Namespace, webhookService, defaults.EndpointsReadyTimeout)
}

// EnsureRoute53Secret stores the Route53 secret access key. An existing
// secret is left unchanged.
func (m *Manager) EnsureRoute53Secret(ctx context.Context) (bool, error) {
	r53 := m.Config.Route53
	exists, err := resources.SecretExists(ctx, m.Kube, m.Config.Namespace, r53.SecretName)
	if err != nil {
		return false, err
	}
	if exists {
		slog.Info("route53 secret exists, skipping", "namespace", m.Config.Namespace, "name", r53.SecretName)
		return false, nil
	}
	if r53.SecretAccessKey == "" {
		return false, apperrors.New(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("secret %s/%s does not exist and certManager.route53.secretAccessKey is empty", m.Config.Namespace, r53.SecretName))
	}

	if _, err := resources.EnsureNamespace(ctx, m.Kube, m.Config.Namespace); err != nil {
		return false, err
	}
	secret := resources.OpaqueSecret(m.Config.Namespace, r53.SecretName, map[string]string{
		SecretAccessKeyKey: r53.SecretAccessKey,
	})
	return resources.EnsureSecret(ctx, m.Kube, secret, false)
}

// EnsureClusterIssuer creates or updates the ACME ClusterIssuer.
func (m *Manager) EnsureClusterIssuer(ctx context.Context) (bool, error) {
	obj := ClusterIssuer(m.Config)
	return apply(ctx, m.Dynamic.Resource(ClusterIssuerGVR), obj)
}

// EnsureCertificate creates or updates the Certificate in its namespace.
func (m *Manager) EnsureCertificate(ctx context.Context) (bool, error) {
	c := m.Config.Certificate
	if _, err := resources.EnsureNamespace(ctx, m.Kube, c.Namespace); err != nil {
		return false, err
	}
	obj := Certificate(m.Config)
	return apply(ctx, m.Dynamic.Resource(CertificateGVR).Namespace(c.Namespace), obj)
}
