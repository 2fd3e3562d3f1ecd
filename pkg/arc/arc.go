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

package arc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/k8s/resources"
)

const (
	chartBase       = "oci://ghcr.io/actions/actions-runner-controller-charts/"
	ControllerChart = chartBase + "gha-runner-scale-set-controller"
	ScaleSetChart   = chartBase + "gha-runner-scale-set"

	// controllerSuffix is appended to the release name by the controller chart
	// for its Deployment and ServiceAccount.
	controllerSuffix = "-gha-rs-controller"
)

// Keys of the GitHub auth Secret read by the scale set chart.
const (
	KeyToken             = "github_token"
	KeyAppID             = "github_app_id"
	KeyAppInstallationID = "github_app_installation_id"
	KeyAppPrivateKey     = "github_app_private_key"
)

// Installer runs the arc stage.
type Installer struct {
	Helm   *helm.Client
	Kube   kubernetes.Interface
	Config config.ARCConfig
	GitHub config.GitHubConfig
}

// ControllerName is the controller Deployment and ServiceAccount name.
func (i *Installer) ControllerName() string {
	return i.Config.ControllerRelease + controllerSuffix
}

// Run installs the controller, waits for it, then installs every scale set.
func (i *Installer) Run(ctx context.Context) error {
	for _, ns := range []string{i.Config.ControllerNamespace, i.Config.RunnersNamespace} {
		if _, err := resources.EnsureNamespace(ctx, i.Kube, ns); err != nil {
			return err
		}
	}
	if _, err := i.EnsureAuthSecret(ctx); err != nil {
		return err
	}
	if err := i.InstallController(ctx); err != nil {
		return err
	}
	for _, s := range i.Config.ScaleSets {
		if err := i.InstallScaleSet(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// AuthSecretData returns the Secret data for the configured credentials.
// A GitHub App takes precedence over a token.
func AuthSecretData(g config.GitHubConfig) (map[string]string, error) {
	if !g.UsesApp() {
		if g.Token == "" {
			return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "github token or app credentials are required")
		}
		return map[string]string{KeyToken: g.Token}, nil
	}

	key := g.AppPrivateKey
	if key == "" && g.AppPrivateKeyFile != "" {
		b, err := os.ReadFile(g.AppPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read github app private key: %w", err)
		}
		key = string(b)
	}
	if key == "" || g.AppInstallationID == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest,
			"github app requires appInstallationID and appPrivateKey or appPrivateKeyFile")
	}
	if !strings.Contains(key, "PRIVATE KEY") {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "github app private key is not PEM encoded")
	}
	return map[string]string{
		KeyAppID:             g.AppID,
		KeyAppInstallationID: g.AppInstallationID,
		KeyAppPrivateKey:     key,
	}, nil
}

// EnsureAuthSecret writes the GitHub credentials to the runners namespace,
// replacing stale values. It reports whether the Secret changed.
func (i *Installer) EnsureAuthSecret(ctx context.Context) (bool, error) {
	data, err := AuthSecretData(i.GitHub)
	if err != nil {
		return false, err
	}
	secret := resources.OpaqueSecret(i.Config.RunnersNamespace, i.Config.SecretName, data)
	return resources.EnsureSecret(ctx, i.Kube, secret, true)
}

// InstallController installs the controller chart and waits for its
// Deployment and ServiceAccount.
func (i *Installer) InstallController(ctx context.Context) error {
	err := i.Helm.UpgradeInstall(ctx, helm.Release{
		Name:      i.Config.ControllerRelease,
		Namespace: i.Config.ControllerNamespace,
		Chart:     ControllerChart,
		Version:   i.Config.ChartVersion,
	})
	if err != nil {
		return err
	}

	timeout := i.Config.ReadyTimeout.Or(defaults.DeploymentReadyTimeout)
	name := i.ControllerName()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return resources.WaitForDeploymentReady(gctx, i.Kube, i.Config.ControllerNamespace, name, timeout)
	})
	g.Go(func() error {
		return resources.WaitForServiceAccount(gctx, i.Kube, i.Config.ControllerNamespace, name, defaults.ServiceAccountTimeout)
	})
	return g.Wait()
}

// ScaleSetValues renders the chart values for a runner scale set.
func (i *Installer) ScaleSetValues(s config.ScaleSetConfig) helm.Values {
	v := helm.Values{
		"githubConfigUrl":    s.GitHubConfigURL,
		"githubConfigSecret": i.Config.SecretName,
		"minRunners":         s.MinRunners,
		"maxRunners":         s.MaxRunners,
		"runnerScaleSetName": s.Name,
		"controllerServiceAccount": map[string]any{
			"namespace": i.Config.ControllerNamespace,
			"name":      i.ControllerName(),
		},
	}
	if s.ContainerMode != "" {
		v["containerMode"] = map[string]any{"type": s.ContainerMode}
	}
	return v
}

// InstallScaleSet installs one runner scale set release.
func (i *Installer) InstallScaleSet(ctx context.Context, s config.ScaleSetConfig) error {
	slog.Info("installing runner scale set",
		"name", s.Name,
		"url", s.GitHubConfigURL,
		"min", s.MinRunners,
		"max", s.MaxRunners)
	return i.Helm.UpgradeInstall(ctx, helm.Release{
		Name:      s.Name,
		Namespace: i.Config.RunnersNamespace,
		Chart:     ScaleSetChart,
		Version:   i.Config.ChartVersion,
		Values:    i.ScaleSetValues(s),
	})
}
