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

package harbor

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"

	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/k8s/resources"
)

const (
	repoName = "harbor"
	repoURL  = "https://helm.goharbor.io"
	chart    = "harbor/harbor"

	// AdminUser is Harbor's built-in administrator.
	AdminUser = "admin"
)

// components are the Deployments the chart creates, suffixed to the release name.
var components = []string{"core", "portal", "registry", "jobservice"}

// Installer runs the harbor stage.
type Installer struct {
	Helm    *helm.Client
	Kube    kubernetes.Interface
	Config  config.HarborConfig
	Storage config.StorageConfig
}

// Deployments returns the Deployment names of the release.
func (i *Installer) Deployments() []string {
	out := make([]string, 0, len(components))
	for _, c := range components {
		out = append(out, i.Config.Release+"-"+c)
	}
	return out
}

// Run installs or upgrades Harbor and waits for its Deployments.
func (i *Installer) Run(ctx context.Context) error {
	if _, err := resources.EnsureNamespace(ctx, i.Kube, i.Config.Namespace); err != nil {
		return err
	}
	if _, err := i.EnsureAdminSecret(ctx); err != nil {
		return err
	}

	values, err := BuildValues(i.Config, i.Storage)
	if err != nil {
		return err
	}
	err = i.Helm.UpgradeInstall(ctx, helm.Release{
		Name:      i.Config.Release,
		Namespace: i.Config.Namespace,
		Chart:     chart,
		Version:   i.Config.ChartVersion,
		RepoName:  repoName,
		RepoURL:   repoURL,
		Values:    values,
	})
	if err != nil {
		return err
	}

	timeout := i.Config.ReadyTimeout.Or(defaults.DeploymentReadyTimeout)
	return resources.WaitForDeployments(ctx, i.Kube, i.Config.Namespace, i.Deployments(), timeout)
}

// EnsureAdminSecret stores the admin password unless the Secret already
// exists. The password comes from configuration or is generated. It reports
// whether the Secret was created.
func (i *Installer) EnsureAdminSecret(ctx context.Context) (bool, error) {
	exists, err := resources.SecretExists(ctx, i.Kube, i.Config.Namespace, i.Config.AdminSecretName)
	if err != nil {
		return false, err
	}
	if exists {
		if i.Config.AdminPassword != "" {
			slog.Warn("admin secret exists, configured admin password ignored",
				"namespace", i.Config.Namespace, "name", i.Config.AdminSecretName)
		}
		return false, nil
	}

	password := i.Config.AdminPassword
	if password == "" {
		password, err = GeneratePassword()
		if err != nil {
			return false, err
		}
		slog.Info("generated harbor admin password",
			"namespace", i.Config.Namespace, "secret", i.Config.AdminSecretName)
	}
	secret := resources.OpaqueSecret(i.Config.Namespace, i.Config.AdminSecretName, map[string]string{
		AdminPasswordKey: password,
	})
	return resources.EnsureSecret(ctx, i.Kube, secret, false)
}

// AdminPassword returns the admin password, preferring the stored Secret over
// configuration.
func AdminPassword(ctx context.Context, cs kubernetes.Interface, cfg config.HarborConfig) (string, error) {
	v, err := resources.GetSecretValue(ctx, cs, cfg.Namespace, cfg.AdminSecretName, AdminPasswordKey)
	if err == nil {
		return v, nil
	}
	if cfg.AdminPassword != "" && apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return cfg.AdminPassword, nil
	}
	return "", err
}

// GeneratePassword returns a random password meeting Harbor's complexity rules
// (upper, lower and a digit).
func GeneratePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return "Hb1" + base64.RawURLEncoding.EncodeToString(b), nil
}
