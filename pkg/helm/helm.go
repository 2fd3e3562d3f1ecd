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

package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/k8s/client"
	"github.com/homelab/labctl/pkg/runner"
)

// StatusDeployed is the helm release status of a successful install.
const StatusDeployed = "deployed"

// Values are chart values.
type Values map[string]any

// Release describes one `helm upgrade --install`.
type Release struct {
	Name      string
	Namespace string
	// Chart is "repo/chart" or an oci:// reference.
	Chart   string
	Version string
	// RepoName and RepoURL identify the repository of a non-OCI chart.
	RepoName        string
	RepoURL         string
	CreateNamespace bool
	Values          Values
	Wait            bool
	Timeout         time.Duration
}

// IsOCI reports whether the chart is pulled from an OCI registry.
func (r *Release) IsOCI() bool {
	return strings.HasPrefix(r.Chart, "oci://")
}

// Repo is an entry of `helm repo list`.
type Repo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ReleaseStatus is the subset of `helm status -o json` labctl reads.
type ReleaseStatus struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Revision  int    `json:"version" yaml:"revision"`
	Info      struct {
		Status       string `json:"status" yaml:"status"`
		Description  string `json:"description" yaml:"description"`
		LastDeployed string `json:"last_deployed" yaml:"lastDeployed"`
	} `json:"info" yaml:"info"`
	Chart *struct {
		Metadata struct {
			Name       string `json:"name" yaml:"name"`
			Version    string `json:"version" yaml:"version"`
			AppVersion string `json:"appVersion" yaml:"appVersion"`
		} `json:"metadata" yaml:"metadata"`
	} `json:"chart,omitempty" yaml:"chart,omitempty"`
}

// ChartVersion returns the deployed chart version, or "" when unknown.
func (s *ReleaseStatus) ChartVersion() string {
	if s.Chart == nil {
		return ""
	}
	return s.Chart.Metadata.Version
}

// Client runs helm commands.
type Client struct {
	Runner     runner.Runner
	Kubeconfig string
}

// New returns a helm Client. An empty kubeconfig is resolved on every call
// the way the Kubernetes client resolves it, so the MicroK8s credentials are
// found once the cluster is installed.
func New(r runner.Runner, kubeconfig string) *Client {
	return &Client{Runner: r, Kubeconfig: kubeconfig}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if kc := client.ResolveKubeconfig(c.Kubeconfig); kc != "" {
		args = append(args, "--kubeconfig", kc)
	}
	return c.Runner.Run(ctx, "helm", args...)
}

// RepoList returns the configured chart repositories.
func (c *Client) RepoList(ctx context.Context) ([]Repo, error) {
	out, err := c.Runner.Run(ctx, "helm", "repo", "list", "-o", "json")
	if err != nil {
		// helm exits 1 with "no repositories to show" on a fresh host.
		if runner.ExitCode(err) == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list helm repositories: %w", err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}
	var repos []Repo
	if err := json.Unmarshal(out, &repos); err != nil {
		return nil, fmt.Errorf("failed to parse helm repo list: %w", err)
	}
	return repos, nil
}

// RepoAdd adds the repository unless one with the same name and URL exists.
// A repository with the same name but a different URL is replaced.
// It reports whether the repository list changed.
func (c *Client) RepoAdd(ctx context.Context, name, url string) (bool, error) {
	repos, err := c.RepoList(ctx)
	if err != nil {
		return false, err
	}
	args := []string{"repo", "add", name, url}
	for _, r := range repos {
		if r.Name != name {
			continue
		}
		if strings.TrimRight(r.URL, "/") == strings.TrimRight(url, "/") {
			slog.Debug("helm repository already present", "name", name)
			return false, nil
		}
		slog.Warn("helm repository URL changed, replacing", "name", name, "old", r.URL, "new", url)
		args = append(args, "--force-update")
	}

	if _, err := c.Runner.Run(ctx, "helm", args...); err != nil {
		return false, fmt.Errorf("failed to add helm repository %s: %w", name, err)
	}
	slog.Info("helm repository added", "name", name, "url", url)
	return true, nil
}

// RepoUpdate refreshes the index of the named repositories, or all when none are given.
func (c *Client) RepoUpdate(ctx context.Context, names ...string) error {
	args := append([]string{"repo", "update"}, names...)
	if _, err := c.Runner.Run(ctx, "helm", args...); err != nil {
		return fmt.Errorf("failed to update helm repositories: %w", err)
	}
	return nil
}

// UpgradeInstall installs or upgrades the release.
func (c *Client) UpgradeInstall(ctx context.Context, rel Release) error {
	if rel.Name == "" || rel.Chart == "" || rel.Namespace == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "release name, chart and namespace are required")
	}

	if !rel.IsOCI() && rel.RepoURL != "" {
		if _, err := c.RepoAdd(ctx, rel.RepoName, rel.RepoURL); err != nil {
			return err
		}
		if err := c.RepoUpdate(ctx, rel.RepoName); err != nil {
			return err
		}
	}

	args := []string{"upgrade", "--install", rel.Name, rel.Chart, "--namespace", rel.Namespace}
	if rel.CreateNamespace {
		args = append(args, "--create-namespace")
	}
	if rel.Version != "" {
		args = append(args, "--version", rel.Version)
	}

	if len(rel.Values) > 0 {
		path, cleanup, err := writeValues(rel.Values)
		if err != nil {
			return err
		}
		defer cleanup()
		args = append(args, "--values", path)
	}

	timeout := rel.Timeout
	if timeout <= 0 {
		timeout = defaults.HelmInstallTimeout
	}
	if rel.Wait {
		args = append(args, "--wait", "--timeout", timeout.String())
	}

	// Leave helm time to report its own timeout before the context fires.
	runCtx, cancel := context.WithTimeout(ctx, timeout+defaults.CommandTimeout)
	defer cancel()

	slog.Info("installing helm release",
		"release", rel.Name,
		"namespace", rel.Namespace,
		"chart", rel.Chart,
		"version", rel.Version)
	if _, err := c.run(runCtx, args...); err != nil {
		return fmt.Errorf("failed to install release %s: %w", rel.Name, err)
	}
	return nil
}

func writeValues(values Values) (string, func(), error) {
	data, err := yaml.Marshal(values)
	if err != nil {
		return "", nil, fmt.Errorf("failed to render helm values: %w", err)
	}
	f, err := os.CreateTemp("", "labctl-values-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create values file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write values file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close values file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// Status returns the release status. A missing release yields NOT_FOUND.
func (c *Client) Status(ctx context.Context, name, namespace string) (*ReleaseStatus, error) {
	out, err := c.run(ctx, "status", name, "--namespace", namespace, "-o", "json")
	if err != nil {
		if strings.Contains(string(out), "not found") {
			return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("release %s/%s not found", namespace, name), err)
		}
		return nil, fmt.Errorf("failed to get release %s status: %w", name, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("release %s/%s not found", namespace, name))
	}
	var st ReleaseStatus
	if err := json.Unmarshal(out, &st); err != nil {
		return nil, fmt.Errorf("failed to parse release %s status: %w", name, err)
	}
	return &st, nil
}

// IsDeployed reports whether the release exists with status deployed.
func (c *Client) IsDeployed(ctx context.Context, name, namespace string) (bool, error) {
	st, err := c.Status(ctx, name, namespace)
	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Info.Status == StatusDeployed, nil
}
