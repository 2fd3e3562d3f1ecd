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

package status

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/certmanager"
	"github.com/homelab/labctl/pkg/config"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/microk8s"
	"github.com/homelab/labctl/pkg/pipeline"
	"github.com/homelab/labctl/pkg/version"
)

// ReleaseState is a Helm release as seen by `helm status`.
type ReleaseState struct {
	Name      string        `json:"name" yaml:"name"`
	Namespace string        `json:"namespace" yaml:"namespace"`
	Status    string        `json:"status" yaml:"status"`
	Chart     string        `json:"chart,omitempty" yaml:"chart,omitempty"`
	Deployed  string        `json:"deployedVersion,omitempty" yaml:"deployedVersion,omitempty"`
	Desired   string        `json:"desiredVersion,omitempty" yaml:"desiredVersion,omitempty"`
	Drift     version.Drift `json:"drift" yaml:"drift"`
	Revision  int           `json:"revision,omitempty" yaml:"revision,omitempty"`
}

// Report is the collected host state.
type Report struct {
	Generated   time.Time                     `json:"generated" yaml:"generated"`
	Kubernetes  string                        `json:"kubernetes,omitempty" yaml:"kubernetes,omitempty"`
	Units       []microk8s.UnitState          `json:"units,omitempty" yaml:"units,omitempty"`
	Releases    []ReleaseState                `json:"releases,omitempty" yaml:"releases,omitempty"`
	Certificate *certmanager.CertificateState `json:"certificate,omitempty" yaml:"certificate,omitempty"`
	LastRun     *pipeline.Summary             `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	// Errors maps a section name to the reason it could not be collected.
	Errors map[string]string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Kind names the ConfigMap component a Report is stored under.
func (r *Report) Kind() string {
	return "status"
}

// Problems lists the conditions that need attention.
func (r *Report) Problems() []string {
	var out []string
	for _, name := range microk8s.Inactive(r.Units) {
		out = append(out, fmt.Sprintf("unit %s is not active", name))
	}
	for _, rel := range r.Releases {
		if rel.Status != helm.StatusDeployed {
			out = append(out, fmt.Sprintf("release %s/%s is %s", rel.Namespace, rel.Name, rel.Status))
		}
		if rel.Drift == version.DriftBehind {
			out = append(out, fmt.Sprintf("release %s/%s runs chart %s, want %s", rel.Namespace, rel.Name, rel.Deployed, rel.Desired))
		}
	}
	if r.Certificate != nil && !r.Certificate.Ready {
		out = append(out, fmt.Sprintf("certificate %s/%s is not ready: %s", r.Certificate.Namespace, r.Certificate.Name, r.Certificate.Reason))
	}
	if r.LastRun != nil {
		if f := r.LastRun.Failed(); f != nil {
			out = append(out, fmt.Sprintf("last bootstrap failed at %s", f.Stage))
		}
	}
	for _, section := range sortedKeys(r.Errors) {
		out = append(out, fmt.Sprintf("%s: %s", section, r.Errors[section]))
	}
	return out
}

// Collector gathers a Report.
type Collector struct {
	Kube   kubernetes.Interface
	Helm   *helm.Client
	Certs  *certmanager.Manager
	Config *config.Config

	// Units lists the MicroK8s systemd units; nil skips the section.
	Units func(ctx context.Context) ([]microk8s.UnitState, error)

	now func() time.Time
}

// Releases returns the Helm releases labctl manages with their desired chart
// versions. ARC releases are expected only when scale sets are configured.
func (c *Collector) Releases() []ReleaseState {
	cfg := c.Config
	out := []ReleaseState{
		{Name: certmanager.Release, Namespace: cfg.CertManager.Namespace, Desired: cfg.CertManager.ChartVersion},
		{Name: cfg.Harbor.Release, Namespace: cfg.Harbor.Namespace, Desired: cfg.Harbor.ChartVersion},
	}
	if len(cfg.ARC.ScaleSets) == 0 {
		return out
	}
	out = append(out, ReleaseState{Name: cfg.ARC.ControllerRelease, Namespace: cfg.ARC.ControllerNamespace, Desired: cfg.ARC.ChartVersion})
	for _, s := range cfg.ARC.ScaleSets {
		out = append(out, ReleaseState{Name: s.Name, Namespace: cfg.ARC.RunnersNamespace, Desired: cfg.ARC.ChartVersion})
	}
	return out
}

// Collect gathers every section concurrently. Only context cancellation is
// returned as an error; other failures are recorded in Report.Errors.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	now := c.now
	if now == nil {
		now = time.Now
	}
	rep := &Report{Generated: now().UTC()}

	var mu sync.Mutex
	record := func(section string, err error) {
		slog.Warn("status section unavailable", "section", section, "error", err)
		mu.Lock()
		defer mu.Unlock()
		if rep.Errors == nil {
			rep.Errors = make(map[string]string)
		}
		rep.Errors[section] = err.Error()
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.Units != nil {
		g.Go(func() error {
			units, err := c.Units(gctx)
			if err != nil {
				record("units", err)
				return nil
			}
			mu.Lock()
			rep.Units = units
			mu.Unlock()
			return nil
		})
	}

	if c.Kube != nil {
		g.Go(func() error {
			info, err := c.Kube.Discovery().ServerVersion()
			if err != nil {
				record("kubernetes", err)
				return nil
			}
			mu.Lock()
			rep.Kubernetes = info.GitVersion
			mu.Unlock()
			return nil
		})

		g.Go(func() error {
			sum, err := LoadSummary(gctx, c.Kube)
			if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				return nil
			}
			if err != nil {
				record("lastRun", err)
				return nil
			}
			mu.Lock()
			rep.LastRun = sum
			mu.Unlock()
			return nil
		})
	}

	if c.Helm != nil && c.Config != nil {
		g.Go(func() error {
			releases := c.Releases()
			for i := range releases {
				c.releaseState(gctx, &releases[i])
			}
			mu.Lock()
			rep.Releases = releases
			mu.Unlock()
			return nil
		})
	}

	if c.Certs != nil {
		g.Go(func() error {
			st, err := c.Certs.CertificateStatus(gctx)
			if err != nil {
				record("certificate", err)
				return nil
			}
			mu.Lock()
			rep.Certificate = st
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeTimeout, "status collection interrupted", err)
	}
	return rep, nil
}

func (c *Collector) releaseState(ctx context.Context, rel *ReleaseState) {
	st, err := c.Helm.Status(ctx, rel.Name, rel.Namespace)
	switch {
	case apperrors.IsCode(err, apperrors.ErrCodeNotFound):
		rel.Status = "not-installed"
		rel.Drift = version.DriftUnknown
		return
	case err != nil:
		rel.Status = "unknown"
		rel.Drift = version.DriftUnknown
		slog.Warn("failed to read release status", "release", rel.Name, "namespace", rel.Namespace, "error", err)
		return
	}
	rel.Status = st.Info.Status
	rel.Revision = st.Revision
	rel.Deployed = st.ChartVersion()
	if st.Chart != nil {
		rel.Chart = st.Chart.Metadata.Name
	}
	rel.Drift = version.CompareDeployed(rel.Desired, rel.Deployed)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
