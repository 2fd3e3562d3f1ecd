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

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/homelab/labctl/pkg/arc"
	"github.com/homelab/labctl/pkg/certmanager"
	"github.com/homelab/labctl/pkg/github"
	"github.com/homelab/labctl/pkg/harbor"
	"github.com/homelab/labctl/pkg/harbor/api"
	"github.com/homelab/labctl/pkg/harbor/configure"
	"github.com/homelab/labctl/pkg/microk8s"
	"github.com/homelab/labctl/pkg/pipeline"
	"github.com/homelab/labctl/pkg/prereqs"
	"github.com/homelab/labctl/pkg/storage"
)

// Stage names in bootstrap order.
const (
	stagePrereqs      = "prereqs"
	stageMicroK8s     = "microk8s"
	stageCerts        = "certs"
	stageStorage      = "storage"
	stageHarbor       = "harbor"
	stageHarborConfig = "harbor-config"
	stageARC          = "arc"
)

// stageOrder is the bootstrap sequence.
var stageOrder = []string{
	stagePrereqs,
	stageMicroK8s,
	stageCerts,
	stageStorage,
	stageHarbor,
	stageHarborConfig,
	stageARC,
}

// stages returns every stage in bootstrap order.
func (a *app) stages() []pipeline.Stage {
	run := map[string]func(context.Context) error{
		stagePrereqs:  a.runPrereqs,
		stageMicroK8s: a.runMicroK8s,
		stageCerts:    a.runCerts,
		stageStorage:  a.runStorage,
		stageHarbor:   a.runHarbor,
		stageHarborConfig: func(ctx context.Context) error {
			_, err := a.runHarborConfig(ctx)
			return err
		},
		stageARC: a.runARC,
	}
	out := make([]pipeline.Stage, 0, len(stageOrder))
	for _, name := range stageOrder {
		out = append(out, pipeline.NewStage(name, a.guard(name, run[name])))
	}
	return out
}

// guard checks the binaries a stage needs before running it.
func (a *app) guard(stage string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if !a.dryRun {
			if err := prereqs.RequireBinaries(a.runner, prereqs.BinariesFor(stage)...); err != nil {
				return err
			}
		}
		return run(ctx)
	}
}

// pipelineFor builds a pipeline over all stages, validating the
// configuration of the stages that will run.
func (a *app) pipelineFor(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if a.cfg.MetricsFile != "" {
		opts = append([]pipeline.Option{pipeline.WithMetricsFile(a.cfg.MetricsFile)}, opts...)
	}
	p := pipeline.New(a.stages(), opts...)
	selected, err := p.Selected()
	if err != nil {
		return nil, err
	}
	if err := a.cfg.Validate(selected...); err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) runPrereqs(ctx context.Context) error {
	return prereqs.EnsurePackages(ctx, a.runner, a.cfg.Prereqs.Packages)
}

func (a *app) runMicroK8s(ctx context.Context) error {
	m := microk8s.New(a.runner, a.cfg.MicroK8s)
	if _, err := m.Install(ctx); err != nil {
		return err
	}
	added, err := m.EnsureGroup(ctx)
	if err != nil {
		return err
	}
	if microk8s.NeedsReexec(added) && !a.dryRun {
		return microk8s.Reexec(a.runner, reexecArgs())
	}
	if err := m.WaitReady(ctx); err != nil {
		return err
	}
	enabled, err := m.EnableAddons(ctx)
	if err != nil {
		return err
	}
	if len(enabled) > 0 {
		slog.Info("microk8s addons enabled", "addons", enabled)
	}
	_, err = m.WriteKubeconfig(ctx)
	return err
}

func (a *app) runCerts(ctx context.Context) error {
	kube, err := a.kube()
	if err != nil {
		return err
	}
	dyn, err := a.dynamic()
	if err != nil {
		return err
	}
	m := &certmanager.Manager{Helm: a.helm, Kube: kube, Dynamic: dyn, Config: a.cfg.CertManager}
	return m.Run(ctx)
}

func (a *app) runStorage(ctx context.Context) error {
	kube, err := a.kube()
	if err != nil {
		return err
	}
	p := &storage.Provisioner{Runner: a.runner, Kube: kube, Config: a.cfg.Storage}
	return p.Run(ctx)
}

func (a *app) runHarbor(ctx context.Context) error {
	kube, err := a.kube()
	if err != nil {
		return err
	}
	i := &harbor.Installer{Helm: a.helm, Kube: kube, Config: a.cfg.Harbor, Storage: a.cfg.Storage}
	return i.Run(ctx)
}

// harborClient returns an API client authenticated as the Harbor admin.
func (a *app) harborClient(ctx context.Context) (*api.Client, error) {
	kube, err := a.kube()
	if err != nil {
		return nil, err
	}
	password, err := harbor.AdminPassword(ctx, kube, a.cfg.Harbor)
	if err != nil {
		return nil, err
	}
	return api.New(a.cfg.Harbor.HarborURL(), harbor.AdminUser, password,
		api.WithInsecureSkipVerify(a.cfg.Harbor.InsecureSkipVerify))
}

// configureReport is the printable outcome of harbor configure. It never
// carries robot secrets.
type configureReport struct {
	Changes  int             `json:"changes" yaml:"changes"`
	Robots   []robotReport   `json:"robots,omitempty" yaml:"robots,omitempty"`
	Warnings []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	GitHub   *github.Summary `json:"github,omitempty" yaml:"github,omitempty"`
}

type robotReport struct {
	Project  string `json:"project" yaml:"project"`
	Username string `json:"username" yaml:"username"`
	Created  bool   `json:"created" yaml:"created"`
	Stored   bool   `json:"credentialsAvailable" yaml:"credentialsAvailable"`
}

func (a *app) runHarborConfig(ctx context.Context) (*configureReport, error) {
	hc, err := a.harborClient(ctx)
	if err != nil {
		return nil, err
	}
	kube, err := a.kube()
	if err != nil {
		return nil, err
	}
	c := &configure.Configurer{
		API:      hc,
		Kube:     kube,
		Harbor:   a.cfg.Harbor,
		Projects: a.cfg.Projects,
		GC:       a.cfg.GC,
	}
	res, err := c.Run(ctx)
	if err != nil {
		return nil, err
	}

	rep := &configureReport{Changes: res.Changes, Warnings: res.Warnings}
	for _, cred := range res.Credentials {
		rep.Robots = append(rep.Robots, robotReport{
			Project:  cred.Project,
			Username: cred.Username,
			Created:  cred.Created,
			Stored:   cred.Password != "",
		})
	}

	sum, err := a.publishCredentials(ctx, res.Credentials)
	if err != nil {
		return rep, err
	}
	rep.GitHub = sum
	return rep, nil
}

// githubSecrets maps robot credentials to repository secrets. Credentials
// without a known password or without secret names are left out.
func githubSecrets(creds []configure.Credential) []github.Secret {
	var out []github.Secret
	for _, c := range creds {
		if c.Password == "" {
			continue
		}
		if c.GitHubUserSecret != "" {
			out = append(out, github.Secret{Name: c.GitHubUserSecret, Value: c.Username})
		}
		if c.GitHubPasswordSecret != "" {
			out = append(out, github.Secret{Name: c.GitHubPasswordSecret, Value: c.Password})
		}
	}
	return out
}

func (a *app) publishCredentials(ctx context.Context, creds []configure.Credential) (*github.Summary, error) {
	repos := a.cfg.GitHub.Repositories
	secrets := githubSecrets(creds)
	if len(repos) == 0 || len(secrets) == 0 {
		slog.Debug("no github secrets to publish", "repos", len(repos), "secrets", len(secrets))
		return nil, nil
	}
	if !a.dryRun {
		if err := prereqs.RequireBinaries(a.runner, prereqs.BinariesFor("github")...); err != nil {
			return nil, err
		}
	}
	gh := github.New(a.runner)
	if err := gh.AuthStatus(ctx); err != nil {
		return nil, err
	}
	sum, err := gh.Publish(ctx, repos, secrets, a.cfg.GitHub.SkipExisting)
	if err != nil {
		return &sum, fmt.Errorf("failed to publish registry credentials: %w", err)
	}
	return &sum, nil
}

func (a *app) runARC(ctx context.Context) error {
	kube, err := a.kube()
	if err != nil {
		return err
	}
	i := &arc.Installer{Helm: a.helm, Kube: kube, Config: a.cfg.ARC, GitHub: a.cfg.GitHub}
	return i.Run(ctx)
}

// pipelineOnly restricts a pipeline to the named stages.
func pipelineOnly(names ...string) []pipeline.Option {
	return []pipeline.Option{pipeline.WithOnly(names...)}
}
