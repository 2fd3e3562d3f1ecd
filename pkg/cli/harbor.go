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
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/harbor"
	"github.com/homelab/labctl/pkg/k8s/resources"
	"github.com/homelab/labctl/pkg/oci"
)

func harborCmd() *cli.Command {
	return &cli.Command{
		Name:  "harbor",
		Usage: "Install, configure and test the Harbor registry",
		Commands: []*cli.Command{
			{
				Name:  "install",
				Usage: "Install or upgrade the Harbor Helm release",
				Flags: []cli.Flag{outputFlag, formatFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if _, err := parseOutputFormat(cmd); err != nil {
						return err
					}
					a, err := newApp(cmd)
					if err != nil {
						return err
					}
					return a.runPipeline(ctx, cmd, pipelineOnly(stageHarbor)...)
				},
			},
			{
				Name:  "configure",
				Usage: "Create projects, robot accounts and policies through the Harbor API",
				Description: `Configure every project in harborProjects: the project itself, its
robot account, retention policy and immutability rules, then the
garbage collection schedule. Robot credentials are stored as
dockerconfigjson secrets and, when github.repositories is set, published
as repository secrets with gh.

Robot secrets are only returned by Harbor when the robot is created. A
robot that exists without a stored secret is reported as a warning.`,
				Flags: []cli.Flag{outputFlag, formatFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if _, err := parseOutputFormat(cmd); err != nil {
						return err
					}
					a, err := newApp(cmd)
					if err != nil {
						return err
					}
					if err := a.cfg.Validate(stageHarborConfig); err != nil {
						return err
					}
					rep, err := a.runHarborConfig(ctx)
					if rep != nil {
						err = errors.Join(err, writeOutput(ctx, cmd, rep))
					}
					return err
				},
			},
			{
				Name:  "smoke-test",
				Usage: "Push and resolve a small OCI artifact to verify the registry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "project",
						Usage: "Harbor project to push to (default: first configured project)",
					},
					&cli.StringFlag{
						Name:  "tag",
						Usage: "Artifact tag (default: current UTC time)",
					},
					&cli.BoolFlag{
						Name:  "plain-http",
						Usage: "Talk to the registry over plain HTTP",
					},
					outputFlag,
					formatFlag,
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if _, err := parseOutputFormat(cmd); err != nil {
						return err
					}
					a, err := newApp(cmd)
					if err != nil {
						return err
					}
					res, err := a.smokeTest(ctx, cmd.String("project"), cmd.String("tag"), cmd.Bool("plain-http"))
					if err != nil {
						return err
					}
					return writeOutput(ctx, cmd, res)
				},
			},
		},
	}
}

// smokeTest pushes the smoke artifact with the project's robot credentials,
// falling back to the admin account when none are stored.
func (a *app) smokeTest(ctx context.Context, project, tag string, plainHTTP bool) (*oci.PushResult, error) {
	if err := a.cfg.Validate(stageHarbor); err != nil {
		return nil, err
	}
	p, err := smokeProject(a.cfg.Projects, project)
	if err != nil {
		return nil, err
	}

	username, password, err := a.robotCredentials(ctx, p)
	if err != nil {
		slog.Info("no robot credentials for smoke test, using admin", "project", p.Name, "reason", err)
		kube, kerr := a.kube()
		if kerr != nil {
			return nil, kerr
		}
		username = harbor.AdminUser
		if password, err = harbor.AdminPassword(ctx, kube, a.cfg.Harbor); err != nil {
			return nil, err
		}
	}

	return oci.SmokeTest(ctx, oci.SmokeOptions{
		Registry:    a.cfg.Harbor.RegistryHost(),
		Project:     p.Name,
		Tag:         tag,
		Username:    username,
		Password:    password,
		PlainHTTP:   plainHTTP,
		InsecureTLS: a.cfg.Harbor.InsecureSkipVerify,
		Version:     version,
	})
}

// smokeProject picks the named project, or the first configured one.
// Without configuration the Harbor default project "library" is used.
func smokeProject(projects []config.ProjectConfig, name string) (config.ProjectConfig, error) {
	if name == "" {
		if len(projects) == 0 {
			return config.ProjectConfig{Name: "library"}, nil
		}
		return projects[0], nil
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return config.ProjectConfig{Name: name}, nil
}

// robotCredentials reads the project robot's stored dockerconfigjson secret.
func (a *app) robotCredentials(ctx context.Context, p config.ProjectConfig) (string, string, error) {
	if p.Robot == nil {
		return "", "", fmt.Errorf("project %s has no robot account", p.Name)
	}
	kube, err := a.kube()
	if err != nil {
		return "", "", err
	}
	ns := a.cfg.Harbor.Namespace
	if len(p.Robot.SecretNamespaces) > 0 {
		ns = p.Robot.SecretNamespaces[0]
	}
	s, err := kube.CoreV1().Secrets(ns).Get(ctx, p.Robot.SecretName, metav1.GetOptions{})
	if err != nil {
		return "", "", fmt.Errorf("failed to read robot secret %s/%s: %w", ns, p.Robot.SecretName, err)
	}
	return resources.DockerConfigCredentials(s, a.cfg.Harbor.RegistryHost())
}
