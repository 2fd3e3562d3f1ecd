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
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/config"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/k8s/client"
	"github.com/homelab/labctl/pkg/runner"
)

// app carries what every command needs. Kubernetes clients are built on
// first use because the microk8s stage writes the kubeconfig they read.
type app struct {
	cfg        *config.Config
	runner     runner.Runner
	helm       *helm.Client
	kubeconfig string
	dryRun     bool

	kubeClient kubernetes.Interface
	dynClient  dynamic.Interface
}

// newApp loads the configuration named by --config and wires the runner,
// helm and Kubernetes client settings.
func newApp(cmd *cli.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	kubeconfig := cmd.String("kubeconfig")
	if kubeconfig == "" {
		kubeconfig = cfg.MicroK8s.KubeconfigPath
	}
	client.SetDefaultKubeconfig(kubeconfig)

	dryRun := cmd.Bool("dry-run")
	r := runner.New(runner.WithDryRun(dryRun))

	return &app{
		cfg:        cfg,
		runner:     r,
		helm:       helm.New(r, kubeconfig),
		kubeconfig: kubeconfig,
		dryRun:     dryRun,
	}, nil
}

// loadConfig reads --config. A missing default file yields the built-in
// defaults; a missing file named explicitly is an error.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) && !cmd.IsSet("config") {
		slog.Warn("config file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("config loaded", "path", path)
	return cfg, nil
}

func (a *app) kube() (kubernetes.Interface, error) {
	if a.kubeClient != nil {
		return a.kubeClient, nil
	}
	cs, _, err := client.GetKubeClient()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable,
			fmt.Sprintf("kubernetes client unavailable (kubeconfig %q)", a.kubeconfig), err)
	}
	a.kubeClient = cs
	return cs, nil
}

func (a *app) dynamic() (dynamic.Interface, error) {
	if a.dynClient != nil {
		return a.dynClient, nil
	}
	dc, err := client.GetDynamicClient()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "dynamic client unavailable", err)
	}
	a.dynClient = dc
	return dc, nil
}

// reexecArgs is the command line re-run after a group change.
func reexecArgs() []string {
	return os.Args
}
