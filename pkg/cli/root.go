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
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/logging"
)

const (
	name           = "labctl"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Execute runs the labctl command line and exits non-zero on error.
// SIGINT and SIGTERM cancel the running stage.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().Run(ctx, os.Args)
	if err == nil {
		return
	}
	code := apperrors.ExitCode(err)
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		code = ec.ExitCode()
	}
	slog.Error("labctl failed", apperrors.LogAttrs(err)...)
	fmt.Fprintln(os.Stderr, err)
	stop()
	os.Exit(code)
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Bootstrap a home-lab MicroK8s host with Harbor and GitHub Actions runners",
		Version:               fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		EnableShellCompletion: true,
		Description: `labctl installs and configures, in order:

  prereqs        host packages (apt)
  microk8s       MicroK8s snap, group membership, addons, kubeconfig
  certs          cert-manager, Route53 DNS-01 ClusterIssuer, Harbor certificate
  storage        hostPath PersistentVolumes and claims for Harbor
  harbor         Harbor Helm release
  harbor-config  Harbor projects, robot accounts, retention, immutability, GC
  arc            Actions Runner Controller and runner scale sets

Every stage checks before it acts and can be re-run.`,
		Flags: []cli.Flag{
			configFlag,
			kubeconfigFlag,
			logLevelFlag,
			dryRunFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := cmd.String("log-level")
			logging.SetDefaultStructuredLoggerWithLevel(name, version, level)
			slog.Debug("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date,
				"dryRun", cmd.Bool("dry-run"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			bootstrapCmd(),
			stageCmd(stagePrereqs, "Install host packages"),
			stageCmd(stageMicroK8s, "Install MicroK8s, join the microk8s group and enable addons"),
			stageCmd(stageCerts, "Install cert-manager and issue the Harbor certificate"),
			stageCmd(stageStorage, "Provision hostPath volumes for Harbor"),
			harborCmd(),
			stageCmd(stageARC, "Install the Actions Runner Controller and runner scale sets"),
			statusCmd(),
		},
		ShellComplete: commandLister,
	}
}

// commandLister prints the visible subcommands for shell completion.
func commandLister(_ context.Context, cmd *cli.Command) {
	if cmd == nil {
		return
	}
	for _, c := range cmd.Commands {
		if c.Hidden {
			continue
		}
		fmt.Fprintln(os.Stdout, c.Name)
	}
}
