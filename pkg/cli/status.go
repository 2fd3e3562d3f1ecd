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
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/homelab/labctl/pkg/certmanager"
	"github.com/homelab/labctl/pkg/microk8s"
	"github.com/homelab/labctl/pkg/status"
)

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:                  "status",
		EnableShellCompletion: true,
		Usage:                 "Report MicroK8s services, Helm releases, the Harbor certificate and the last bootstrap",
		Description: `Collect the state of the host and cluster. Sections that cannot be read,
for example before MicroK8s is installed, are reported instead of failing.

# Examples

Table on stdout:
  labctl status

YAML into a ConfigMap:
  labctl status --format yaml --output cm://labctl/status

Exit non-zero when anything needs attention:
  labctl status --fail-on-problems`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "fail-on-problems",
				Usage: "Exit with non-zero status if any problem is reported",
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

			c := &status.Collector{
				Helm:   a.helm,
				Config: a.cfg,
				Units:  microk8s.ServiceStatus,
			}
			if kube, err := a.kube(); err != nil {
				slog.Warn("cluster unreachable", "error", err)
			} else {
				c.Kube = kube
				if dyn, err := a.dynamic(); err == nil {
					c.Certs = &certmanager.Manager{Helm: a.helm, Kube: kube, Dynamic: dyn, Config: a.cfg.CertManager}
				}
			}

			rep, err := c.Collect(ctx)
			if err != nil {
				return err
			}
			if err := writeOutput(ctx, cmd, rep); err != nil {
				return err
			}

			problems := rep.Problems()
			for _, p := range problems {
				slog.Warn("problem", "detail", p)
			}
			if len(problems) > 0 && cmd.Bool("fail-on-problems") {
				return cli.Exit("status reported problems", 2)
			}
			return nil
		},
	}
}
