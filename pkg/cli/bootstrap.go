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
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/homelab/labctl/pkg/pipeline"
	"github.com/homelab/labctl/pkg/status"
)

func bootstrapCmd() *cli.Command {
	return &cli.Command{
		Name:                  "bootstrap",
		EnableShellCompletion: true,
		Usage:                 "Run every bootstrap stage in order",
		Description: `Run the stages ` + strings.Join(stageOrder, ", ") + ` in order,
stopping at the first failure. A stage summary is printed at the end and,
once the cluster is reachable, stored in the ConfigMap
` + status.StateNamespace + `/` + status.SummaryConfigMap + ` for "labctl status".

# Examples

Full bootstrap:
  labctl bootstrap --config labctl.yaml

Re-run only the Harbor stages:
  labctl bootstrap --only harbor,harbor-config

Everything except ARC, summary as JSON:
  labctl bootstrap --skip arc --format json`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "only",
				Usage: "Run only these stages (comma separated or repeated)",
			},
			&cli.StringSliceFlag{
				Name:  "skip",
				Usage: "Skip these stages (comma separated or repeated)",
			},
			&cli.StringFlag{
				Name:    "metrics-file",
				Usage:   "Write Prometheus textfile metrics to this path (overrides metricsFile in the config)",
				Sources: cli.EnvVars("LABCTL_METRICS_FILE"),
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
			if path := cmd.String("metrics-file"); path != "" {
				a.cfg.MetricsFile = path
			}
			return a.runPipeline(ctx, cmd,
				pipeline.WithOnly(cmd.StringSlice("only")...),
				pipeline.WithSkip(cmd.StringSlice("skip")...))
		},
	}
}

// stageCmd returns a command running a single stage.
func stageCmd(stage, usage string) *cli.Command {
	return &cli.Command{
		Name:  stage,
		Usage: usage,
		Flags: []cli.Flag{
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
			return a.runPipeline(ctx, cmd, pipelineOnly(stage)...)
		},
	}
}

// runPipeline runs the selected stages, prints the summary, and stores it
// for status. It returns the failing stage's error joined with any error
// writing the summary.
func (a *app) runPipeline(ctx context.Context, cmd *cli.Command, opts ...pipeline.Option) error {
	p, err := a.pipelineFor(opts...)
	if err != nil {
		return err
	}

	sum, runErr := p.Run(ctx)
	if sum == nil {
		return runErr
	}

	writeErr := writeOutput(ctx, cmd, sum)
	a.saveSummary(ctx, sum)
	return errors.Join(runErr, writeErr)
}

func (a *app) saveSummary(ctx context.Context, sum *pipeline.Summary) {
	if a.dryRun {
		return
	}
	kube, err := a.kube()
	if err != nil {
		slog.Debug("summary not stored, cluster unreachable", "error", err)
		return
	}
	if err := status.SaveSummary(context.WithoutCancel(ctx), kube, sum); err != nil {
		slog.Warn("failed to store bootstrap summary", "error", err)
	}
}
