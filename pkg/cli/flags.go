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
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/homelab/labctl/pkg/serializer"
)

const defaultConfigFile = "labctl.yaml"

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the labctl configuration file",
		Value:   defaultConfigFile,
		Sources: cli.EnvVars("LABCTL_CONFIG"),
	}

	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		Sources: cli.EnvVars("LABCTL_LOG_LEVEL", "LOG_LEVEL"),
	}

	dryRunFlag = &cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "Log external commands instead of running them",
		Sources: cli.EnvVars("LABCTL_DRY_RUN"),
	}

	kubeconfigFlag = &cli.StringFlag{
		Name:    "kubeconfig",
		Aliases: []string{"k"},
		Usage:   "Path to kubeconfig file (default: microk8s.kubeconfigPath, then KUBECONFIG, then ~/.kube/config, then the MicroK8s credentials)",
		Sources: cli.EnvVars("LABCTL_KUBECONFIG"),
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output destination: file path, ConfigMap URI (cm://namespace/name), or stdout when empty",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Usage:   fmt.Sprintf("Output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
		Value:   string(serializer.FormatTable),
	}
)

// parseOutputFormat returns the --format value, rejecting unknown formats.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	return serializer.ParseFormat(cmd.String("format"))
}

// writeOutput serializes data to the --output destination in the --format format.
func writeOutput(ctx context.Context, cmd *cli.Command, data any) error {
	f, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}
	w, err := serializer.NewOutput(f, cmd.String("output"))
	if err != nil {
		return err
	}
	if err := w.Serialize(ctx, data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
