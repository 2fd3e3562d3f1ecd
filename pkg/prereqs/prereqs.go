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

package prereqs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/runner"
)

// installedStatus is the dpkg-query status of a fully installed package.
const installedStatus = "install ok installed"

// Installed reports whether the Debian package is installed.
func Installed(ctx context.Context, r runner.Runner, pkg string) (bool, error) {
	out, err := r.Run(ctx, "dpkg-query", "-W", "-f=${Status}", pkg)
	if err != nil {
		// dpkg-query exits 1 for unknown packages.
		if runner.ExitCode(err) == 1 {
			return false, nil
		}
		return false, fmt.Errorf("failed to query package %s: %w", pkg, err)
	}
	return strings.TrimSpace(string(out)) == installedStatus, nil
}

// Missing returns the packages that are not installed, in input order.
func Missing(ctx context.Context, r runner.Runner, pkgs []string) ([]string, error) {
	var missing []string
	for _, p := range pkgs {
		ok, err := Installed(ctx, r, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// EnsurePackages installs the missing packages with a single apt-get call,
// through sudo when not running as root.
func EnsurePackages(ctx context.Context, r runner.Runner, pkgs []string) error {
	missing, err := Missing(ctx, r, pkgs)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		slog.Info("host packages already installed", "packages", pkgs)
		return nil
	}

	installCtx, cancel := context.WithTimeout(ctx, defaults.AptInstallTimeout)
	defer cancel()

	slog.Info("installing host packages", "packages", missing)
	if _, err := runner.AsRoot(installCtx, r, "apt-get", "update"); err != nil {
		return fmt.Errorf("apt-get update failed: %w", err)
	}
	args := append([]string{"install", "-y", "--no-install-recommends"}, missing...)
	if _, err := runner.AsRoot(installCtx, r, "apt-get", args...); err != nil {
		return fmt.Errorf("apt-get install failed: %w", err)
	}
	return nil
}

// RequireBinaries fails with NOT_FOUND listing every binary absent from PATH.
func RequireBinaries(r runner.Runner, names ...string) error {
	var missing []string
	for _, n := range names {
		if _, err := r.LookPath(n); err != nil {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return apperrors.NewWithContext(apperrors.ErrCodeNotFound,
		fmt.Sprintf("required binaries not found in PATH: %s", strings.Join(missing, ", ")),
		map[string]any{"missing": missing})
}

// BinariesFor returns the external tools a stage needs.
func BinariesFor(stage string) []string {
	switch stage {
	case "prereqs":
		return []string{"dpkg-query", "apt-get"}
	case "microk8s":
		return []string{"snap"}
	case "certs", "harbor", "arc":
		return []string{"helm"}
	case "harbor-config":
		return nil
	case "github":
		return []string{"gh"}
	default:
		return nil
	}
}

// IsMissingBinary reports whether err came from RequireBinaries.
func IsMissingBinary(err error) bool {
	var se *apperrors.StructuredError
	if !errors.As(err, &se) || se.Code != apperrors.ErrCodeNotFound {
		return false
	}
	_, ok := se.Context["missing"]
	return ok
}
