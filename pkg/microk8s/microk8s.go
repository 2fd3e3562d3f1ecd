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

package microk8s

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"slices"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/runner"
)

const (
	// Group is the Unix group that grants access to the microk8s CLI.
	Group = "microk8s"

	// EnvReexec is set on the re-executed process.
	EnvReexec = "LABCTL_REEXEC"
)

// Installer drives the MicroK8s snap.
type Installer struct {
	Runner runner.Runner
	Config config.MicroK8sConfig

	lookupUser func(name string) (*user.User, error)
	chown      func(name string, uid, gid int) error
}

// New returns an Installer for the given configuration.
func New(r runner.Runner, cfg config.MicroK8sConfig) *Installer {
	return &Installer{Runner: r, Config: cfg, lookupUser: user.Lookup, chown: os.Chown}
}

// KubeconfigPath returns the configured kubeconfig path, or ~/.kube/config
// of the configured user. Under sudo that is the invoking user's home, not
// /root.
func (i *Installer) KubeconfigPath() (string, error) {
	if i.Config.KubeconfigPath != "" {
		return i.Config.KubeconfigPath, nil
	}
	u, err := i.targetUser()
	if err != nil {
		return "", err
	}
	return filepath.Join(u.HomeDir, ".kube", "config"), nil
}

func (i *Installer) targetUser() (*user.User, error) {
	name := i.Config.User
	if name == "" {
		name = "root"
	}
	lookup := i.lookupUser
	if lookup == nil {
		lookup = user.Lookup
	}
	u, err := lookup(name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("failed to look up user %s", name), err)
	}
	return u, nil
}

// Installed reports whether the microk8s snap is installed.
func (i *Installer) Installed(ctx context.Context) (bool, error) {
	_, err := i.Runner.Run(ctx, "snap", "list", "microk8s")
	if err == nil {
		return true, nil
	}
	if runner.ExitCode(err) > 0 {
		return false, nil
	}
	return false, fmt.Errorf("failed to query snap: %w", err)
}

// Install installs the snap from the configured channel. It reports whether
// anything was installed.
func (i *Installer) Install(ctx context.Context) (bool, error) {
	ok, err := i.Installed(ctx)
	if err != nil {
		return false, err
	}
	if ok {
		slog.Info("microk8s already installed")
		return false, nil
	}

	installCtx, cancel := context.WithTimeout(ctx, defaults.SnapInstallTimeout)
	defer cancel()

	slog.Info("installing microk8s", "channel", i.Config.Channel)
	if _, err := runner.AsRoot(installCtx, i.Runner, "snap", "install", "microk8s", "--classic", "--channel="+i.Config.Channel); err != nil {
		return false, fmt.Errorf("failed to install microk8s: %w", err)
	}
	return true, nil
}

// InGroup reports whether user is a member of the microk8s group.
func (i *Installer) InGroup(ctx context.Context, name string) (bool, error) {
	out, err := i.Runner.Run(ctx, "id", "-nG", name)
	if err != nil {
		return false, fmt.Errorf("failed to list groups of %s: %w", name, err)
	}
	return slices.Contains(strings.Fields(string(out)), Group), nil
}

// EnsureGroup adds the configured user to the microk8s group and creates the
// user's ~/.kube directory. It reports whether the user was added.
func (i *Installer) EnsureGroup(ctx context.Context) (bool, error) {
	name := i.Config.User
	if name == "" || name == "root" {
		return false, nil
	}

	in, err := i.InGroup(ctx, name)
	if err != nil {
		return false, err
	}
	if in {
		return false, nil
	}

	slog.Info("adding user to group", "user", name, "group", Group)
	if _, err := runner.AsRoot(ctx, i.Runner, "usermod", "-a", "-G", Group, name); err != nil {
		return false, fmt.Errorf("failed to add %s to group %s: %w", name, Group, err)
	}
	path, err := i.KubeconfigPath()
	if err != nil {
		return true, err
	}
	dir := filepath.Dir(path)
	if _, err := runner.AsRoot(ctx, i.Runner, "install", "-d", "-m", "0700", "-o", name, dir); err != nil {
		return true, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return true, nil
}

// WaitReady blocks until MicroK8s reports ready or the configured timeout elapses.
func (i *Installer) WaitReady(ctx context.Context) error {
	timeout := i.Config.ReadyTimeout.Or(defaults.MicroK8sReadyTimeout)
	waitCtx, cancel := context.WithTimeout(ctx, timeout+defaults.K8sAPITimeout)
	defer cancel()

	slog.Info("waiting for microk8s", "timeout", timeout)
	_, err := i.Runner.Run(waitCtx, "microk8s", "status", "--wait-ready", "--timeout", fmt.Sprintf("%d", int(timeout.Seconds())))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeTimeout, "microk8s did not become ready", err)
	}
	return nil
}

// Status is the subset of `microk8s status --format yaml` labctl reads.
type Status struct {
	MicroK8s struct {
		Running bool `yaml:"running"`
	} `yaml:"microk8s"`
	Addons []Addon `yaml:"addons"`
}

// Addon is one entry of the status addon list.
type Addon struct {
	Name       string `yaml:"name"`
	Repository string `yaml:"repository,omitempty"`
	Status     string `yaml:"status"`
}

// Enabled returns the names of enabled addons.
func (s *Status) Enabled() []string {
	var out []string
	for _, a := range s.Addons {
		if a.Status == "enabled" {
			out = append(out, a.Name)
		}
	}
	return out
}

// ParseStatus decodes `microk8s status --format yaml` output.
func ParseStatus(data []byte) (*Status, error) {
	var s Status
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse microk8s status: %w", err)
	}
	return &s, nil
}

// Status returns the current MicroK8s status.
func (i *Installer) Status(ctx context.Context) (*Status, error) {
	out, err := i.Runner.Run(ctx, "microk8s", "status", "--format", "yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to get microk8s status: %w", err)
	}
	return ParseStatus(out)
}

// EnableAddons enables every configured addon that is not already enabled.
// It returns the addons it enabled.
func (i *Installer) EnableAddons(ctx context.Context) ([]string, error) {
	st, err := i.Status(ctx)
	if err != nil {
		return nil, err
	}
	enabled := st.Enabled()

	var changed []string
	for _, addon := range i.Config.Addons {
		if slices.Contains(enabled, addonName(addon)) {
			slog.Debug("addon already enabled", "addon", addon)
			continue
		}
		slog.Info("enabling addon", "addon", addon)
		if _, err := i.Runner.Run(ctx, "microk8s", "enable", addon); err != nil {
			return changed, fmt.Errorf("failed to enable addon %s: %w", addon, err)
		}
		changed = append(changed, addon)
	}
	return changed, nil
}

// addonName strips the repository prefix ("core/dns" -> "dns") and any
// addon arguments ("metallb:10.0.0.1-10.0.0.9" -> "metallb").
func addonName(addon string) string {
	if idx := strings.LastIndex(addon, "/"); idx >= 0 {
		addon = addon[idx+1:]
	}
	if idx := strings.Index(addon, ":"); idx >= 0 {
		addon = addon[:idx]
	}
	return addon
}

// WriteKubeconfig writes `microk8s config` to the kubeconfig path of the
// configured user. An existing file is kept unless OverwriteKubeconfig is
// set. When running as root for another user, the directory and file are
// handed to that user. It reports whether the file was written.
func (i *Installer) WriteKubeconfig(ctx context.Context) (bool, error) {
	path, err := i.KubeconfigPath()
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err == nil && !i.Config.OverwriteKubeconfig {
		slog.Info("kubeconfig exists, leaving unchanged", "path", path)
		return false, nil
	}

	out, err := i.Runner.Run(ctx, "microk8s", "config")
	if err != nil {
		return false, fmt.Errorf("failed to read microk8s config: %w", err)
	}
	if len(out) == 0 {
		// dry-run
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return false, fmt.Errorf("failed to write kubeconfig %s: %w", path, err)
	}
	if err := i.handOver(path); err != nil {
		return true, err
	}
	slog.Info("kubeconfig written", "path", path)
	return true, nil
}

// handOver chowns the kubeconfig and its directory to the configured user
// when the process runs as root on that user's behalf.
func (i *Installer) handOver(path string) error {
	if runner.Euid() != 0 || i.Config.User == "" || i.Config.User == "root" {
		return nil
	}
	u, err := i.targetUser()
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return fmt.Errorf("invalid uid %q for %s: %w", u.Uid, u.Username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return fmt.Errorf("invalid gid %q for %s: %w", u.Gid, u.Username, err)
	}
	chown := i.chown
	if chown == nil {
		chown = os.Chown
	}
	for _, p := range []string{filepath.Dir(path), path} {
		if err := chown(p, uid, gid); err != nil {
			return fmt.Errorf("failed to chown %s to %s: %w", p, u.Username, err)
		}
	}
	return nil
}

// NeedsReexec reports whether the process must be restarted to pick up a
// group membership added by EnsureGroup. Root does not need the group.
func NeedsReexec(added bool) bool {
	return added && os.Getenv(EnvReexec) != "1" && runner.Euid() != 0
}

// ReexecArgv returns the argv that re-runs args under the microk8s group.
func ReexecArgv(args []string) []string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	return []string{"sg", Group, "-c", strings.Join(quoted, " ")}
}

// Reexec replaces the current process with args run under `sg microk8s`.
// It only returns on error.
func Reexec(r runner.Runner, args []string) error {
	sg, err := r.LookPath("sg")
	if err != nil {
		return err
	}
	argv := ReexecArgv(args)
	env := append(os.Environ(), EnvReexec+"=1")
	slog.Info("re-executing with new group membership", "command", argv[3])
	if err := syscall.Exec(sg, argv, env); err != nil {
		return fmt.Errorf("failed to re-exec under sg: %w", err)
	}
	return nil
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
