package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/homelab/labctl/pkg/config"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/harbor/configure"
	"github.com/homelab/labctl/pkg/k8s/client"
)

func hasName(flag cli.Flag, name string) bool {
	for _, n := range flag.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func findCommand(cmd *cli.Command, names ...string) *cli.Command {
	for _, n := range names {
		var next *cli.Command
		for _, c := range cmd.Commands {
			if c.Name == n {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cmd = next
	}
	return cmd
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"bootstrap"},
		{"prereqs"},
		{"microk8s"},
		{"certs"},
		{"storage"},
		{"harbor", "install"},
		{"harbor", "configure"},
		{"harbor", "smoke-test"},
		{"arc"},
		{"status"},
	} {
		cmd := findCommand(root, path...)
		if assert.NotNil(t, cmd, "command %v", path) {
			assert.NotNil(t, cmd.Action, "command %v has no action", path)
		}
	}

	for _, flagName := range []string{"config", "kubeconfig", "log-level", "dry-run"} {
		found := false
		for _, f := range root.Flags {
			if hasName(f, flagName) {
				found = true
				break
			}
		}
		assert.True(t, found, "global flag %q not found", flagName)
	}
}

func TestBootstrapFlags(t *testing.T) {
	cmd := findCommand(newRootCmd(), "bootstrap")
	require.NotNil(t, cmd)
	for _, flagName := range []string{"only", "skip", "metrics-file", "output", "format"} {
		found := false
		for _, f := range cmd.Flags {
			if hasName(f, flagName) {
				found = true
				break
			}
		}
		assert.True(t, found, "bootstrap flag %q not found", flagName)
	}
}

func TestCommandLister(_ *testing.T) {
	commandLister(context.Background(), nil)
	commandLister(context.Background(), &cli.Command{Name: "test"})
	commandLister(context.Background(), &cli.Command{
		Name: "root",
		Commands: []*cli.Command{
			{Name: "visible", Hidden: false},
			{Name: "hidden", Hidden: true},
		},
	})
}

func TestStagesOrder(t *testing.T) {
	a := &app{cfg: config.Default()}
	var names []string
	for _, s := range a.stages() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"prereqs", "microk8s", "certs", "storage", "harbor", "harbor-config", "arc"}, names)
}

func TestPipelineFor_ValidatesSelectedStages(t *testing.T) {
	a := &app{cfg: config.Default()}

	// prereqs needs no configuration.
	_, err := a.pipelineFor(pipelineOnly("prereqs")...)
	require.NoError(t, err)

	// harbor requires harbor.host.
	_, err = a.pipelineFor(pipelineOnly("harbor")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = a.pipelineFor(pipelineOnly("nope")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestGithubSecrets(t *testing.T) {
	creds := []configure.Credential{
		{Project: "apps", Username: "robot$apps+ci", Password: "s3cret",
			GitHubUserSecret: "HARBOR_USERNAME", GitHubPasswordSecret: "HARBOR_PASSWORD"},
		{Project: "lost", Username: "robot$lost+ci",
			GitHubUserSecret: "LOST_USERNAME", GitHubPasswordSecret: "LOST_PASSWORD"},
		{Project: "quiet", Username: "robot$quiet+ci", Password: "x"},
	}

	got := githubSecrets(creds)
	require.Len(t, got, 2)
	assert.Equal(t, "HARBOR_USERNAME", got[0].Name)
	assert.Equal(t, "robot$apps+ci", got[0].Value)
	assert.Equal(t, "HARBOR_PASSWORD", got[1].Name)
	assert.Equal(t, "s3cret", got[1].Value)
}

func TestSmokeProject(t *testing.T) {
	projects := []config.ProjectConfig{{Name: "apps"}, {Name: "infra"}}

	p, err := smokeProject(projects, "")
	require.NoError(t, err)
	assert.Equal(t, "apps", p.Name)

	p, err = smokeProject(projects, "infra")
	require.NoError(t, err)
	assert.Equal(t, "infra", p.Name)

	p, err = smokeProject(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "library", p.Name)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harbor:\n  host: harbor.lab.example.com\n"), 0o600))

	run := func(args ...string) (*config.Config, error) {
		var got *config.Config
		var gotErr error
		cmd := &cli.Command{
			Flags: []cli.Flag{&cli.StringFlag{Name: "config", Value: defaultConfigFile}},
			Action: func(_ context.Context, c *cli.Command) error {
				got, gotErr = loadConfig(c)
				return nil
			},
		}
		require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
		return got, gotErr
	}

	cfg, err := run("--config", path)
	require.NoError(t, err)
	assert.Equal(t, "harbor.lab.example.com", cfg.Harbor.Host)

	_, err = run("--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Chdir(dir)
	require.NoError(t, os.Remove(path))
	cfg, err = run()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultHarborNamespace, cfg.Harbor.Namespace)
}

func TestStageCommand_OutputFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prereqs:\n  packages: [jq]\n"), 0o600))

	err := newRootCmd().Run(context.Background(), []string{
		"labctl", "--config", path, "--dry-run", "prereqs", "--output", "cm://",
	})
	require.Error(t, err, "a summary that cannot be written must fail the command")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest))
	assert.NotZero(t, apperrors.ExitCode(err))
}

func TestNewApp_Kubeconfig(t *testing.T) {
	t.Setenv("KUBECONFIG", "/etc/lab/kubeconfig")
	t.Cleanup(func() { client.SetDefaultKubeconfig("") })
	dir := t.TempDir()

	run := func(content string, args ...string) *app {
		path := filepath.Join(dir, "labctl.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		var got *app
		cmd := &cli.Command{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "config", Value: defaultConfigFile},
				&cli.StringFlag{Name: "kubeconfig"},
				&cli.BoolFlag{Name: "dry-run"},
			},
			Action: func(_ context.Context, c *cli.Command) error {
				var err error
				got, err = newApp(c)
				return err
			},
		}
		require.NoError(t, cmd.Run(context.Background(), append([]string{"test", "--config", path}, args...)))
		return got
	}

	a := run("microk8s:\n  channel: 1.31/stable\n")
	assert.Empty(t, a.kubeconfig)
	assert.Equal(t, "/etc/lab/kubeconfig", client.ResolveKubeconfig(a.kubeconfig), "KUBECONFIG is honored when nothing is configured")

	a = run("microk8s:\n  kubeconfigPath: /srv/kube/config\n")
	assert.Equal(t, "/srv/kube/config", a.kubeconfig)

	a = run("microk8s:\n  kubeconfigPath: /srv/kube/config\n", "--kubeconfig", "/tmp/flag")
	assert.Equal(t, "/tmp/flag", a.kubeconfig)
}
