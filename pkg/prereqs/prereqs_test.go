package prereqs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homelab/labctl/pkg/runner"
)

func TestInstalled(t *testing.T) {
	tests := []struct {
		name string
		resp runner.Response
		want bool
		err  bool
	}{
		{name: "installed", resp: runner.Response{Output: "install ok installed"}, want: true},
		{name: "deinstalled", resp: runner.Response{Output: "deinstall ok config-files"}, want: false},
		{name: "unknown package", resp: runner.Response{ExitCode: 1}, want: false},
		{name: "dpkg failure", resp: runner.Response{ExitCode: 2}, err: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runner.NewRecorder().On("dpkg-query", tt.resp)
			got, err := Installed(context.Background(), r, "snapd")
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsurePackages_SkipsInstalled(t *testing.T) {
	r := runner.NewRecorder().On("dpkg-query", runner.Response{Output: "install ok installed"})

	require.NoError(t, EnsurePackages(context.Background(), r, []string{"snapd", "curl"}))
	assert.False(t, r.Called("apt-get"), "apt-get should not run when everything is installed")
}

func rootForTest(t *testing.T, euid int) {
	t.Helper()
	orig := runner.Euid
	runner.Euid = func() int { return euid }
	t.Cleanup(func() { runner.Euid = orig })
}

func TestEnsurePackages_InstallsMissing(t *testing.T) {
	rootForTest(t, 0)
	r := runner.NewRecorder().
		On("dpkg-query -W -f=${Status} snapd", runner.Response{Output: "install ok installed"}).
		On("dpkg-query -W -f=${Status} jq", runner.Response{ExitCode: 1})

	require.NoError(t, EnsurePackages(context.Background(), r, []string{"snapd", "jq"}))
	assert.True(t, r.Called("apt-get update"))
	assert.True(t, r.Called("apt-get install -y --no-install-recommends jq"))
	assert.False(t, r.Called("apt-get install -y --no-install-recommends snapd"))
}

func TestEnsurePackages_Sudo(t *testing.T) {
	rootForTest(t, 1000)
	r := runner.NewRecorder().On("dpkg-query", runner.Response{ExitCode: 1})

	require.NoError(t, EnsurePackages(context.Background(), r, []string{"jq"}))
	assert.True(t, r.Called("sudo -n apt-get update"))
	assert.True(t, r.Called("sudo -n apt-get install -y --no-install-recommends jq"))
	assert.False(t, r.Called("apt-get"))
}

func TestEnsurePackages_InstallFailure(t *testing.T) {
	rootForTest(t, 0)
	r := runner.NewRecorder().
		On("dpkg-query", runner.Response{ExitCode: 1}).
		On("apt-get install", runner.Response{ExitCode: 100, Output: "E: Unable to locate package"})

	err := EnsurePackages(context.Background(), r, []string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apt-get install failed")
}

func TestRequireBinaries(t *testing.T) {
	r := runner.NewRecorder().Missing("helm").Missing("gh")

	require.NoError(t, RequireBinaries(r, "snap"))

	err := RequireBinaries(r, "snap", "helm", "gh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helm, gh")
	assert.True(t, IsMissingBinary(err))
}

func TestBinariesFor(t *testing.T) {
	assert.Equal(t, []string{"snap"}, BinariesFor("microk8s"))
	assert.Equal(t, []string{"helm"}, BinariesFor("harbor"))
	assert.Nil(t, BinariesFor("storage"))
}
