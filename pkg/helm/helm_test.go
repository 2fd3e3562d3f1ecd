package helm

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/runner"
)

func TestRepoAdd(t *testing.T) {
	tests := []struct {
		name        string
		list        runner.Response
		wantChanged bool
		wantCmd     string
	}{
		{
			name:        "fresh host",
			list:        runner.Response{ExitCode: 1, Output: "Error: no repositories to show"},
			wantChanged: true,
			wantCmd:     "helm repo add harbor https://helm.goharbor.io",
		},
		{
			name:        "already present",
			list:        runner.Response{Output: `[{"name":"harbor","url":"https://helm.goharbor.io/"}]`},
			wantChanged: false,
		},
		{
			name:        "url changed",
			list:        runner.Response{Output: `[{"name":"harbor","url":"https://example.com/charts"}]`},
			wantChanged: true,
			wantCmd:     "helm repo add harbor https://helm.goharbor.io --force-update",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runner.NewRecorder().On("helm repo list", tt.list)
			changed, err := New(r, "").RepoAdd(context.Background(), "harbor", "https://helm.goharbor.io")
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			if tt.wantCmd != "" {
				assert.True(t, r.Called(tt.wantCmd), "calls: %v", r.CommandLines())
			} else {
				assert.False(t, r.Called("helm repo add"))
			}
		})
	}
}

func TestUpgradeInstall(t *testing.T) {
	var valuesFile string
	var rendered map[string]any
	r := runner.NewRecorder().
		On("helm repo list", runner.Response{Output: "[]"}).
		On("helm upgrade --install", runner.Response{Hook: func(c runner.Call) {
			i := slices.Index(c.Args, "--values")
			require.GreaterOrEqual(t, i, 0)
			valuesFile = c.Args[i+1]
			data, err := os.ReadFile(valuesFile)
			require.NoError(t, err)
			require.NoError(t, yaml.Unmarshal(data, &rendered))
		}})

	err := New(r, "/home/lab/.kube/config").UpgradeInstall(context.Background(), Release{
		Name:            "cert-manager",
		Namespace:       "cert-manager",
		Chart:           "jetstack/cert-manager",
		Version:         "v1.16.2",
		RepoName:        "jetstack",
		RepoURL:         "https://charts.jetstack.io",
		CreateNamespace: true,
		Values:          Values{"crds": map[string]any{"enabled": true}},
		Wait:            true,
		Timeout:         5 * time.Minute,
	})
	require.NoError(t, err)

	assert.True(t, r.Called("helm repo add jetstack https://charts.jetstack.io"))
	assert.True(t, r.Called("helm repo update jetstack"))
	assert.True(t, r.Called("helm upgrade --install cert-manager jetstack/cert-manager --namespace cert-manager --create-namespace --version v1.16.2 --values "))

	last := r.Calls()[len(r.Calls())-1]
	assert.Contains(t, last.Args, "--wait")
	assert.Contains(t, last.Args, "5m0s")
	assert.Equal(t, "/home/lab/.kube/config", last.Args[len(last.Args)-1])

	assert.Equal(t, map[string]any{"crds": map[string]any{"enabled": true}}, rendered)
	_, err = os.Stat(valuesFile)
	assert.True(t, os.IsNotExist(err), "values file should be removed")
}

func TestUpgradeInstall_OCISkipsRepo(t *testing.T) {
	r := runner.NewRecorder()
	err := New(r, "").UpgradeInstall(context.Background(), Release{
		Name:      "arc",
		Namespace: "arc-systems",
		Chart:     "oci://ghcr.io/actions/actions-runner-controller-charts/gha-runner-scale-set-controller",
		RepoURL:   "https://ignored.example.com",
	})
	require.NoError(t, err)
	assert.False(t, r.Called("helm repo"))
	assert.Len(t, r.Calls(), 1)
}

func TestUpgradeInstall_Invalid(t *testing.T) {
	err := New(runner.NewRecorder(), "").UpgradeInstall(context.Background(), Release{Name: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestStatus(t *testing.T) {
	const out = `{"name":"harbor","namespace":"harbor","version":3,
"info":{"status":"deployed","description":"Upgrade complete","last_deployed":"2026-10-01T10:00:00Z"},
"chart":{"metadata":{"name":"harbor","version":"1.16.0","appVersion":"2.12.0"}}}`

	r := runner.NewRecorder().
		On("helm status harbor", runner.Response{Output: out}).
		On("helm status missing", runner.Response{ExitCode: 1, Output: "Error: release: not found"})
	c := New(r, "")

	st, err := c.Status(context.Background(), "harbor", "harbor")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Revision)
	assert.Equal(t, "1.16.0", st.ChartVersion())

	ok, err := c.IsDeployed(context.Background(), "harbor", "harbor")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Status(context.Background(), "missing", "harbor")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	ok, err = c.IsDeployed(context.Background(), "missing", "harbor")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKubeconfigResolvedFromEnv(t *testing.T) {
	t.Setenv("KUBECONFIG", "/etc/lab/kubeconfig")
	r := runner.NewRecorder().On("helm status", runner.Response{Output: `{"name":"harbor","info":{"status":"deployed"}}`})

	_, err := New(r, "").Status(context.Background(), "harbor", "harbor")
	require.NoError(t, err)
	last := r.Calls()[len(r.Calls())-1]
	assert.Equal(t, []string{"--kubeconfig", "/etc/lab/kubeconfig"}, last.Args[len(last.Args)-2:])

	_, err = New(r, "/explicit").Status(context.Background(), "harbor", "harbor")
	require.NoError(t, err)
	last = r.Calls()[len(r.Calls())-1]
	assert.Equal(t, "/explicit", last.Args[len(last.Args)-1])
}
