package harbor

import (
	"context"
	"os"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/runner"
)

func testConfig() *config.Config {
	cfg := &config.Config{Harbor: config.HarborConfig{Host: "harbor.lab.example.com"}}
	cfg.ApplyDefaults()
	return cfg
}

func readyDeployment(name string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "harbor"},
		Spec:       appsv1.DeploymentSpec{Replicas: ptr.To[int32](1)},
		Status:     appsv1.DeploymentStatus{UpdatedReplicas: 1, AvailableReplicas: 1},
	}
}

func TestBuildValues(t *testing.T) {
	cfg := testConfig()
	cfg.Harbor.Values = map[string]any{
		"trivy":  map[string]any{"enabled": false},
		"expose": map[string]any{"ingress": map[string]any{"annotations": map[string]any{"a": "b"}}},
	}

	v, err := BuildValues(cfg.Harbor, cfg.Storage)
	require.NoError(t, err)

	assert.Equal(t, "https://harbor.lab.example.com", v["externalURL"])
	assert.Equal(t, "harbor-admin", v["existingSecretAdminPassword"])
	assert.Equal(t, AdminPasswordKey, v["existingSecretAdminPasswordKey"])

	expose := v["expose"].(map[string]any)
	assert.Equal(t, "ingress", expose["type"])
	tls := expose["tls"].(map[string]any)
	assert.Equal(t, "secret", tls["certSource"])
	assert.Equal(t, "harbor-tls", tls["secret"].(map[string]any)["secretName"])

	ingress := expose["ingress"].(map[string]any)
	assert.Equal(t, "harbor.lab.example.com", ingress["hosts"].(map[string]any)["core"])
	assert.Equal(t, "public", ingress["className"])
	assert.Equal(t, map[string]any{"a": "b"}, ingress["annotations"], "overrides merge into nested maps")
	assert.Equal(t, map[string]any{"enabled": false}, v["trivy"])

	pvc := v["persistence"].(map[string]any)["persistentVolumeClaim"].(map[string]any)
	assert.Equal(t, "harbor-registry", pvc["registry"].(map[string]any)["existingClaim"])
	assert.Equal(t, "harbor-hostpath", pvc["registry"].(map[string]any)["storageClass"])
	jobLog := pvc["jobservice"].(map[string]any)["jobLog"].(map[string]any)
	assert.Equal(t, "harbor-jobservice", jobLog["existingClaim"])
}

func TestMergeValues(t *testing.T) {
	dst := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "d": "x"}
	MergeValues(dst, map[string]any{"a": map[string]any{"c": 3}, "d": map[string]any{"e": true}})
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": 1, "c": 3},
		"d": map[string]any{"e": true},
	}, dst)
}

func TestEnsureAdminSecret(t *testing.T) {
	ctx := context.Background()

	t.Run("generated", func(t *testing.T) {
		kube := fake.NewClientset()
		i := &Installer{Kube: kube, Config: testConfig().Harbor}
		created, err := i.EnsureAdminSecret(ctx)
		require.NoError(t, err)
		assert.True(t, created)

		pw, err := AdminPassword(ctx, kube, i.Config)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(pw), 16)
	})

	t.Run("configured", func(t *testing.T) {
		kube := fake.NewClientset()
		cfg := testConfig().Harbor
		cfg.AdminPassword = "Harbor12345"
		i := &Installer{Kube: kube, Config: cfg}
		_, err := i.EnsureAdminSecret(ctx)
		require.NoError(t, err)

		pw, err := AdminPassword(ctx, kube, cfg)
		require.NoError(t, err)
		assert.Equal(t, "Harbor12345", pw)
	})

	t.Run("existing kept", func(t *testing.T) {
		kube := fake.NewClientset(&corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: "harbor-admin", Namespace: "harbor"},
			Data:       map[string][]byte{AdminPasswordKey: []byte("stored")},
		})
		cfg := testConfig().Harbor
		cfg.AdminPassword = "ignored"
		i := &Installer{Kube: kube, Config: cfg}
		created, err := i.EnsureAdminSecret(ctx)
		require.NoError(t, err)
		assert.False(t, created)

		pw, err := AdminPassword(ctx, kube, cfg)
		require.NoError(t, err)
		assert.Equal(t, "stored", pw)
	})
}

func TestAdminPassword_FallsBackToConfig(t *testing.T) {
	cfg := testConfig().Harbor
	_, err := AdminPassword(context.Background(), fake.NewClientset(), cfg)
	require.Error(t, err)

	cfg.AdminPassword = "fromconfig"
	pw, err := AdminPassword(context.Background(), fake.NewClientset(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "fromconfig", pw)
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword()
	require.NoError(t, err)
	b, err := GeneratePassword()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^Hb1[A-Za-z0-9_-]{24}$`, a)
}

func TestRun(t *testing.T) {
	cfg := testConfig()
	kube := fake.NewClientset(
		readyDeployment("harbor-core"),
		readyDeployment("harbor-portal"),
		readyDeployment("harbor-registry"),
		readyDeployment("harbor-jobservice"),
	)

	var rendered map[string]any
	r := runner.NewRecorder().
		On("helm repo list", runner.Response{Output: "[]"}).
		On("helm upgrade --install", runner.Response{Hook: func(c runner.Call) {
			i := slices.Index(c.Args, "--values")
			require.GreaterOrEqual(t, i, 0)
			data, err := os.ReadFile(c.Args[i+1])
			require.NoError(t, err)
			require.NoError(t, yaml.Unmarshal(data, &rendered))
		}})

	i := &Installer{Helm: helm.New(r, ""), Kube: kube, Config: cfg.Harbor, Storage: cfg.Storage}
	require.NoError(t, i.Run(context.Background()))

	assert.True(t, r.Called("helm repo add harbor https://helm.goharbor.io"))
	assert.True(t, r.Called("helm upgrade --install harbor harbor/harbor --namespace harbor --version 1.16.0"),
		"calls: %v", r.CommandLines())
	assert.Equal(t, "https://harbor.lab.example.com", rendered["externalURL"])

	_, err := kube.CoreV1().Namespaces().Get(context.Background(), "harbor", metav1.GetOptions{})
	require.NoError(t, err)
	_, err = kube.CoreV1().Secrets("harbor").Get(context.Background(), "harbor-admin", metav1.GetOptions{})
	require.NoError(t, err)
}

func TestDeployments(t *testing.T) {
	i := &Installer{Config: config.HarborConfig{Release: "hb"}}
	assert.Equal(t, []string{"hb-core", "hb-portal", "hb-registry", "hb-jobservice"}, i.Deployments())
}
