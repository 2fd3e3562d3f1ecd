package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8sversion "k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/homelab/labctl/pkg/certmanager"
	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/microk8s"
	"github.com/homelab/labctl/pkg/pipeline"
	"github.com/homelab/labctl/pkg/runner"
	"github.com/homelab/labctl/pkg/version"
)

const harborStatus = `{
  "name": "harbor",
  "namespace": "harbor",
  "version": 3,
  "info": {"status": "deployed"},
  "chart": {"metadata": {"name": "harbor", "version": "1.15.1", "appVersion": "2.11.1"}}
}`

const certManagerStatus = `{
  "name": "cert-manager",
  "namespace": "cert-manager",
  "version": 1,
  "info": {"status": "deployed"},
  "chart": {"metadata": {"name": "cert-manager", "version": "v1.16.2"}}
}`

func testConfig() *config.Config {
	c := config.Default()
	c.Harbor.Host = "harbor.lab.example.com"
	c.CertManager.Certificate.DNSNames = []string{c.Harbor.Host}
	c.ARC.ScaleSets = []config.ScaleSetConfig{{Name: "lab-runners", GitHubConfigURL: "https://github.com/homelab"}}
	return c
}

func certificate(cfg config.CertManagerConfig, ready string) *unstructured.Unstructured {
	obj := certmanager.Certificate(cfg)
	_ = unstructured.SetNestedSlice(obj.Object, []any{
		map[string]any{"type": "Ready", "status": ready, "reason": "Issued", "message": "ok"},
	}, "status", "conditions")
	_ = unstructured.SetNestedField(obj.Object, "2027-01-15T00:00:00Z", "status", "notAfter")
	return obj
}

func newCollector(t *testing.T, r *runner.Recorder, objs ...runtime.Object) (*Collector, *fake.Clientset) {
	t.Helper()
	cfg := testConfig()
	cs := fake.NewClientset()
	cs.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &k8sversion.Info{GitVersion: "v1.31.4"}
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
		map[schema.GroupVersionResource]string{
			certmanager.CertificateGVR: "CertificateList",
		}, objs...)
	h := helm.New(r, "")
	return &Collector{
		Kube:   cs,
		Helm:   h,
		Certs:  &certmanager.Manager{Helm: h, Kube: cs, Dynamic: dyn, Config: cfg.CertManager},
		Config: cfg,
		Units: func(context.Context) ([]microk8s.UnitState, error) {
			return []microk8s.UnitState{
				{Name: "snap.microk8s.daemon-kubelite", ActiveState: "active", SubState: "running"},
				{Name: "snap.microk8s.daemon-containerd", ActiveState: "failed", SubState: "failed"},
			}, nil
		},
		now: func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}, cs
}

func TestCollect(t *testing.T) {
	r := runner.NewRecorder().
		On("helm status harbor", runner.Response{Output: harborStatus}).
		On("helm status cert-manager", runner.Response{Output: certManagerStatus})
	c, cs := newCollector(t, r, certificate(testConfig().CertManager, "True"))

	sum := &pipeline.Summary{RunID: "run-1", Results: []pipeline.Result{
		{Stage: "prereqs", Status: pipeline.StatusOK},
		{Stage: "harbor-config", Status: pipeline.StatusFailed, Message: "boom"},
	}}
	require.NoError(t, SaveSummary(context.Background(), cs, sum))

	rep, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1.31.4", rep.Kubernetes)
	assert.Len(t, rep.Units, 2)
	assert.Empty(t, rep.Errors)
	require.NotNil(t, rep.Certificate)
	assert.True(t, rep.Certificate.Ready)
	require.NotNil(t, rep.LastRun)
	assert.Equal(t, "run-1", rep.LastRun.RunID)

	byName := map[string]ReleaseState{}
	for _, rel := range rep.Releases {
		byName[rel.Name] = rel
	}
	require.Len(t, byName, 4)
	assert.Equal(t, version.DriftNone, byName["cert-manager"].Drift)
	assert.Equal(t, version.DriftBehind, byName["harbor"].Drift)
	assert.Equal(t, 3, byName["harbor"].Revision)
	assert.Equal(t, "not-installed", byName["arc"].Status)
	assert.Equal(t, "not-installed", byName["lab-runners"].Status)

	problems := rep.Problems()
	assert.Contains(t, problems, "unit snap.microk8s.daemon-containerd is not active")
	assert.Contains(t, problems, "release harbor/harbor runs chart 1.15.1, want 1.16.0")
	assert.Contains(t, problems, "last bootstrap failed at harbor-config")
}

func TestCollect_NoARCConfigured(t *testing.T) {
	r := runner.NewRecorder().
		On("helm status harbor", runner.Response{Output: harborStatus}).
		On("helm status cert-manager", runner.Response{Output: certManagerStatus})
	c, _ := newCollector(t, r, certificate(testConfig().CertManager, "True"))
	c.Config.ARC.ScaleSets = nil

	rep, err := c.Collect(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Releases, 2)
	assert.False(t, r.Called("helm status arc"))
	for _, p := range rep.Problems() {
		assert.NotContains(t, p, "arc")
	}
}

func TestCollect_RecordsSectionErrors(t *testing.T) {
	c, _ := newCollector(t, runner.NewRecorder())
	c.Units = func(context.Context) ([]microk8s.UnitState, error) {
		return nil, errors.New("no system bus")
	}

	rep, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "no system bus", rep.Errors["units"])
	assert.Contains(t, rep.Errors, "certificate")
	assert.Nil(t, rep.LastRun)
	assert.NotContains(t, rep.Errors, "lastRun")
}

func TestCollect_Canceled(t *testing.T) {
	c, _ := newCollector(t, runner.NewRecorder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Collect(ctx)
	assert.Error(t, err)
}

func TestReportTable(t *testing.T) {
	rep := &Report{
		Kubernetes: "v1.31.4",
		Releases: []ReleaseState{
			{Name: "harbor", Namespace: "harbor", Status: "deployed", Chart: "harbor", Deployed: "1.15.1", Desired: "1.16.0", Drift: version.DriftBehind},
		},
		Certificate: &certmanager.CertificateState{Name: "harbor-tls", Namespace: "harbor", Ready: true, NotAfter: "2027-01-15T00:00:00Z"},
		LastRun: &pipeline.Summary{Results: []pipeline.Result{
			{Stage: "harbor-config", Status: pipeline.StatusOK},
		}},
		Errors: map[string]string{"units": "no system bus"},
	}

	header, rows := rep.Table()
	assert.Equal(t, []string{"SECTION", "NAME", "STATE", "DETAIL"}, header)
	assert.Equal(t, [][]string{
		{"cluster", "kubernetes", "UP", "v1.31.4"},
		{"release", "harbor/harbor", "DEPLOYED", "harbor 1.15.1 (behind, want 1.16.0)"},
		{"certificate", "harbor/harbor-tls", "READY", "expires 2027-01-15T00:00:00Z"},
		{"stage", "Harbor Config", "OK", ""},
		{"error", "units", "UNAVAILABLE", "no system bus"},
	}, rows)
}

func TestLoadSummary_NotFound(t *testing.T) {
	_, err := LoadSummary(context.Background(), fake.NewClientset())
	assert.Error(t, err)
}
