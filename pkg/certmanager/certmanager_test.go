package certmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	"github.com/homelab/labctl/pkg/config"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/helm"
	"github.com/homelab/labctl/pkg/k8s/resources"
	"github.com/homelab/labctl/pkg/runner"
)

func init() {
	pollInterval = 10 * time.Millisecond
}

func testConfig() config.CertManagerConfig {
	c := config.Default()
	c.Harbor.Host = "harbor.lab.example.com"
	c.CertManager.Email = "ops@example.com"
	c.CertManager.Route53 = config.Route53Config{
		Region:          "us-east-1",
		HostedZoneID:    "Z123",
		AccessKeyID:     "AKIA123",
		SecretAccessKey: "s3cr3t",
		SecretName:      config.DefaultRoute53SecretName,
	}
	c.CertManager.Certificate.DNSNames = []string{c.Harbor.Host}
	return c.CertManager
}

func newDynamic(objs ...runtime.Object) *dynamicfake.FakeDynamicClient {
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(),
		map[schema.GroupVersionResource]string{
			ClusterIssuerGVR: "ClusterIssuerList",
			CertificateGVR:   "CertificateList",
		}, objs...)
}

func newManager(kube *fake.Clientset, dyn *dynamicfake.FakeDynamicClient, r runner.Runner) *Manager {
	if r == nil {
		r = runner.NewRecorder()
	}
	return &Manager{
		Helm:    helm.New(r, ""),
		Kube:    kube,
		Dynamic: dyn,
		Config:  testConfig(),
	}
}

func TestClusterIssuer(t *testing.T) {
	obj := ClusterIssuer(testConfig())

	assert.Equal(t, "ClusterIssuer", obj.GetKind())
	assert.Equal(t, "letsencrypt", obj.GetName())

	server, _, _ := unstructured.NestedString(obj.Object, "spec", "acme", "server")
	assert.Equal(t, config.ACMEStagingURL, server)

	solvers, _, _ := unstructured.NestedSlice(obj.Object, "spec", "acme", "solvers")
	require.Len(t, solvers, 1)
	route53, _, _ := unstructured.NestedMap(solvers[0].(map[string]any), "dns01", "route53")
	assert.Equal(t, "us-east-1", route53["region"])
	assert.Equal(t, "Z123", route53["hostedZoneID"])
	assert.Equal(t, "AKIA123", route53["accessKeyID"])
	ref := route53["secretAccessKeySecretRef"].(map[string]any)
	assert.Equal(t, SecretAccessKeyKey, ref["key"])
}

func TestCertificate(t *testing.T) {
	obj := Certificate(testConfig())

	assert.Equal(t, "harbor", obj.GetNamespace())
	names, _, _ := unstructured.NestedStringSlice(obj.Object, "spec", "dnsNames")
	assert.Equal(t, []string{"harbor.lab.example.com"}, names)
	kind, _, _ := unstructured.NestedString(obj.Object, "spec", "issuerRef", "kind")
	assert.Equal(t, "ClusterIssuer", kind)
}

func TestEnsureClusterIssuer(t *testing.T) {
	ctx := context.Background()
	m := newManager(fake.NewClientset(), newDynamic(), nil)

	changed, err := m.EnsureClusterIssuer(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "first call creates")

	changed, err = m.EnsureClusterIssuer(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "unchanged spec is a no-op")

	m.Config.Email = "other@example.com"
	changed, err = m.EnsureClusterIssuer(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "changed email updates")

	got, err := m.Dynamic.Resource(ClusterIssuerGVR).Get(ctx, "letsencrypt", metav1.GetOptions{})
	require.NoError(t, err)
	email, _, _ := unstructured.NestedString(got.Object, "spec", "acme", "email")
	assert.Equal(t, "other@example.com", email)
}

func TestEnsureClusterIssuer_ToleratesDefaultedFields(t *testing.T) {
	ctx := context.Background()
	existing := ClusterIssuer(testConfig())
	require.NoError(t, unstructured.SetNestedField(existing.Object, "http://example.com/eab", "spec", "acme", "externalAccountBinding"))

	m := newManager(fake.NewClientset(), newDynamic(existing), nil)
	changed, err := m.EnsureClusterIssuer(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestEnsureRoute53Secret(t *testing.T) {
	ctx := context.Background()
	kube := fake.NewClientset()
	m := newManager(kube, newDynamic(), nil)

	created, err := m.EnsureRoute53Secret(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	v, err := resources.GetSecretValue(ctx, kube, "cert-manager", config.DefaultRoute53SecretName, SecretAccessKeyKey)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", v)

	m.Config.Route53.SecretAccessKey = ""
	created, err = m.EnsureRoute53Secret(ctx)
	require.NoError(t, err, "existing secret satisfies the stage without a key in config")
	assert.False(t, created)
}

func TestEnsureRoute53Secret_MissingKey(t *testing.T) {
	m := newManager(fake.NewClientset(), newDynamic(), nil)
	m.Config.Route53.SecretAccessKey = ""
	_, err := m.EnsureRoute53Secret(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest))
}

func TestEnsureCertificate_CreatesNamespace(t *testing.T) {
	ctx := context.Background()
	kube := fake.NewClientset()
	m := newManager(kube, newDynamic(), nil)

	changed, err := m.EnsureCertificate(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = kube.CoreV1().Namespaces().Get(ctx, "harbor", metav1.GetOptions{})
	assert.NoError(t, err)
}

func readyCertificate(status string, message string) *unstructured.Unstructured {
	obj := Certificate(testConfig())
	_ = unstructured.SetNestedSlice(obj.Object, []any{
		map[string]any{"type": "Issuing", "status": "True"},
		map[string]any{"type": "Ready", "status": status, "reason": "Test", "message": message},
	}, "status", "conditions")
	_ = unstructured.SetNestedField(obj.Object, "2027-01-15T00:00:00Z", "status", "notAfter")
	return obj
}

func TestWaitForCertificate(t *testing.T) {
	ctx := context.Background()

	t.Run("ready", func(t *testing.T) {
		m := newManager(fake.NewClientset(), newDynamic(readyCertificate("True", "Certificate is up to date")), nil)
		require.NoError(t, m.WaitForCertificate(ctx))

		st, err := m.CertificateStatus(ctx)
		require.NoError(t, err)
		assert.True(t, st.Ready)
		assert.Equal(t, "2027-01-15T00:00:00Z", st.NotAfter)
	})

	t.Run("timeout surfaces condition message", func(t *testing.T) {
		m := newManager(fake.NewClientset(), newDynamic(readyCertificate("False", "Waiting for DNS-01 challenge propagation")), nil)
		m.Config.ReadyTimeout = config.Duration{Duration: 50 * time.Millisecond}

		err := m.WaitForCertificate(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout))
		assert.Contains(t, err.Error(), "DNS-01 challenge propagation")
	})

	t.Run("missing certificate", func(t *testing.T) {
		m := newManager(fake.NewClientset(), newDynamic(), nil)
		m.Config.ReadyTimeout = config.Duration{Duration: 30 * time.Millisecond}
		err := m.WaitForCertificate(ctx)
		assert.Contains(t, err.Error(), "certificate not found")
	})
}

func readyDeployment(name string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "cert-manager"},
		Spec:       appsv1.DeploymentSpec{Replicas: ptr.To[int32](1)},
		Status:     appsv1.DeploymentStatus{UpdatedReplicas: 1, AvailableReplicas: 1},
	}
}

func TestInstall(t *testing.T) {
	kube := fake.NewClientset(
		readyDeployment("cert-manager"),
		readyDeployment("cert-manager-webhook"),
		readyDeployment("cert-manager-cainjector"),
		&discoveryv1.EndpointSlice{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "cert-manager-webhook-x",
				Namespace: "cert-manager",
				Labels:    map[string]string{discoveryv1.LabelServiceName: webhookService},
			},
			Endpoints: []discoveryv1.Endpoint{{Addresses: []string{"10.1.0.9"}}},
		},
	)
	r := runner.NewRecorder().On("helm repo list", runner.Response{Output: "[]"})
	m := newManager(kube, newDynamic(), r)

	require.NoError(t, m.Install(context.Background()))
	assert.True(t, r.Called("helm repo add jetstack https://charts.jetstack.io"))
	assert.True(t, r.Called("helm upgrade --install cert-manager jetstack/cert-manager --namespace cert-manager --create-namespace --version v1.16.2"))
}
