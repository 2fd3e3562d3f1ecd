package resources

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

func init() {
	pollInterval = 10 * time.Millisecond
}

func TestEnsureNamespace(t *testing.T) {
	cs := fake.NewClientset()
	ctx := context.Background()

	created, err := EnsureNamespace(ctx, cs, "harbor")
	if err != nil {
		t.Fatalf("EnsureNamespace() error = %v", err)
	}
	if !created {
		t.Error("expected namespace to be created")
	}

	ns, err := cs.CoreV1().Namespaces().Get(ctx, "harbor", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("namespace not found: %v", err)
	}
	if ns.Labels[ManagedByLabel] != ManagedByValue {
		t.Errorf("expected managed-by label, got %v", ns.Labels)
	}

	created, err = EnsureNamespace(ctx, cs, "harbor")
	if err != nil {
		t.Fatalf("second EnsureNamespace() error = %v", err)
	}
	if created {
		t.Error("second call should not report creation")
	}
}

func TestEnsureSecret(t *testing.T) {
	cs := fake.NewClientset()
	ctx := context.Background()

	s := OpaqueSecret("cert-manager", "route53-credentials", map[string]string{"secret-access-key": "v1"})
	changed, err := EnsureSecret(ctx, cs, s, false)
	if err != nil || !changed {
		t.Fatalf("expected create, got changed=%v err=%v", changed, err)
	}

	// Existing secret is left alone without overwrite.
	s2 := OpaqueSecret("cert-manager", "route53-credentials", map[string]string{"secret-access-key": "v2"})
	changed, err = EnsureSecret(ctx, cs, s2, false)
	if err != nil || changed {
		t.Fatalf("expected no-op, got changed=%v err=%v", changed, err)
	}
	v, err := GetSecretValue(ctx, cs, "cert-manager", "route53-credentials", "secret-access-key")
	if err != nil || v != "v1" {
		t.Fatalf("expected v1, got %q err=%v", v, err)
	}

	// Overwrite with identical data is a no-op.
	s3 := OpaqueSecret("cert-manager", "route53-credentials", map[string]string{"secret-access-key": "v1"})
	changed, err = EnsureSecret(ctx, cs, s3, true)
	if err != nil || changed {
		t.Fatalf("expected identical data to be a no-op, got changed=%v err=%v", changed, err)
	}

	// Overwrite with different data updates.
	changed, err = EnsureSecret(ctx, cs, s2, true)
	if err != nil || !changed {
		t.Fatalf("expected update, got changed=%v err=%v", changed, err)
	}
	v, _ = GetSecretValue(ctx, cs, "cert-manager", "route53-credentials", "secret-access-key")
	if v != "v2" {
		t.Errorf("expected v2 after overwrite, got %q", v)
	}

	exists, err := SecretExists(ctx, cs, "cert-manager", "route53-credentials")
	if err != nil || !exists {
		t.Errorf("SecretExists() = %v, %v", exists, err)
	}
	exists, err = SecretExists(ctx, cs, "cert-manager", "missing")
	if err != nil || exists {
		t.Errorf("SecretExists(missing) = %v, %v", exists, err)
	}
}

func TestGetSecretValue_NotFound(t *testing.T) {
	cs := fake.NewClientset()
	ctx := context.Background()

	_, err := GetSecretValue(ctx, cs, "harbor", "harbor-admin", "password")
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for missing secret, got %v", err)
	}

	_, _ = EnsureSecret(ctx, cs, OpaqueSecret("harbor", "harbor-admin", map[string]string{"user": "admin"}), false)
	_, err = GetSecretValue(ctx, cs, "harbor", "harbor-admin", "password")
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND for missing key, got %v", err)
	}
}

func TestDockerConfigSecret(t *testing.T) {
	s, err := DockerConfigSecret("ci", "harbor-ci-push", "registry.lab", "robot$ci+push", "pw")
	if err != nil {
		t.Fatalf("DockerConfigSecret() error = %v", err)
	}
	if s.Type != corev1.SecretTypeDockerConfigJson {
		t.Errorf("unexpected type %s", s.Type)
	}

	var cfg dockerConfig
	if err := json.Unmarshal(s.Data[corev1.DockerConfigJsonKey], &cfg); err != nil {
		t.Fatalf("invalid docker config JSON: %v", err)
	}
	auth, ok := cfg.Auths["registry.lab"]
	if !ok {
		t.Fatalf("missing registry entry: %v", cfg.Auths)
	}
	if auth.Username != "robot$ci+push" || auth.Auth != "cm9ib3QkY2krcHVzaDpwdw==" {
		t.Errorf("unexpected auth entry: %+v", auth)
	}
}

func TestEnsureConfigMap(t *testing.T) {
	cs := fake.NewClientset()
	ctx := context.Background()

	err := EnsureConfigMap(ctx, cs, "default", "labctl-status", map[string]string{"app.kubernetes.io/component": "status"}, map[string]string{"format": "json"})
	if err != nil {
		t.Fatalf("EnsureConfigMap() error = %v", err)
	}
	cm, err := cs.CoreV1().ConfigMaps("default").Get(ctx, "labctl-status", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("configmap not found: %v", err)
	}
	if cm.Data["format"] != "json" {
		t.Errorf("unexpected data %v", cm.Data)
	}
	if cm.Labels[ManagedByLabel] != ManagedByValue || cm.Labels["app.kubernetes.io/component"] != "status" {
		t.Errorf("unexpected labels %v", cm.Labels)
	}

	if err := EnsureConfigMap(ctx, cs, "default", "labctl-status", nil, map[string]string{"format": "yaml"}); err != nil {
		t.Fatalf("second EnsureConfigMap() error = %v", err)
	}
	cm, _ = cs.CoreV1().ConfigMaps("default").Get(ctx, "labctl-status", metav1.GetOptions{})
	if cm.Data["format"] != "yaml" {
		t.Errorf("expected updated data, got %v", cm.Data)
	}
}

func TestWaitForDeploymentReady(t *testing.T) {
	ctx := context.Background()
	ready := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "cert-manager", Namespace: "cert-manager"},
		Spec:       appsv1.DeploymentSpec{Replicas: ptr.To[int32](1)},
		Status: appsv1.DeploymentStatus{
			UpdatedReplicas:    1,
			AvailableReplicas:  1,
		},
	}
	notReady := ready.DeepCopy()
	notReady.Name = "cert-manager-webhook"
	notReady.Status.AvailableReplicas = 0

	cs := fake.NewClientset(ready, notReady)

	if err := WaitForDeploymentReady(ctx, cs, "cert-manager", "cert-manager", time.Second); err != nil {
		t.Errorf("expected ready deployment, got %v", err)
	}

	err := WaitForDeploymentReady(ctx, cs, "cert-manager", "cert-manager-webhook", 50*time.Millisecond)
	if !apperrors.IsCode(err, apperrors.ErrCodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "0 of 1 replicas available") {
		t.Errorf("expected last state in error, got %q", got)
	}

	err = WaitForDeployments(ctx, cs, "cert-manager", []string{"cert-manager", "cert-manager-webhook"}, 50*time.Millisecond)
	if err == nil {
		t.Error("expected group wait to fail when one deployment is not ready")
	}
}

func TestDeploymentReady(t *testing.T) {
	tests := []struct {
		name string
		d    appsv1.Deployment
		want bool
	}{
		{
			name: "generation not observed",
			d: appsv1.Deployment{
				ObjectMeta: metav1.ObjectMeta{Generation: 3},
				Status:     appsv1.DeploymentStatus{ObservedGeneration: 2, UpdatedReplicas: 1, AvailableReplicas: 1},
			},
			want: false,
		},
		{
			name: "nil replicas defaults to one",
			d: appsv1.Deployment{
				Status: appsv1.DeploymentStatus{UpdatedReplicas: 1, AvailableReplicas: 1},
			},
			want: true,
		},
		{
			name: "scaled to zero",
			d: appsv1.Deployment{
				Spec: appsv1.DeploymentSpec{Replicas: ptr.To[int32](0)},
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := deploymentReady(&tt.d); got != tt.want {
				t.Errorf("deploymentReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWaitForEndpoints(t *testing.T) {
	ctx := context.Background()
	slice := &discoveryv1.EndpointSlice{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "cert-manager-webhook-abc",
			Namespace: "cert-manager",
			Labels:    map[string]string{discoveryv1.LabelServiceName: "cert-manager-webhook"},
		},
		AddressType: discoveryv1.AddressTypeIPv4,
		Endpoints: []discoveryv1.Endpoint{
			{Addresses: []string{"10.1.0.5"}, Conditions: discoveryv1.EndpointConditions{Ready: ptr.To(true)}},
		},
	}
	cs := fake.NewClientset(slice)

	if err := WaitForEndpoints(ctx, cs, "cert-manager", "cert-manager-webhook", time.Second); err != nil {
		t.Errorf("expected endpoints to be ready, got %v", err)
	}
	err := WaitForEndpoints(ctx, cs, "cert-manager", "other", 50*time.Millisecond)
	if !apperrors.IsCode(err, apperrors.ErrCodeTimeout) {
		t.Errorf("expected TIMEOUT, got %v", err)
	}
}

func TestWaitForServiceAccount(t *testing.T) {
	ctx := context.Background()
	cs := fake.NewClientset()

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = cs.CoreV1().ServiceAccounts("arc-systems").Create(context.Background(), &corev1.ServiceAccount{
			ObjectMeta: metav1.ObjectMeta{Name: "arc-gha-rs-controller", Namespace: "arc-systems"},
		}, metav1.CreateOptions{})
	}()

	if err := WaitForServiceAccount(ctx, cs, "arc-systems", "arc-gha-rs-controller", 2*time.Second); err != nil {
		t.Errorf("expected service account to appear, got %v", err)
	}
}

func TestWaitForPVCBound(t *testing.T) {
	ctx := context.Background()
	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "harbor-registry", Namespace: "harbor"},
		Status:     corev1.PersistentVolumeClaimStatus{Phase: corev1.ClaimPending},
	}
	cs := fake.NewClientset(pvc)

	err := WaitForPVCBound(ctx, cs, "harbor", "harbor-registry", 50*time.Millisecond)
	if !apperrors.IsCode(err, apperrors.ErrCodeTimeout) {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}
	if !strings.Contains(err.Error(), "Pending") {
		t.Errorf("expected phase in error, got %v", err)
	}
}

func TestDockerConfigCredentials(t *testing.T) {
	s, err := DockerConfigSecret("ci", "harbor-robot", "harbor.lab.example.com", "robot$ci+push", "pw")
	if err != nil {
		t.Fatal(err)
	}

	user, pass, err := DockerConfigCredentials(s, "harbor.lab.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if user != "robot$ci+push" || pass != "pw" {
		t.Errorf("got %q/%q", user, pass)
	}

	if _, _, err = DockerConfigCredentials(s, "other.example.com"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}

	s.Data = map[string][]byte{corev1.DockerConfigJsonKey: []byte(`{"auths":{"r":{"auth":"dTpw"}}}`)}
	user, pass, err = DockerConfigCredentials(s, "r")
	if err != nil {
		t.Fatal(err)
	}
	if user != "u" || pass != "p" {
		t.Errorf("auth field: got %q/%q", user, pass)
	}
}
