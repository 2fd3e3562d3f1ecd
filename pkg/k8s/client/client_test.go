package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: microk8s-cluster
  cluster:
    server: https://127.0.0.1:16443
    insecure-skip-tls-verify: true
users:
- name: admin
  user:
    token: test-token
contexts:
- name: microk8s
  context:
    cluster: microk8s-cluster
    user: admin
current-context: microk8s
`

func writeKubeconfig(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(testKubeconfig), 0o600); err != nil {
		t.Fatal(err)
	}
}

// resetCache isolates tests from each other's cached clients.
func resetCache(t *testing.T) {
	t.Helper()
	mu.Lock()
	cached, defaultPath = nil, ""
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		cached, defaultPath = nil, ""
		mu.Unlock()
	})
}

func TestResolveKubeconfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv("KUBECONFIG", "/from/env")
		if got := ResolveKubeconfig("/explicit"); got != "/explicit" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("env before home", func(t *testing.T) {
		t.Setenv("KUBECONFIG", "/from/env")
		if got := ResolveKubeconfig(""); got != "/from/env" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("home config when present", func(t *testing.T) {
		t.Setenv("KUBECONFIG", "")
		path := filepath.Join(home, ".kube", "config")
		writeKubeconfig(t, path)
		defer os.Remove(path)
		if got := ResolveKubeconfig(""); got != path {
			t.Errorf("got %q, want %q", got, path)
		}
	})

	t.Run("microk8s credentials or nothing", func(t *testing.T) {
		t.Setenv("KUBECONFIG", "")
		got := ResolveKubeconfig("")
		if got != "" && got != MicroK8sCredentials {
			t.Errorf("got %q", got)
		}
	})
}

func TestBuildKubeClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubeconfig")
	writeKubeconfig(t, path)

	cs, cfg, err := BuildKubeClient(path)
	if err != nil {
		t.Fatalf("BuildKubeClient failed: %v", err)
	}
	if cs == nil {
		t.Fatal("expected clientset")
	}
	if cfg.Host != "https://127.0.0.1:16443" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.UserAgent != UserAgent || cfg.QPS != defaults.KubeClientQPS || cfg.Burst != defaults.KubeClientBurst {
		t.Errorf("unexpected client settings: ua=%q qps=%v burst=%d", cfg.UserAgent, cfg.QPS, cfg.Burst)
	}
}

func TestBuildKubeClient_InvalidFile(t *testing.T) {
	tests := map[string]string{
		"missing": filepath.Join(t.TempDir(), "absent"),
		"garbage": filepath.Join(t.TempDir(), "garbage"),
	}
	if err := os.WriteFile(tests["garbage"], []byte("not: [valid"), 0o600); err != nil {
		t.Fatal(err)
	}

	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := BuildKubeClient(path)
			if !apperrors.IsCode(err, apperrors.ErrCodeInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
}

func TestGetKubeClient_RetriesAfterFailure(t *testing.T) {
	resetCache(t)
	path := filepath.Join(t.TempDir(), "client.config")
	SetDefaultKubeconfig(path)

	if _, _, err := GetKubeClient(); err == nil {
		t.Fatal("expected error before the kubeconfig exists")
	}

	writeKubeconfig(t, path)
	first, _, err := GetKubeClient()
	if err != nil {
		t.Fatalf("GetKubeClient failed: %v", err)
	}
	second, _, err := GetKubeClient()
	if err != nil {
		t.Fatalf("GetKubeClient failed: %v", err)
	}
	if first != second {
		t.Error("expected the cached clientset on the second call")
	}

	dc, err := GetDynamicClient()
	if err != nil || dc == nil {
		t.Fatalf("GetDynamicClient: %v", err)
	}
}

func TestSetDefaultKubeconfig_DropsCache(t *testing.T) {
	resetCache(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	writeKubeconfig(t, a)
	writeKubeconfig(t, b)

	SetDefaultKubeconfig(a)
	first, _, err := GetKubeClient()
	if err != nil {
		t.Fatal(err)
	}

	SetDefaultKubeconfig(a)
	same, _, _ := GetKubeClient()
	if same != first {
		t.Error("same path should keep the cached client")
	}

	SetDefaultKubeconfig(b)
	other, _, err := GetKubeClient()
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Error("new path should rebuild the client")
	}
}
