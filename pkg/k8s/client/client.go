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

package client

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
)

// Interface is kubernetes.Interface, so fakes can stand in for the clientset.
type Interface = kubernetes.Interface

// MicroK8sCredentials is the kubeconfig MicroK8s writes for the local
// cluster. It is readable by members of the microk8s group.
const MicroK8sCredentials = "/var/snap/microk8s/current/credentials/client.config"

// UserAgent identifies labctl in API server audit logs.
const UserAgent = "labctl"

type clients struct {
	kube    *kubernetes.Clientset
	dynamic dynamic.Interface
	config  *rest.Config
}

var (
	mu          sync.Mutex
	cached      *clients
	defaultPath string
)

// SetDefaultKubeconfig sets the kubeconfig path used by GetKubeClient and
// drops any cached clients built from a previous path.
func SetDefaultKubeconfig(path string) {
	mu.Lock()
	defer mu.Unlock()
	if path != defaultPath {
		cached = nil
	}
	defaultPath = path
}

func shared() (*clients, error) {
	mu.Lock()
	defer mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	kube, cfg, err := BuildKubeClient(defaultPath)
	if err != nil {
		return nil, err
	}
	dc, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create dynamic client", err)
	}
	cached = &clients{kube: kube, dynamic: dc, config: cfg}
	return cached, nil
}

// GetKubeClient returns the shared clientset, building it on first use from
// the kubeconfig chosen by ResolveKubeconfig. Failures are not cached, so a
// later call can succeed once MicroK8s has written its credentials.
func GetKubeClient() (Interface, *rest.Config, error) {
	c, err := shared()
	if err != nil {
		return nil, nil, err
	}
	return c.kube, c.config, nil
}

// GetDynamicClient returns the shared dynamic client, used for cert-manager
// custom resources.
func GetDynamicClient() (dynamic.Interface, error) {
	c, err := shared()
	if err != nil {
		return nil, err
	}
	return c.dynamic, nil
}

// ResolveKubeconfig picks the kubeconfig path, in order: explicit, then
// $KUBECONFIG, then ~/.kube/config, then the MicroK8s credentials. It returns
// "" when none exist.
func ResolveKubeconfig(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("KUBECONFIG"); env != "" {
		return env
	}
	for _, p := range []string{
		filepath.Join(homedir.HomeDir(), ".kube", "config"),
		MicroK8sCredentials,
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// BuildKubeClient creates an uncached clientset. An empty kubeconfig is
// resolved with ResolveKubeconfig and falls back to in-cluster config.
func BuildKubeClient(kubeconfig string) (*kubernetes.Clientset, *rest.Config, error) {
	path := ResolveKubeconfig(kubeconfig)

	var (
		cfg *rest.Config
		err error
	)
	if path == "" {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrCodeUnavailable,
				"no kubeconfig found and not running in a cluster", err)
		}
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, nil, apperrors.WrapWithContext(apperrors.ErrCodeInvalidRequest,
				"failed to build kube config", err, map[string]any{"kubeconfig": path})
		}
	}

	cfg.UserAgent = UserAgent
	cfg.QPS = defaults.KubeClientQPS
	cfg.Burst = defaults.KubeClientBurst

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return cs, cfg, nil
}
