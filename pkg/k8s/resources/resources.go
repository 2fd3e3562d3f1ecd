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

package resources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"
	"k8s.io/client-go/kubernetes"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

// ManagedByLabel marks objects created by labctl.
const (
	ManagedByLabel = "app.kubernetes.io/managed-by"
	ManagedByValue = "labctl"
)

// ManagedLabels returns the labels applied to every object labctl creates.
func ManagedLabels(extra map[string]string) map[string]string {
	labels := map[string]string{ManagedByLabel: ManagedByValue}
	maps.Copy(labels, extra)
	return labels
}

// EnsureNamespace creates the namespace if it does not exist.
// It reports whether the namespace was created.
func EnsureNamespace(ctx context.Context, cs kubernetes.Interface, name string) (bool, error) {
	_, err := cs.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return false, nil
	}
	if !k8serrors.IsNotFound(err) {
		return false, fmt.Errorf("failed to get namespace %s: %w", name, err)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: ManagedLabels(nil),
		},
	}
	_, err = cs.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err = ignoreAlreadyExists(err); err != nil {
		return false, fmt.Errorf("failed to create namespace %s: %w", name, err)
	}
	slog.Info("namespace created", "namespace", name)
	return true, nil
}

// SecretExists reports whether the secret exists.
func SecretExists(ctx context.Context, cs kubernetes.Interface, namespace, name string) (bool, error) {
	_, err := cs.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		return true, nil
	}
	if k8serrors.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
}

// EnsureSecret creates the secret if it does not exist. When overwrite is true an
// existing secret with different data is updated. It reports whether anything changed.
func EnsureSecret(ctx context.Context, cs kubernetes.Interface, secret *corev1.Secret, overwrite bool) (bool, error) {
	ns, name := secret.Namespace, secret.Name
	if secret.Labels == nil {
		secret.Labels = ManagedLabels(nil)
	}

	existing, err := cs.CoreV1().Secrets(ns).Get(ctx, name, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		if _, err := cs.CoreV1().Secrets(ns).Create(ctx, secret, metav1.CreateOptions{}); err != nil {
			return false, fmt.Errorf("failed to create secret %s/%s: %w", ns, name, err)
		}
		slog.Info("secret created", "namespace", ns, "name", name)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get secret %s/%s: %w", ns, name, err)
	}

	if !overwrite {
		slog.Debug("secret exists, leaving unchanged", "namespace", ns, "name", name)
		return false, nil
	}
	if secretDataEqual(existing, secret) {
		return false, nil
	}

	existing.Data = secret.Data
	existing.StringData = secret.StringData
	if _, err := cs.CoreV1().Secrets(ns).Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("failed to update secret %s/%s: %w", ns, name, err)
	}
	slog.Info("secret updated", "namespace", ns, "name", name)
	return true, nil
}

func secretDataEqual(existing, desired *corev1.Secret) bool {
	want := make(map[string][]byte, len(desired.Data)+len(desired.StringData))
	for k, v := range desired.Data {
		want[k] = v
	}
	for k, v := range desired.StringData {
		want[k] = []byte(v)
	}
	if len(want) != len(existing.Data) {
		return false
	}
	for k, v := range want {
		if string(existing.Data[k]) != string(v) {
			return false
		}
	}
	return true
}

// GetSecretValue returns one key of a secret.
func GetSecretValue(ctx context.Context, cs kubernetes.Interface, namespace, name, key string) (string, error) {
	s, err := cs.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		return "", apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("secret %s/%s not found", namespace, name), err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s/%s: %w", namespace, name, err)
	}
	if v, ok := s.Data[key]; ok {
		return string(v), nil
	}
	if v, ok := s.StringData[key]; ok {
		return v, nil
	}
	return "", apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("secret %s/%s has no key %q", namespace, name, key))
}

// OpaqueSecret builds an Opaque secret from string data.
func OpaqueSecret(namespace, name string, data map[string]string) *corev1.Secret {
	d := make(map[string][]byte, len(data))
	for k, v := range data {
		d[k] = []byte(v)
	}
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    ManagedLabels(nil),
		},
		Type: corev1.SecretTypeOpaque,
		Data: d,
	}
}

type dockerConfig struct {
	Auths map[string]dockerAuth `json:"auths"`
}

type dockerAuth struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Auth     string `json:"auth"`
}

// DockerConfigSecret builds a kubernetes.io/dockerconfigjson secret for a registry.
func DockerConfigSecret(namespace, name, registry, username, password string) (*corev1.Secret, error) {
	cfg := dockerConfig{
		Auths: map[string]dockerAuth{
			registry: {
				Username: username,
				Password: password,
				Auth:     base64.StdEncoding.EncodeToString([]byte(username + ":" + password)),
			},
		},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode docker config: %w", err)
	}
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    ManagedLabels(nil),
		},
		Type: corev1.SecretTypeDockerConfigJson,
		Data: map[string][]byte{corev1.DockerConfigJsonKey: raw},
	}, nil
}

// DockerConfigCredentials returns the username and password stored for
// registry in a dockerconfigjson secret.
func DockerConfigCredentials(secret *corev1.Secret, registry string) (string, string, error) {
	raw, ok := secret.Data[corev1.DockerConfigJsonKey]
	if !ok {
		return "", "", apperrors.New(apperrors.ErrCodeNotFound,
			fmt.Sprintf("secret %s/%s has no %s", secret.Namespace, secret.Name, corev1.DockerConfigJsonKey))
	}
	var cfg dockerConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", "", fmt.Errorf("failed to decode docker config in %s/%s: %w", secret.Namespace, secret.Name, err)
	}
	a, ok := cfg.Auths[registry]
	if !ok {
		return "", "", apperrors.New(apperrors.ErrCodeNotFound,
			fmt.Sprintf("secret %s/%s has no credentials for %s", secret.Namespace, secret.Name, registry))
	}
	if a.Username == "" && a.Auth != "" {
		dec, err := base64.StdEncoding.DecodeString(a.Auth)
		if err != nil {
			return "", "", fmt.Errorf("failed to decode auth in %s/%s: %w", secret.Namespace, secret.Name, err)
		}
		a.Username, a.Password, _ = strings.Cut(string(dec), ":")
	}
	return a.Username, a.Password, nil
}

// FieldManager is the server-side apply field manager used by labctl.
const FieldManager = "labctl"

// EnsureConfigMap creates or updates the ConfigMap with server-side apply.
// Keys not in data are left alone.
func EnsureConfigMap(ctx context.Context, cs kubernetes.Interface, namespace, name string, labels, data map[string]string) error {
	cm := accorev1.ConfigMap(name, namespace).
		WithLabels(ManagedLabels(labels)).
		WithData(data)

	_, err := cs.CoreV1().ConfigMaps(namespace).Apply(ctx, cm, metav1.ApplyOptions{
		FieldManager: FieldManager,
		Force:        true,
	})
	if err != nil {
		return fmt.Errorf("failed to apply configmap %s/%s: %w", namespace, name, err)
	}
	slog.Debug("configmap applied", "namespace", namespace, "name", name)
	return nil
}

// ignoreAlreadyExists returns nil if the error is "already exists", otherwise returns the error.
func ignoreAlreadyExists(err error) error {
	if k8serrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}
