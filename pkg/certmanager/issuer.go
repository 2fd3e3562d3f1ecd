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

package certmanager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/api/equality"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/dynamic"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/k8s/resources"
)

// pollInterval is a variable so tests can shorten it.
var pollInterval = defaults.CertificatePollInterval

// ClusterIssuer builds the ACME ClusterIssuer with a Route53 DNS-01 solver.
func ClusterIssuer(cfg config.CertManagerConfig) *unstructured.Unstructured {
	r53 := cfg.Route53
	route53 := map[string]any{
		"region": r53.Region,
		"secretAccessKeySecretRef": map[string]any{
			"name": r53.SecretName,
			"key":  SecretAccessKeyKey,
		},
	}
	if r53.HostedZoneID != "" {
		route53["hostedZoneID"] = r53.HostedZoneID
	}
	if r53.AccessKeyID != "" {
		route53["accessKeyID"] = r53.AccessKeyID
	}

	obj := &unstructured.Unstructured{Object: map[string]any{
		"spec": map[string]any{
			"acme": map[string]any{
				"server": cfg.ACMEServerURL(),
				"email":  cfg.Email,
				"privateKeySecretRef": map[string]any{
					"name": cfg.IssuerName + "-account-key",
				},
				"solvers": []any{
					map[string]any{
						"dns01": map[string]any{"route53": route53},
					},
				},
			},
		},
	}}
	obj.SetAPIVersion(ClusterIssuerGVR.GroupVersion().String())
	obj.SetKind("ClusterIssuer")
	obj.SetName(cfg.IssuerName)
	obj.SetLabels(resources.ManagedLabels(nil))
	return obj
}

// Certificate builds the Certificate issued by the ClusterIssuer.
func Certificate(cfg config.CertManagerConfig) *unstructured.Unstructured {
	c := cfg.Certificate
	names := make([]any, 0, len(c.DNSNames))
	for _, n := range c.DNSNames {
		names = append(names, n)
	}

	obj := &unstructured.Unstructured{Object: map[string]any{
		"spec": map[string]any{
			"secretName": c.SecretName,
			"dnsNames":   names,
			"issuerRef": map[string]any{
				"name":  cfg.IssuerName,
				"kind":  "ClusterIssuer",
				"group": ClusterIssuerGVR.Group,
			},
		},
	}}
	obj.SetAPIVersion(CertificateGVR.GroupVersion().String())
	obj.SetKind("Certificate")
	obj.SetName(c.Name)
	obj.SetNamespace(c.Namespace)
	obj.SetLabels(resources.ManagedLabels(nil))
	return obj
}

// apply creates obj, or updates the existing object's spec when it does not
// already contain every field of obj's spec. It reports whether anything changed.
func apply(ctx context.Context, ri dynamic.ResourceInterface, obj *unstructured.Unstructured) (bool, error) {
	kind, name := obj.GetKind(), obj.GetName()

	existing, err := ri.Get(ctx, name, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		if _, err := ri.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
			return false, fmt.Errorf("failed to create %s %s: %w", kind, name, err)
		}
		slog.Info("resource created", "kind", kind, "name", name, "namespace", obj.GetNamespace())
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s %s: %w", kind, name, err)
	}

	if equality.Semantic.DeepDerivative(obj.Object["spec"], existing.Object["spec"]) {
		slog.Debug("resource up to date", "kind", kind, "name", name)
		return false, nil
	}

	existing.Object["spec"] = obj.Object["spec"]
	if _, err := ri.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return false, fmt.Errorf("failed to update %s %s: %w", kind, name, err)
	}
	slog.Info("resource updated", "kind", kind, "name", name, "namespace", obj.GetNamespace())
	return true, nil
}

// CertificateState is the readiness of a Certificate.
type CertificateState struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Ready     bool   `json:"ready" yaml:"ready"`
	Reason    string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
	NotAfter  string `json:"notAfter,omitempty" yaml:"notAfter,omitempty"`
}

// ReadyCondition extracts the Ready condition from a cert-manager object.
func ReadyCondition(obj *unstructured.Unstructured) (ready bool, reason, message string) {
	conds, _, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	for _, c := range conds {
		m, ok := c.(map[string]any)
		if !ok || m["type"] != "Ready" {
			continue
		}
		reason, _ = m["reason"].(string)
		message, _ = m["message"].(string)
		return m["status"] == "True", reason, message
	}
	return false, "", "no Ready condition"
}

// CertificateStatus returns the current state of the configured Certificate.
func (m *Manager) CertificateStatus(ctx context.Context) (*CertificateState, error) {
	c := m.Config.Certificate
	obj, err := m.Dynamic.Resource(CertificateGVR).Namespace(c.Namespace).Get(ctx, c.Name, metav1.GetOptions{})
	if k8serrors.IsNotFound(err) {
		return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("certificate %s/%s not found", c.Namespace, c.Name), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate %s/%s: %w", c.Namespace, c.Name, err)
	}

	st := &CertificateState{Name: c.Name, Namespace: c.Namespace}
	st.Ready, st.Reason, st.Message = ReadyCondition(obj)
	st.NotAfter, _, _ = unstructured.NestedString(obj.Object, "status", "notAfter")
	return st, nil
}

// WaitForCertificate polls until the Certificate reports Ready=True. On
// timeout the error carries the last condition message.
func (m *Manager) WaitForCertificate(ctx context.Context) error {
	c := m.Config.Certificate
	timeout := m.Config.ReadyTimeout.Or(defaults.CertificateReadyTimeout)
	slog.Info("waiting for certificate", "namespace", c.Namespace, "name", c.Name, "timeout", timeout)

	start := time.Now()
	var last string
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			st, err := m.CertificateStatus(ctx)
			if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				last = "certificate not found"
				return false, nil
			}
			if err != nil {
				return false, err
			}
			last = st.Message
			return st.Ready, nil
		},
	)
	if err != nil {
		if wait.Interrupted(err) {
			return apperrors.WrapWithContext(apperrors.ErrCodeTimeout,
				fmt.Sprintf("certificate %s/%s not ready: %s", c.Namespace, c.Name, last), err,
				map[string]any{"namespace": c.Namespace, "name": c.Name})
		}
		return err
	}
	slog.Info("certificate ready", "name", c.Name, "elapsed", time.Since(start).Round(time.Second))
	return nil
}
