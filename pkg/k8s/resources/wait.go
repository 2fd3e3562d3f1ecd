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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	discoveryv1 "k8s.io/api/discovery/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
)

// pollInterval is a variable so tests can shorten it.
var pollInterval = defaults.PollInterval

// WaitForDeploymentReady waits until the Deployment has observed its latest
// generation and all desired replicas are updated and available.
func WaitForDeploymentReady(ctx context.Context, cs kubernetes.Interface, namespace, name string, timeout time.Duration) error {
	slog.Info("waiting for deployment", "namespace", namespace, "name", name, "timeout", timeout)

	var last string
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			d, err := cs.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
			if k8serrors.IsNotFound(err) {
				last = "deployment not found"
				return false, nil
			}
			if err != nil {
				return false, err
			}
			ready, reason := deploymentReady(d)
			last = reason
			return ready, nil
		},
	)
	return waitError(err, fmt.Sprintf("deployment %s/%s", namespace, name), last)
}

func deploymentReady(d *appsv1.Deployment) (bool, string) {
	if d.Generation > d.Status.ObservedGeneration {
		return false, "waiting for rollout to be observed"
	}
	desired := int32(1)
	if d.Spec.Replicas != nil {
		desired = *d.Spec.Replicas
	}
	if d.Status.UpdatedReplicas < desired {
		return false, fmt.Sprintf("%d of %d replicas updated", d.Status.UpdatedReplicas, desired)
	}
	if d.Status.AvailableReplicas < desired {
		return false, fmt.Sprintf("%d of %d replicas available", d.Status.AvailableReplicas, desired)
	}
	return true, ""
}

// WaitForDeployments waits for several Deployments in the same namespace concurrently.
func WaitForDeployments(ctx context.Context, cs kubernetes.Interface, namespace string, names []string, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			return WaitForDeploymentReady(gctx, cs, namespace, name, timeout)
		})
	}
	return g.Wait()
}

// WaitForEndpoints waits until the Service has at least one ready endpoint.
// Admission webhooks reject requests until this is true.
func WaitForEndpoints(ctx context.Context, cs kubernetes.Interface, namespace, service string, timeout time.Duration) error {
	slog.Info("waiting for service endpoints", "namespace", namespace, "service", service)

	last := "no endpoint slices"
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			slices, err := cs.DiscoveryV1().EndpointSlices(namespace).List(ctx, metav1.ListOptions{
				LabelSelector: discoveryv1.LabelServiceName + "=" + service,
			})
			if err != nil {
				return false, err
			}
			for _, s := range slices.Items {
				for _, ep := range s.Endpoints {
					if ep.Conditions.Ready == nil || *ep.Conditions.Ready {
						return true, nil
					}
				}
			}
			if len(slices.Items) > 0 {
				last = "no ready endpoints"
			}
			return false, nil
		},
	)
	return waitError(err, fmt.Sprintf("endpoints %s/%s", namespace, service), last)
}

// WaitForServiceAccount waits until the ServiceAccount exists.
func WaitForServiceAccount(ctx context.Context, cs kubernetes.Interface, namespace, name string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			_, err := cs.CoreV1().ServiceAccounts(namespace).Get(ctx, name, metav1.GetOptions{})
			if k8serrors.IsNotFound(err) {
				return false, nil
			}
			return err == nil, err
		},
	)
	return waitError(err, fmt.Sprintf("service account %s/%s", namespace, name), "not found")
}

// WaitForPVCBound waits until the claim reports phase Bound.
func WaitForPVCBound(ctx context.Context, cs kubernetes.Interface, namespace, name string, timeout time.Duration) error {
	var last string
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			pvc, err := cs.CoreV1().PersistentVolumeClaims(namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return false, err
			}
			last = string(pvc.Status.Phase)
			return pvc.Status.Phase == corev1.ClaimBound, nil
		},
	)
	return waitError(err, fmt.Sprintf("claim %s/%s", namespace, name), "phase "+last)
}

// waitError converts a poll timeout into a structured TIMEOUT error carrying the
// last observed state.
func waitError(err error, what, last string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || wait.Interrupted(err) {
		msg := fmt.Sprintf("timed out waiting for %s", what)
		if last != "" {
			msg += ": " + last
		}
		return apperrors.Wrap(apperrors.ErrCodeTimeout, msg, err)
	}
	return fmt.Errorf("failed waiting for %s: %w", what, err)
}
