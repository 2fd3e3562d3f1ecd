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

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/defaults"
	"github.com/homelab/labctl/pkg/k8s/resources"
	"github.com/homelab/labctl/pkg/runner"
)

const (
	noProvisioner = "kubernetes.io/no-provisioner"
	hostnameLabel = "kubernetes.io/hostname"
	componentKey  = "app.kubernetes.io/component"
)

// Volume is one resolved hostPath volume.
type Volume struct {
	Name     string
	HostPath string
	Size     resource.Quantity
	PVName   string
	Claim    string
}

// Provisioner runs the storage stage.
type Provisioner struct {
	Runner runner.Runner
	Kube   kubernetes.Interface
	Config config.StorageConfig
}

// Volumes resolves the configured volumes to absolute paths and object names.
func (p *Provisioner) Volumes() ([]Volume, error) {
	out := make([]Volume, 0, len(p.Config.Volumes))
	for _, v := range p.Config.Volumes {
		size, err := resource.ParseQuantity(v.Size)
		if err != nil {
			return nil, fmt.Errorf("volume %s: invalid size %q: %w", v.Name, v.Size, err)
		}
		path := v.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Config.BasePath, path)
		}
		out = append(out, Volume{
			Name:     v.Name,
			HostPath: path,
			Size:     size,
			PVName:   fmt.Sprintf("%s-%s", p.Config.Namespace, v.Name),
			Claim:    v.Claim,
		})
	}
	return out, nil
}

// Run provisions every volume.
func (p *Provisioner) Run(ctx context.Context) error {
	vols, err := p.Volumes()
	if err != nil {
		return err
	}
	if _, err := resources.EnsureNamespace(ctx, p.Kube, p.Config.Namespace); err != nil {
		return err
	}
	if _, err := p.EnsureStorageClass(ctx); err != nil {
		return err
	}

	for _, v := range vols {
		if err := p.EnsureDirectory(ctx, v); err != nil {
			return err
		}
		if _, err := p.EnsurePersistentVolume(ctx, v); err != nil {
			return err
		}
		if _, err := p.EnsureClaim(ctx, v); err != nil {
			return err
		}
	}

	if !p.Config.WaitBound {
		return nil
	}
	for _, v := range vols {
		if err := resources.WaitForPVCBound(ctx, p.Kube, p.Config.Namespace, v.Claim, defaults.K8sAPITimeout); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDirectory creates the host directory owned by the configured uid:gid,
// through sudo when not running as root.
func (p *Provisioner) EnsureDirectory(ctx context.Context, v Volume) error {
	args := []string{"-d", "-m", "0755"}
	if p.Config.UID != 0 || p.Config.GID != 0 {
		args = append(args, "-o", strconv.Itoa(p.Config.UID), "-g", strconv.Itoa(p.Config.GID))
	}
	args = append(args, v.HostPath)
	if _, err := runner.AsRoot(ctx, p.Runner, "install", args...); err != nil {
		return fmt.Errorf("failed to create host directory %s: %w", v.HostPath, err)
	}
	return nil
}

// StorageClass returns the static StorageClass the volumes belong to.
func (p *Provisioner) StorageClass() *storagev1.StorageClass {
	return &storagev1.StorageClass{
		ObjectMeta: metav1.ObjectMeta{
			Name:   p.Config.StorageClass,
			Labels: resources.ManagedLabels(nil),
		},
		Provisioner:       noProvisioner,
		ReclaimPolicy:     ptr.To(corev1.PersistentVolumeReclaimRetain),
		VolumeBindingMode: ptr.To(storagev1.VolumeBindingImmediate),
	}
}

// EnsureStorageClass creates the StorageClass when absent.
func (p *Provisioner) EnsureStorageClass(ctx context.Context) (bool, error) {
	_, err := p.Kube.StorageV1().StorageClasses().Create(ctx, p.StorageClass(), metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create storage class %s: %w", p.Config.StorageClass, err)
	}
	slog.Info("storage class created", "name", p.Config.StorageClass)
	return true, nil
}

// PersistentVolume builds the hostPath PV for v.
func (p *Provisioner) PersistentVolume(v Volume) *corev1.PersistentVolume {
	pv := &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{
			Name:   v.PVName,
			Labels: resources.ManagedLabels(map[string]string{componentKey: v.Name}),
		},
		Spec: corev1.PersistentVolumeSpec{
			Capacity:                      corev1.ResourceList{corev1.ResourceStorage: v.Size},
			AccessModes:                   []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			PersistentVolumeReclaimPolicy: corev1.PersistentVolumeReclaimRetain,
			StorageClassName:              p.Config.StorageClass,
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				HostPath: &corev1.HostPathVolumeSource{
					Path: v.HostPath,
					Type: ptr.To(corev1.HostPathDirectoryOrCreate),
				},
			},
			ClaimRef: &corev1.ObjectReference{
				APIVersion: "v1",
				Kind:       "PersistentVolumeClaim",
				Namespace:  p.Config.Namespace,
				Name:       v.Claim,
			},
		},
	}
	if p.Config.NodeName != "" {
		pv.Spec.NodeAffinity = &corev1.VolumeNodeAffinity{
			Required: &corev1.NodeSelector{
				NodeSelectorTerms: []corev1.NodeSelectorTerm{{
					MatchExpressions: []corev1.NodeSelectorRequirement{{
						Key:      hostnameLabel,
						Operator: corev1.NodeSelectorOpIn,
						Values:   []string{p.Config.NodeName},
					}},
				}},
			},
		}
	}
	return pv
}

// EnsurePersistentVolume creates the PV when absent.
func (p *Provisioner) EnsurePersistentVolume(ctx context.Context, v Volume) (bool, error) {
	_, err := p.Kube.CoreV1().PersistentVolumes().Create(ctx, p.PersistentVolume(v), metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		slog.Debug("persistent volume exists", "name", v.PVName)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create persistent volume %s: %w", v.PVName, err)
	}
	slog.Info("persistent volume created", "name", v.PVName, "path", v.HostPath, "size", v.Size.String())
	return true, nil
}

// Claim builds the PVC bound to v's PV.
func (p *Provisioner) Claim(v Volume) *corev1.PersistentVolumeClaim {
	return &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      v.Claim,
			Namespace: p.Config.Namespace,
			Labels:    resources.ManagedLabels(map[string]string{componentKey: v.Name}),
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			StorageClassName: ptr.To(p.Config.StorageClass),
			VolumeName:       v.PVName,
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: v.Size},
			},
		},
	}
}

// EnsureClaim creates the PVC when absent.
func (p *Provisioner) EnsureClaim(ctx context.Context, v Volume) (bool, error) {
	_, err := p.Kube.CoreV1().PersistentVolumeClaims(p.Config.Namespace).Create(ctx, p.Claim(v), metav1.CreateOptions{})
	if k8serrors.IsAlreadyExists(err) {
		slog.Debug("claim exists", "namespace", p.Config.Namespace, "name", v.Claim)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create claim %s/%s: %w", p.Config.Namespace, v.Claim, err)
	}
	slog.Info("claim created", "namespace", p.Config.Namespace, "name", v.Claim)
	return true, nil
}
