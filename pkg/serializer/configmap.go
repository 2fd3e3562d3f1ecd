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

package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/homelab/labctl/pkg/defaults"
	"github.com/homelab/labctl/pkg/k8s/client"
	"github.com/homelab/labctl/pkg/k8s/resources"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/kubernetes"
)

// ConfigMapURIScheme prefixes output paths that target a ConfigMap.
const ConfigMapURIScheme = "cm://"

const defaultKind = "status"

// ConfigMapWriter writes serialized data to a Kubernetes ConfigMap.
// The ConfigMap is created if it doesn't exist, or updated if it does.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
	client    kubernetes.Interface
	now       func() time.Time
}

// NewConfigMapWriter creates a ConfigMapWriter for namespace/name.
// A nil client selects the shared client from the k8s/client package.
func NewConfigMapWriter(namespace, name string, format Format, cs kubernetes.Interface) *ConfigMapWriter {
	if format.IsUnknown() {
		slog.Warn("unknown format, defaulting to JSON", "format", format)
		format = FormatJSON
	}
	return &ConfigMapWriter{
		namespace: namespace,
		name:      name,
		format:    format,
		client:    cs,
		now:       time.Now,
	}
}

// Serialize stores data in the ConfigMap. The ConfigMap has:
//   - data.<kind>.{json|yaml|txt}: the serialized content
//   - data.format: the format used
//   - data.timestamp: RFC 3339 time of the write
func (w *ConfigMapWriter) Serialize(ctx context.Context, data any) error {
	writeCtx, cancel := context.WithTimeout(ctx, defaults.ConfigMapWriteTimeout)
	defer cancel()

	cs := w.client
	if cs == nil {
		shared, _, err := client.GetKubeClient()
		if err != nil {
			return fmt.Errorf("failed to get kubernetes client: %w", err)
		}
		cs = shared
	}

	content, err := encode(w.format, data)
	if err != nil {
		return fmt.Errorf("failed to serialize data: %w", err)
	}

	kind := defaultKind
	if k, ok := data.(Kinded); ok && k.Kind() != "" {
		kind = k.Kind()
	}

	labels := map[string]string{
		"app.kubernetes.io/name":      "labctl",
		"app.kubernetes.io/component": kind,
	}
	key := kind + "." + w.format.extension()
	cmData := map[string]string{
		key:         string(content),
		"format":    string(w.format),
		"timestamp": w.now().UTC().Format(time.RFC3339),
	}

	slog.Info("applying ConfigMap",
		"namespace", w.namespace,
		"name", w.name,
		"format", w.format)

	if err := resources.EnsureConfigMap(writeCtx, cs, w.namespace, w.name, labels, cmData); err != nil {
		return fmt.Errorf("failed to apply ConfigMap: %w", err)
	}
	return nil
}

// Close is a no-op; it satisfies Closer.
func (w *ConfigMapWriter) Close() error {
	return nil
}

// parseConfigMapURI splits cm://namespace/name and checks both parts are
// valid object names.
func parseConfigMapURI(uri string) (namespace, name string, err error) {
	rest, ok := strings.CutPrefix(uri, ConfigMapURIScheme)
	if !ok {
		return "", "", fmt.Errorf("ConfigMap URI %q must start with %s", uri, ConfigMapURIScheme)
	}
	namespace, name, ok = strings.Cut(rest, "/")
	if !ok {
		return "", "", fmt.Errorf("ConfigMap URI %q must be %snamespace/name", uri, ConfigMapURIScheme)
	}
	namespace, name = strings.TrimSpace(namespace), strings.TrimSpace(name)

	if errs := validation.IsDNS1123Label(namespace); len(errs) > 0 {
		return "", "", fmt.Errorf("invalid namespace %q in %s: %s", namespace, uri, strings.Join(errs, "; "))
	}
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return "", "", fmt.Errorf("invalid ConfigMap name %q in %s: %s", name, uri, strings.Join(errs, "; "))
	}
	return namespace, name, nil
}
