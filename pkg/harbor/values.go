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

package harbor

import (
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"

	"github.com/homelab/labctl/pkg/config"
	"github.com/homelab/labctl/pkg/helm"
)

// AdminPasswordKey is the key of the admin password in the admin Secret.
const AdminPasswordKey = "HARBOR_ADMIN_PASSWORD"

// Values is the part of the harbor chart values labctl sets.
type Values struct {
	Expose                         Expose      `yaml:"expose"`
	ExternalURL                    string      `yaml:"externalURL"`
	ExistingSecretAdminPassword    string      `yaml:"existingSecretAdminPassword,omitempty"`
	ExistingSecretAdminPasswordKey string      `yaml:"existingSecretAdminPasswordKey,omitempty"`
	Persistence                    Persistence `yaml:"persistence"`
}

// Expose configures the ingress.
type Expose struct {
	Type    string  `yaml:"type"`
	TLS     TLS     `yaml:"tls"`
	Ingress Ingress `yaml:"ingress"`
}

// TLS selects the certificate source.
type TLS struct {
	Enabled    bool      `yaml:"enabled"`
	CertSource string    `yaml:"certSource"`
	Secret     TLSSecret `yaml:"secret"`
}

// TLSSecret names the certificate Secret.
type TLSSecret struct {
	SecretName string `yaml:"secretName"`
}

// Ingress sets the ingress host and class.
type Ingress struct {
	Hosts     map[string]string `yaml:"hosts"`
	ClassName string            `yaml:"className,omitempty"`
}

// Persistence maps components to existing claims.
type Persistence struct {
	Enabled               bool           `yaml:"enabled"`
	ResourcePolicy        string         `yaml:"resourcePolicy"`
	PersistentVolumeClaim map[string]any `yaml:"persistentVolumeClaim"`
}

// claimValue returns the chart values for a component's claim. The job
// service keeps its claim under jobLog.
func claimValue(component, claim, storageClass string) any {
	v := map[string]any{
		"existingClaim": claim,
		"storageClass":  storageClass,
	}
	if component == "jobservice" {
		return map[string]any{"jobLog": v}
	}
	return v
}

// BuildValues renders the chart values for cfg and the storage volumes.
// cfg.Values is merged on top.
func BuildValues(cfg config.HarborConfig, storage config.StorageConfig) (helm.Values, error) {
	claims := make(map[string]any, len(storage.Volumes))
	for _, v := range storage.Volumes {
		claims[v.Name] = claimValue(v.Name, v.Claim, storage.StorageClass)
	}

	v := Values{
		Expose: Expose{
			Type: "ingress",
			TLS: TLS{
				Enabled:    true,
				CertSource: "secret",
				Secret:     TLSSecret{SecretName: cfg.TLSSecretName},
			},
			Ingress: Ingress{
				Hosts:     map[string]string{"core": cfg.Host},
				ClassName: cfg.IngressClass,
			},
		},
		ExternalURL:                    cfg.HarborURL(),
		ExistingSecretAdminPassword:    cfg.AdminSecretName,
		ExistingSecretAdminPasswordKey: AdminPasswordKey,
		Persistence: Persistence{
			Enabled:               true,
			ResourcePolicy:        "keep",
			PersistentVolumeClaim: claims,
		},
	}

	raw, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to render harbor values: %w", err)
	}
	out := helm.Values{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to render harbor values: %w", err)
	}
	MergeValues(out, cfg.Values)
	return out, nil
}

// MergeValues deep-merges src into dst. Maps merge recursively; any other
// value in src replaces the one in dst.
func MergeValues(dst, src map[string]any) {
	for k, sv := range src {
		sm, sIsMap := sv.(map[string]any)
		dm, dIsMap := dst[k].(map[string]any)
		if sIsMap && dIsMap {
			MergeValues(dm, sm)
			continue
		}
		if sIsMap {
			cp := make(map[string]any, len(sm))
			maps.Copy(cp, sm)
			dst[k] = cp
			continue
		}
		dst[k] = sv
	}
}
