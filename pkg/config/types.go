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

package config

// Config is the complete bootstrap configuration, loaded from labctl.yaml.
type Config struct {
	// MetricsFile, when set, receives Prometheus text-format stage metrics.
	MetricsFile string `yaml:"metricsFile,omitempty"`

	Prereqs     PrereqsConfig     `yaml:"prereqs"`
	MicroK8s    MicroK8sConfig    `yaml:"microk8s"`
	CertManager CertManagerConfig `yaml:"certManager"`
	Storage     StorageConfig     `yaml:"storage"`
	Harbor      HarborConfig      `yaml:"harbor"`
	Projects    []ProjectConfig   `yaml:"harborProjects"`
	GC          GCConfig          `yaml:"harborGC"`
	ARC         ARCConfig         `yaml:"arc"`
	GitHub      GitHubConfig      `yaml:"github"`
}

// PrereqsConfig lists host packages installed with apt.
type PrereqsConfig struct {
	Packages []string `yaml:"packages"`
}

// MicroK8sConfig configures the MicroK8s snap.
type MicroK8sConfig struct {
	Channel             string   `yaml:"channel"`
	User                string   `yaml:"user,omitempty"`
	Addons              []string `yaml:"addons"`
	// KubeconfigPath overrides where the stage writes the kubeconfig and
	// which file later stages read. Empty means ~/.kube/config of User for
	// the write and the client resolution chain for reads.
	KubeconfigPath      string   `yaml:"kubeconfigPath,omitempty"`
	OverwriteKubeconfig bool     `yaml:"overwriteKubeconfig"`
	ReadyTimeout        Duration `yaml:"readyTimeout,omitempty"`
}

// CertManagerConfig configures cert-manager and the Let's Encrypt issuer.
type CertManagerConfig struct {
	Namespace    string            `yaml:"namespace"`
	ChartVersion string            `yaml:"chartVersion"`
	IssuerName   string            `yaml:"issuerName"`
	Email        string            `yaml:"email"`
	// ACMEServer is "staging", "production" or a full directory URL.
	ACMEServer   string            `yaml:"acmeServer"`
	Route53      Route53Config     `yaml:"route53"`
	Certificate  CertificateConfig `yaml:"certificate"`
	ReadyTimeout Duration          `yaml:"readyTimeout,omitempty"`
}

// Route53Config holds the DNS-01 solver credentials.
type Route53Config struct {
	Region          string `yaml:"region"`
	HostedZoneID    string `yaml:"hostedZoneID"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	SecretName      string `yaml:"secretName"`
}

// CertificateConfig describes the Certificate issued for Harbor.
type CertificateConfig struct {
	Name       string   `yaml:"name"`
	Namespace  string   `yaml:"namespace"`
	SecretName string   `yaml:"secretName"`
	DNSNames   []string `yaml:"dnsNames"`
}

// StorageConfig describes hostPath volumes.
type StorageConfig struct {
	BasePath     string         `yaml:"basePath"`
	Namespace    string         `yaml:"namespace"`
	StorageClass string         `yaml:"storageClass"`
	UID          int            `yaml:"uid"`
	GID          int            `yaml:"gid"`
	NodeName     string         `yaml:"nodeName,omitempty"`
	Volumes      []VolumeConfig `yaml:"volumes"`
	// WaitBound waits for every claim to reach phase Bound.
	WaitBound bool `yaml:"waitBound,omitempty"`
}

// VolumeConfig is one hostPath PersistentVolume and its claim.
type VolumeConfig struct {
	Name string `yaml:"name"`
	// Path is relative to BasePath unless absolute.
	Path  string `yaml:"path,omitempty"`
	Size  string `yaml:"size"`
	Claim string `yaml:"claim,omitempty"`
}

// HarborConfig configures the Harbor chart and API access.
type HarborConfig struct {
	Namespace          string         `yaml:"namespace"`
	Release            string         `yaml:"release"`
	ChartVersion       string         `yaml:"chartVersion"`
	Host               string         `yaml:"host"`
	AdminPassword      string         `yaml:"adminPassword,omitempty"`
	AdminSecretName    string         `yaml:"adminSecretName"`
	TLSSecretName      string         `yaml:"tlsSecretName,omitempty"`
	IngressClass       string         `yaml:"ingressClass"`
	InsecureSkipVerify bool           `yaml:"insecureSkipVerify"`
	Values             map[string]any `yaml:"values,omitempty"`
	ReadyTimeout       Duration       `yaml:"readyTimeout,omitempty"`
}

// ProjectConfig is one Harbor project and its policies.
type ProjectConfig struct {
	Name      string                `yaml:"name"`
	Public    bool                  `yaml:"public"`
	Robot     *RobotConfig          `yaml:"robot,omitempty"`
	Retention *RetentionConfig      `yaml:"retention,omitempty"`
	Immutable []ImmutableRuleConfig `yaml:"immutable,omitempty"`
}

// RobotConfig describes a project-scoped robot account.
type RobotConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// DurationDays is the robot lifetime; -1 never expires.
	DurationDays int      `yaml:"durationDays"`
	Permissions  []string `yaml:"permissions"`
	// SecretName is the dockerconfigjson secret written to each of SecretNamespaces.
	SecretName       string   `yaml:"secretName,omitempty"`
	SecretNamespaces []string `yaml:"secretNamespaces,omitempty"`
	// GitHubUserSecret and GitHubPasswordSecret name the repository secrets
	// that receive the robot credentials.
	GitHubUserSecret     string `yaml:"githubUserSecret,omitempty"`
	GitHubPasswordSecret string `yaml:"githubPasswordSecret,omitempty"`
}

// RetentionConfig keeps the N most recently pushed artifacts per repository.
type RetentionConfig struct {
	KeepLatest  int    `yaml:"keepLatest"`
	Schedule    string `yaml:"schedule"`
	RepoPattern string `yaml:"repoPattern"`
	TagPattern  string `yaml:"tagPattern"`
}

// ImmutableRuleConfig marks matching tags immutable.
type ImmutableRuleConfig struct {
	RepoPattern string `yaml:"repoPattern"`
	TagPattern  string `yaml:"tagPattern"`
}

// GCConfig is the Harbor garbage collection schedule.
type GCConfig struct {
	// Schedule is "None", "Hourly", "Daily", "Weekly" or "Custom".
	Schedule       string `yaml:"schedule"`
	Cron           string `yaml:"cron,omitempty"`
	DeleteUntagged bool   `yaml:"deleteUntagged"`
	Workers        int    `yaml:"workers"`
}

// ARCConfig configures the Actions Runner Controller.
type ARCConfig struct {
	ControllerNamespace string           `yaml:"controllerNamespace"`
	RunnersNamespace    string           `yaml:"runnersNamespace"`
	ControllerRelease   string           `yaml:"controllerRelease"`
	ChartVersion        string           `yaml:"chartVersion"`
	SecretName          string           `yaml:"secretName"`
	ScaleSets           []ScaleSetConfig `yaml:"scaleSets"`
	ReadyTimeout        Duration         `yaml:"readyTimeout,omitempty"`
}

// ScaleSetConfig is one gha-runner-scale-set release.
type ScaleSetConfig struct {
	Name            string `yaml:"name"`
	GitHubConfigURL string `yaml:"githubConfigUrl"`
	MinRunners      int    `yaml:"minRunners"`
	MaxRunners      int    `yaml:"maxRunners"`
	// ContainerMode is "", "dind" or "kubernetes".
	ContainerMode string `yaml:"containerMode,omitempty"`
}

// GitHubConfig holds credentials for ARC and the repositories that receive
// registry secrets.
type GitHubConfig struct {
	Token             string   `yaml:"token,omitempty"`
	AppID             string   `yaml:"appID,omitempty"`
	AppInstallationID string   `yaml:"appInstallationID,omitempty"`
	AppPrivateKey     string   `yaml:"appPrivateKey,omitempty"`
	AppPrivateKeyFile string   `yaml:"appPrivateKeyFile,omitempty"`
	Repositories      []string `yaml:"repositories,omitempty"`
	SkipExisting      bool     `yaml:"skipExisting"`
}

// UsesApp reports whether GitHub App credentials are configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID != ""
}
