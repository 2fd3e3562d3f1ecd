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

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

// Default values applied to empty fields.
const (
	DefaultMicroK8sChannel      = "1.31/stable"
	DefaultCertManagerNamespace = "cert-manager"
	DefaultCertManagerVersion   = "v1.16.2"
	DefaultIssuerName           = "letsencrypt"
	DefaultRoute53SecretName    = "route53-credentials"
	DefaultHarborNamespace      = "harbor"
	DefaultHarborRelease        = "harbor"
	DefaultHarborVersion        = "1.16.0"
	DefaultHarborAdminSecret    = "harbor-admin"
	DefaultHarborTLSSecret      = "harbor-tls"
	DefaultIngressClass         = "public"
	DefaultStorageBasePath      = "/data/harbor"
	DefaultStorageClass         = "harbor-hostpath"
	DefaultARCControllerNS      = "arc-systems"
	DefaultARCRunnersNS         = "arc-runners"
	DefaultARCRelease           = "arc"
	DefaultARCVersion           = "0.10.1"
	DefaultARCSecretName        = "arc-github-auth"
	DefaultGCSchedule           = "Weekly"
	DefaultRetentionSchedule    = "0 0 0 * * *"
)

// ACME directory URLs for the named servers.
const (
	ACMEStagingURL    = "https://acme-staging-v02.api.letsencrypt.org/directory"
	ACMEProductionURL = "https://acme-v02.api.letsencrypt.org/directory"
)

// envRef matches ${VAR} references. Bare $VAR is left alone so values such as
// Harbor robot names ("robot$ci+push") survive expansion.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with values from lookup.
// Unset variables expand to the empty string, matching envsubst.
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		name := envRef.FindStringSubmatch(m)[1]
		v, _ := lookup(name)
		return v
	})
}

// Default returns a configuration with all defaults applied and no projects.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads the configuration file at path, expands ${VAR} references from the
// process environment, and applies defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrCodeNotFound, fmt.Sprintf("config file %s not found", path), err)
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML configuration after environment expansion.
func Parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	expanded := ExpandEnv(string(data), lookup)

	c := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "failed to parse config", err)
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if len(c.Prereqs.Packages) == 0 {
		c.Prereqs.Packages = []string{"snapd"}
	}

	m := &c.MicroK8s
	m.Channel = or(m.Channel, DefaultMicroK8sChannel)
	if len(m.Addons) == 0 {
		m.Addons = []string{"dns", "hostpath-storage", "ingress", "helm3"}
	}
	if m.User == "" {
		m.User = os.Getenv("SUDO_USER")
		if m.User == "" {
			m.User = os.Getenv("USER")
		}
	}

	cm := &c.CertManager
	cm.Namespace = or(cm.Namespace, DefaultCertManagerNamespace)
	cm.ChartVersion = or(cm.ChartVersion, DefaultCertManagerVersion)
	cm.IssuerName = or(cm.IssuerName, DefaultIssuerName)
	cm.ACMEServer = or(cm.ACMEServer, "staging")
	cm.Route53.SecretName = or(cm.Route53.SecretName, DefaultRoute53SecretName)
	cm.Certificate.Name = or(cm.Certificate.Name, DefaultHarborTLSSecret)
	cm.Certificate.Namespace = or(cm.Certificate.Namespace, or(c.Harbor.Namespace, DefaultHarborNamespace))
	cm.Certificate.SecretName = or(cm.Certificate.SecretName, DefaultHarborTLSSecret)
	if len(cm.Certificate.DNSNames) == 0 && c.Harbor.Host != "" {
		cm.Certificate.DNSNames = []string{c.Harbor.Host}
	}

	h := &c.Harbor
	h.Namespace = or(h.Namespace, DefaultHarborNamespace)
	h.Release = or(h.Release, DefaultHarborRelease)
	h.ChartVersion = or(h.ChartVersion, DefaultHarborVersion)
	h.AdminSecretName = or(h.AdminSecretName, DefaultHarborAdminSecret)
	h.TLSSecretName = or(h.TLSSecretName, cm.Certificate.SecretName)
	h.IngressClass = or(h.IngressClass, DefaultIngressClass)

	s := &c.Storage
	s.BasePath = or(s.BasePath, DefaultStorageBasePath)
	s.Namespace = or(s.Namespace, h.Namespace)
	s.StorageClass = or(s.StorageClass, DefaultStorageClass)
	if len(s.Volumes) == 0 {
		s.Volumes = DefaultHarborVolumes()
	}
	for i := range s.Volumes {
		v := &s.Volumes[i]
		v.Path = or(v.Path, v.Name)
		v.Claim = or(v.Claim, "harbor-"+v.Name)
	}

	for i := range c.Projects {
		p := &c.Projects[i]
		if p.Robot != nil {
			r := p.Robot
			r.Name = or(r.Name, "ci")
			if r.DurationDays == 0 {
				r.DurationDays = -1
			}
			if len(r.Permissions) == 0 {
				r.Permissions = []string{"push", "pull"}
			}
			r.SecretName = or(r.SecretName, fmt.Sprintf("harbor-%s-%s", p.Name, r.Name))
		}
		if p.Retention != nil {
			p.Retention.Schedule = or(p.Retention.Schedule, DefaultRetentionSchedule)
			p.Retention.RepoPattern = or(p.Retention.RepoPattern, "**")
			p.Retention.TagPattern = or(p.Retention.TagPattern, "**")
		}
		for j := range p.Immutable {
			p.Immutable[j].RepoPattern = or(p.Immutable[j].RepoPattern, "**")
		}
	}

	c.GC.Schedule = or(c.GC.Schedule, DefaultGCSchedule)
	if c.GC.Workers == 0 {
		c.GC.Workers = 1
	}

	a := &c.ARC
	a.ControllerNamespace = or(a.ControllerNamespace, DefaultARCControllerNS)
	a.RunnersNamespace = or(a.RunnersNamespace, DefaultARCRunnersNS)
	a.ControllerRelease = or(a.ControllerRelease, DefaultARCRelease)
	a.ChartVersion = or(a.ChartVersion, DefaultARCVersion)
	a.SecretName = or(a.SecretName, DefaultARCSecretName)
	for i := range a.ScaleSets {
		if a.ScaleSets[i].MaxRunners == 0 {
			a.ScaleSets[i].MaxRunners = 3
		}
	}
}

// DefaultHarborVolumes returns the volumes used by the Harbor chart components.
func DefaultHarborVolumes() []VolumeConfig {
	return []VolumeConfig{
		{Name: "registry", Size: "50Gi"},
		{Name: "database", Size: "5Gi"},
		{Name: "redis", Size: "1Gi"},
		{Name: "jobservice", Size: "1Gi"},
		{Name: "trivy", Size: "5Gi"},
	}
}

// ACMEServerURL resolves the configured ACME server name to a directory URL.
func (c *CertManagerConfig) ACMEServerURL() string {
	switch strings.ToLower(c.ACMEServer) {
	case "", "staging":
		return ACMEStagingURL
	case "production", "prod":
		return ACMEProductionURL
	default:
		return c.ACMEServer
	}
}

// HarborURL returns the external Harbor URL.
func (h *HarborConfig) HarborURL() string {
	if strings.HasPrefix(h.Host, "http://") || strings.HasPrefix(h.Host, "https://") {
		return strings.TrimRight(h.Host, "/")
	}
	return "https://" + h.Host
}

// RegistryHost returns the registry host name used in image references and
// docker credentials.
func (h *HarborConfig) RegistryHost() string {
	host := strings.TrimPrefix(strings.TrimPrefix(h.Host, "https://"), "http://")
	return strings.TrimRight(host, "/")
}

// Validate checks the fields required by the given stages.
// All problems are reported together.
func (c *Config) Validate(stages ...string) error {
	want := make(map[string]bool, len(stages))
	for _, s := range stages {
		want[s] = true
	}
	var errs []error

	if want["certs"] {
		cm := c.CertManager
		if cm.Email == "" {
			errs = append(errs, errors.New("certManager.email is required"))
		}
		if cm.Route53.Region == "" || cm.Route53.HostedZoneID == "" || cm.Route53.AccessKeyID == "" {
			errs = append(errs, errors.New("certManager.route53 region, hostedZoneID and accessKeyID are required"))
		}
		if len(cm.Certificate.DNSNames) == 0 {
			errs = append(errs, errors.New("certManager.certificate.dnsNames or harbor.host is required"))
		}
		errs = append(errs, validateNames("certManager.namespace", cm.Namespace)...)
		errs = append(errs, validateNames("certManager.certificate.namespace", cm.Certificate.Namespace)...)
	}

	if want["storage"] {
		for _, v := range c.Storage.Volumes {
			if _, err := resource.ParseQuantity(v.Size); err != nil {
				errs = append(errs, fmt.Errorf("storage volume %q: invalid size %q: %w", v.Name, v.Size, err))
			}
			errs = append(errs, validateNames("storage volume claim", v.Claim)...)
		}
	}

	if want["harbor"] || want["harbor-config"] {
		if c.Harbor.Host == "" {
			errs = append(errs, errors.New("harbor.host is required"))
		}
		errs = append(errs, validateNames("harbor.namespace", c.Harbor.Namespace)...)
	}

	if want["harbor-config"] {
		seen := make(map[string]bool)
		for _, p := range c.Projects {
			if p.Name == "" {
				errs = append(errs, errors.New("harborProjects: project name is required"))
				continue
			}
			if seen[p.Name] {
				errs = append(errs, fmt.Errorf("harborProjects: duplicate project %q", p.Name))
			}
			seen[p.Name] = true
			if p.Retention != nil && p.Retention.KeepLatest < 1 {
				errs = append(errs, fmt.Errorf("project %q: retention.keepLatest must be at least 1", p.Name))
			}
			for _, rule := range p.Immutable {
				if rule.TagPattern == "" {
					errs = append(errs, fmt.Errorf("project %q: immutable rule tagPattern is required", p.Name))
				}
			}
		}
		switch c.GC.Schedule {
		case "None", "Hourly", "Daily", "Weekly":
		case "Custom":
			if c.GC.Cron == "" {
				errs = append(errs, errors.New("harborGC.cron is required for Custom schedule"))
			}
		default:
			errs = append(errs, fmt.Errorf("harborGC.schedule %q is not one of None, Hourly, Daily, Weekly, Custom", c.GC.Schedule))
		}
	}

	if want["arc"] {
		g := c.GitHub
		if g.Token == "" && !g.UsesApp() {
			errs = append(errs, errors.New("github.token or github.appID is required for arc"))
		}
		if g.UsesApp() && (g.AppInstallationID == "" || (g.AppPrivateKey == "" && g.AppPrivateKeyFile == "")) {
			errs = append(errs, errors.New("github app requires appInstallationID and appPrivateKey or appPrivateKeyFile"))
		}
		if len(c.ARC.ScaleSets) == 0 {
			errs = append(errs, errors.New("arc.scaleSets must define at least one runner scale set"))
		}
		for _, s := range c.ARC.ScaleSets {
			if s.GitHubConfigURL == "" {
				errs = append(errs, fmt.Errorf("scale set %q: githubConfigUrl is required", s.Name))
			}
			if s.MinRunners < 0 || s.MaxRunners < s.MinRunners {
				errs = append(errs, fmt.Errorf("scale set %q: invalid runner bounds %d..%d", s.Name, s.MinRunners, s.MaxRunners))
			}
			switch s.ContainerMode {
			case "", "dind", "kubernetes":
			default:
				errs = append(errs, fmt.Errorf("scale set %q: unknown containerMode %q", s.Name, s.ContainerMode))
			}
			errs = append(errs, validateNames("scale set name", s.Name)...)
		}
		errs = append(errs, validateNames("arc namespaces", c.ARC.ControllerNamespace, c.ARC.RunnersNamespace)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid configuration", errors.Join(errs...))
}

func validateNames(field string, names ...string) []error {
	var errs []error
	for _, n := range names {
		for _, msg := range validation.IsDNS1123Label(n) {
			errs = append(errs, fmt.Errorf("%s %q: %s", field, n, msg))
		}
	}
	return errs
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
