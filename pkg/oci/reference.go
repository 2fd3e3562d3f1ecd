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

package oci

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

// URIScheme is an optional prefix of references given on the command line.
const URIScheme = "oci://"

// Reference is a registry/repository:tag target.
type Reference struct {
	// Registry is the registry host, with an optional port.
	Registry string
	// Repository is the repository path, for Harbor "<project>/<name>".
	Repository string
	// Tag may be empty; callers apply a default.
	Tag string
}

// ParseReference parses "[oci://]registry/repository[:tag]".
func ParseReference(s string) (*Reference, error) {
	ref, err := reference.ParseNormalizedNamed(strings.TrimPrefix(s, URIScheme))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid OCI reference", err)
	}
	if _, ok := ref.(reference.Digested); ok {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "digest references cannot be pushed: "+s)
	}

	r := &Reference{
		Registry:   reference.Domain(ref),
		Repository: reference.Path(ref),
	}
	if tagged, ok := ref.(reference.Tagged); ok {
		r.Tag = tagged.Tag()
	}
	if err := ValidateRegistryReference(r.Registry, r.Repository); err != nil {
		return nil, err
	}
	return r, nil
}

// NewReference builds and validates registry/project/name:tag.
func NewReference(registry, project, name, tag string) (*Reference, error) {
	s := fmt.Sprintf("%s/%s/%s", stripProtocol(registry), project, name)
	if tag != "" {
		s += ":" + tag
	}
	r, err := ParseReference(s)
	if err != nil {
		return nil, err
	}
	// ParseNormalizedNamed moves registry-less names to docker.io.
	if r.Registry != stripProtocol(registry) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "invalid registry host: "+registry)
	}
	return r, nil
}

// ValidateRegistryReference rejects empty or malformed components.
func ValidateRegistryReference(registry, repository string) error {
	if registry == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "registry is required")
	}
	if repository == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "repository is required")
	}
	if _, err := reference.ParseNormalizedNamed(registry + "/" + repository); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid repository "+repository, err)
	}
	return nil
}

// RepositoryReference returns registry/repository without the tag.
func (r *Reference) RepositoryReference() string {
	return r.Registry + "/" + r.Repository
}

// String returns registry/repository[:tag].
func (r *Reference) String() string {
	if r.Tag == "" {
		return r.RepositoryReference()
	}
	return r.RepositoryReference() + ":" + r.Tag
}

// WithTag returns a copy of the reference with tag set.
func (r *Reference) WithTag(tag string) *Reference {
	c := *r
	c.Tag = tag
	return &c
}

// stripProtocol removes an http:// or https:// prefix and trailing slashes.
func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	registry = strings.TrimPrefix(registry, "http://")
	return strings.TrimRight(registry, "/")
}
