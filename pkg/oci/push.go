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
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	apperrors "github.com/homelab/labctl/pkg/errors"
)

const (
	// ArtifactType is the artifact type of smoke test artifacts.
	ArtifactType = "application/vnd.labctl.smoke.v1"
	// LayerMediaType is the media type of the generated file.
	LayerMediaType = "application/vnd.labctl.smoke.layer.v1+text"
	// SmokeRepository is the repository name used inside the project.
	SmokeRepository = "labctl-smoke"

	smokeFile = "smoke.txt"
)

// PackageOptions configures local packaging.
type PackageOptions struct {
	// SourceFile is the file stored as the single layer.
	SourceFile string
	// StorePath is the OCI Image Layout directory to create or reuse.
	StorePath string
	Tag       string
	// Annotations are added to the manifest.
	Annotations map[string]string
}

// PackageResult describes a packaged artifact.
type PackageResult struct {
	Digest    string
	StorePath string
}

// PushOptions configures a push from a local layout.
type PushOptions struct {
	Reference *Reference
	// Username and Password override the Docker credential store.
	Username string
	Password string
	// PlainHTTP uses HTTP instead of HTTPS.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
}

// PushResult contains the result of a successful push.
type PushResult struct {
	Digest    string
	Reference string
}

// Package stores SourceFile as an OCI 1.1 artifact in the layout at StorePath
// and tags it.
func Package(ctx context.Context, opts PackageOptions) (*PackageResult, error) {
	if opts.Tag == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "tag is required to package OCI artifact")
	}
	absFile, err := filepath.Abs(opts.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source file: %w", err)
	}

	fs, err := file.New(filepath.Dir(absFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}
	defer func() { _ = fs.Close() }()

	layer, err := fs.Add(ctx, filepath.Base(absFile), LayerMediaType, absFile)
	if err != nil {
		return nil, fmt.Errorf("failed to add %s to store: %w", absFile, err)
	}

	manifest, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers:              []ociv1.Descriptor{layer},
		ManifestAnnotations: opts.Annotations,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack manifest: %w", err)
	}
	if err := fs.Tag(ctx, manifest, opts.Tag); err != nil {
		return nil, fmt.Errorf("failed to tag manifest in file store: %w", err)
	}

	store, err := oci.New(opts.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCI layout at %s: %w", opts.StorePath, err)
	}
	desc, err := oras.Copy(ctx, fs, opts.Tag, store, opts.Tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to write OCI layout: %w", err)
	}
	return &PackageResult{Digest: desc.Digest.String(), StorePath: opts.StorePath}, nil
}

// PushFromStore pushes the tagged artifact of the layout at storePath.
func PushFromStore(ctx context.Context, storePath string, opts PushOptions) (*PushResult, error) {
	if opts.Reference == nil || opts.Reference.Tag == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "tag is required to push OCI artifact")
	}
	store, err := oci.New(storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open OCI layout at %s: %w", storePath, err)
	}
	repo, err := newRepository(opts)
	if err != nil {
		return nil, err
	}

	tag := opts.Reference.Tag
	desc, err := oras.Copy(ctx, store, tag, repo, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnavailable, "failed to push artifact to "+opts.Reference.String(), err)
	}
	return &PushResult{Digest: desc.Digest.String(), Reference: opts.Reference.String()}, nil
}

// Verify resolves tag in target and checks it points at digest.
func Verify(ctx context.Context, target oras.ReadOnlyTarget, tag, digest string) error {
	desc, err := target.Resolve(ctx, tag)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeNotFound, "failed to resolve "+tag, err)
	}
	if desc.Digest.String() != digest {
		return apperrors.NewWithContext(apperrors.ErrCodeConflict, "tag "+tag+" points at another artifact",
			map[string]any{"want": digest, "got": desc.Digest.String()})
	}
	return nil
}

func newRepository(opts PushOptions) (*remote.Repository, error) {
	repo, err := remote.NewRepository(opts.Reference.RepositoryReference())
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "failed to initialize remote repository", err)
	}
	repo.PlainHTTP = opts.PlainHTTP
	repo.Client = createAuthClient(opts)
	return repo, nil
}

// createAuthClient returns a client using the explicit credentials, or the
// Docker credential store when none are given.
func createAuthClient(opts PushOptions) *auth.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.PlainHTTP && opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	c := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if opts.Username != "" {
		c.Credential = auth.StaticCredential(opts.Reference.Registry, auth.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
		return c
	}
	if store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{}); err == nil {
		c.Credential = credentials.Credential(store)
	} else {
		slog.Debug("docker credential store unavailable", "error", err)
	}
	return c
}

// SmokeOptions configures SmokeTest.
type SmokeOptions struct {
	Registry string
	Project  string
	// Tag defaults to the current UTC time.
	Tag         string
	Username    string
	Password    string
	PlainHTTP   bool
	InsecureTLS bool
	// Version is recorded in the manifest annotations.
	Version string
}

// SmokeTest pushes a generated artifact to <registry>/<project>/labctl-smoke
// and resolves it again.
func SmokeTest(ctx context.Context, opts SmokeOptions) (*PushResult, error) {
	now := time.Now().UTC()
	tag := opts.Tag
	if tag == "" {
		tag = now.Format("20060102-150405")
	}
	ref, err := NewReference(opts.Registry, opts.Project, SmokeRepository, tag)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "labctl-smoke-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	src := filepath.Join(dir, smokeFile)
	content := fmt.Sprintf("labctl registry smoke test\nreference: %s\ncreated: %s\n", ref, now.Format(time.RFC3339))
	if err := os.WriteFile(src, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write smoke file: %w", err)
	}

	packed, err := Package(ctx, PackageOptions{
		SourceFile: src,
		StorePath:  filepath.Join(dir, "layout"),
		Tag:        tag,
		Annotations: map[string]string{
			ociv1.AnnotationCreated: now.Format(time.RFC3339),
			ociv1.AnnotationTitle:   "labctl smoke test",
			ociv1.AnnotationVersion: opts.Version,
		},
	})
	if err != nil {
		return nil, err
	}

	pushOpts := PushOptions{
		Reference:   ref,
		Username:    opts.Username,
		Password:    opts.Password,
		PlainHTTP:   opts.PlainHTTP,
		InsecureTLS: opts.InsecureTLS,
	}
	slog.Info("pushing smoke test artifact", "reference", ref.String())
	res, err := PushFromStore(ctx, packed.StorePath, pushOpts)
	if err != nil {
		return nil, err
	}

	repo, err := newRepository(pushOpts)
	if err != nil {
		return nil, err
	}
	if err := Verify(ctx, repo, tag, res.Digest); err != nil {
		return nil, err
	}
	slog.Info("smoke test artifact verified", "reference", res.Reference, "digest", res.Digest)
	return res, nil
}
