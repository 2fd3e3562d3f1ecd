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

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/runner"
)

// Secret is a repository secret to set.
type Secret struct {
	Name  string
	Value string
}

// Client runs gh.
type Client struct {
	Runner runner.Runner
}

// New returns a Client.
func New(r runner.Runner) *Client {
	return &Client{Runner: r}
}

// AuthStatus fails with UNAUTHORIZED when gh is not logged in.
func (c *Client) AuthStatus(ctx context.Context) error {
	out, err := c.Runner.Run(ctx, "gh", "auth", "status")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized,
			"gh is not authenticated: "+strings.TrimSpace(string(out)), err)
	}
	return nil
}

// ListRepoSecrets returns the secret names of repo ("owner/name").
func (c *Client) ListRepoSecrets(ctx context.Context, repo string) ([]string, error) {
	out, err := c.Runner.Run(ctx, "gh", "secret", "list", "--repo", repo, "--json", "name")
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets of %s: %w", repo, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return nil, nil
	}
	var entries []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse secrets of %s: %w", repo, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// SetRepoSecret creates or replaces a secret of repo.
func (c *Client) SetRepoSecret(ctx context.Context, repo, name, value string) error {
	if name == "" {
		return apperrors.New(apperrors.ErrCodeInvalidRequest, "secret name is required")
	}
	if _, err := c.Runner.RunWithInput(ctx, strings.NewReader(value), "gh", "secret", "set", name, "--repo", repo); err != nil {
		return fmt.Errorf("failed to set secret %s in %s: %w", name, repo, err)
	}
	return nil
}

// Summary counts the outcome of Publish.
type Summary struct {
	Set     int `json:"set" yaml:"set"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// Publish sets secrets in every repo. With skipExisting, secrets that
// already exist in a repository are left untouched.
func (c *Client) Publish(ctx context.Context, repos []string, secrets []Secret, skipExisting bool) (Summary, error) {
	var sum Summary
	for _, repo := range repos {
		var existing []string
		if skipExisting {
			names, err := c.ListRepoSecrets(ctx, repo)
			if err != nil {
				return sum, err
			}
			existing = names
		}
		for _, s := range secrets {
			if slices.Contains(existing, s.Name) {
				slog.Info("github secret exists, skipping", "repo", repo, "name", s.Name)
				sum.Skipped++
				continue
			}
			if err := c.SetRepoSecret(ctx, repo, s.Name, s.Value); err != nil {
				return sum, err
			}
			slog.Info("github secret set", "repo", repo, "name", s.Name)
			sum.Set++
		}
	}
	return sum, nil
}
