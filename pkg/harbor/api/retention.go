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

package api

import (
	"context"
	"fmt"
	"net/http"
)

// GetRetentionID returns the project's retention policy ID, or 0 when it has none.
func (c *Client) GetRetentionID(ctx context.Context, project string) (int64, error) {
	p, err := c.GetProject(ctx, project)
	if err != nil {
		return 0, err
	}
	return p.RetentionID(), nil
}

// GetRetention returns a retention policy.
func (c *Client) GetRetention(ctx context.Context, id int64) (*RetentionPolicy, error) {
	var p RetentionPolicy
	if _, err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/retentions/%d", id),
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateRetention creates a retention policy and returns its ID.
func (c *Client) CreateRetention(ctx context.Context, policy RetentionPolicy) (int64, error) {
	h, err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/retentions",
		body:   policy,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create retention policy: %w", err)
	}
	return idFromLocation(h)
}

// UpdateRetention replaces a retention policy.
func (c *Client) UpdateRetention(ctx context.Context, id int64, policy RetentionPolicy) error {
	policy.ID = id
	if _, err := c.doJSON(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("/retentions/%d", id),
		body:   policy,
	}, nil); err != nil {
		return fmt.Errorf("failed to update retention policy %d: %w", id, err)
	}
	return nil
}

// KeepLatestPolicy keeps the keep most recently pushed artifacts of every
// repository matching repoPattern, considering tags matching tagPattern.
func KeepLatestPolicy(projectID int64, keep int, cron, repoPattern, tagPattern string) RetentionPolicy {
	return RetentionPolicy{
		Algorithm: RetentionAlgorithmOr,
		Rules: []RetentionRule{{
			Action:   RetentionActionRetain,
			Template: TemplateLatestPushedK,
			Params:   map[string]any{TemplateLatestPushedK: keep},
			TagSelectors: []Selector{{
				Kind:       SelectorDoublestar,
				Decoration: DecorationMatches,
				Pattern:    tagPattern,
			}},
			ScopeSelectors: map[string][]Selector{
				"repository": {{
					Kind:       SelectorDoublestar,
					Decoration: DecorationRepos,
					Pattern:    repoPattern,
				}},
			},
		}},
		Trigger: &RetentionTrigger{
			Kind:     TriggerSchedule,
			Settings: map[string]any{"cron": cron},
		},
		Scope: &RetentionScope{Level: ScopeLevelProject, Ref: projectID},
	}
}
