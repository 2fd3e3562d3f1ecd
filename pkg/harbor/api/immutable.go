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
	"net/url"
)

// ListImmutableRules returns the immutable tag rules of a project.
func (c *Client) ListImmutableRules(ctx context.Context, project string) ([]ImmutableRule, error) {
	rules, err := listAll[ImmutableRule](ctx, c, request{
		method: http.MethodGet,
		path:   "/projects/" + url.PathEscape(project) + "/immutabletagrules",
		byName: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list immutable rules of %s: %w", project, err)
	}
	return rules, nil
}

// CreateImmutableRule adds an immutable tag rule to a project.
func (c *Client) CreateImmutableRule(ctx context.Context, project string, rule ImmutableRule) error {
	if _, err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/projects/" + url.PathEscape(project) + "/immutabletagrules",
		body:   rule,
		byName: true,
	}, nil); err != nil {
		return fmt.Errorf("failed to create immutable rule in %s: %w", project, err)
	}
	return nil
}

// NewImmutableRule builds a rule for tags matching tagPattern in repositories
// matching repoPattern.
func NewImmutableRule(repoPattern, tagPattern string) ImmutableRule {
	return ImmutableRule{
		Action:   ImmutableAction,
		Template: ImmutableTemplate,
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
	}
}

// Patterns returns the repository and tag patterns of the rule.
func (r *ImmutableRule) Patterns() (repo, tag string) {
	if sel := r.ScopeSelectors["repository"]; len(sel) > 0 {
		repo = sel[0].Pattern
	}
	if len(r.TagSelectors) > 0 {
		tag = r.TagSelectors[0].Pattern
	}
	return repo, tag
}
