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

// ProjectExists reports whether a project with the exact name exists.
func (c *Client) ProjectExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodHead,
		path:   "/projects",
		query:  url.Values{"project_name": {name}},
	})
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	drainAndCloseBody(resp)
	return true, nil
}

// GetProject returns the project by name.
func (c *Client) GetProject(ctx context.Context, name string) (*Project, error) {
	var p Project
	if _, err := c.doJSON(ctx, request{
		method: http.MethodGet,
		path:   "/projects/" + url.PathEscape(name),
		byName: true,
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project and returns its ID.
func (c *Client) CreateProject(ctx context.Context, req ProjectReq) (int64, error) {
	h, err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/projects",
		body:   req,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create project %s: %w", req.ProjectName, err)
	}
	return idFromLocation(h)
}

// NewProjectReq builds a project request with the public flag set.
func NewProjectReq(name string, public bool) ProjectReq {
	return ProjectReq{
		ProjectName: name,
		Metadata:    map[string]string{"public": fmt.Sprintf("%t", public)},
	}
}
