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
	"strings"
)

// ListRobots returns every robot account of a project, following pagination.
func (c *Client) ListRobots(ctx context.Context, projectID int64) ([]Robot, error) {
	robots, err := listAll[Robot](ctx, c, request{
		method: http.MethodGet,
		path:   "/robots",
		query: url.Values{
			"q": {fmt.Sprintf("Level=%s,ProjectID=%d", RobotLevelProject, projectID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list robots of project %d: %w", projectID, err)
	}
	return robots, nil
}

// CreateRobot creates a robot account. The returned secret is only available now.
func (c *Client) CreateRobot(ctx context.Context, req RobotCreate) (*RobotCreated, error) {
	var created RobotCreated
	if _, err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/robots",
		body:   req,
	}, &created); err != nil {
		return nil, fmt.Errorf("failed to create robot %s: %w", req.Name, err)
	}
	return &created, nil
}

// FindRobot returns the robot whose name matches name within project.
// Harbor prefixes project robot names ("robot$<project>+<name>").
func FindRobot(robots []Robot, project, name string) *Robot {
	suffix := project + "+" + name
	for i := range robots {
		if robots[i].Name == name || strings.HasSuffix(robots[i].Name, suffix) {
			return &robots[i]
		}
	}
	return nil
}

// NewRobotCreate builds a project-level robot request. Permissions are either
// a repository action ("push") or "resource:action" ("artifact:delete").
// durationDays of -1 never expires.
func NewRobotCreate(project, name, description string, durationDays int, permissions []string) RobotCreate {
	access := make([]Access, 0, len(permissions))
	for _, p := range permissions {
		resource, action := ResourceRepo, p
		if r, a, ok := strings.Cut(p, ":"); ok {
			resource, action = r, a
		}
		access = append(access, Access{Resource: resource, Action: action})
	}
	return RobotCreate{
		Name:        name,
		Description: description,
		Level:       RobotLevelProject,
		Duration:    int64(durationDays),
		Permissions: []RobotPermission{{
			Kind:      PermissionKind,
			Namespace: project,
			Access:    access,
		}},
	}
}
