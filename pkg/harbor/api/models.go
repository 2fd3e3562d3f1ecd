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
	"encoding/json"
	"fmt"
	"strconv"
)

// Project is a Harbor project.
type Project struct {
	ProjectID int64             `json:"project_id"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	RepoCount int64             `json:"repo_count,omitempty"`
}

// Public reports whether the project allows anonymous pulls.
func (p *Project) Public() bool {
	return p.Metadata["public"] == "true"
}

// RetentionID returns the ID of the project's retention policy, or 0.
func (p *Project) RetentionID() int64 {
	id, _ := strconv.ParseInt(p.Metadata["retention_id"], 10, 64)
	return id
}

// ProjectReq is the body of POST /projects.
type ProjectReq struct {
	ProjectName  string            `json:"project_name"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	StorageLimit *int64            `json:"storage_limit,omitempty"`
}

// Access is one permission of a robot account.
type Access struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Effect   string `json:"effect,omitempty"`
}

// RobotPermission scopes robot access to a project.
type RobotPermission struct {
	Kind      string   `json:"kind"`
	Namespace string   `json:"namespace"`
	Access    []Access `json:"access"`
}

// Robot is a robot account as listed by GET /robots.
type Robot struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Level       string            `json:"level"`
	Duration    int64             `json:"duration"`
	Disable     bool              `json:"disable"`
	ExpiresAt   int64             `json:"expires_at"`
	Permissions []RobotPermission `json:"permissions,omitempty"`
}

// RobotCreate is the body of POST /robots.
type RobotCreate struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Level       string            `json:"level"`
	Duration    int64             `json:"duration"`
	Disable     bool              `json:"disable"`
	Permissions []RobotPermission `json:"permissions"`
}

// RobotCreated is returned once when a robot is created. Secret cannot be
// read back later.
type RobotCreated struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Secret       string `json:"secret"`
	CreationTime string `json:"creation_time,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Selector matches repositories or tags.
type Selector struct {
	Kind       string `json:"kind"`
	Decoration string `json:"decoration"`
	Pattern    string `json:"pattern"`
	Extras     string `json:"extras,omitempty"`
}

// RetentionRule is one rule of a retention policy.
type RetentionRule struct {
	ID             int64                 `json:"id,omitempty"`
	Priority       int                   `json:"priority,omitempty"`
	Disabled       bool                  `json:"disabled"`
	Action         string                `json:"action"`
	Template       string                `json:"template"`
	Params         map[string]any        `json:"params,omitempty"`
	TagSelectors   []Selector            `json:"tag_selectors"`
	ScopeSelectors map[string][]Selector `json:"scope_selectors"`
}

// RetentionTrigger schedules a retention policy.
type RetentionTrigger struct {
	Kind       string         `json:"kind"`
	Settings   map[string]any `json:"settings,omitempty"`
	References map[string]any `json:"references,omitempty"`
}

// RetentionScope binds a policy to a project.
type RetentionScope struct {
	Level string `json:"level"`
	Ref   int64  `json:"ref"`
}

// RetentionPolicy is a tag retention policy.
type RetentionPolicy struct {
	ID        int64             `json:"id,omitempty"`
	Algorithm string            `json:"algorithm"`
	Rules     []RetentionRule   `json:"rules"`
	Trigger   *RetentionTrigger `json:"trigger,omitempty"`
	Scope     *RetentionScope   `json:"scope,omitempty"`
}

// ImmutableRule marks matching tags immutable.
type ImmutableRule struct {
	ID             int64                 `json:"id,omitempty"`
	ProjectID      int64                 `json:"project_id,omitempty"`
	Disabled       bool                  `json:"disabled"`
	Action         string                `json:"action"`
	Template       string                `json:"template"`
	Priority       int                   `json:"priority,omitempty"`
	TagSelectors   []Selector            `json:"tag_selectors"`
	ScopeSelectors map[string][]Selector `json:"scope_selectors"`
}

// ScheduleObj is Harbor's schedule type.
type ScheduleObj struct {
	// Type is one of None, Hourly, Daily, Weekly, Custom, Manual, Schedule.
	Type string `json:"type"`
	Cron string `json:"cron,omitempty"`
}

// GCSchedule is the garbage collection schedule. Requests carry Parameters
// as an object; GET responses carry them as the JSON string job_parameters,
// which UnmarshalJSON decodes into Parameters.
type GCSchedule struct {
	Schedule   *ScheduleObj   `json:"schedule,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (g *GCSchedule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Schedule      *ScheduleObj   `json:"schedule"`
		Parameters    map[string]any `json:"parameters"`
		JobParameters string         `json:"job_parameters"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Schedule, g.Parameters = raw.Schedule, raw.Parameters
	if len(g.Parameters) == 0 && raw.JobParameters != "" {
		if err := json.Unmarshal([]byte(raw.JobParameters), &g.Parameters); err != nil {
			return fmt.Errorf("invalid gc job_parameters %q: %w", raw.JobParameters, err)
		}
	}
	return nil
}

// Type returns the schedule type, or "None" when unset.
func (g *GCSchedule) Type() string {
	if g == nil || g.Schedule == nil || g.Schedule.Type == "" {
		return ScheduleNone
	}
	return g.Schedule.Type
}

// Health is the response of GET /health.
type Health struct {
	Status     string            `json:"status"`
	Components []ComponentHealth `json:"components"`
}

// ComponentHealth is the health of one Harbor component.
type ComponentHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Unhealthy returns the names of components not reporting "healthy".
func (h *Health) Unhealthy() []string {
	var out []string
	for _, c := range h.Components {
		if c.Status != "healthy" {
			out = append(out, c.Name)
		}
	}
	return out
}

// Constants used by the request bodies.
const (
	RobotLevelProject = "project"
	PermissionKind    = "project"
	ResourceRepo      = "repository"

	RetentionAlgorithmOr  = "or"
	RetentionActionRetain = "retain"
	TemplateLatestPushedK = "latestPushedK"
	TriggerSchedule       = "Schedule"
	ScopeLevelProject     = "project"

	ImmutableAction   = "immutable"
	ImmutableTemplate = "immutable_template"

	SelectorDoublestar = "doublestar"
	DecorationMatches  = "matches"
	DecorationRepos    = "repoMatches"

	ScheduleNone   = "None"
	ScheduleHourly = "Hourly"
	ScheduleDaily  = "Daily"
	ScheduleWeekly = "Weekly"
	ScheduleCustom = "Custom"
)

// presetCrons are the six-field crons the Harbor UI sends for each preset.
var presetCrons = map[string]string{
	ScheduleHourly: "0 0 * * * *",
	ScheduleDaily:  "0 0 0 * * *",
	ScheduleWeekly: "0 0 0 * * 0",
}

// ScheduleCron returns the cron Harbor expects for scheduleType: the preset
// for Hourly, Daily and Weekly, custom for Custom, and "" otherwise.
func ScheduleCron(scheduleType, custom string) string {
	if scheduleType == ScheduleCustom {
		return custom
	}
	return presetCrons[scheduleType]
}
