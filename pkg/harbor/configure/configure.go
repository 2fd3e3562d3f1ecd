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

package configure

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/homelab/labctl/pkg/config"
	apperrors "github.com/homelab/labctl/pkg/errors"
	"github.com/homelab/labctl/pkg/harbor/api"
	"github.com/homelab/labctl/pkg/k8s/resources"
)

// HarborAPI is the subset of the Harbor client used here.
type HarborAPI interface {
	ProjectExists(ctx context.Context, name string) (bool, error)
	GetProject(ctx context.Context, name string) (*api.Project, error)
	CreateProject(ctx context.Context, req api.ProjectReq) (int64, error)
	ListRobots(ctx context.Context, projectID int64) ([]api.Robot, error)
	CreateRobot(ctx context.Context, req api.RobotCreate) (*api.RobotCreated, error)
	GetRetention(ctx context.Context, id int64) (*api.RetentionPolicy, error)
	CreateRetention(ctx context.Context, policy api.RetentionPolicy) (int64, error)
	UpdateRetention(ctx context.Context, id int64, policy api.RetentionPolicy) error
	ListImmutableRules(ctx context.Context, project string) ([]api.ImmutableRule, error)
	CreateImmutableRule(ctx context.Context, project string, rule api.ImmutableRule) error
	GetGCSchedule(ctx context.Context) (*api.GCSchedule, error)
	PutGCSchedule(ctx context.Context, s api.GCSchedule) error
}

// Credential is a robot account login.
type Credential struct {
	Project  string
	Robot    string
	Username string
	Password string
	// Created is true when the robot was created by this run.
	Created bool
	// GitHubUserSecret and GitHubPasswordSecret name the repository secrets
	// that receive Username and Password.
	GitHubUserSecret     string
	GitHubPasswordSecret string
}

// Result summarizes a configuration run.
type Result struct {
	Credentials []Credential
	Warnings    []string
	// Changes counts objects created or updated.
	Changes int
}

// warn logs msg with its key/value pairs and records it.
func (r *Result) warn(msg string, kv ...any) {
	slog.Warn(msg, kv...)
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	r.Warnings = append(r.Warnings, b.String())
}

// Configurer applies projects and the GC schedule.
type Configurer struct {
	API      HarborAPI
	Kube     kubernetes.Interface
	Harbor   config.HarborConfig
	Projects []config.ProjectConfig
	GC       config.GCConfig
}

// Run configures every project, then the GC schedule. Warnings are collected
// in the result; API errors stop the run.
func (c *Configurer) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, p := range c.Projects {
		if err := c.configureProject(ctx, p, res); err != nil {
			return res, fmt.Errorf("project %s: %w", p.Name, err)
		}
	}
	if err := c.ensureGCSchedule(ctx, res); err != nil {
		return res, err
	}
	slog.Info("harbor configured",
		"projects", len(c.Projects),
		"changes", res.Changes,
		"warnings", len(res.Warnings))
	return res, nil
}

func (c *Configurer) configureProject(ctx context.Context, p config.ProjectConfig, res *Result) error {
	proj, err := c.ensureProject(ctx, p, res)
	if err != nil {
		return err
	}
	if p.Robot != nil {
		if err := c.ensureRobot(ctx, proj, *p.Robot, res); err != nil {
			return err
		}
	}
	if p.Retention != nil {
		if err := c.ensureRetention(ctx, proj, *p.Retention, res); err != nil {
			return err
		}
	}
	return c.ensureImmutableRules(ctx, p, res)
}

func (c *Configurer) ensureProject(ctx context.Context, p config.ProjectConfig, res *Result) (*api.Project, error) {
	exists, err := c.API.ProjectExists(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if !exists {
		_, err := c.API.CreateProject(ctx, api.NewProjectReq(p.Name, p.Public))
		switch {
		case err == nil:
			res.Changes++
			slog.Info("harbor project created", "project", p.Name, "public", p.Public)
		case api.IsConflict(err):
			slog.Debug("harbor project created concurrently", "project", p.Name)
		default:
			return nil, err
		}
	}

	proj, err := c.API.GetProject(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if exists && proj.Public() != p.Public {
		res.warn("harbor project visibility differs from configuration",
			"project", p.Name, "public", proj.Public(), "configured", p.Public)
	}
	return proj, nil
}

func (c *Configurer) ensureRobot(ctx context.Context, proj *api.Project, rc config.RobotConfig, res *Result) error {
	robots, err := c.API.ListRobots(ctx, proj.ProjectID)
	if err != nil {
		return err
	}

	cred := Credential{
		Project:              proj.Name,
		Robot:                rc.Name,
		GitHubUserSecret:     rc.GitHubUserSecret,
		GitHubPasswordSecret: rc.GitHubPasswordSecret,
	}

	if existing := api.FindRobot(robots, proj.Name, rc.Name); existing != nil {
		return c.reuseRobot(ctx, existing.Name, rc, cred, res)
	}

	created, err := c.API.CreateRobot(ctx, api.NewRobotCreate(proj.Name, rc.Name, rc.Description, rc.DurationDays, rc.Permissions))
	if api.IsConflict(err) {
		return c.reuseRobot(ctx, rc.Name, rc, cred, res)
	}
	if err != nil {
		return err
	}
	res.Changes++
	slog.Info("harbor robot created", "project", proj.Name, "robot", created.Name)

	cred.Username, cred.Password, cred.Created = created.Name, created.Secret, true
	if err := c.storeCredential(ctx, rc, cred); err != nil {
		return err
	}
	res.Credentials = append(res.Credentials, cred)
	return nil
}

// reuseRobot returns the stored credentials of an existing robot.
func (c *Configurer) reuseRobot(ctx context.Context, name string, rc config.RobotConfig, cred Credential, res *Result) error {
	user, pass, err := c.storedCredential(ctx, rc)
	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		res.warn("harbor robot exists but its secret is not stored; delete the robot to regenerate it",
			"project", cred.Project, "robot", name, "secret", rc.SecretName)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Debug("harbor robot exists", "project", cred.Project, "robot", name)
	cred.Username, cred.Password = user, pass
	res.Credentials = append(res.Credentials, cred)
	return nil
}

func (c *Configurer) secretNamespaces(rc config.RobotConfig) []string {
	if len(rc.SecretNamespaces) > 0 {
		return rc.SecretNamespaces
	}
	return []string{c.Harbor.Namespace}
}

func (c *Configurer) storeCredential(ctx context.Context, rc config.RobotConfig, cred Credential) error {
	for _, ns := range c.secretNamespaces(rc) {
		if _, err := resources.EnsureNamespace(ctx, c.Kube, ns); err != nil {
			return err
		}
		s, err := resources.DockerConfigSecret(ns, rc.SecretName, c.Harbor.RegistryHost(), cred.Username, cred.Password)
		if err != nil {
			return err
		}
		if _, err := resources.EnsureSecret(ctx, c.Kube, s, true); err != nil {
			return err
		}
	}
	return nil
}

// storedCredential reads the robot login from the first namespace holding it.
func (c *Configurer) storedCredential(ctx context.Context, rc config.RobotConfig) (string, string, error) {
	for _, ns := range c.secretNamespaces(rc) {
		s, err := c.Kube.CoreV1().Secrets(ns).Get(ctx, rc.SecretName, metav1.GetOptions{})
		if k8serrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("failed to get secret %s/%s: %w", ns, rc.SecretName, err)
		}
		return resources.DockerConfigCredentials(s, c.Harbor.RegistryHost())
	}
	return "", "", apperrors.New(apperrors.ErrCodeNotFound, "robot secret "+rc.SecretName+" not found")
}

func (c *Configurer) ensureRetention(ctx context.Context, proj *api.Project, rc config.RetentionConfig, res *Result) error {
	want := api.KeepLatestPolicy(proj.ProjectID, rc.KeepLatest, rc.Schedule, rc.RepoPattern, rc.TagPattern)

	id := proj.RetentionID()
	if id == 0 {
		if _, err := c.API.CreateRetention(ctx, want); err != nil {
			return err
		}
		res.Changes++
		slog.Info("harbor retention policy created", "project", proj.Name, "keep", rc.KeepLatest)
		return nil
	}

	current, err := c.API.GetRetention(ctx, id)
	if err != nil {
		return err
	}
	if RetentionMatches(current, rc) {
		slog.Debug("harbor retention policy up to date", "project", proj.Name, "id", id)
		return nil
	}
	if err := c.API.UpdateRetention(ctx, id, want); err != nil {
		return err
	}
	res.Changes++
	slog.Info("harbor retention policy updated", "project", proj.Name, "id", id, "keep", rc.KeepLatest)
	return nil
}

// RetentionMatches reports whether policy is the single keep-latest rule
// described by rc.
func RetentionMatches(policy *api.RetentionPolicy, rc config.RetentionConfig) bool {
	if policy == nil || len(policy.Rules) != 1 {
		return false
	}
	r := policy.Rules[0]
	if r.Disabled || r.Template != api.TemplateLatestPushedK || r.Action != api.RetentionActionRetain {
		return false
	}
	if keep, ok := number(r.Params[api.TemplateLatestPushedK]); !ok || keep != rc.KeepLatest {
		return false
	}
	if len(r.TagSelectors) != 1 || r.TagSelectors[0].Pattern != rc.TagPattern {
		return false
	}
	repos := r.ScopeSelectors["repository"]
	if len(repos) != 1 || repos[0].Pattern != rc.RepoPattern {
		return false
	}
	if policy.Trigger == nil {
		return false
	}
	cron, _ := policy.Trigger.Settings["cron"].(string)
	return cron == rc.Schedule
}

// number converts a decoded JSON number.
func number(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func (c *Configurer) ensureImmutableRules(ctx context.Context, p config.ProjectConfig, res *Result) error {
	if len(p.Immutable) == 0 {
		return nil
	}
	rules, err := c.API.ListImmutableRules(ctx, p.Name)
	if err != nil {
		return err
	}
	type key struct{ repo, tag string }
	have := make([]key, 0, len(rules))
	for i := range rules {
		repo, tag := rules[i].Patterns()
		have = append(have, key{repo, tag})
	}

	for _, ir := range p.Immutable {
		if slices.Contains(have, key{ir.RepoPattern, ir.TagPattern}) {
			slog.Debug("harbor immutable rule exists", "project", p.Name, "tag", ir.TagPattern)
			continue
		}
		err := c.API.CreateImmutableRule(ctx, p.Name, api.NewImmutableRule(ir.RepoPattern, ir.TagPattern))
		if api.IsConflict(err) {
			continue
		}
		if err != nil {
			return err
		}
		have = append(have, key{ir.RepoPattern, ir.TagPattern})
		res.Changes++
		slog.Info("harbor immutable rule created", "project", p.Name, "repo", ir.RepoPattern, "tag", ir.TagPattern)
	}
	return nil
}

func (c *Configurer) ensureGCSchedule(ctx context.Context, res *Result) error {
	current, err := c.API.GetGCSchedule(ctx)
	if err != nil {
		return err
	}
	if GCMatches(current, c.GC) {
		slog.Debug("harbor gc schedule up to date", "type", current.Type())
		return nil
	}
	want := api.NewGCSchedule(c.GC.Schedule, c.GC.Cron, c.GC.DeleteUntagged, c.GC.Workers)
	if err := c.API.PutGCSchedule(ctx, want); err != nil {
		return err
	}
	res.Changes++
	slog.Info("harbor gc schedule set", "type", c.GC.Schedule, "cron", api.ScheduleCron(c.GC.Schedule, c.GC.Cron))
	return nil
}

// GCMatches reports whether the current schedule equals gc. Parameters are
// ignored when both sides are unscheduled.
func GCMatches(current *api.GCSchedule, gc config.GCConfig) bool {
	want := gc.Schedule
	if want == "" {
		want = api.ScheduleNone
	}
	if current.Type() != want {
		return false
	}
	if want == api.ScheduleNone {
		return true
	}
	if current.Schedule.Cron != api.ScheduleCron(want, gc.Cron) {
		return false
	}
	untagged, _ := current.Parameters["delete_untagged"].(bool)
	workers, _ := number(current.Parameters["workers"])
	return untagged == gc.DeleteUntagged && workers == gc.Workers
}
