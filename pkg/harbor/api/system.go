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
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/homelab/labctl/pkg/defaults"
	apperrors "github.com/homelab/labctl/pkg/errors"
)

const gcSchedulePath = "/system/gc/schedule"

// GetGCSchedule returns the garbage collection schedule. A registry that has
// never been scheduled returns a schedule of type None.
func (c *Client) GetGCSchedule(ctx context.Context) (*GCSchedule, error) {
	var s GCSchedule
	_, err := c.doJSON(ctx, request{method: http.MethodGet, path: gcSchedulePath}, &s)
	if IsNotFound(err) {
		return &GCSchedule{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gc schedule: %w", err)
	}
	return &s, nil
}

// PutGCSchedule sets the garbage collection schedule. Harbor requires POST
// when no schedule exists and PUT otherwise.
func (c *Client) PutGCSchedule(ctx context.Context, s GCSchedule) error {
	current, err := c.GetGCSchedule(ctx)
	if err != nil {
		return err
	}
	method := http.MethodPut
	if current.Type() == ScheduleNone {
		method = http.MethodPost
	}
	if _, err := c.doJSON(ctx, request{method: method, path: gcSchedulePath, body: s}, nil); err != nil {
		return fmt.Errorf("failed to set gc schedule: %w", err)
	}
	return nil
}

// NewGCSchedule builds a schedule. Presets get their fixed cron; cron is
// only used for type Custom.
func NewGCSchedule(scheduleType, cron string, deleteUntagged bool, workers int) GCSchedule {
	return GCSchedule{
		Schedule: &ScheduleObj{Type: scheduleType, Cron: ScheduleCron(scheduleType, cron)},
		Parameters: map[string]any{
			"delete_untagged": deleteUntagged,
			"workers":         workers,
		},
	}
}

// Ping checks that the API answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/ping"})
	if err != nil {
		return err
	}
	drainAndCloseBody(resp)
	return nil
}

// Health returns the health of all Harbor components.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if _, err := c.doJSON(ctx, request{method: http.MethodGet, path: "/health"}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// pollInterval is a variable so tests can shorten it.
var pollInterval = defaults.PollInterval

// WaitHealthy polls /health until every component is healthy. The ingress and
// certificate may lag behind the harbor-core deployment.
func (c *Client) WaitHealthy(ctx context.Context, timeout time.Duration) error {
	var last string
	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			h, err := c.Health(ctx)
			if err != nil {
				if apperrors.IsCode(err, apperrors.ErrCodeUnauthorized) {
					return false, err
				}
				last = err.Error()
				return false, nil
			}
			if bad := h.Unhealthy(); len(bad) > 0 {
				last = "unhealthy components: " + strings.Join(bad, ", ")
				return false, nil
			}
			return true, nil
		},
	)
	if err != nil && wait.Interrupted(err) {
		return apperrors.Wrap(apperrors.ErrCodeTimeout, "harbor not healthy: "+last, err)
	}
	return err
}
