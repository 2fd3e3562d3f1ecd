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

package microk8s

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// unitPattern matches the MicroK8s snap services.
const unitPattern = "snap.microk8s.daemon-*"

// UnitState is the systemd state of one MicroK8s service.
type UnitState struct {
	Name        string `json:"name" yaml:"name"`
	ActiveState string `json:"activeState" yaml:"activeState"`
	SubState    string `json:"subState" yaml:"subState"`
}

// Active reports whether the unit is running.
func (u UnitState) Active() bool {
	return u.ActiveState == "active"
}

type unitLister interface {
	ListUnitsByPatternsContext(ctx context.Context, states []string, patterns []string) ([]dbus.UnitStatus, error)
	Close()
}

// newUnitLister is replaced in tests.
var newUnitLister = func(ctx context.Context) (unitLister, error) {
	return dbus.NewSystemdConnectionContext(ctx)
}

// ServiceStatus returns the state of every snap.microk8s.daemon-* unit, sorted by name.
func ServiceStatus(ctx context.Context) ([]UnitState, error) {
	conn, err := newUnitLister(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	units, err := conn.ListUnitsByPatternsContext(ctx, nil, []string{unitPattern})
	if err != nil {
		return nil, fmt.Errorf("failed to list microk8s units: %w", err)
	}

	out := make([]UnitState, 0, len(units))
	for _, u := range units {
		out = append(out, UnitState{
			Name:        strings.TrimSuffix(u.Name, ".service"),
			ActiveState: u.ActiveState,
			SubState:    u.SubState,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Inactive returns the units that are not active.
func Inactive(units []UnitState) []string {
	var out []string
	for _, u := range units {
		if !u.Active() {
			out = append(out, u.Name)
		}
	}
	return out
}
