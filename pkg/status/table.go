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

package status

import (
	"fmt"
	"strings"

	"github.com/homelab/labctl/pkg/pipeline"
	"github.com/homelab/labctl/pkg/version"
)

// Table implements serializer.Tabular.
func (r *Report) Table() ([]string, [][]string) {
	var rows [][]string

	if r.Kubernetes != "" {
		rows = append(rows, []string{"cluster", "kubernetes", "UP", r.Kubernetes})
	}
	for _, u := range r.Units {
		rows = append(rows, []string{"service", u.Name, strings.ToUpper(u.ActiveState), u.SubState})
	}
	for _, rel := range r.Releases {
		detail := ""
		if rel.Deployed != "" {
			detail = fmt.Sprintf("%s %s", rel.Chart, rel.Deployed)
			if rel.Drift != version.DriftNone {
				detail += fmt.Sprintf(" (%s, want %s)", rel.Drift, rel.Desired)
			}
		}
		rows = append(rows, []string{"release", rel.Namespace + "/" + rel.Name, strings.ToUpper(rel.Status), detail})
	}
	if c := r.Certificate; c != nil {
		state, detail := "READY", "expires "+c.NotAfter
		if !c.Ready {
			state, detail = "NOT READY", c.Reason+": "+c.Message
		}
		rows = append(rows, []string{"certificate", c.Namespace + "/" + c.Name, state, detail})
	}
	if r.LastRun != nil {
		for _, res := range r.LastRun.Results {
			rows = append(rows, []string{"stage", pipeline.Title(res.Stage), strings.ToUpper(string(res.Status)), res.Message})
		}
	}
	for _, section := range sortedKeys(r.Errors) {
		rows = append(rows, []string{"error", section, "UNAVAILABLE", r.Errors[section]})
	}
	return []string{"SECTION", "NAME", "STATE", "DETAIL"}, rows
}
