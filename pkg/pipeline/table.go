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

package pipeline

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title returns the display name of a stage ("harbor-config" is "Harbor Config").
func Title(stage string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(stage, "-", " "))
}

// Table implements serializer.Tabular.
func (s *Summary) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		d := ""
		if r.Status == StatusOK || r.Status == StatusFailed {
			d = r.Duration.Round(100 * time.Millisecond).String()
		}
		rows = append(rows, []string{Title(r.Stage), strings.ToUpper(string(r.Status)), d, r.Message})
	}
	return []string{"STAGE", "STATUS", "DURATION", "MESSAGE"}, rows
}

// Kind names the ConfigMap component a Summary is stored under.
func (s *Summary) Kind() string {
	return "bootstrap"
}
