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

// Package serializer renders command output as JSON, YAML or a table.
//
// Output goes to stdout, a file, or a Kubernetes ConfigMap addressed as
// cm://namespace/name:
//
//	w, err := serializer.NewOutput(serializer.FormatYAML, "cm://labctl/status")
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//	if err := w.Serialize(ctx, summary); err != nil {
//		return err
//	}
//
// Table output flattens nested structures into FIELD/VALUE rows, keyed by
// json field names, unless the value implements Tabular.
package serializer
