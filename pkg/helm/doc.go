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

// Package helm drives the helm CLI.
//
// Releases are always applied with `helm upgrade --install`, so re-running a
// stage converges an existing release instead of failing. Values are rendered
// to a temporary 0600 YAML file that is removed after the call.
//
// Charts referenced by oci:// URL need no repository; for repository charts
// UpgradeInstall adds the repository (unless already listed with the same URL)
// and refreshes its index first.
package helm
